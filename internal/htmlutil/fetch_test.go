package htmlutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithRedirectsFollowsChain(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Referer"), "/b")
		_, _ = fmt.Fprint(w, "final")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, hops, err := FetchWithRedirects(context.Background(), server.Client(), server.URL+"/a", DefaultMaxRedirects)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, 2, hops)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "final", string(body))
}

func TestFetchWithRedirectsTooMany(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	_, _, err := FetchWithRedirects(context.Background(), server.Client(), server.URL+"/loop", 3)
	require.Error(t, err)

	var redirErr *RedirectError
	require.True(t, errors.As(err, &redirErr))
	assert.Equal(t, TooManyRedirects, redirErr.Kind)
}

func TestFetchWithRedirectsMissingLocation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	_, _, err := FetchWithRedirects(context.Background(), server.Client(), server.URL, DefaultMaxRedirects)
	var redirErr *RedirectError
	require.True(t, errors.As(err, &redirErr))
	assert.Equal(t, MissingLocation, redirErr.Kind)
}

func TestFetchWithRedirectsUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := FetchWithRedirects(context.Background(), server.Client(), server.URL, DefaultMaxRedirects)
	var upErr *UpstreamHTTPError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.Status)
}

func TestFetchHTMLSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	body, err := FetchHTML(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
}
