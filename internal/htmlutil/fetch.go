// Package htmlutil holds the generic helpers used by every site parser:
// redirect-aware fetching, URL resolution and image heuristics.
package htmlutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// DefaultMaxRedirects is the hop cap used by FetchWithRedirects and the proxy.
const DefaultMaxRedirects = 5

// DefaultUserAgent is sent on every scrape and proxy request
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

// RedirectKind distinguishes the two redirect failures
type RedirectKind string

const (
	TooManyRedirects RedirectKind = "too many redirects"
	MissingLocation  RedirectKind = "missing location header"
)

// RedirectError is fatal for the fetch that raised it.
type RedirectError struct {
	URL  string
	Kind RedirectKind
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.URL)
}

// UpstreamHTTPError is a non-redirect, non-2xx answer from a site or the index
type UpstreamHTTPError struct {
	URL    string
	Status int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.Status)
}

// IsRedirect reports whether status is one of the followed redirect codes.
func IsRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// DecorateRequest sets browser-like headers on a scrape request.
func DecorateRequest(req *http.Request, referer string) {
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

// ResolveLocation resolves a Location header against the URL that returned it.
func ResolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", errors.Wrap(err, "invalid current url")
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", errors.Wrap(err, "invalid location header")
	}
	return base.ResolveReference(ref).String(), nil
}

// FetchWithRedirects issues a GET and walks the redirect chain by hand, up to
// maxRedirects hops. It returns the final 2xx response and the number of
// hops followed. The caller must close the response body.
func FetchWithRedirects(ctx context.Context, client *http.Client, rawURL string, maxRedirects int) (*http.Response, int, error) {
	if client == nil {
		client = http.DefaultClient
	}
	// shallow copy so the caller's redirect policy is left alone
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	current := rawURL
	referer := ""
	for hops := 0; ; hops++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, hops, errors.Wrapf(err, "failed to create request for %s", current)
		}
		DecorateRequest(req, referer)

		resp, err := c.Do(req)
		if err != nil {
			return nil, hops, errors.Wrapf(err, "failed to fetch %s", current)
		}

		if IsRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drain(resp)
			if location == "" {
				return nil, hops, &RedirectError{URL: current, Kind: MissingLocation}
			}
			if hops >= maxRedirects {
				return nil, hops, &RedirectError{URL: current, Kind: TooManyRedirects}
			}
			next, err := ResolveLocation(current, location)
			if err != nil {
				return nil, hops, err
			}
			referer = current
			current = next
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp)
			return nil, hops, &UpstreamHTTPError{URL: current, Status: resp.StatusCode}
		}
		return resp, hops, nil
	}
}

// FetchHTML fetches a page and returns its body.
func FetchHTML(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	resp, _, err := FetchWithRedirects(ctx, client, rawURL, DefaultMaxRedirects)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rawURL)
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
