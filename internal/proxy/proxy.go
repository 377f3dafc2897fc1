// Package proxy re-streams upstream media under the local origin. Targets
// are checked against an allow-list before any outbound request, redirects
// are followed by hand with the cookies and referrer of each hop, and Range
// requests are forwarded so clients can seek.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/util"
)

// ErrHostNotAllowed is returned for targets outside the allow-list
var ErrHostNotAllowed = errors.New("host not allowed")

const errorSnippetLen = 160

// relayedHeaders are copied from a successful upstream answer
var relayedHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
	"Content-Disposition",
}

// Proxy is an http.Handler serving GET ?src=<url>&ref=<referrer>
type Proxy struct {
	client       *http.Client
	allow        AllowList
	maxRedirects int
	newJar       func() Jar
}

// New creates a proxy. A nil client selects the shared stream client.
func New(allow AllowList, client *http.Client) *Proxy {
	if client == nil {
		client = util.GetStreamClient()
	}
	// redirects are walked by hand so every hop sees the jar
	c := *client
	c.CheckRedirect = util.NoFollowRedirects
	c.Jar = nil
	return &Proxy{
		client:       &c,
		allow:        allow,
		maxRedirects: htmlutil.DefaultMaxRedirects,
		newJar:       NewJar,
	}
}

// SetJarFactory replaces the jar constructor, one jar is built per call.
func (p *Proxy) SetJarFactory(f func() Jar) {
	if f != nil {
		p.newJar = f
	}
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{OK: false, Error: msg})
}

// Validate parses src and ref and checks both against the allow-list.
func (p *Proxy) Validate(src, ref string) (*url.URL, *url.URL, error) {
	if src == "" {
		return nil, nil, errors.New("missing src")
	}
	target, err := url.Parse(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid src")
	}
	if !p.allow.Allowed(target) {
		return nil, nil, errors.Wrap(ErrHostNotAllowed, target.Hostname())
	}
	if ref == "" {
		return target, nil, nil
	}
	referer, err := url.Parse(ref)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid ref")
	}
	if !p.allow.Allowed(referer) {
		return nil, nil, errors.Wrap(ErrHostNotAllowed, referer.Hostname())
	}
	return target, referer, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	target, referer, err := p.Validate(q.Get("src"), q.Get("ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	jar := p.newJar()
	refString := ""
	if referer != nil {
		refString = referer.String()
		jar = p.warmUp(ctx, referer, jar)
	}

	resp, err := p.fetch(ctx, target.String(), refString, r.Header.Get("Range"), jar)
	if err != nil {
		if ctx.Err() != nil {
			util.Debug("Proxy client went away", "src", target.String())
			return
		}
		util.Warn("Proxy fetch failed", "src", target.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLen))
		util.Warn("Proxy upstream refused", "src", target.String(), "status", resp.StatusCode)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("upstream status %d: %s", resp.StatusCode, string(snippet)))
		return
	}

	h := w.Header()
	for _, name := range relayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if h.Get("Accept-Ranges") == "" {
		h.Set("Accept-Ranges", "bytes")
	}
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil && ctx.Err() == nil {
		util.Debug("Proxy stream interrupted", "src", target.String(), "error", err)
	}
}

// warmUp visits the referrer page, following its redirects by hand, so the
// session cookies set along the chain are sent with the media request.
// Failures are ignored.
func (p *Proxy) warmUp(ctx context.Context, referer *url.URL, jar Jar) Jar {
	current := referer.String()
	for hops := 0; hops <= p.maxRedirects; hops++ {
		u, err := url.Parse(current)
		if err != nil {
			return jar
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return jar
		}
		htmlutil.DecorateRequest(req, "")
		if cookie := jar.Header(u); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			util.Debug("Proxy warm-up failed", "ref", current, "error", err)
			return jar
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 256<<10))
		_ = resp.Body.Close()
		jar = jar.Merge(u, resp.Header.Values("Set-Cookie"))

		location := resp.Header.Get("Location")
		if !htmlutil.IsRedirect(resp.StatusCode) || location == "" {
			return jar
		}
		next, err := htmlutil.ResolveLocation(current, location)
		if err != nil {
			return jar
		}
		current = next
	}
	util.Debug("Proxy warm-up stopped after too many redirects", "ref", referer.String())
	return jar
}

// fetch walks the redirect chain of src. Each hop carries the previous URL
// as Referer, the Origin of that referrer, the inbound Range header and the
// cookies gathered so far.
func (p *Proxy) fetch(ctx context.Context, src, referer, byteRange string, jar Jar) (*http.Response, error) {
	current := src
	for hops := 0; ; hops++ {
		u, err := url.Parse(current)
		if err != nil {
			return nil, errors.Wrap(err, "invalid redirect target")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create request for %s", current)
		}
		htmlutil.DecorateRequest(req, referer)
		req.Header.Set("Accept", "*/*")
		if origin := originOf(referer); origin != "" {
			req.Header.Set("Origin", origin)
		}
		if byteRange != "" {
			req.Header.Set("Range", byteRange)
		}
		if cookie := jar.Header(u); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch %s", current)
		}
		jar = jar.Merge(u, resp.Header.Values("Set-Cookie"))

		if !htmlutil.IsRedirect(resp.StatusCode) {
			return resp, nil
		}

		location := resp.Header.Get("Location")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		if location == "" {
			return nil, &htmlutil.RedirectError{URL: current, Kind: htmlutil.MissingLocation}
		}
		if hops >= p.maxRedirects {
			return nil, &htmlutil.RedirectError{URL: current, Kind: htmlutil.TooManyRedirects}
		}
		next, err := htmlutil.ResolveLocation(current, location)
		if err != nil {
			return nil, err
		}
		util.Debug("Proxy redirect", "from", current, "to", next)
		referer = current
		current = next
	}
}

func originOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
