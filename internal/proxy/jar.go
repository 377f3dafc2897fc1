package proxy

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Jar is the cookie state of a single proxy call. It is threaded through
// the redirect loop: read the Cookie header for a hop, then merge the
// Set-Cookie values of its response into the jar used for the next hop.
type Jar interface {
	Header(u *url.URL) string
	Merge(u *url.URL, setCookie []string) Jar
}

type cookieJar struct {
	jar *cookiejar.Jar
}

// NewJar returns an empty jar scoped by the public suffix list.
func NewJar() Jar {
	// cookiejar.New never returns an error
	j, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &cookieJar{jar: j}
}

func (c *cookieJar) Header(u *url.URL) string {
	cookies := c.jar.Cookies(u)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func (c *cookieJar) Merge(u *url.URL, setCookie []string) Jar {
	if len(setCookie) == 0 {
		return c
	}
	resp := http.Response{Header: http.Header{"Set-Cookie": setCookie}}
	c.jar.SetCookies(u, resp.Cookies())
	return c
}
