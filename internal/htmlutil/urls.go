package htmlutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrForeignHost is returned for page URLs outside a site's own host
var ErrForeignHost = errors.New("url is outside the site")

// CheckSiteURL verifies that rawURL is an http(s) URL on the host of base or
// one of its subdomains. A leading "www." on base is ignored.
func CheckSiteURL(rawURL, base string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Wrapf(ErrForeignHost, "%q", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	site := strings.TrimPrefix(Host(base), "www.")
	if site == "" || (host != site && !strings.HasSuffix(host, "."+site)) {
		return errors.Wrap(ErrForeignHost, host)
	}
	return nil
}

// Absolutize resolves href against base. Empty input gives an empty string
// and an unparsable input is returned unchanged.
func Absolutize(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}

// ExtractID returns the last non-empty path segment of a URL.
func ExtractID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	path := rawURL
	if err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// SetQueryParam returns rawURL with key set to value.
func SetQueryParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// Host returns the lowercase hostname of rawURL, or "".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	intRe   = regexp.MustCompile(`-?\d+`)
)

// CleanText collapses whitespace runs and trims.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ParseLeadingInt returns the first integer found in s, or def.
func ParseLeadingInt(s string, def int) int {
	m := intRe.FindString(s)
	if m == "" {
		return def
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return def
	}
	return n
}
