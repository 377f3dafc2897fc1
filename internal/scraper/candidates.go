package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

var (
	sourcesBlockRe = regexp.MustCompile(`(?s)sources\s*:\s*(\[.*?\])`)
	looseMediaRe   = regexp.MustCompile(`(?:file|src)\s*:\s*["']([^"']+?\.(?:m3u8|mp4)(?:\?[^"']*)?)["']`)

	jsLocationRe  = regexp.MustCompile(`(?:window\.)?location(?:\.href)?\s*=\s*["']([^"']+)["']`)
	jsReplaceRe   = regexp.MustCompile(`location\.replace\(\s*["']([^"']+)["']\s*\)`)
	metaRefreshRe = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";]+)`)
)

// ExtractStreamCandidates returns the media URLs found on a watch page in
// method priority order: download links, video tags, sources blocks, then
// loose file/src matches. URLs are absolutized and deduplicated with the
// first occurrence kept. Malformed scripts are skipped, never fatal.
func ExtractStreamCandidates(html []byte, base string) []models.StreamCandidate {
	var out []models.StreamCandidate
	seen := make(map[string]bool)
	add := func(raw string, method models.CandidateMethod) {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == "#" || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
			return
		}
		abs := htmlutil.Absolutize(raw, base)
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, models.StreamCandidate{URL: abs, Method: method})
	}

	if doc, err := parseDocument(html); err == nil {
		doc.Find("#alternativeDownloadLink, #downloadLink, a[download]").Each(func(_ int, a *goquery.Selection) {
			add(a.AttrOr("href", ""), models.MethodDownload)
		})
		doc.Find("video[src], video source[src]").Each(func(_ int, v *goquery.Selection) {
			add(v.AttrOr("src", ""), models.MethodVideoSource)
		})
	}

	text := string(html)
	for _, m := range sourcesBlockRe.FindAllStringSubmatch(text, -1) {
		for _, u := range sourcesFromBlock(m[1]) {
			add(u, models.MethodSourcesBlock)
		}
	}
	for _, m := range looseMediaRe.FindAllStringSubmatch(text, -1) {
		add(m[1], models.MethodLooseMatch)
	}

	return out
}

// sourcesFromBlock reads a player "sources" array. Entries are either plain
// strings or objects with a file/src/url field.
func sourcesFromBlock(block string) []string {
	var entries []any
	if !ParseLooseJSON(block, &entries) {
		util.Debug("Skipping malformed sources block", "snippet", util.Truncate(block, 80))
		return nil
	}
	var urls []string
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			urls = append(urls, v)
		case map[string]any:
			for _, key := range []string{"file", "src", "url"} {
				if s, ok := v[key].(string); ok && s != "" {
					urls = append(urls, s)
					break
				}
			}
		}
	}
	return urls
}

// ParseLooseJSON decodes s into v, repairing JS object syntax first when
// plain JSON fails. It reports false instead of failing.
func ParseLooseJSON(s string, v any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if json.Unmarshal([]byte(s), v) == nil {
		return true
	}
	return json.Unmarshal([]byte(RepairQuasiJSON(s)), v) == nil
}

// RepairQuasiJSON rewrites a JavaScript object literal into JSON: single
// quoted strings become double quoted, bare keys are quoted and trailing
// commas are dropped. Input that is already JSON passes through unchanged.
func RepairQuasiJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	r := []rune(s)
	n := len(r)

	for i := 0; i < n; i++ {
		c := r[i]
		switch {
		case c == '"':
			// copy a JSON string verbatim
			b.WriteRune(c)
			for i++; i < n; i++ {
				b.WriteRune(r[i])
				if r[i] == '\\' && i+1 < n {
					i++
					b.WriteRune(r[i])
					continue
				}
				if r[i] == '"' {
					break
				}
			}
		case c == '\'':
			b.WriteRune('"')
			for i++; i < n; i++ {
				ch := r[i]
				if ch == '\\' && i+1 < n {
					i++
					if r[i] == '\'' {
						b.WriteRune('\'')
					} else {
						b.WriteRune('\\')
						b.WriteRune(r[i])
					}
					continue
				}
				if ch == '\'' {
					break
				}
				if ch == '"' {
					b.WriteString(`\"`)
					continue
				}
				b.WriteRune(ch)
			}
			b.WriteRune('"')
		case c == ',':
			j := i + 1
			for j < n && isSpace(r[j]) {
				j++
			}
			if j < n && (r[j] == ']' || r[j] == '}') {
				continue
			}
			b.WriteRune(c)
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(r[j]) {
				j++
			}
			ident := string(r[i:j])
			k := j
			for k < n && isSpace(r[k]) {
				k++
			}
			if k < n && r[k] == ':' {
				b.WriteString(`"` + ident + `"`)
			} else {
				b.WriteString(ident)
			}
			i = j - 1
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// FindPlayerRedirect returns the target of a JavaScript location change, a
// meta refresh or the player iframe, in that order. The result is relative
// to the page and may be empty.
func FindPlayerRedirect(html []byte) string {
	text := string(html)
	if m := jsLocationRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := jsReplaceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	doc, err := parseDocument(html)
	if err != nil {
		return ""
	}
	var refresh string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		if strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh") {
			refresh = m.AttrOr("content", "")
			return false
		}
		return true
	})
	if m := metaRefreshRe.FindStringSubmatch(refresh); m != nil {
		return strings.TrimSpace(m[1])
	}
	for _, sel := range []string{"#player iframe", "iframe#player-iframe", ".player iframe", "iframe[src*=embed]"} {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
	}
	return ""
}
