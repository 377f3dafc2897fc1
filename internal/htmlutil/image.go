package htmlutil

import (
	"regexp"
	"strings"
)

var imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)(\?.*)?$`)

// imageDenylist holds substrings that mark decoration rather than page content
var imageDenylist = []string{
	"placeholder",
	"logo",
	"avatar",
	"banner",
	"icon",
	"button",
	"bg",
	"background",
}

// IsValidMangaImage reports whether src looks like a chapter page image.
func IsValidMangaImage(src string) bool {
	src = strings.TrimSpace(src)
	if src == "" || !imageExtRe.MatchString(src) {
		return false
	}
	lower := strings.ToLower(src)
	for _, bad := range imageDenylist {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}
