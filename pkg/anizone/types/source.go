package types

import (
	"fmt"
	"strings"

	"github.com/Pal-droid/anizone/internal/models"
)

// Source represents an anime site
type Source int

const (
	// SourceAnimeWorld represents AnimeWorld
	SourceAnimeWorld Source = iota
	// SourceAnimeSaturn represents AnimeSaturn
	SourceAnimeSaturn
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourceAnimeWorld:
		return "AnimeWorld"
	case SourceAnimeSaturn:
		return "AnimeSaturn"
	default:
		return "Unknown"
	}
}

// ToSiteName converts the public Source type to the internal site name
func (s Source) ToSiteName() models.SiteName {
	if s == SourceAnimeSaturn {
		return models.SiteAnimeSaturn
	}
	return models.SiteAnimeWorld
}

// ParseSource parses a name or short code into a Source
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "animeworld", "aw", "world":
		return SourceAnimeWorld, nil
	case "animesaturn", "as", "saturn":
		return SourceAnimeSaturn, nil
	default:
		return SourceAnimeWorld, fmt.Errorf("unknown source: %s", s)
	}
}
