// Package models contains the data structures shared by the scrapers, the
// reconciliation layer and the HTTP surface.
package models

import (
	"strings"
	"time"
)

// SiteName identifies one upstream content source
type SiteName string

const (
	SiteAnimeWorld  SiteName = "AnimeWorld"
	SiteAnimeSaturn SiteName = "AnimeSaturn"
	SiteAnimePahe   SiteName = "AnimePahe"
	SiteMangaWorld  SiteName = "MangaWorld"
)

// AnimeSites lists the sites the reconciliation index knows about, in
// playback preference order.
var AnimeSites = []SiteName{SiteAnimeWorld, SiteAnimeSaturn, SiteAnimePahe}

// Code returns the short query-parameter form used by the index (AW, AS, AP).
func (s SiteName) Code() string {
	switch s {
	case SiteAnimeWorld:
		return "AW"
	case SiteAnimeSaturn:
		return "AS"
	case SiteAnimePahe:
		return "AP"
	case SiteMangaWorld:
		return "MW"
	default:
		return ""
	}
}

// ParseSiteName accepts either the full name or the short code, case-insensitively.
func ParseSiteName(raw string) (SiteName, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range []SiteName{SiteAnimeWorld, SiteAnimeSaturn, SiteAnimePahe, SiteMangaWorld} {
		if strings.EqualFold(raw, string(s)) || strings.EqualFold(raw, s.Code()) {
			return s, true
		}
	}
	return "", false
}

// Source is a (site, canonical URL, site-local id) triple
type Source struct {
	Name SiteName `json:"name"`
	URL  string   `json:"url,omitempty"`
	ID   string   `json:"id,omitempty"`
}

// Playable reports whether the source carries enough identity to be resolved.
func (s Source) Playable() bool {
	return s.URL != "" || s.ID != ""
}

// SearchItem is one result card scraped from a single site
type SearchItem struct {
	Title           string   `json:"title"`
	Href            string   `json:"href"`
	Image           string   `json:"image,omitempty"`
	IsDub           bool     `json:"isDub,omitempty"`
	Sources         []Source `json:"sources,omitempty"`
	HasMultiServers bool     `json:"hasMultiServers"`
}

// Pagination describes the paging widget of a results page
type Pagination struct {
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	HasNext     bool   `json:"hasNext"`
	HasPrevious bool   `json:"hasPrevious"`
	NextURL     string `json:"nextUrl,omitempty"`
	PreviousURL string `json:"previousUrl,omitempty"`
}

// SearchPage is a page of search results
type SearchPage struct {
	Items      []SearchItem `json:"items"`
	Pagination *Pagination  `json:"pagination,omitempty"`
}

// Images holds the artwork of a reconciled title
type Images struct {
	Poster string `json:"poster,omitempty"`
	Cover  string `json:"cover,omitempty"`
}

// MatchScore is the confidence that a reconciled record matches the query.
// Score is in [0,1]; Method names the heuristic that produced it.
type MatchScore struct {
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// UnifiedResult is one title reconciled across sites
type UnifiedResult struct {
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Images          Images      `json:"images"`
	Sources         []Source    `json:"sources"`
	HasMultiServers bool        `json:"hasMultiServers"`
	Match           *MatchScore `json:"match,omitempty"`
}

// NormalizeSources keeps the first source per site name and drops nameless
// entries. The second return value is true when more than one of the kept
// sources is playable.
func NormalizeSources(sources []Source) ([]Source, bool) {
	seen := make(map[SiteName]bool, len(sources))
	out := make([]Source, 0, len(sources))
	playable := 0
	for _, s := range sources {
		if s.Name == "" || seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
		if s.Playable() {
			playable++
		}
	}
	return out, playable > 1
}

// Normalize enforces the one-source-per-site invariant in place.
func (r *UnifiedResult) Normalize() {
	r.Sources, r.HasMultiServers = NormalizeSources(r.Sources)
}

// Source returns the source for the given site, if any.
func (r UnifiedResult) Source(name SiteName) (Source, bool) {
	return FindSource(r.Sources, name)
}

// FindSource returns the first source with the given site name.
func FindSource(sources []Source, name SiteName) (Source, bool) {
	for _, s := range sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// SearchQuery carries a keyword and the optional archive filters
type SearchQuery struct {
	Keyword string `form:"keyword" json:"keyword,omitempty"`
	Genre   string `form:"genre" json:"genre,omitempty"`
	Year    string `form:"year" json:"year,omitempty"`
	Season  string `form:"season" json:"season,omitempty"`
	Status  string `form:"status" json:"status,omitempty"`
	Type    string `form:"type" json:"type,omitempty"`
	Dub     string `form:"dub" json:"dub,omitempty"`
	Sort    string `form:"sort" json:"sort,omitempty"`
	Page    int    `form:"page" json:"page,omitempty"`
}

// HasFilters reports whether anything beyond the keyword and page is set.
// Cross-site reconciliation is only defined for bare keyword searches.
func (q SearchQuery) HasFilters() bool {
	for _, v := range []string{q.Genre, q.Year, q.Season, q.Status, q.Type, q.Dub, q.Sort} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// TopItem is one entry of a ranking widget
type TopItem struct {
	Rank  int    `json:"rank"`
	Title string `json:"title"`
	Href  string `json:"href"`
	Image string `json:"image,omitempty"`
}

// TopLists holds the three independent rankings
type TopLists struct {
	Day   []TopItem `json:"day"`
	Week  []TopItem `json:"week"`
	Month []TopItem `json:"month"`
}

// HomeWidgets are the homepage lists surfaced after validation
type HomeWidgets struct {
	New     []SearchItem `json:"new"`
	Ongoing []SearchItem `json:"ongoing"`
}

// WatchMeta is the descriptive block of a title page
type WatchMeta struct {
	Title       string   `json:"title"`
	AltTitle    string   `json:"altTitle,omitempty"`
	Image       string   `json:"image,omitempty"`
	Rating      string   `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Studio      string   `json:"studio,omitempty"`
	Status      string   `json:"status,omitempty"`
	Episodes    string   `json:"episodes,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Audio       string   `json:"audio,omitempty"`
	Category    string   `json:"category,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Season      string   `json:"season,omitempty"`
	Views       string   `json:"views,omitempty"`
	Synopsis    string   `json:"synopsis,omitempty"`
}

// AnimeInfo aggregates everything shown on a watch page. Each part is
// fetched independently and is nil when its fetch failed.
type AnimeInfo struct {
	Meta       *WatchMeta   `json:"meta"`
	SaturnMeta *WatchMeta   `json:"saturnMeta"`
	Similar    []SearchItem `json:"similar"`
	Related    []SearchItem `json:"related"`
	Episodes   []Episode    `json:"episodes"`
}

// ScheduleItem is one broadcast slot
type ScheduleItem struct {
	Time    string `json:"time"`
	Title   string `json:"title"`
	Episode string `json:"episode,omitempty"`
	Href    string `json:"href"`
	Image   string `json:"image,omitempty"`
}

// DaySchedule buckets the broadcasts of one calendar day
type DaySchedule struct {
	Day   string         `json:"day"`
	Date  time.Time      `json:"date"`
	Items []ScheduleItem `json:"items"`
}
