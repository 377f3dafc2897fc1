package unified

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

// SearchIndex is the part of the index Lookup needs
type SearchIndex interface {
	Search(ctx context.Context, keyword string) ([]models.UnifiedResult, error)
}

// PrimarySite is the single site used when reconciliation is bypassed or
// unavailable
type PrimarySite interface {
	Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error)
	Widgets(ctx context.Context) (models.HomeWidgets, error)
}

// SearchOutcome is the result of a lookup. Reconciled tells whether the
// items came from the index or from the primary site alone.
type SearchOutcome struct {
	Items      []models.SearchItem    `json:"items"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Reconciled bool                   `json:"reconciled"`
	Unified    []models.UnifiedResult `json:"unified,omitempty"`
}

const homeCacheKey = "home"

// Lookup answers search and homepage requests
type Lookup struct {
	index     SearchIndex
	primary   PrimarySite
	validator *Validator
	homeCache *util.ResponseCache
	bases     map[models.SiteName]string
}

// NewLookup wires a lookup. validator and cache may be nil.
func NewLookup(index SearchIndex, primary PrimarySite, validator *Validator, cache *util.ResponseCache) *Lookup {
	return &Lookup{
		index:     index,
		primary:   primary,
		validator: validator,
		homeCache: cache,
		bases:     map[models.SiteName]string{},
	}
}

// SetSiteBase registers the origin used to build links for sources the
// index returns without a URL.
func (l *Lookup) SetSiteBase(site models.SiteName, base string) {
	l.bases[site] = strings.TrimRight(base, "/")
}

// Search runs a reconciled keyword search. Filtered queries and index
// failures go to the primary site; index errors are never returned.
func (l *Lookup) Search(ctx context.Context, q models.SearchQuery) (SearchOutcome, error) {
	if q.HasFilters() || strings.TrimSpace(q.Keyword) == "" || l.index == nil {
		return l.singleSite(ctx, q)
	}

	results, err := l.index.Search(ctx, q.Keyword)
	if err != nil {
		util.Warn("Unified search unavailable, falling back to single site", "keyword", q.Keyword, "error", err)
		return l.singleSite(ctx, q)
	}
	if len(results) == 0 {
		util.Debug("Unified search empty, falling back to single site", "keyword", q.Keyword)
		return l.singleSite(ctx, q)
	}

	for i := range results {
		score := Score(q.Keyword, results[i].Title)
		results[i].Match = &score
	}
	items := lo.FilterMap(results, func(r models.UnifiedResult, _ int) (models.SearchItem, bool) {
		return l.toSearchItem(r)
	})
	return SearchOutcome{Items: items, Reconciled: true, Unified: results}, nil
}

func (l *Lookup) singleSite(ctx context.Context, q models.SearchQuery) (SearchOutcome, error) {
	page, err := l.primary.Search(ctx, q)
	if err != nil {
		return SearchOutcome{Items: []models.SearchItem{}}, err
	}
	return SearchOutcome{Items: page.Items, Pagination: page.Pagination}, nil
}

// toSearchItem maps a reconciled record to the local card shape. The
// AnimeWorld source is preferred as href, else the first usable source.
func (l *Lookup) toSearchItem(r models.UnifiedResult) (models.SearchItem, bool) {
	playable := lo.Filter(r.Sources, func(s models.Source, _ int) bool { return s.Playable() })
	src, ok := models.FindSource(playable, models.SiteAnimeWorld)
	if !ok {
		src, ok = lo.First(playable)
	}
	if !ok {
		return models.SearchItem{}, false
	}
	href := l.SourceURL(src)
	if href == "" {
		return models.SearchItem{}, false
	}

	image := r.Images.Poster
	if image == "" {
		image = r.Images.Cover
	}
	return models.SearchItem{
		Title:           r.Title,
		Href:            href,
		Image:           image,
		Sources:         r.Sources,
		HasMultiServers: r.HasMultiServers,
	}, true
}

// SourceURL returns the canonical URL of a source, building it from the
// site origin and id when the index left it out.
func (l *Lookup) SourceURL(s models.Source) string {
	if s.URL != "" {
		return s.URL
	}
	base := l.bases[s.Name]
	if base == "" || s.ID == "" {
		return ""
	}
	switch s.Name {
	case models.SiteAnimeWorld:
		return base + "/play/" + s.ID
	case models.SiteAnimeSaturn:
		return base + "/anime/" + s.ID
	case models.SiteMangaWorld:
		return base + "/manga/" + s.ID
	default:
		return base + "/" + s.ID
	}
}

// Home returns the validated homepage widgets, cached for the lifetime of
// the response cache. On failure the widgets are empty and the error is
// returned for logging.
func (l *Lookup) Home(ctx context.Context) (models.HomeWidgets, error) {
	if l.homeCache != nil {
		if data, ok := l.homeCache.Get(homeCacheKey); ok {
			var cached models.HomeWidgets
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	widgets, err := l.primary.Widgets(ctx)
	if err != nil {
		return models.HomeWidgets{New: []models.SearchItem{}, Ongoing: []models.SearchItem{}}, err
	}
	widgets.New = l.validator.Filter(ctx, widgets.New)
	widgets.Ongoing = l.validator.Filter(ctx, widgets.Ongoing)

	if l.homeCache != nil {
		if data, err := json.Marshal(widgets); err == nil {
			l.homeCache.Set(homeCacheKey, data)
		}
	}
	return widgets, nil
}
