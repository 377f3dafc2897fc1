// Package scraper holds the site-specific fetchers and HTML parsers for
// AnimeWorld, AnimeSaturn and MangaWorld. Parsers are pure functions from
// HTML to records; the site clients pair them with fetching.
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

// searchTimeout is the maximum time to wait for all sites in SearchAll
const searchTimeout = 15 * time.Second

// AnimeSite is the common surface of the anime site clients
type AnimeSite interface {
	Name() models.SiteName
	Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error)
	Episodes(ctx context.Context, animeURL string) ([]models.Episode, error)
	StreamCandidates(ctx context.Context, episodeURL string) ([]models.StreamCandidate, error)
}

// Manager keeps the anime site clients by name
type Manager struct {
	sites map[models.SiteName]AnimeSite
	order []models.SiteName
}

// NewManager registers the given sites in order.
func NewManager(sites ...AnimeSite) *Manager {
	m := &Manager{sites: make(map[models.SiteName]AnimeSite, len(sites))}
	for _, s := range sites {
		m.Register(s)
	}
	return m
}

// Register adds or replaces a site client.
func (m *Manager) Register(site AnimeSite) {
	if _, exists := m.sites[site.Name()]; !exists {
		m.order = append(m.order, site.Name())
	}
	m.sites[site.Name()] = site
}

// Site returns the client for name.
func (m *Manager) Site(name models.SiteName) (AnimeSite, error) {
	if s, ok := m.sites[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("site %q not registered", name)
}

// Sites returns the registered site names in registration order.
func (m *Manager) Sites() []models.SiteName {
	return append([]models.SiteName(nil), m.order...)
}

// SiteResult is one site's share of a SearchAll
type SiteResult struct {
	Site  models.SiteName
	Items []models.SearchItem
	Err   error
}

// SearchAll queries every registered site concurrently. Sites that fail or
// time out are reported in their SiteResult and never fail the whole call.
func (m *Manager) SearchAll(ctx context.Context, q models.SearchQuery) []SiteResult {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	results := make([]SiteResult, len(m.order))
	var wg sync.WaitGroup
	for i, name := range m.order {
		wg.Add(1)
		go func(i int, site AnimeSite) {
			defer wg.Done()
			page, err := site.Search(ctx, q)
			results[i] = SiteResult{Site: site.Name(), Items: page.Items, Err: err}
		}(i, m.sites[name])
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			util.Warn("Search source unavailable", "site", r.Site, "error", r.Err)
			continue
		}
		util.Debug("Search results", "site", r.Site, "count", len(r.Items))
	}
	return results
}
