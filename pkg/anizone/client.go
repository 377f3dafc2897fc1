// Package anizone provides a public API for searching AnimeWorld and
// AnimeSaturn and resolving their episodes to playable media.
// This package can be used as a library in other Go projects.
package anizone

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/resolver"
	"github.com/Pal-droid/anizone/internal/scraper"
	"github.com/Pal-droid/anizone/pkg/anizone/types"
)

// Client is the main client for interacting with anime sources
type Client struct {
	manager  *scraper.Manager
	resolver *resolver.Resolver
}

// NewClient creates a new client with all available sites on their default
// base URLs.
func NewClient() *Client {
	return newClient(
		scraper.NewAnimeWorldClient("", nil),
		scraper.NewAnimeSaturnClient("", nil),
	)
}

func newClient(sites ...scraper.AnimeSite) *Client {
	m := scraper.NewManager(sites...)
	return &Client{manager: m, resolver: resolver.New(nil, m, nil)}
}

// SearchAnime searches for anime across all sources or a specific source.
// If source is nil, every site is searched and a site that fails is skipped;
// an error is returned only when all of them fail.
func (c *Client) SearchAnime(ctx context.Context, query string, source *types.Source) ([]*types.Anime, error) {
	q := models.SearchQuery{Keyword: query}
	if source != nil {
		site, err := c.manager.Site(source.ToSiteName())
		if err != nil {
			return nil, err
		}
		page, err := site.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		return types.FromSearchItems(page.Items, site.Name()), nil
	}

	var (
		out     []*types.Anime
		lastErr error
		ok      bool
	)
	for _, r := range c.manager.SearchAll(ctx, q) {
		if r.Err != nil {
			lastErr = r.Err
			continue
		}
		ok = true
		out = append(out, types.FromSearchItems(r.Items, r.Site)...)
	}
	if !ok && lastErr != nil {
		return nil, errors.Wrap(lastErr, "all sources failed")
	}
	return out, nil
}

// GetAnimeEpisodes retrieves all episodes for a specific anime.
// The animeURL should be obtained from a SearchAnime result.
func (c *Client) GetAnimeEpisodes(ctx context.Context, animeURL string, source types.Source) ([]*types.Episode, error) {
	site := source.ToSiteName()
	eps, err := c.resolver.Episodes(ctx, []models.Source{{Name: site, URL: animeURL}}, site)
	if err != nil {
		return nil, err
	}
	return types.FromEpisodes(eps), nil
}

// GetStream resolves the media behind an episode page.
// The episodeURL should be obtained from GetAnimeEpisodes.
func (c *Client) GetStream(ctx context.Context, episodeURL string, source types.Source) (*types.Stream, error) {
	site := source.ToSiteName()
	res, err := c.resolver.Stream(ctx, resolver.StreamRequest{
		Sources: []models.Source{{Name: site, URL: episodeURL}},
		Site:    site,
		Href:    episodeURL,
	})
	if err != nil {
		return nil, err
	}
	return types.FromStreamResult(res, episodeURL), nil
}

// GetAvailableSources returns a list of all available sources.
func (c *Client) GetAvailableSources() []types.Source {
	return []types.Source{
		types.SourceAnimeWorld,
		types.SourceAnimeSaturn,
	}
}
