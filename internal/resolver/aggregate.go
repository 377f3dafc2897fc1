package resolver

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/scraper"
	"github.com/Pal-droid/anizone/internal/util"
)

// WatchPageSource fetches an AnimeWorld title page
type WatchPageSource interface {
	WatchPage(ctx context.Context, animeURL string) (*scraper.WatchPage, error)
}

// SaturnMetaSource fetches the AnimeSaturn info block of a title
type SaturnMetaSource interface {
	SaturnMeta(ctx context.Context, animeURL string) (*models.WatchMeta, error)
}

// InfoRequest names the pages an anime info view is built from
type InfoRequest struct {
	URL       string
	SaturnURL string
	// Sources enables index-backed episodes; without them the episodes
	// parsed from the title page are used.
	Sources []models.Source
}

// Aggregator builds the anime info view from independent fetches
type Aggregator struct {
	watch    WatchPageSource
	saturn   SaturnMetaSource
	resolver *Resolver
}

// NewAggregator wires an aggregator. saturn and resolver may be nil.
func NewAggregator(watch WatchPageSource, saturn SaturnMetaSource, resolver *Resolver) *Aggregator {
	return &Aggregator{watch: watch, saturn: saturn, resolver: resolver}
}

// Aggregate runs the title page, AnimeSaturn meta and episode fetches
// concurrently. Every part degrades to nil on its own failure; the view is
// returned even when all of them fail. The only error is a requested page
// outside its site, which matches htmlutil.ErrForeignHost.
func (a *Aggregator) Aggregate(ctx context.Context, req InfoRequest) (models.AnimeInfo, error) {
	var (
		wg       sync.WaitGroup
		page     *scraper.WatchPage
		saturn   *models.WatchMeta
		episodes []models.Episode
		errs     [3]error
	)

	if req.URL != "" && a.watch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.watch.WatchPage(ctx, req.URL)
			if err != nil {
				errs[0] = err
				util.Warn("Watch page unavailable", "url", req.URL, "error", err)
				return
			}
			page = p
		}()
	}

	if req.SaturnURL != "" && a.saturn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := a.saturn.SaturnMeta(ctx, req.SaturnURL)
			if err != nil {
				errs[1] = err
				util.Warn("AnimeSaturn meta unavailable", "url", req.SaturnURL, "error", err)
				return
			}
			saturn = m
		}()
	}

	if len(req.Sources) > 0 && a.resolver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eps, err := a.resolver.Episodes(ctx, req.Sources, models.SiteAnimeWorld)
			if err != nil {
				errs[2] = err
				util.Warn("Episodes unavailable", "error", err)
				return
			}
			episodes = eps
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if errors.Is(err, htmlutil.ErrForeignHost) {
			return models.AnimeInfo{}, err
		}
	}

	info := models.AnimeInfo{SaturnMeta: saturn, Episodes: episodes}
	if page != nil {
		meta := page.Meta
		info.Meta = &meta
		info.Similar = page.Similar
		info.Related = page.Related
		if info.Episodes == nil {
			info.Episodes = page.Episodes
		}
	}
	return info, nil
}
