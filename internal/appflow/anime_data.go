package appflow

import (
	"context"
	"time"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/unified"
	"github.com/Pal-droid/anizone/internal/util"
)

// SearchAnime runs a bare keyword lookup, reconciled when the index answers.
func (a *App) SearchAnime(ctx context.Context, keyword string) (unified.SearchOutcome, error) {
	searchStart := time.Now()
	out, err := a.Lookup.Search(ctx, models.SearchQuery{Keyword: keyword})
	util.Debugf("[PERF] SearchAnime completed in %v", time.Since(searchStart))
	return out, err
}

// GetAnimeEpisodes resolves the episode list of one search result on site.
func (a *App) GetAnimeEpisodes(ctx context.Context, item models.SearchItem, site models.SiteName) ([]models.Episode, error) {
	episodesStart := time.Now()
	sources := item.Sources
	if len(sources) == 0 {
		sources = []models.Source{{Name: models.SiteAnimeWorld, URL: item.Href}}
	}
	eps, err := a.Resolver.Episodes(ctx, sources, site)
	util.Debugf("[PERF] GetAnimeEpisodes completed in %v", time.Since(episodesStart))
	return eps, err
}

// WeekSchedule fetches the broadcast schedule of the current week.
func (a *App) WeekSchedule(ctx context.Context) ([]models.DaySchedule, error) {
	return a.AnimeWorld.Schedule(ctx, time.Now())
}
