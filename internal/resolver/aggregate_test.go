package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/scraper"
)

type fakeWatch struct {
	page *scraper.WatchPage
	err  error
}

func (f fakeWatch) WatchPage(context.Context, string) (*scraper.WatchPage, error) {
	return f.page, f.err
}

type fakeSaturn struct {
	meta *models.WatchMeta
	err  error
}

func (f fakeSaturn) SaturnMeta(context.Context, string) (*models.WatchMeta, error) {
	return f.meta, f.err
}

func TestAggregateCombinesParts(t *testing.T) {
	t.Parallel()

	watch := fakeWatch{page: &scraper.WatchPage{
		Meta:     models.WatchMeta{Title: "Bleach"},
		Similar:  []models.SearchItem{{Title: "Naruto"}},
		Related:  []models.SearchItem{{Title: "Bleach TYBW"}},
		Episodes: []models.Episode{{Num: 1, Href: "page-e1"}},
	}}
	saturn := fakeSaturn{meta: &models.WatchMeta{Title: "Bleach (AS)"}}

	info, err := NewAggregator(watch, saturn, nil).Aggregate(context.Background(), InfoRequest{URL: "u", SaturnURL: "s"})
	require.NoError(t, err)
	require.NotNil(t, info.Meta)
	assert.Equal(t, "Bleach", info.Meta.Title)
	require.NotNil(t, info.SaturnMeta)
	assert.Equal(t, "Bleach (AS)", info.SaturnMeta.Title)
	assert.Len(t, info.Similar, 1)
	assert.Len(t, info.Related, 1)
	assert.Equal(t, "page-e1", info.Episodes[0].Href)
}

func TestAggregatePartsDegradeIndependently(t *testing.T) {
	t.Parallel()

	info, err := NewAggregator(
		fakeWatch{err: errors.New("503")},
		fakeSaturn{meta: &models.WatchMeta{Title: "only saturn"}},
		nil,
	).Aggregate(context.Background(), InfoRequest{URL: "u", SaturnURL: "s"})
	require.NoError(t, err)

	assert.Nil(t, info.Meta)
	assert.Nil(t, info.Episodes)
	require.NotNil(t, info.SaturnMeta)

	info, err = NewAggregator(fakeWatch{page: &scraper.WatchPage{Meta: models.WatchMeta{Title: "x"}}}, fakeSaturn{err: errors.New("down")}, nil).
		Aggregate(context.Background(), InfoRequest{URL: "u", SaturnURL: "s"})
	require.NoError(t, err)
	assert.NotNil(t, info.Meta)
	assert.Nil(t, info.SaturnMeta)
}

func TestAggregatePrefersResolvedEpisodes(t *testing.T) {
	t.Parallel()

	site := &fakeSite{name: models.SiteAnimeWorld, episodes: []models.Episode{{Num: 1, Href: "scraped-e1"}}}
	r := New(nil, scraper.NewManager(site), nil)
	watch := fakeWatch{page: &scraper.WatchPage{Episodes: []models.Episode{{Num: 1, Href: "page-e1"}}}}

	info, err := NewAggregator(watch, nil, r).Aggregate(context.Background(), InfoRequest{URL: "u", Sources: testSources})
	require.NoError(t, err)
	require.Len(t, info.Episodes, 1)
	assert.Equal(t, "scraped-e1", info.Episodes[0].Href)
}

func TestAggregateRejectsForeignPage(t *testing.T) {
	t.Parallel()

	foreign := fmt.Errorf("animeworld: %w", htmlutil.ErrForeignHost)
	_, err := NewAggregator(fakeWatch{err: foreign}, fakeSaturn{meta: &models.WatchMeta{}}, nil).
		Aggregate(context.Background(), InfoRequest{URL: "http://169.254.169.254/x", SaturnURL: "s"})
	assert.ErrorIs(t, err, htmlutil.ErrForeignHost)
}
