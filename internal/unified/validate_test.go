package unified

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Pal-droid/anizone/internal/models"
)

type slowProber struct{}

func (slowProber) Episodes(ctx context.Context, _ map[models.SiteName]string) ([]IndexEpisode, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestValidatorProbeTimeoutKeepsCandidate(t *testing.T) {
	t.Parallel()

	v := NewValidator(slowProber{}, models.SiteAnimeWorld)
	v.SetTimeout(20 * time.Millisecond)

	items := []models.SearchItem{{Title: "A", Href: "https://aw/play/a"}, {Title: "B", Href: "https://aw/play/b"}}
	start := time.Now()
	out := v.Filter(context.Background(), items)
	assert.Equal(t, items, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestValidatorDropsItemsWithoutID(t *testing.T) {
	t.Parallel()

	v := NewValidator(&fakeIndex{}, models.SiteAnimeWorld)
	out := v.Filter(context.Background(), []models.SearchItem{{Title: "no href"}})
	assert.Empty(t, out)
}

func TestNilValidatorPassesThrough(t *testing.T) {
	t.Parallel()

	var v *Validator
	items := []models.SearchItem{{Title: "A"}}
	assert.Equal(t, items, v.Filter(context.Background(), items))
}
