package unified

import (
	"context"
	"time"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	defaultProbeWorkers = 8
)

// EpisodeProber is the part of the index the validator needs
type EpisodeProber interface {
	Episodes(ctx context.Context, ids map[models.SiteName]string) ([]IndexEpisode, error)
}

// Validator confirms that homepage candidates are currently playable by
// probing the index episode endpoint for each of them.
//
// The policy is the same for every widget: a candidate answered with an
// empty episode list is dropped, a candidate whose probe failed (transport
// error, timeout, non-2xx) is kept and logged.
type Validator struct {
	prober  EpisodeProber
	site    models.SiteName
	timeout time.Duration
	workers int
}

// NewValidator creates a validator probing ids of the given site.
func NewValidator(prober EpisodeProber, site models.SiteName) *Validator {
	return &Validator{
		prober:  prober,
		site:    site,
		timeout: DefaultProbeTimeout,
		workers: defaultProbeWorkers,
	}
}

// SetTimeout overrides the per-probe timeout.
func (v *Validator) SetTimeout(d time.Duration) {
	if d > 0 {
		v.timeout = d
	}
}

// Filter probes every candidate concurrently and returns the survivors in
// their original order.
func (v *Validator) Filter(ctx context.Context, items []models.SearchItem) []models.SearchItem {
	if v == nil || v.prober == nil || len(items) == 0 {
		return items
	}

	keep := make([]bool, len(items))
	tasks := make([]func(), len(items))
	for i, item := range items {
		tasks[i] = func() {
			keep[i] = v.probe(ctx, item)
		}
	}
	util.ParallelExecute(v.workers, tasks...)

	out := make([]models.SearchItem, 0, len(items))
	for i, item := range items {
		if keep[i] {
			out = append(out, item)
		}
	}
	util.Debug("Validated widget candidates", "in", len(items), "out", len(out))
	return out
}

func (v *Validator) probe(ctx context.Context, item models.SearchItem) bool {
	id := htmlutil.ExtractID(item.Href)
	if id == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	eps, err := v.prober.Episodes(ctx, map[models.SiteName]string{v.site: id})
	if err != nil {
		util.Warn("Probe failed, keeping candidate", "title", item.Title, "id", id, "error", err)
		return true
	}
	return len(eps) > 0
}
