// Package resolver turns a selected title and site into an episode list and
// a playable stream, using the reconciliation index first and scraping the
// site when the index cannot answer.
package resolver

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/scraper"
	"github.com/Pal-droid/anizone/internal/unified"
	"github.com/Pal-droid/anizone/internal/util"
)

// DefaultProxyPath is where the streaming proxy is mounted
const DefaultProxyPath = "/proxy"

// Index is the part of the reconciliation index the resolver needs
type Index interface {
	Episodes(ctx context.Context, ids map[models.SiteName]string) ([]unified.IndexEpisode, error)
	Stream(ctx context.Context, site models.SiteName, id string, episode int) (unified.IndexStream, error)
}

// Linker builds a canonical URL for a source that may only carry an id
type Linker interface {
	SourceURL(s models.Source) string
}

// Resolver resolves episodes and streams for one selected site
type Resolver struct {
	index     Index
	sites     *scraper.Manager
	linker    Linker
	proxyPath string
}

// New creates a resolver. index and linker may be nil; without an index
// every call goes straight to the scrapers.
func New(index Index, sites *scraper.Manager, linker Linker) *Resolver {
	return &Resolver{index: index, sites: sites, linker: linker, proxyPath: DefaultProxyPath}
}

// SetProxyPath overrides the path proxied URLs are built on.
func (r *Resolver) SetProxyPath(p string) {
	if p != "" {
		r.proxyPath = p
	}
}

// StreamRequest selects one episode of a title on one site
type StreamRequest struct {
	Sources []models.Source
	Site    models.SiteName
	Episode int
	// Href is the episode page when the client already knows it. It is only
	// used by the scraping fallback.
	Href string
}

// SiteIDs maps every playable source to its site-local id, falling back to
// the last path segment of its URL.
func SiteIDs(sources []models.Source) map[models.SiteName]string {
	ids := make(map[models.SiteName]string, len(sources))
	for _, s := range sources {
		if _, done := ids[s.Name]; done {
			continue
		}
		if id := sourceID(s); id != "" {
			ids[s.Name] = id
		}
	}
	return ids
}

func sourceID(s models.Source) string {
	if s.ID != "" {
		return s.ID
	}
	return htmlutil.ExtractID(s.URL)
}

func (r *Resolver) sourceURL(s models.Source) string {
	if s.URL != "" {
		return s.URL
	}
	if r.linker != nil {
		return r.linker.SourceURL(s)
	}
	return s.ID
}

// Episodes returns the episode list of the title on site. The index answer
// is preferred; entries without an href and an id for the site are dropped.
// When the index fails or has nothing for the site, the site page is scraped.
func (r *Resolver) Episodes(ctx context.Context, sources []models.Source, site models.SiteName) ([]models.Episode, error) {
	src, ok := models.FindSource(sources, site)
	if !ok || !src.Playable() {
		return nil, errors.Errorf("no %s source for this title", site)
	}

	if r.index != nil {
		eps, err := r.index.Episodes(ctx, SiteIDs(sources))
		switch {
		case err != nil:
			util.Warn("Index episodes unavailable, scraping", "site", site, "error", err)
		default:
			mapped := models.NormalizeEpisodes(lo.FilterMap(eps, func(e unified.IndexEpisode, _ int) (models.Episode, bool) {
				s, ok := e.Source(site)
				if !ok || (s.URL == "" && s.ID == "") {
					return models.Episode{}, false
				}
				// special episodes like 12.5 have no slot in an integer list
				if e.EpisodeNumber != math.Trunc(e.EpisodeNumber) {
					util.Debug("Skipping fractional index episode", "site", site, "num", e.EpisodeNumber)
					return models.Episode{}, false
				}
				return models.Episode{Num: int(e.EpisodeNumber), Href: s.URL, ID: s.ID}, true
			}))
			if len(mapped) > 0 {
				return mapped, nil
			}
			util.Debug("Index has no episodes for site, scraping", "site", site)
		}
	}

	return r.scrapeEpisodes(ctx, src)
}

func (r *Resolver) scrapeEpisodes(ctx context.Context, src models.Source) ([]models.Episode, error) {
	client, err := r.site(src.Name)
	if err != nil {
		return nil, err
	}
	eps, err := client.Episodes(ctx, r.sourceURL(src))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get episodes from %s", src.Name)
	}
	return models.NormalizeEpisodes(eps), nil
}

func (r *Resolver) site(name models.SiteName) (scraper.AnimeSite, error) {
	if r.sites == nil {
		return nil, errors.Errorf("site %q not registered", name)
	}
	return r.sites.Site(name)
}

// Stream resolves one episode. A direct media URL is returned together with
// its proxied form; an embed-only answer is surfaced as an iframe target.
// Nothing playable is reported as ModeUnavailable, never as an error.
func (r *Resolver) Stream(ctx context.Context, req StreamRequest) (models.StreamResult, error) {
	src, ok := models.FindSource(req.Sources, req.Site)
	if !ok || !src.Playable() {
		return unavailable(req.Site, "no source for the selected site"), nil
	}
	if req.Episode <= 0 && req.Href == "" {
		return models.StreamResult{}, errors.New("episode number or href is required")
	}

	if r.index != nil && req.Episode > 0 {
		stream, err := r.index.Stream(ctx, req.Site, sourceID(src), req.Episode)
		if err == nil {
			return r.fromIndex(req.Site, stream, r.sourceURL(src)), nil
		}
		util.Warn("Index stream unavailable, scraping", "site", req.Site, "episode", req.Episode, "error", err)
	}

	return r.scrapeStream(ctx, src, req)
}

func (r *Resolver) fromIndex(site models.SiteName, s unified.IndexStream, referer string) models.StreamResult {
	switch {
	case s.Available && s.StreamURL != "":
		return r.direct(site, s.StreamURL, referer)
	case s.Available && s.Embed != "":
		return models.StreamResult{Available: true, Site: site, EmbedURL: s.Embed, Mode: models.ModeEmbed}
	default:
		return unavailable(site, "not available on this site")
	}
}

func (r *Resolver) scrapeStream(ctx context.Context, src models.Source, req StreamRequest) (models.StreamResult, error) {
	client, err := r.site(src.Name)
	if err != nil {
		return models.StreamResult{}, err
	}

	href := req.Href
	if href == "" {
		eps, err := client.Episodes(ctx, r.sourceURL(src))
		if err != nil {
			return models.StreamResult{}, errors.Wrapf(err, "failed to get episodes from %s", src.Name)
		}
		ep, found := lo.Find(models.NormalizeEpisodes(eps), func(e models.Episode) bool { return e.Num == req.Episode })
		if !found || ep.Href == "" {
			return unavailable(req.Site, fmt.Sprintf("episode %d not found", req.Episode)), nil
		}
		href = ep.Href
	}

	candidates, err := client.StreamCandidates(ctx, href)
	if err != nil {
		return models.StreamResult{}, errors.Wrapf(err, "failed to get stream from %s", src.Name)
	}
	if len(candidates) == 0 {
		return unavailable(req.Site, "no playable source on the episode page"), nil
	}
	best := lo.MinBy(candidates, func(a, b models.StreamCandidate) bool {
		return a.Method.Priority() < b.Method.Priority()
	})
	util.Debug("Scraped stream", "site", req.Site, "method", best.Method, "url", best.URL)
	return r.direct(req.Site, best.URL, href), nil
}

func (r *Resolver) direct(site models.SiteName, media, referer string) models.StreamResult {
	return models.StreamResult{
		Available: true,
		Site:      site,
		DirectURL: media,
		ProxyURL:  r.ProxyURL(media, referer),
		Mode:      models.ModeDirect,
	}
}

// ProxyURL builds the local proxied playback URL for media.
func (r *Resolver) ProxyURL(media, referer string) string {
	q := url.Values{}
	q.Set("src", media)
	if referer != "" {
		q.Set("ref", referer)
	}
	return r.proxyPath + "?" + q.Encode()
}

func unavailable(site models.SiteName, reason string) models.StreamResult {
	return models.StreamResult{Site: site, Mode: models.ModeUnavailable, Reason: reason}
}
