package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/resolver"
	"github.com/Pal-droid/anizone/internal/util"
)

func (h *Handler) search(c *gin.Context) {
	var q models.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query")
		return
	}
	out, err := h.deps.Lookup.Search(c.Request.Context(), q)
	if err != nil {
		util.Warn("Search failed", "keyword", q.Keyword, "error", err)
		fail(c, http.StatusBadGateway, "search is unavailable, try again")
		return
	}
	if out.Items == nil {
		out.Items = []models.SearchItem{}
	}
	c.JSON(http.StatusOK, out)
}

// home never fails: widgets degrade to empty lists.
func (h *Handler) home(c *gin.Context) {
	widgets, err := h.deps.Lookup.Home(c.Request.Context())
	if err != nil {
		util.Warn("Homepage widgets unavailable", "error", err)
	}
	if widgets.New == nil {
		widgets.New = []models.SearchItem{}
	}
	if widgets.Ongoing == nil {
		widgets.Ongoing = []models.SearchItem{}
	}
	c.JSON(http.StatusOK, widgets)
}

func (h *Handler) top(c *gin.Context) {
	top, err := h.deps.Catalog.Top(c.Request.Context())
	if err != nil {
		util.Warn("Top lists unavailable", "error", err)
	}
	for _, list := range []*[]models.TopItem{&top.Day, &top.Week, &top.Month} {
		if *list == nil {
			*list = []models.TopItem{}
		}
	}
	c.JSON(http.StatusOK, top)
}

func (h *Handler) schedule(c *gin.Context) {
	days, err := h.deps.Catalog.Schedule(c.Request.Context(), h.deps.Now())
	if err != nil {
		util.Warn("Schedule unavailable", "error", err)
	}
	if days == nil {
		days = []models.DaySchedule{}
	}
	c.JSON(http.StatusOK, days)
}

// sourcesFromQuery reads the per-site ids or URLs passed as AW=, AS=, AP=.
func sourcesFromQuery(c *gin.Context) []models.Source {
	var sources []models.Source
	for _, site := range models.AnimeSites {
		v := strings.TrimSpace(c.Query(site.Code()))
		if v == "" {
			continue
		}
		s := models.Source{Name: site}
		if strings.Contains(v, "://") {
			s.URL = v
		} else {
			s.ID = v
		}
		sources = append(sources, s)
	}
	return sources
}

func siteFromQuery(c *gin.Context) (models.SiteName, bool) {
	raw := c.Query("site")
	if raw == "" {
		return models.SiteAnimeWorld, true
	}
	return models.ParseSiteName(raw)
}

func (h *Handler) animeInfo(c *gin.Context) {
	req := resolver.InfoRequest{
		URL:       c.Query("url"),
		SaturnURL: c.Query(models.SiteAnimeSaturn.Code()),
		Sources:   sourcesFromQuery(c),
	}
	if req.URL == "" {
		if aw, ok := models.FindSource(req.Sources, models.SiteAnimeWorld); ok {
			req.URL = aw.URL
			if req.URL == "" {
				req.URL = "/play/" + aw.ID
			}
		}
	}
	if req.URL == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}
	info, err := h.deps.Info.Aggregate(c.Request.Context(), req)
	if err != nil {
		util.Warn("Anime info refused", "url", req.URL, "error", err)
		scrapeFail(c, err, "could not load this title, try again")
		return
	}
	if info.Meta == nil && info.Episodes == nil {
		fail(c, http.StatusBadGateway, "could not load this title, try again")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) episodes(c *gin.Context) {
	site, ok := siteFromQuery(c)
	if !ok {
		fail(c, http.StatusBadRequest, "unknown site")
		return
	}
	sources := sourcesFromQuery(c)
	if u := c.Query("url"); u != "" {
		if _, found := models.FindSource(sources, site); !found {
			sources = append(sources, models.Source{Name: site, URL: u})
		}
	}
	eps, err := h.deps.Player.Episodes(c.Request.Context(), sources, site)
	if err != nil {
		util.Warn("Episodes unavailable", "site", site, "error", err)
		scrapeFail(c, err, "could not load episodes, try again")
		return
	}
	if eps == nil {
		eps = []models.Episode{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": site, "episodes": eps})
}

func (h *Handler) stream(c *gin.Context) {
	site, ok := siteFromQuery(c)
	if !ok {
		fail(c, http.StatusBadRequest, "unknown site")
		return
	}
	episode := 0
	if raw := c.Query("episode"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "episode must be a positive number")
			return
		}
		episode = n
	}

	res, err := h.deps.Player.Stream(c.Request.Context(), resolver.StreamRequest{
		Sources: sourcesFromQuery(c),
		Site:    site,
		Episode: episode,
		Href:    c.Query("href"),
	})
	if err != nil {
		util.Warn("Stream resolution failed", "site", site, "episode", episode, "error", err)
		scrapeFail(c, err, "could not load this episode, try again")
		return
	}
	c.JSON(http.StatusOK, res)
}
