// Package server exposes the aggregator over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/resolver"
	"github.com/Pal-droid/anizone/internal/unified"
	"github.com/Pal-droid/anizone/internal/userstate"
	"github.com/Pal-droid/anizone/internal/util"
)

// RequestIDHeader carries the id assigned to every request
const RequestIDHeader = "X-Request-ID"

// SessionClearedHeader tells the client to drop its session token
const SessionClearedHeader = "X-Session-Cleared"

// Lookup answers search and homepage requests
type Lookup interface {
	Search(ctx context.Context, q models.SearchQuery) (unified.SearchOutcome, error)
	Home(ctx context.Context) (models.HomeWidgets, error)
}

// Catalog serves the site-wide AnimeWorld pages
type Catalog interface {
	Top(ctx context.Context) (models.TopLists, error)
	Schedule(ctx context.Context, now time.Time) ([]models.DaySchedule, error)
}

// Player resolves episodes and streams
type Player interface {
	Episodes(ctx context.Context, sources []models.Source, site models.SiteName) ([]models.Episode, error)
	Stream(ctx context.Context, req resolver.StreamRequest) (models.StreamResult, error)
}

// InfoAggregator builds the anime info view
type InfoAggregator interface {
	Aggregate(ctx context.Context, req resolver.InfoRequest) (models.AnimeInfo, error)
}

// MangaSource serves MangaWorld
type MangaSource interface {
	MangaSearch(ctx context.Context, q models.SearchQuery) (models.SearchPage, error)
	MangaInfo(ctx context.Context, mangaURL string) (*models.MangaMetadata, error)
	ChapterPages(ctx context.Context, chapterURL string) ([]string, error)
}

// UserState is the per-user lists and progress bridge
type UserState interface {
	Lists(ctx context.Context, token string) (models.UserLists, userstate.Status, error)
	PutListEntry(ctx context.Context, token, list string, e models.ListEntry) (userstate.Status, error)
	DeleteListEntry(ctx context.Context, token, list, key string) (userstate.Status, error)
	Continue(ctx context.Context, token string) ([]models.ContinueEntry, userstate.Status, error)
	PutContinue(ctx context.Context, token string, e models.ContinueEntry) (userstate.Status, error)
}

// Deps are the collaborators of the HTTP surface. Nil members disable
// their routes.
type Deps struct {
	Lookup    Lookup
	Catalog   Catalog
	Player    Player
	Info      InfoAggregator
	Manga     MangaSource
	User      UserState
	Proxy     http.Handler
	ProxyPath string
	Now       func() time.Time
}

// Handler holds the route handlers
type Handler struct {
	deps Deps
}

// New builds the gin engine with every route registered.
func New(deps Deps) *gin.Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ProxyPath == "" {
		deps.ProxyPath = resolver.DefaultProxyPath
	}
	router := gin.New()
	router.Use(RequestID(), RequestLogger(), gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	h := &Handler{deps: deps}
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes mounts every enabled route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	if h.deps.Lookup != nil {
		api.GET("/search", h.search)
		api.GET("/home", h.home)
	}
	if h.deps.Catalog != nil {
		api.GET("/top", h.top)
		api.GET("/schedule", h.schedule)
	}
	if h.deps.Info != nil {
		api.GET("/anime/info", h.animeInfo)
	}
	if h.deps.Player != nil {
		api.GET("/episodes", h.episodes)
		api.GET("/stream", h.stream)
	}
	if h.deps.Manga != nil {
		manga := api.Group("/manga")
		manga.GET("/search", h.mangaSearch)
		manga.GET("/info", h.mangaInfo)
		manga.GET("/chapter", h.mangaChapter)
	}
	if h.deps.User != nil {
		user := api.Group("/user")
		user.GET("/lists", h.userLists)
		user.PUT("/lists/:list/:key", h.putListEntry)
		user.DELETE("/lists/:list/:key", h.deleteListEntry)
		user.GET("/continue", h.userContinue)
		user.PUT("/continue/:key", h.putContinue)
	}
	if h.deps.Proxy != nil {
		r.GET(h.deps.ProxyPath, gin.WrapH(h.deps.Proxy))
		r.HEAD(h.deps.ProxyPath, gin.WrapH(h.deps.Proxy))
	}
}

// RequestID assigns a request id, reusing a well-formed inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request through the shared logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		keyvals := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString("request_id"),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			util.Warn("Request failed", keyvals...)
		default:
			util.Debug("Request", keyvals...)
		}
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

// scrapeFail answers a failed scrape: 400 when the caller named a page off
// the site, else 502 with msg.
func scrapeFail(c *gin.Context, err error, msg string) {
	if errors.Is(err, htmlutil.ErrForeignHost) {
		fail(c, http.StatusBadRequest, "url does not belong to a supported site")
		return
	}
	fail(c, http.StatusBadGateway, msg)
}
