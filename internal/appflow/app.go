// Package appflow wires the configured collaborators into a runnable
// application: site clients, the index, the resolver, the proxy, the user
// state bridge and the HTTP router.
package appflow

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Pal-droid/anizone/internal/config"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/proxy"
	"github.com/Pal-droid/anizone/internal/resolver"
	"github.com/Pal-droid/anizone/internal/scraper"
	"github.com/Pal-droid/anizone/internal/server"
	"github.com/Pal-droid/anizone/internal/unified"
	"github.com/Pal-droid/anizone/internal/userstate"
	"github.com/Pal-droid/anizone/internal/util"
)

const homeCacheEntries = 8

// App is a fully wired instance
type App struct {
	Config      config.Config
	AnimeWorld  *scraper.AnimeWorldClient
	AnimeSaturn *scraper.AnimeSaturnClient
	MangaWorld  *scraper.MangaWorldClient
	Sites       *scraper.Manager
	Index       *unified.IndexClient
	Lookup      *unified.Lookup
	Resolver    *resolver.Resolver
	Aggregator  *resolver.Aggregator
	Proxy       *proxy.Proxy
	Bridge      *userstate.Bridge

	local *userstate.LocalStore
}

// New builds the application from cfg. A local store that cannot be opened
// only disables anonymous user state.
func New(cfg config.Config) *App {
	a := &App{Config: cfg}

	a.AnimeWorld = scraper.NewAnimeWorldClient(cfg.AnimeWorldURL, nil)
	a.AnimeSaturn = scraper.NewAnimeSaturnClient(cfg.AnimeSaturnURL, nil)
	a.MangaWorld = scraper.NewMangaWorldClient(cfg.MangaWorldURL, nil)
	a.Sites = scraper.NewManager(a.AnimeWorld, a.AnimeSaturn)

	var index *unified.IndexClient
	if cfg.IndexURL != "" {
		index = unified.NewIndexClient(cfg.IndexURL, nil)
		index.SetSearchTimeout(cfg.IndexTimeout)
	} else {
		util.Info("No reconciliation index configured, using single-site search")
	}
	a.Index = index

	var (
		searchIndex unified.SearchIndex
		validator   *unified.Validator
		playIndex   resolver.Index
	)
	if index != nil {
		searchIndex = index
		playIndex = index
		validator = unified.NewValidator(index, models.SiteAnimeWorld)
		validator.SetTimeout(cfg.ProbeTimeout)
	}

	a.Lookup = unified.NewLookup(searchIndex, a.AnimeWorld, validator, util.NewResponseCache(cfg.HomeCacheTTL, homeCacheEntries))
	a.Lookup.SetSiteBase(models.SiteAnimeWorld, cfg.AnimeWorldURL)
	a.Lookup.SetSiteBase(models.SiteAnimeSaturn, cfg.AnimeSaturnURL)
	a.Lookup.SetSiteBase(models.SiteMangaWorld, cfg.MangaWorldURL)

	a.Resolver = resolver.New(playIndex, a.Sites, a.Lookup)
	a.Resolver.SetProxyPath(cfg.ProxyPath)
	a.Aggregator = resolver.NewAggregator(a.AnimeWorld, a.AnimeSaturn, a.Resolver)

	a.Proxy = proxy.New(proxy.AllowList{
		Primary:  siteHosts(cfg.AnimeWorldURL, cfg.AnimeSaturnURL, cfg.MangaWorldURL),
		Suffixes: cfg.ProxyAllow,
	}, nil)

	var remote *userstate.Remote
	if cfg.BackendURL != "" {
		remote = userstate.NewRemote(cfg.BackendURL, nil)
	}
	var local userstate.Store
	if store, err := userstate.OpenLocal(cfg.DBPath); err != nil {
		util.Warn("Local user state disabled", "path", cfg.DBPath, "error", err)
	} else {
		a.local = store
		local = store
	}
	a.Bridge = userstate.NewBridge(remote, local)

	return a
}

// Router returns the HTTP surface of the app.
func (a *App) Router() *gin.Engine {
	return server.New(server.Deps{
		Lookup:    a.Lookup,
		Catalog:   a.AnimeWorld,
		Player:    a.Resolver,
		Info:      a.Aggregator,
		Manga:     a.MangaWorld,
		User:      a.Bridge,
		Proxy:     a.Proxy,
		ProxyPath: a.Config.ProxyPath,
	})
}

// Close releases the local store.
func (a *App) Close() error {
	if a.local == nil {
		return nil
	}
	return a.local.Close()
}

func siteHosts(origins ...string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Hostname() == "" {
			continue
		}
		hosts = append(hosts, strings.TrimPrefix(u.Hostname(), "www."))
	}
	return hosts
}
