package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/resolver"
	"github.com/Pal-droid/anizone/internal/unified"
	"github.com/Pal-droid/anizone/internal/userstate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLookup struct {
	lastQuery models.SearchQuery
	homeErr   error
}

func (f *fakeLookup) Search(_ context.Context, q models.SearchQuery) (unified.SearchOutcome, error) {
	f.lastQuery = q
	return unified.SearchOutcome{Items: []models.SearchItem{{Title: "Bleach", Href: "https://aw/play/bleach"}}, Reconciled: true}, nil
}

func (f *fakeLookup) Home(context.Context) (models.HomeWidgets, error) {
	return models.HomeWidgets{}, f.homeErr
}

type fakePlayer struct {
	lastReq     resolver.StreamRequest
	lastSources []models.Source
	err         error
}

func (f *fakePlayer) Episodes(_ context.Context, sources []models.Source, _ models.SiteName) ([]models.Episode, error) {
	f.lastSources = sources
	return []models.Episode{{Num: 1, ID: "e1"}}, f.err
}

func (f *fakePlayer) Stream(_ context.Context, req resolver.StreamRequest) (models.StreamResult, error) {
	f.lastReq = req
	return models.StreamResult{Available: true, Site: req.Site, Mode: models.ModeDirect, ProxyURL: "/proxy?src=x"}, f.err
}

type fakeUser struct {
	status    userstate.Status
	lastToken string
	putErr    error
}

func (f *fakeUser) Lists(_ context.Context, token string) (models.UserLists, userstate.Status, error) {
	f.lastToken = token
	return nil, f.status, nil
}

func (f *fakeUser) PutListEntry(_ context.Context, token, _ string, _ models.ListEntry) (userstate.Status, error) {
	f.lastToken = token
	return f.status, f.putErr
}

func (f *fakeUser) DeleteListEntry(context.Context, string, string, string) (userstate.Status, error) {
	return f.status, nil
}

func (f *fakeUser) Continue(context.Context, string) ([]models.ContinueEntry, userstate.Status, error) {
	return nil, f.status, nil
}

func (f *fakeUser) PutContinue(context.Context, string, models.ContinueEntry) (userstate.Status, error) {
	return f.status, nil
}

func do(t *testing.T, r http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	t.Parallel()

	r := New(Deps{})
	rec := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	rec = do(t, r, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {id}})
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	rec = do(t, r, http.MethodGet, "/api/search", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "routes without a collaborator are not mounted")
}

func TestSearchBindsQuery(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{}
	r := New(Deps{Lookup: lookup})
	rec := do(t, r, http.MethodGet, "/api/search?keyword=bleach&genre=action&page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SearchQuery{Keyword: "bleach", Genre: "action", Page: 2}, lookup.lastQuery)

	var out unified.SearchOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Reconciled)
	assert.Len(t, out.Items, 1)
}

func TestHomeDegradesToEmptyLists(t *testing.T) {
	t.Parallel()

	r := New(Deps{Lookup: &fakeLookup{homeErr: errors.New("site down")}})
	rec := do(t, r, http.MethodGet, "/api/home", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"new":[],"ongoing":[]}`, rec.Body.String())
}

func TestStreamRoute(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{}
	r := New(Deps{Player: player})

	rec := do(t, r, http.MethodGet, "/api/stream?site=AS&AW=https://aw/play/x&AS=x-sub&episode=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SiteAnimeSaturn, player.lastReq.Site)
	assert.Equal(t, 3, player.lastReq.Episode)
	assert.Equal(t, []models.Source{
		{Name: models.SiteAnimeWorld, URL: "https://aw/play/x"},
		{Name: models.SiteAnimeSaturn, ID: "x-sub"},
	}, player.lastReq.Sources)

	rec = do(t, r, http.MethodGet, "/api/stream?episode=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/stream?site=nope&episode=1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	player.err = errors.New("boom")
	rec = do(t, r, http.MethodGet, "/api/stream?AW=x&episode=1", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":false`)
}

func TestEpisodesRouteAddsURLSource(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{}
	r := New(Deps{Player: player})
	rec := do(t, r, http.MethodGet, "/api/episodes?url=https://aw/play/y", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.Source{{Name: models.SiteAnimeWorld, URL: "https://aw/play/y"}}, player.lastSources)
}

func TestUserRoutesSessionCleared(t *testing.T) {
	t.Parallel()

	user := &fakeUser{status: userstate.Status{Origin: userstate.OriginLocal, Anonymous: true}}
	r := New(Deps{User: user})

	rec := do(t, r, http.MethodGet, "/api/user/lists", "", http.Header{"Authorization": {"Bearer stale"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(SessionClearedHeader))
	assert.Equal(t, "stale", user.lastToken)
	assert.JSONEq(t, `{"ok":true,"lists":{}}`, rec.Body.String())

	user.status = userstate.Status{Origin: userstate.OriginRemote}
	rec = do(t, r, http.MethodPut, "/api/user/lists/watching/aw:bleach", `{"title":"Bleach"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(SessionClearedHeader))

	user.putErr = errors.Wrap(userstate.ErrLocalUnavailable, "no store")
	rec = do(t, r, http.MethodPut, "/api/user/lists/watching/aw:bleach", `{"title":"Bleach"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/user/continue/k", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyRouteMounted(t *testing.T) {
	t.Parallel()

	proxy := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r := New(Deps{Proxy: proxy, ProxyPath: "/media"})
	rec := do(t, r, http.MethodGet, "/media?src=x", "", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

type fakeCatalog struct{}

func (fakeCatalog) Top(context.Context) (models.TopLists, error) {
	return models.TopLists{Day: []models.TopItem{{Rank: 1, Title: "A"}}}, nil
}

func (fakeCatalog) Schedule(_ context.Context, now time.Time) ([]models.DaySchedule, error) {
	return nil, errors.New("unavailable")
}

func TestCatalogRoutes(t *testing.T) {
	t.Parallel()

	r := New(Deps{Catalog: fakeCatalog{}})

	rec := do(t, r, http.MethodGet, "/api/top", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var top models.TopLists
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &top))
	assert.Len(t, top.Day, 1)
	assert.NotNil(t, top.Week)

	rec = do(t, r, http.MethodGet, "/api/schedule", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

type fakeManga struct{ err error }

func (f fakeManga) MangaSearch(context.Context, models.SearchQuery) (models.SearchPage, error) {
	return models.SearchPage{}, f.err
}

func (f fakeManga) MangaInfo(context.Context, string) (*models.MangaMetadata, error) {
	return nil, f.err
}

func (f fakeManga) ChapterPages(context.Context, string) ([]string, error) {
	return nil, f.err
}

type fakeInfo struct{ err error }

func (f fakeInfo) Aggregate(context.Context, resolver.InfoRequest) (models.AnimeInfo, error) {
	return models.AnimeInfo{}, f.err
}

func TestScrapeRoutesRejectForeignURLs(t *testing.T) {
	t.Parallel()

	foreign := errors.Wrap(htmlutil.ErrForeignHost, "169.254.169.254")
	r := New(Deps{
		Player: &fakePlayer{err: foreign},
		Info:   fakeInfo{err: foreign},
		Manga:  fakeManga{err: foreign},
	})

	for _, target := range []string{
		"/api/manga/chapter?url=http://169.254.169.254/x",
		"/api/manga/info?url=http://169.254.169.254/x",
		"/api/anime/info?url=http://169.254.169.254/x",
		"/api/episodes?url=http://169.254.169.254/x",
		"/api/stream?AW=http://169.254.169.254/x&episode=1",
	} {
		rec := do(t, r, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"ok":false`, target)
	}

	r = New(Deps{Manga: fakeManga{err: errors.New("timeout")}})
	rec := do(t, r, http.MethodGet, "/api/manga/chapter?url=/manga/1/read/c1", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
