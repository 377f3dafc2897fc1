package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pal-droid/anizone/internal/models"
)

const awSearchFixture = `
<html><body>
<div class="film-list">
  <div class="item">
    <div class="inner">
      <a class="poster" href="/play/one-piece.abc12"><img src="/img/op.jpg" alt="One Piece"></a>
      <a class="name" href="/play/one-piece.abc12" data-jtitle="One Piece">One Piece</a>
    </div>
  </div>
  <div class="item">
    <div class="inner">
      <a class="poster" href="/play/one-piece-ita.def34"><img data-src="https://cdn.example.com/op-ita.jpg"></a>
      <div class="dub">DUB</div>
      <a class="name" href="/play/one-piece-ita.def34">One Piece (ITA)</a>
    </div>
  </div>
</div>
<form id="paging-form">
  <input type="text" name="page" value="2">
  <span class="total">5</span>
</form>
</body></html>`

func TestParseSearchCardsAndPaging(t *testing.T) {
	t.Parallel()

	page, err := ParseSearch([]byte(awSearchFixture), "https://www.animeworld.ac/search?keyword=one+piece&page=2")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	assert.Equal(t, "One Piece", page.Items[0].Title)
	assert.Equal(t, "https://www.animeworld.ac/play/one-piece.abc12", page.Items[0].Href)
	assert.Equal(t, "https://www.animeworld.ac/img/op.jpg", page.Items[0].Image)
	assert.False(t, page.Items[0].IsDub)

	assert.True(t, page.Items[1].IsDub)
	assert.Equal(t, "https://cdn.example.com/op-ita.jpg", page.Items[1].Image)

	require.NotNil(t, page.Pagination)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, 5, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrevious)
	assert.Contains(t, page.Pagination.NextURL, "page=3")
	assert.Contains(t, page.Pagination.PreviousURL, "page=1")
}

func TestParseSearchFallsBackToPlayLinks(t *testing.T) {
	t.Parallel()

	html := `<div class="whatever">
		<a href="/play/naruto.x1" title="Naruto"><img src="/n.jpg"></a>
		<a href="/play/naruto.x1"><img src="/n.jpg"></a>
		<a href="/play/no-image.x2">No image</a>
	</div>`
	page, err := ParseSearch([]byte(html), "https://www.animeworld.ac/search?keyword=naruto")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Naruto", page.Items[0].Title)
	assert.Nil(t, page.Pagination)
}

func TestParseSearchEmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	page, err := ParseSearch([]byte(`<html><body><p>Nessun risultato</p></body></html>`), "https://www.animeworld.ac/search")
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

const awEpisodesFixture = `
<div class="server" data-name="1"><ul class="episodes"><li class="episode"><a data-episode-num="99" href="/play/x/other">99</a></li></ul></div>
<div class="server active" data-name="9">
  <ul class="episodes">
    <li class="episode"><a data-episode-num="2" data-id="b2" href="/play/x/b2">2</a></li>
    <li class="episode"><a data-episode-num="1" data-id="a1" href="/play/x/a1">1</a></li>
    <li class="episode"><a data-episode-num="1" data-id="dup" href="/play/x/dup">1</a></li>
    <li class="episode"><a data-episode-num="special" data-id="sp" href="/play/x/sp">SP</a></li>
  </ul>
</div>`

func TestParseEpisodesActiveServer(t *testing.T) {
	t.Parallel()

	raw, err := ParseEpisodes([]byte(awEpisodesFixture), "https://www.animeworld.ac/play/x")
	require.NoError(t, err)
	require.Len(t, raw, 4)
	assert.Equal(t, 0, raw[3].EpisodeNum, "unparsable numbers coerce to zero")

	eps := ToEpisodes(raw)
	require.Len(t, eps, 2)
	assert.Equal(t, models.Episode{Num: 1, Href: "https://www.animeworld.ac/play/x/a1", ID: "a1"}, eps[0])
	assert.Equal(t, 2, eps[1].Num)
}

func TestParseEpisodesFallbackSelectors(t *testing.T) {
	t.Parallel()

	html := `<ul class="episodes"><a data-episode-num="3" href="/play/y/3">3</a><a data-episode-num="1" href="/play/y/1">1</a></ul>`
	raw, err := ParseEpisodes([]byte(html), "https://www.animeworld.ac")
	require.NoError(t, err)
	eps := ToEpisodes(raw)
	require.Len(t, eps, 2)
	assert.Equal(t, 1, eps[0].Num)
	assert.Equal(t, 3, eps[1].Num)

	html = `<div><a data-id="77" href="/play/z/77">5</a></div>`
	raw, err = ParseEpisodes([]byte(html), "https://www.animeworld.ac")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, 5, raw[0].EpisodeNum)
	assert.Equal(t, "77", raw[0].DataID)
}

func TestParseTopSortsByRank(t *testing.T) {
	t.Parallel()

	html := `
	<div class="widget top">
	  <div class="content" data-name="day">
	    <div class="item"><div class="rank">2</div><a class="name" href="/play/b">B</a></div>
	    <div class="item"><div class="rank">1</div><a class="name" href="/play/a">A</a></div>
	    <div class="item"><div class="rank">?</div><a class="name" href="/play/c">C</a></div>
	  </div>
	  <div class="content" data-name="week">
	    <div class="item"><a class="name" href="/play/w">W</a></div>
	  </div>
	</div>
	<div data-name="month"><div class="item"><a class="name" href="/play/m">M</a></div></div>`

	top, err := ParseTop([]byte(html), "https://www.animeworld.ac")
	require.NoError(t, err)

	require.Len(t, top.Day, 3)
	assert.Equal(t, "A", top.Day[0].Title)
	assert.Equal(t, "C", top.Day[1].Title, "unparsable rank defaults to 1 and keeps page order")
	assert.Equal(t, "B", top.Day[2].Title)

	require.Len(t, top.Week, 1)
	assert.Equal(t, 1, top.Week[0].Rank)

	require.Len(t, top.Month, 1)
	assert.Equal(t, 0, top.Month[0].Rank, "fallback container defaults to rank 0")
}

func TestParseWatchMetaMatchesLabelsInAnyOrder(t *testing.T) {
	t.Parallel()

	html := `
	<div class="widget info">
	  <div class="thumb"><img src="/cover.jpg"></div>
	  <h2 class="title" data-jtitle="Wan Piisu">One Piece</h2>
	  <div class="desc"><div class="long">Pirati.</div></div>
	  <dl class="meta">
	    <dt>Durata:</dt><dd>24 min/ep</dd>
	    <dt>Genere:</dt><dd><a>Avventura</a>, <a>Azione</a></dd>
	    <dt>Audio:</dt><dd>Giapponese</dd>
	    <dt>Voto:</dt><dd>8.71 / 10</dd>
	    <dt>Stato:</dt><dd>In corso</dd>
	    <dt>Data di Uscita:</dt><dd>20 Ottobre 1999</dd>
	  </dl>
	</div>`

	meta, err := ParseWatchMeta([]byte(html), "https://www.animeworld.ac/play/one-piece")
	require.NoError(t, err)
	assert.Equal(t, "One Piece", meta.Title)
	assert.Equal(t, "Wan Piisu", meta.AltTitle)
	assert.Equal(t, "https://www.animeworld.ac/cover.jpg", meta.Image)
	assert.Equal(t, "Pirati.", meta.Synopsis)
	assert.Equal(t, "24 min/ep", meta.Duration)
	assert.Equal(t, []string{"Avventura", "Azione"}, meta.Genres)
	assert.Equal(t, "Giapponese", meta.Audio)
	assert.Equal(t, "8.71", meta.Rating)
	assert.Equal(t, "In corso", meta.Status)
	assert.Equal(t, "20 Ottobre 1999", meta.ReleaseDate)
}

func TestAnimeWorldWatchPageSideWidgets(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `
	<div class="widget simili"><div class="item"><a class="thumb" href="/play/s1"><img src="/s1.jpg" alt="Simile"></a></div></div>
	<div class="widget correlati"><div class="item"><a class="name" href="/play/r1">Correlato</a></div></div>`)
	}))
	defer server.Close()

	page, err := NewAnimeWorldClient(server.URL, server.Client()).WatchPage(context.Background(), "/play/x")
	require.NoError(t, err)
	require.Len(t, page.Similar, 1)
	assert.Equal(t, "Simile", page.Similar[0].Title)
	require.Len(t, page.Related, 1)
	assert.Equal(t, server.URL+"/play/r1", page.Related[0].Href)
	assert.Empty(t, page.Episodes)
}

func TestAnimeWorldSearchURL(t *testing.T) {
	t.Parallel()

	c := NewAnimeWorldClient("https://aw.test/", http.DefaultClient)
	assert.Equal(t, "https://aw.test/search?keyword=naruto", c.SearchURL(models.SearchQuery{Keyword: "naruto"}))

	filtered := c.SearchURL(models.SearchQuery{Keyword: "naruto", Genre: "3", Page: 2})
	assert.Equal(t, "https://aw.test/filter?genre=3&keyword=naruto&page=2", filtered)
}

func TestAnimeWorldStreamCandidatesFollowsPlayerRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/play/x/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<script>window.location.href = "/player/1";</script>`)
	})
	mux.HandleFunc("/player/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<video><source src="/media/1.mp4"></video>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewAnimeWorldClient(server.URL, server.Client())
	candidates, err := c.StreamCandidates(context.Background(), "/play/x/1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, server.URL+"/media/1.mp4", candidates[0].URL)
	assert.Equal(t, models.MethodVideoSource, candidates[0].Method)
}

func TestAnimeWorldEpisodesUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewAnimeWorldClient(server.URL, server.Client())
	_, err := c.Episodes(context.Background(), "/play/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
