package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mangaInfoFixture = `
<html><head><meta name="description" content="Fallback description"></head><body>
<div class="comic-info">
  <div class="thumb"><img src="/covers/op.jpg"></div>
  <div class="info">
    <h1 class="name bigger">One Piece</h1>
    <div class="meta-data row px-1">
      <div class="col-12"><span class="font-weight-bold">Titoli alternativi: </span>ワンピース, Wan Pīsu</div>
      <div class="col-12"><span class="font-weight-bold">Generi: </span><a>Avventura</a><a>Azione</a></div>
      <div class="col-12"><span class="font-weight-bold">Autore: </span><a>Eiichiro Oda</a></div>
      <div class="col-12"><span class="font-weight-bold">Artista: </span><a>Eiichiro Oda</a></div>
      <div class="col-12"><span class="font-weight-bold">Tipo: </span><a>Manga</a></div>
      <div class="col-12"><span class="font-weight-bold">Stato: </span><a>In corso</a></div>
      <div class="col-12"><span class="font-weight-bold">Anno di uscita: </span><a>1997</a></div>
    </div>
  </div>
</div>
<div id="noidungm">La storia di Rufy.</div>
<div class="chapters-wrapper">
  <div class="volume-element">
    <div class="volume-head"><p class="volume-name">Volume 02</p></div>
    <div class="volume-chapters">
      <div class="chapter"><a class="chap" href="/manga/1/one-piece/read/c10"><span>Capitolo 10</span><i class="chap-date">10 Marzo 2020</i></a><img class="new" alt="nuovo"></div>
      <div class="chapter"><a class="chap" href="/manga/1/one-piece/read/c9"><span>Capitolo 9</span></a></div>
    </div>
  </div>
  <div class="volume-element">
    <div class="volume-head"><p class="volume-name">Volume 01</p></div>
    <div class="volume-chapters">
      <div class="chapter"><a class="chap" href="/manga/1/one-piece/read/c1"><span>Capitolo 1</span></a></div>
      <div class="chapter"><a class="chap" href="/manga/1/one-piece/read/c1"><span>Capitolo 1</span></a></div>
    </div>
  </div>
</div>
</body></html>`

func TestParseMangaInfo(t *testing.T) {
	t.Parallel()

	info, err := ParseMangaInfo([]byte(mangaInfoFixture), "https://www.mangaworld.cx/manga/1/one-piece")
	require.NoError(t, err)

	assert.Equal(t, "One Piece", info.Title)
	assert.Equal(t, "https://www.mangaworld.cx/covers/op.jpg", info.Image)
	assert.Equal(t, []string{"ワンピース", "Wan Pīsu"}, info.AltTitles)
	assert.Equal(t, []string{"Avventura", "Azione"}, info.Genres)
	assert.Equal(t, "Eiichiro Oda", info.Author)
	assert.Equal(t, "Eiichiro Oda", info.Artist)
	assert.Equal(t, "Manga", info.Type)
	assert.Equal(t, "In corso", info.Status)
	assert.Equal(t, "1997", info.Year)
	assert.Equal(t, "La storia di Rufy.", info.Synopsis)

	require.Len(t, info.Volumes, 2)
	assert.Equal(t, "Volume 02", info.Volumes[0].Name)
	require.Len(t, info.Volumes[0].Chapters, 2)
	assert.Equal(t, "Capitolo 10", info.Volumes[0].Chapters[0].Title)
	assert.Equal(t, "10 Marzo 2020", info.Volumes[0].Chapters[0].Date)
	assert.True(t, info.Volumes[0].Chapters[0].IsNew)
	assert.False(t, info.Volumes[0].Chapters[1].IsNew)
	assert.Len(t, info.Volumes[1].Chapters, 1, "chapter urls are unique within a volume")
	assert.Equal(t, 3, info.ChapterCount())
}

func TestParseMangaInfoFlatFallback(t *testing.T) {
	t.Parallel()

	html := `<html><head><meta name="description" content="Solo meta."></head><body>
	<h1>Oneshot</h1>
	<div class="chapters-wrapper">
	  <div class="chapter"><a class="chap" href="/read/2"><span>Capitolo 2</span></a></div>
	  <div class="chapter"><a class="chap" href="/read/1"><span>Capitolo 1</span></a></div>
	</div></body></html>`

	info, err := ParseMangaInfo([]byte(html), "https://www.mangaworld.cx/manga/2/oneshot")
	require.NoError(t, err)
	assert.Equal(t, "Solo meta.", info.Synopsis)
	require.Len(t, info.Volumes, 1)
	assert.Equal(t, "Capitoli", info.Volumes[0].Name)
	require.Len(t, info.Volumes[0].Chapters, 2)
	assert.Equal(t, "https://www.mangaworld.cx/read/2", info.Volumes[0].Chapters[0].URL)
}

func TestParseChapterPagesFiltersAndKeepsOrder(t *testing.T) {
	t.Parallel()

	html := `
	<img src="/static/site-logo.png">
	<div id="page">
	  <img class="page-image" src="https://cdn.mangaworld.cx/chapters/op/1/1.jpg">
	  <img class="page-image" src="https://cdn.mangaworld.cx/static/logo.png">
	  <img class="page-image" src="https://cdn.mangaworld.cx/chapters/op/1/2.png">
	  <img class="page-image" src="https://cdn.mangaworld.cx/chapters/op/1/ad">
	  <img class="page-image" data-src="https://cdn.mangaworld.cx/chapters/op/1/3.webp?v=1">
	</div>`

	pages, err := ParseChapterPages([]byte(html), "https://www.mangaworld.cx/manga/1/op/read/c1?style=list")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.mangaworld.cx/chapters/op/1/1.jpg",
		"https://cdn.mangaworld.cx/chapters/op/1/2.png",
		"https://cdn.mangaworld.cx/chapters/op/1/3.webp?v=1",
	}, pages)
}

func TestParseChapterPagesGenericScan(t *testing.T) {
	t.Parallel()

	html := `<div class="reader"><img src="/p/1.jpg"><img src="/p/1.jpg"><img src="/p/banner.jpg"><img src="/p/2.jpg"></div>`
	pages, err := ParseChapterPages([]byte(html), "https://www.mangaworld.cx/read/c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.mangaworld.cx/p/1.jpg", "https://www.mangaworld.cx/p/2.jpg"}, pages)
}

func TestChapterListURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://www.mangaworld.cx/manga/1/op/read/c1?style=list", ChapterListURL("https://www.mangaworld.cx/manga/1/op/read/c1"))
	assert.Equal(t, "https://www.mangaworld.cx/read/c1?page=2&style=list", ChapterListURL("https://www.mangaworld.cx/read/c1?style=pages&page=2"))
}

func TestParseMangaSearchPagination(t *testing.T) {
	t.Parallel()

	html := `
	<div class="comics-grid">
	  <div class="entry"><a class="thumb" href="/manga/1/op"><img src="/c/op.jpg"></a><a class="manga-title" href="/manga/1/op">One Piece</a></div>
	  <div class="entry"><a class="thumb" href="/manga/2/opp"><img src="/c/opp.jpg"></a><a class="manga-title" href="/manga/2/opp">One Punch Man</a></div>
	</div>
	<ul class="pagination">
	  <li class="page-item active"><a class="page-link">1</a></li>
	  <li class="page-item"><a class="page-link">2</a></li>
	  <li class="page-item"><a class="page-link">3</a></li>
	</ul>`

	page, err := ParseMangaSearch([]byte(html), "https://www.mangaworld.cx/archive?keyword=one")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "One Punch Man", page.Items[1].Title)
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasPrevious)
	assert.Equal(t, "https://www.mangaworld.cx/archive?keyword=one&page=2", page.Pagination.NextURL)
}

func TestMangaWorldChapterPagesRequestsListMode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "list", r.URL.Query().Get("style"))
		_, _ = fmt.Fprint(w, `<div id="page"><img src="/p/1.jpg"></div>`)
	}))
	defer server.Close()

	c := NewMangaWorldClient(server.URL, server.Client())
	pages, err := c.ChapterPages(context.Background(), "/manga/1/op/read/c1")
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/p/1.jpg"}, pages)
}
