package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

const (
	MangaWorldBase = "https://www.mangaworld.cx"

	// flatVolumeName is used when a title page lists chapters without volumes
	flatVolumeName = "Capitoli"
)

// MangaWorldClient fetches and parses MangaWorld pages
type MangaWorldClient struct {
	client  *http.Client
	baseURL string
}

// NewMangaWorldClient creates a new MangaWorld client
func NewMangaWorldClient(baseURL string, client *http.Client) *MangaWorldClient {
	if baseURL == "" {
		baseURL = MangaWorldBase
	}
	if client == nil {
		client = util.GetSharedClient()
	}
	return &MangaWorldClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the site origin the client scrapes.
func (c *MangaWorldClient) BaseURL() string { return c.baseURL }

func (c *MangaWorldClient) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := htmlutil.FetchHTML(ctx, c.client, pageURL)
	if err != nil {
		return nil, errors.Wrap(err, "mangaworld")
	}
	return body, nil
}

// pageURL resolves a caller-supplied page reference and keeps it on the site.
func (c *MangaWorldClient) pageURL(ref string) (string, error) {
	abs := htmlutil.Absolutize(ref, c.baseURL)
	if err := htmlutil.CheckSiteURL(abs, c.baseURL); err != nil {
		return "", errors.Wrap(err, "mangaworld")
	}
	return abs, nil
}

// MangaInfo fetches a title page.
func (c *MangaWorldClient) MangaInfo(ctx context.Context, mangaURL string) (*models.MangaMetadata, error) {
	mangaURL, err := c.pageURL(mangaURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, mangaURL)
	if err != nil {
		return nil, err
	}
	info, err := ParseMangaInfo(body, mangaURL)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// MangaSearch searches the archive.
func (c *MangaWorldClient) MangaSearch(ctx context.Context, q models.SearchQuery) (models.SearchPage, error) {
	params := url.Values{}
	params.Set("keyword", q.Keyword)
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Page > 1 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	pageURL := c.baseURL + "/archive?" + params.Encode()

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return models.SearchPage{}, err
	}
	return ParseMangaSearch(body, pageURL)
}

// ChapterPages fetches a chapter in list mode and returns its page images.
func (c *MangaWorldClient) ChapterPages(ctx context.Context, chapterURL string) ([]string, error) {
	chapterURL, err := c.pageURL(chapterURL)
	if err != nil {
		return nil, err
	}
	pageURL := ChapterListURL(chapterURL)
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseChapterPages(body, pageURL)
}

// ChapterListURL switches a reader URL to list mode so every page image is
// rendered on one page.
func ChapterListURL(chapterURL string) string {
	return htmlutil.SetQueryParam(chapterURL, "style", "list")
}

// ParseMangaInfo parses a MangaWorld title page.
func ParseMangaInfo(page []byte, base string) (models.MangaMetadata, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return models.MangaMetadata{}, err
	}

	info := models.MangaMetadata{
		Title: firstText(doc, ".info h1", "h1.name", "h1"),
		Image: htmlutil.Absolutize(imageSrc(doc.Find(".thumb img, .comic-info img").First()), base),
	}

	doc.Find(".meta-data > div").Each(func(_ int, s *goquery.Selection) {
		labelSel := s.Find(".font-weight-bold").First()
		label := strings.ToLower(strings.TrimSuffix(htmlutil.CleanText(labelSel.Text()), ":"))
		if label == "" {
			return
		}
		var values []string
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			if t := htmlutil.CleanText(a.Text()); t != "" {
				values = append(values, t)
			}
		})
		if len(values) == 0 {
			text := strings.TrimPrefix(htmlutil.CleanText(s.Text()), htmlutil.CleanText(labelSel.Text()))
			for _, part := range strings.Split(text, ",") {
				if t := htmlutil.CleanText(part); t != "" {
					values = append(values, t)
				}
			}
		}
		if len(values) == 0 {
			return
		}
		joined := strings.Join(values, ", ")

		switch {
		case strings.HasPrefix(label, "titoli alternativi"):
			info.AltTitles = values
		case strings.HasPrefix(label, "generi"):
			info.Genres = values
		case strings.HasPrefix(label, "autor"):
			info.Author = joined
		case strings.HasPrefix(label, "artist"):
			info.Artist = joined
		case strings.HasPrefix(label, "tipo"):
			info.Type = joined
		case strings.HasPrefix(label, "stato"):
			info.Status = joined
		case strings.HasPrefix(label, "anno"):
			info.Year = joined
		}
	})

	info.Synopsis = firstText(doc, "#noidungm", ".comic-description")
	if info.Synopsis == "" {
		info.Synopsis = htmlutil.CleanText(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}

	info.Volumes = parseVolumes(doc, base)
	return info, nil
}

func parseVolumes(doc *goquery.Document, base string) []models.Volume {
	var volumes []models.Volume
	doc.Find(".volume-element").Each(func(_ int, v *goquery.Selection) {
		vol := models.Volume{
			Name:     firstSelText(v, ".volume-name", "p.volume-name", ".volume-head"),
			Image:    htmlutil.Absolutize(imageSrc(v.Find(".volume-image img, img").First()), base),
			Chapters: chaptersIn(v.Find(".chapter"), base),
		}
		if vol.Name == "" {
			vol.Name = "Volume " + strconv.Itoa(len(volumes)+1)
		}
		volumes = append(volumes, vol)
	})
	if len(volumes) > 0 {
		return volumes
	}

	flat := chaptersIn(doc.Find(".chapters-wrapper .chapter"), base)
	if len(flat) == 0 {
		flat = chaptersIn(doc.Find("a.chap").Parent(), base)
	}
	if len(flat) == 0 {
		return []models.Volume{}
	}
	return []models.Volume{{Name: flatVolumeName, Chapters: flat}}
}

func chaptersIn(sel *goquery.Selection, base string) []models.Chapter {
	chapters := []models.Chapter{}
	seen := make(map[string]bool)
	sel.Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a.chap").First()
		if a.Length() == 0 {
			a = s.Find("a[href]").First()
		}
		href := htmlutil.Absolutize(a.AttrOr("href", ""), base)
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		title := htmlutil.CleanText(a.Find("span").First().Text())
		if title == "" {
			title = htmlutil.CleanText(a.AttrOr("title", a.Text()))
		}
		chapters = append(chapters, models.Chapter{
			Title: title,
			URL:   href,
			Date:  htmlutil.CleanText(s.Find("i.chap-date, .chap-date").First().Text()),
			IsNew: s.Find(".new, img[alt=nuovo]").Length() > 0,
		})
	})
	return chapters
}

func firstSelText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := htmlutil.CleanText(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// ParseMangaSearch parses an archive results page.
func ParseMangaSearch(page []byte, base string) (models.SearchPage, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return models.SearchPage{}, err
	}

	items, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "comics-grid", Extract: func(d *goquery.Document) []models.SearchItem {
			var out []models.SearchItem
			d.Find(".comics-grid .entry").Each(func(_ int, s *goquery.Selection) {
				link := s.Find("a.manga-title").First()
				if link.Length() == 0 {
					link = s.Find("a.thumb").First()
				}
				title := htmlutil.CleanText(link.Text())
				if title == "" {
					title = htmlutil.CleanText(link.AttrOr("title", ""))
				}
				href := link.AttrOr("href", "")
				if title == "" || href == "" {
					return
				}
				out = append(out, models.SearchItem{
					Title: title,
					Href:  htmlutil.Absolutize(href, base),
					Image: htmlutil.Absolutize(imageSrc(s.Find("img").First()), base),
				})
			})
			return out
		}},
		Strategy[models.SearchItem]{Name: "manga-links", Extract: func(d *goquery.Document) []models.SearchItem {
			var out []models.SearchItem
			seen := make(map[string]bool)
			d.Find(`a[href*="/manga/"]`).Each(func(_ int, a *goquery.Selection) {
				img := a.Find("img").First()
				if img.Length() == 0 {
					return
				}
				href := htmlutil.Absolutize(a.AttrOr("href", ""), base)
				title := htmlutil.CleanText(img.AttrOr("alt", a.AttrOr("title", "")))
				if title == "" || seen[href] {
					return
				}
				seen[href] = true
				out = append(out, models.SearchItem{Title: title, Href: href, Image: htmlutil.Absolutize(imageSrc(img), base)})
			})
			return out
		}},
	)
	if items == nil {
		items = []models.SearchItem{}
	}
	return models.SearchPage{Items: items, Pagination: mangaPaging(doc, base)}, nil
}

// mangaPaging reads the bootstrap pagination: the active item is the
// current page and the largest number shown is the total.
func mangaPaging(doc *goquery.Document, pageURL string) *models.Pagination {
	pager := doc.Find(".pagination").First()
	if pager.Length() == 0 {
		return nil
	}
	current := htmlutil.ParseLeadingInt(pager.Find(".active").First().Text(), 1)
	total := current
	pager.Find(".page-link, a").Each(func(_ int, a *goquery.Selection) {
		if n := htmlutil.ParseLeadingInt(htmlutil.CleanText(a.Text()), 0); n > total {
			total = n
		}
	})
	if dt, ok := pager.Attr("data-total"); ok {
		total = htmlutil.ParseLeadingInt(dt, total)
	}

	p := &models.Pagination{
		CurrentPage: current,
		TotalPages:  total,
		HasNext:     current < total,
		HasPrevious: current > 1,
	}
	if p.HasNext {
		p.NextURL = htmlutil.SetQueryParam(pageURL, "page", strconv.Itoa(current+1))
	}
	if p.HasPrevious {
		p.PreviousURL = htmlutil.SetQueryParam(pageURL, "page", strconv.Itoa(current-1))
	}
	return p
}

// ParseChapterPages extracts the ordered page images of a chapter rendered
// in list mode.
func ParseChapterPages(page []byte, base string) ([]string, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	pages, strategy := FirstNonEmpty(doc,
		Strategy[string]{Name: "page-container", Extract: pageImages("#page img", base)},
		Strategy[string]{Name: "page-class", Extract: pageImages("img.page-image, .page-image img, img.img-fluid", base)},
		Strategy[string]{Name: "all-images", Extract: pageImages("img", base)},
	)
	util.Debug("MangaWorld chapter pages", "strategy", strategy, "count", len(pages))
	if pages == nil {
		pages = []string{}
	}
	return pages, nil
}

func pageImages(selector, base string) func(*goquery.Document) []string {
	return func(doc *goquery.Document) []string {
		var out []string
		seen := make(map[string]bool)
		doc.Find(selector).Each(func(_ int, img *goquery.Selection) {
			src := imageSrc(img)
			if !htmlutil.IsValidMangaImage(src) {
				return
			}
			abs := htmlutil.Absolutize(src, base)
			if seen[abs] {
				return
			}
			seen[abs] = true
			out = append(out, abs)
		})
		return out
	}
}
