package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

const (
	AnimeSaturnBase = "https://www.animesaturn.cx"
)

// AnimeSaturnClient fetches and parses AnimeSaturn pages
type AnimeSaturnClient struct {
	client  *http.Client
	baseURL string
}

// NewAnimeSaturnClient creates a new AnimeSaturn client
func NewAnimeSaturnClient(baseURL string, client *http.Client) *AnimeSaturnClient {
	if baseURL == "" {
		baseURL = AnimeSaturnBase
	}
	if client == nil {
		client = util.GetSharedClient()
	}
	return &AnimeSaturnClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name implements AnimeSite
func (c *AnimeSaturnClient) Name() models.SiteName { return models.SiteAnimeSaturn }

func (c *AnimeSaturnClient) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := htmlutil.FetchHTML(ctx, c.client, pageURL)
	if err != nil {
		return nil, errors.Wrap(err, "animesaturn")
	}
	return body, nil
}

// Search runs a keyword search on the anime list. Filters are not supported
// by the site and are ignored.
func (c *AnimeSaturnClient) Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error) {
	pageURL := c.baseURL + "/animelist?search=" + url.QueryEscape(q.Keyword)
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return models.SearchPage{}, err
	}
	return ParseSaturnSearch(body, pageURL)
}

// SaturnMeta fetches the info block of a title page.
func (c *AnimeSaturnClient) SaturnMeta(ctx context.Context, animeURL string) (*models.WatchMeta, error) {
	animeURL, err := c.resolve(animeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, animeURL)
	if err != nil {
		return nil, err
	}
	meta, err := ParseSaturnMeta(body, animeURL)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Episodes fetches a title page and returns its normalized episode list.
func (c *AnimeSaturnClient) Episodes(ctx context.Context, animeURL string) ([]models.Episode, error) {
	animeURL, err := c.resolve(animeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, animeURL)
	if err != nil {
		return nil, err
	}
	eps, err := ParseSaturnEpisodes(body, animeURL)
	if err != nil {
		return nil, err
	}
	return models.NormalizeEpisodes(eps), nil
}

// StreamCandidates extracts media URLs from an episode page. AnimeSaturn
// episode pages link to a separate watch page that carries the player.
func (c *AnimeSaturnClient) StreamCandidates(ctx context.Context, episodeURL string) ([]models.StreamCandidate, error) {
	episodeURL, err := c.resolve(episodeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, episodeURL)
	if err != nil {
		return nil, err
	}
	if candidates := ExtractStreamCandidates(body, episodeURL); len(candidates) > 0 {
		return candidates, nil
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	watch := doc.Find(`a[href*="/watch?"]`).First().AttrOr("href", "")
	if watch == "" {
		return streamCandidatesWithRedirect(ctx, c.fetch, episodeURL)
	}
	return streamCandidatesWithRedirect(ctx, c.fetch, htmlutil.Absolutize(watch, episodeURL))
}

// resolve accepts a full URL or a bare slug. URLs off the site are refused.
func (c *AnimeSaturnClient) resolve(ref string) (string, error) {
	abs := c.baseURL + "/anime/" + ref
	if strings.Contains(ref, "/") {
		abs = htmlutil.Absolutize(ref, c.baseURL)
	}
	if err := htmlutil.CheckSiteURL(abs, c.baseURL); err != nil {
		return "", errors.Wrap(err, "animesaturn")
	}
	return abs, nil
}

// ParseSaturnMeta parses the info box of an AnimeSaturn title page. Fields
// are rendered as "<b>Label:</b> value<br>" so values are read from the
// nodes following each label.
func ParseSaturnMeta(page []byte, base string) (models.WatchMeta, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return models.WatchMeta{}, err
	}

	meta := models.WatchMeta{
		Title: firstText(doc, ".anime-title-as b", ".anime-title-as", "h1"),
		Image: htmlutil.Absolutize(imageSrc(doc.Find("img.cover-anime, .container img.img-fluid").First()), base),
	}
	meta.Synopsis = firstText(doc, "#full-trama", "#shown-trama", "#trama")
	if genres := doc.Find(".generi-as").First(); genres.Length() > 0 {
		meta.Genres = linkTexts(genres)
	}

	doc.Find(".bg-dark-as-box b, .container b").Each(func(_ int, b *goquery.Selection) {
		label := strings.ToLower(strings.TrimSuffix(htmlutil.CleanText(b.Text()), ":"))
		if label == "" {
			return
		}
		value := valueAfterLabel(b.Get(0))
		if value == "" {
			return
		}
		switch {
		case strings.HasPrefix(label, "titolo alternativo") || strings.HasPrefix(label, "titolo inglese"):
			setOnce(&meta.AltTitle, value)
		case strings.HasPrefix(label, "studio"):
			setOnce(&meta.Studio, value)
		case strings.HasPrefix(label, "stato"):
			setOnce(&meta.Status, value)
		case strings.HasPrefix(label, "data di uscita"):
			setOnce(&meta.ReleaseDate, value)
		case strings.HasPrefix(label, "episodi"):
			setOnce(&meta.Episodes, value)
		case strings.HasPrefix(label, "durata"):
			setOnce(&meta.Duration, value)
		case strings.HasPrefix(label, "voto"):
			setOnce(&meta.Rating, value)
		case strings.HasPrefix(label, "visualizzazioni"):
			setOnce(&meta.Views, value)
		}
	})
	return meta, nil
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// valueAfterLabel collects the text of the siblings following n up to the
// next <b> or <br>.
func valueAfterLabel(n *html.Node) string {
	var sb strings.Builder
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && (sib.Data == "b" || sib.Data == "br") {
			break
		}
		sb.WriteString(nodeText(sib))
	}
	return htmlutil.CleanText(sb.String())
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := htmlutil.CleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// ParseSaturnSearch parses the anime list search page.
func ParseSaturnSearch(page []byte, base string) (models.SearchPage, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return models.SearchPage{}, err
	}
	items, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "list-group", Extract: func(d *goquery.Document) []models.SearchItem {
			var out []models.SearchItem
			d.Find("ul.list-group li, .list-group-item").Each(func(_ int, s *goquery.Selection) {
				link := s.Find("a.badge-archivio").First()
				if link.Length() == 0 {
					link = s.Find(`a[href*="/anime/"]`).First()
				}
				title := htmlutil.CleanText(link.Text())
				href := link.AttrOr("href", "")
				if title == "" || href == "" {
					return
				}
				out = append(out, models.SearchItem{
					Title: title,
					Href:  htmlutil.Absolutize(href, base),
					Image: htmlutil.Absolutize(imageSrc(s.Find("img").First()), base),
					IsDub: strings.Contains(strings.ToLower(title), "(ita)"),
				})
			})
			return out
		}},
		Strategy[models.SearchItem]{Name: "anime-links", Extract: func(d *goquery.Document) []models.SearchItem {
			var out []models.SearchItem
			seen := make(map[string]bool)
			d.Find(`a[href*="/anime/"]`).Each(func(_ int, a *goquery.Selection) {
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
	return models.SearchPage{Items: items}, nil
}

// ParseSaturnEpisodes parses the episode buttons of a title page.
func ParseSaturnEpisodes(page []byte, base string) ([]models.Episode, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	anchors := func(selector string) func(*goquery.Document) []models.Episode {
		return func(d *goquery.Document) []models.Episode {
			var out []models.Episode
			d.Find(selector).Each(func(_ int, a *goquery.Selection) {
				href := htmlutil.Absolutize(a.AttrOr("href", ""), base)
				num := htmlutil.ParseLeadingInt(a.Text(), 0)
				if num == 0 {
					num = htmlutil.ParseLeadingInt(lastAfter(href, "-ep-"), 0)
				}
				out = append(out, models.Episode{Num: num, Href: href, ID: htmlutil.ExtractID(href)})
			})
			return out
		}
	}
	eps, _ := FirstNonEmpty(doc,
		Strategy[models.Episode]{Name: "bottone-ep", Extract: anchors("a.bottone-ep")},
		Strategy[models.Episode]{Name: "ep-links", Extract: anchors(`a[href*="/ep/"]`)},
	)
	return eps, nil
}

func lastAfter(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return ""
}
