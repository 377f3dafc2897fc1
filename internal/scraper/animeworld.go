package scraper

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

const (
	AnimeWorldBase = "https://www.animeworld.ac"
)

// RawEpisode is an episode anchor as found on the page. EpisodeNum is 0
// when the number could not be parsed.
type RawEpisode struct {
	EpisodeNum int
	Href       string
	DataID     string
}

// ToEpisodes drops unparsable entries and normalizes the list.
func ToEpisodes(raw []RawEpisode) []models.Episode {
	eps := make([]models.Episode, 0, len(raw))
	for _, r := range raw {
		if r.EpisodeNum <= 0 {
			continue
		}
		eps = append(eps, models.Episode{Num: r.EpisodeNum, Href: r.Href, ID: r.DataID})
	}
	return models.NormalizeEpisodes(eps)
}

// AnimeWorldClient fetches and parses AnimeWorld pages
type AnimeWorldClient struct {
	client  *http.Client
	baseURL string
}

// NewAnimeWorldClient creates a new AnimeWorld client. An empty baseURL
// selects the public site and a nil client the shared scrape client.
func NewAnimeWorldClient(baseURL string, client *http.Client) *AnimeWorldClient {
	if baseURL == "" {
		baseURL = AnimeWorldBase
	}
	if client == nil {
		client = util.GetSharedClient()
	}
	return &AnimeWorldClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name implements AnimeSite
func (c *AnimeWorldClient) Name() models.SiteName { return models.SiteAnimeWorld }

// BaseURL returns the site origin the client scrapes.
func (c *AnimeWorldClient) BaseURL() string { return c.baseURL }

// SearchURL builds the search page URL. Filtered queries go through the
// archive filter page, bare keywords through the plain search.
func (c *AnimeWorldClient) SearchURL(q models.SearchQuery) string {
	params := url.Values{}
	path := "/search"
	if q.HasFilters() {
		path = "/filter"
		for k, v := range map[string]string{
			"genre":  q.Genre,
			"year":   q.Year,
			"season": q.Season,
			"status": q.Status,
			"type":   q.Type,
			"dub":    q.Dub,
			"sort":   q.Sort,
		} {
			if strings.TrimSpace(v) != "" {
				params.Set(k, v)
			}
		}
	}
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}
	if q.Page > 1 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	return c.baseURL + path + "?" + params.Encode()
}

func (c *AnimeWorldClient) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := htmlutil.FetchHTML(ctx, c.client, pageURL)
	if err != nil {
		return nil, errors.Wrap(err, "animeworld")
	}
	return body, nil
}

// pageURL resolves a caller-supplied page reference and keeps it on the site.
func (c *AnimeWorldClient) pageURL(ref string) (string, error) {
	abs := htmlutil.Absolutize(ref, c.baseURL)
	if err := htmlutil.CheckSiteURL(abs, c.baseURL); err != nil {
		return "", errors.Wrap(err, "animeworld")
	}
	return abs, nil
}

// Search runs a keyword or filtered search.
func (c *AnimeWorldClient) Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error) {
	pageURL := c.SearchURL(q)
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return models.SearchPage{}, err
	}
	page, err := ParseSearch(body, pageURL)
	if err != nil {
		return models.SearchPage{}, err
	}
	util.Debug("AnimeWorld search", "url", pageURL, "results", len(page.Items))
	return page, nil
}

// Top fetches the ranking widget from the homepage.
func (c *AnimeWorldClient) Top(ctx context.Context) (models.TopLists, error) {
	body, err := c.fetch(ctx, c.baseURL+"/")
	if err != nil {
		return models.TopLists{}, err
	}
	return ParseTop(body, c.baseURL)
}

// Widgets fetches the homepage new/ongoing lists.
func (c *AnimeWorldClient) Widgets(ctx context.Context) (models.HomeWidgets, error) {
	body, err := c.fetch(ctx, c.baseURL+"/")
	if err != nil {
		return models.HomeWidgets{}, err
	}
	return ParseHomeWidgets(body, c.baseURL)
}

// Episodes fetches a title page and returns its normalized episode list.
func (c *AnimeWorldClient) Episodes(ctx context.Context, animeURL string) ([]models.Episode, error) {
	animeURL, err := c.pageURL(animeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, animeURL)
	if err != nil {
		return nil, err
	}
	raw, err := ParseEpisodes(body, animeURL)
	if err != nil {
		return nil, err
	}
	return ToEpisodes(raw), nil
}

// WatchMeta fetches only the info block of a title page.
func (c *AnimeWorldClient) WatchMeta(ctx context.Context, animeURL string) (*models.WatchMeta, error) {
	animeURL, err := c.pageURL(animeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, animeURL)
	if err != nil {
		return nil, err
	}
	meta, err := ParseWatchMeta(body, animeURL)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// WatchPage is everything one fetch of a title page yields
type WatchPage struct {
	Meta     models.WatchMeta
	Similar  []models.SearchItem
	Related  []models.SearchItem
	Episodes []models.Episode
}

// WatchPage fetches a title page once and runs every watch-page parser on it.
func (c *AnimeWorldClient) WatchPage(ctx context.Context, animeURL string) (*WatchPage, error) {
	animeURL, err := c.pageURL(animeURL)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, animeURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	eps, _ := FirstNonEmpty(doc, episodeStrategies(animeURL)...)
	return &WatchPage{
		Meta:     watchMetaFromDoc(doc, animeURL),
		Similar:  sideWidgetFromDoc(doc, ".widget.simili", animeURL),
		Related:  sideWidgetFromDoc(doc, ".widget.correlati", animeURL),
		Episodes: ToEpisodes(eps),
	}, nil
}

// Schedule fetches the weekly broadcast schedule.
func (c *AnimeWorldClient) Schedule(ctx context.Context, now time.Time) ([]models.DaySchedule, error) {
	pageURL := c.baseURL + "/schedule"
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseSchedule(body, pageURL, now)
}

// StreamCandidates fetches an episode page and extracts media URLs. When
// the page carries none but points at a player page, that page is tried once.
func (c *AnimeWorldClient) StreamCandidates(ctx context.Context, episodeURL string) ([]models.StreamCandidate, error) {
	episodeURL, err := c.pageURL(episodeURL)
	if err != nil {
		return nil, err
	}
	return streamCandidatesWithRedirect(ctx, c.fetch, episodeURL)
}

// streamCandidatesWithRedirect is shared by the anime site clients.
func streamCandidatesWithRedirect(ctx context.Context, fetch func(context.Context, string) ([]byte, error), pageURL string) ([]models.StreamCandidate, error) {
	body, err := fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	candidates := ExtractStreamCandidates(body, pageURL)
	if len(candidates) > 0 {
		return candidates, nil
	}

	next := FindPlayerRedirect(body)
	if next == "" {
		return nil, nil
	}
	next = htmlutil.Absolutize(next, pageURL)
	util.Debug("Following player redirect", "from", pageURL, "to", next)

	body, err = fetch(ctx, next)
	if err != nil {
		return nil, err
	}
	return ExtractStreamCandidates(body, next), nil
}

// ParseSearch parses a search or filter results page. base is the URL of the
// page itself so pagination links can be derived from it.
func ParseSearch(html []byte, base string) (models.SearchPage, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return models.SearchPage{}, err
	}

	items, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "film-list", Extract: cardsIn(".film-list .item", base)},
		Strategy[models.SearchItem]{Name: "items", Extract: cardsIn(".items .item", base)},
		Strategy[models.SearchItem]{Name: "play-links", Extract: func(d *goquery.Document) []models.SearchItem {
			return playLinks(d, base)
		}},
	)
	if items == nil {
		items = []models.SearchItem{}
	}

	return models.SearchPage{
		Items:      items,
		Pagination: parsePaging(doc, base),
	}, nil
}

func cardsIn(selector, base string) func(*goquery.Document) []models.SearchItem {
	return func(doc *goquery.Document) []models.SearchItem {
		return cardsFromSelection(doc.Find(selector), base)
	}
}

func cardsFromSelection(sel *goquery.Selection, base string) []models.SearchItem {
	var items []models.SearchItem
	seen := make(map[string]bool)
	sel.Each(func(_ int, s *goquery.Selection) {
		item, ok := parseFilmCard(s, base)
		if !ok || seen[item.Href] {
			return
		}
		seen[item.Href] = true
		items = append(items, item)
	})
	return items
}

// parseFilmCard reads one result card. AnimeWorld cards keep the title in
// a.name and the link on both the name and the poster.
func parseFilmCard(s *goquery.Selection, base string) (models.SearchItem, bool) {
	nameLink := s.Find("a.name").First()
	title := htmlutil.CleanText(nameLink.Text())
	if title == "" {
		if jt, ok := nameLink.Attr("data-jtitle"); ok {
			title = htmlutil.CleanText(jt)
		}
	}

	href, _ := nameLink.Attr("href")
	if href == "" {
		for _, sel := range []string{"a.poster", "a.thumb", "a[href]"} {
			if h, ok := s.Find(sel).First().Attr("href"); ok && h != "" {
				href = h
				break
			}
		}
	}

	img := s.Find("img").First()
	if title == "" {
		title = htmlutil.CleanText(img.AttrOr("alt", ""))
	}
	if title == "" || href == "" {
		return models.SearchItem{}, false
	}

	return models.SearchItem{
		Title: title,
		Href:  htmlutil.Absolutize(href, base),
		Image: htmlutil.Absolutize(imageSrc(img), base),
		IsDub: s.Find(".dub").Length() > 0,
	}, true
}

// playLinks is the last resort: any link to a watch page that wraps an image.
func playLinks(doc *goquery.Document, base string) []models.SearchItem {
	var items []models.SearchItem
	seen := make(map[string]bool)
	doc.Find(`a[href*="/play/"]`).Each(func(_ int, a *goquery.Selection) {
		img := a.Find("img").First()
		if img.Length() == 0 {
			return
		}
		href := htmlutil.Absolutize(a.AttrOr("href", ""), base)
		if seen[href] {
			return
		}
		title := htmlutil.CleanText(a.AttrOr("title", ""))
		if title == "" {
			title = htmlutil.CleanText(img.AttrOr("alt", ""))
		}
		if title == "" {
			title = htmlutil.CleanText(a.Text())
		}
		if title == "" {
			return
		}
		seen[href] = true
		items = append(items, models.SearchItem{
			Title: title,
			Href:  href,
			Image: htmlutil.Absolutize(imageSrc(img), base),
		})
	})
	return items
}

func imageSrc(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parsePaging(doc *goquery.Document, pageURL string) *models.Pagination {
	form := doc.Find("#paging-form")
	if form.Length() == 0 {
		return nil
	}
	current := htmlutil.ParseLeadingInt(form.Find(`input[name="page"]`).AttrOr("value", ""), 1)
	total := htmlutil.ParseLeadingInt(form.Find("span.total").Text(), current)
	if current < 1 {
		current = 1
	}
	if total < current {
		total = current
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

// ParseTop parses the day/week/month ranking widget.
func ParseTop(html []byte, base string) (models.TopLists, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return models.TopLists{}, err
	}
	return models.TopLists{
		Day:   topList(doc, "day", base),
		Week:  topList(doc, "week", base),
		Month: topList(doc, "month", base),
	}, nil
}

func topList(doc *goquery.Document, name, base string) []models.TopItem {
	items, _ := FirstNonEmpty(doc,
		Strategy[models.TopItem]{Name: "widget", Extract: func(d *goquery.Document) []models.TopItem {
			sel := d.Find(`.widget.top .content[data-name="` + name + `"] .item, .widget.hotnew .content[data-name="` + name + `"] .item`)
			return topItems(sel, base, 1)
		}},
		Strategy[models.TopItem]{Name: "data-name", Extract: func(d *goquery.Document) []models.TopItem {
			sel := d.Find(`[data-name="` + name + `"] .item`)
			return topItems(sel, base, 0)
		}},
	)
	if items == nil {
		return []models.TopItem{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Rank < items[j].Rank
	})
	return items
}

func topItems(sel *goquery.Selection, base string, defaultRank int) []models.TopItem {
	var items []models.TopItem
	sel.Each(func(_ int, s *goquery.Selection) {
		card, ok := parseFilmCard(s, base)
		if !ok {
			return
		}
		rank := defaultRank
		if n, err := strconv.Atoi(strings.TrimSpace(s.Find(".rank").First().Text())); err == nil {
			rank = n
		}
		items = append(items, models.TopItem{
			Rank:  rank,
			Title: card.Title,
			Href:  card.Href,
			Image: card.Image,
		})
	})
	return items
}

// ParseHomeWidgets extracts the new releases and ongoing lists.
func ParseHomeWidgets(html []byte, base string) (models.HomeWidgets, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return models.HomeWidgets{}, err
	}

	newItems, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "hotnew-all", Extract: cardsIn(`.widget.hotnew .content[data-name="all"] .item`, base)},
		Strategy[models.SearchItem]{Name: "updated", Extract: cardsIn(`[data-name="updated"] .item`, base)},
	)
	ongoing, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "hotnew-ongoing", Extract: cardsIn(`.widget.hotnew .content[data-name="ongoing"] .item`, base)},
		Strategy[models.SearchItem]{Name: "ongoing", Extract: cardsIn(`[data-name="ongoing"] .item`, base)},
	)
	if newItems == nil {
		newItems = []models.SearchItem{}
	}
	if ongoing == nil {
		ongoing = []models.SearchItem{}
	}
	return models.HomeWidgets{New: newItems, Ongoing: ongoing}, nil
}

// ParseEpisodes extracts the episode anchors of a title page.
func ParseEpisodes(html []byte, base string) ([]RawEpisode, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	eps, strategy := FirstNonEmpty(doc, episodeStrategies(base)...)
	util.Debug("AnimeWorld episodes", "strategy", strategy, "count", len(eps))
	return eps, nil
}

func episodeStrategies(base string) []Strategy[RawEpisode] {
	return []Strategy[RawEpisode]{
		{Name: "active-server", Extract: episodeAnchors(".server.active ul.episodes li.episode a", base)},
		{Name: "episode-num", Extract: episodeAnchors("ul.episodes a[data-episode-num]", base)},
		{Name: "data-id", Extract: episodeAnchors(`a[data-id][href*="/play/"]`, base)},
	}
}

func episodeAnchors(selector, base string) func(*goquery.Document) []RawEpisode {
	return func(doc *goquery.Document) []RawEpisode {
		var eps []RawEpisode
		doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
			numText, ok := a.Attr("data-episode-num")
			if !ok {
				numText = a.Text()
			}
			num, err := strconv.Atoi(strings.TrimSpace(numText))
			if err != nil {
				num = 0
			}
			eps = append(eps, RawEpisode{
				EpisodeNum: num,
				Href:       htmlutil.Absolutize(a.AttrOr("href", ""), base),
				DataID:     strings.TrimSpace(a.AttrOr("data-id", "")),
			})
		})
		return eps
	}
}

// ParseWatchMeta parses the info block of a title page.
func ParseWatchMeta(html []byte, base string) (models.WatchMeta, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return models.WatchMeta{}, err
	}
	return watchMetaFromDoc(doc, base), nil
}

func watchMetaFromDoc(doc *goquery.Document, base string) models.WatchMeta {
	info := doc.Find(".widget.info").First()
	if info.Length() == 0 {
		info = doc.Selection
	}

	titleSel := info.Find("h2.title, h1.title").First()
	meta := models.WatchMeta{
		Title:    htmlutil.CleanText(titleSel.Text()),
		AltTitle: htmlutil.CleanText(titleSel.AttrOr("data-jtitle", "")),
		Image:    htmlutil.Absolutize(imageSrc(info.Find(".thumb img").First()), base),
		Synopsis: htmlutil.CleanText(info.Find(".desc .long").First().Text()),
	}
	if meta.Synopsis == "" {
		meta.Synopsis = htmlutil.CleanText(info.Find(".desc").First().Text())
	}
	if meta.Title == "" {
		meta.Title = htmlutil.CleanText(doc.Find("h1").First().Text())
	}

	info.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		label := strings.ToLower(strings.TrimSuffix(htmlutil.CleanText(dt.Text()), ":"))
		value := htmlutil.CleanText(dd.Text())

		switch {
		case strings.HasPrefix(label, "categoria"):
			meta.Category = value
		case strings.HasPrefix(label, "audio"):
			meta.Audio = value
		case strings.HasPrefix(label, "data di uscita"):
			meta.ReleaseDate = value
		case strings.HasPrefix(label, "stagione"):
			meta.Season = value
		case strings.HasPrefix(label, "studio"):
			meta.Studio = value
		case strings.HasPrefix(label, "genere"):
			meta.Genres = linkTexts(dd)
		case strings.HasPrefix(label, "voto"):
			if f := strings.Fields(value); len(f) > 0 {
				meta.Rating = f[0]
			}
		case strings.HasPrefix(label, "durata"):
			meta.Duration = value
		case strings.HasPrefix(label, "episodi"):
			meta.Episodes = value
		case strings.HasPrefix(label, "stato"):
			meta.Status = value
		case strings.HasPrefix(label, "visualizzazioni"):
			meta.Views = value
		}
	})
	return meta
}

// linkTexts returns the anchor texts of sel, or its comma separated text.
func linkTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		if t := htmlutil.CleanText(a.Text()); t != "" {
			out = append(out, t)
		}
	})
	if len(out) > 0 {
		return out
	}
	for _, part := range strings.Split(sel.Text(), ",") {
		if t := htmlutil.CleanText(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sideWidgetFromDoc(doc *goquery.Document, widget, base string) []models.SearchItem {
	items, _ := FirstNonEmpty(doc,
		Strategy[models.SearchItem]{Name: "film-list", Extract: cardsIn(widget+" .film-list .item", base)},
		Strategy[models.SearchItem]{Name: "item", Extract: cardsIn(widget+" .item", base)},
	)
	if items == nil {
		return []models.SearchItem{}
	}
	return items
}
