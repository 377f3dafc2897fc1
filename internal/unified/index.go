// Package unified talks to the external reconciliation index and merges
// its multi-site records with single-site scraping when it is unavailable.
package unified

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/htmlutil"
	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

// DefaultSearchTimeout bounds an index search
const DefaultSearchTimeout = 10 * time.Second

// ErrIndexUnavailable is matched by every index failure: transport errors,
// timeouts, non-2xx answers and undecodable bodies.
var ErrIndexUnavailable = errors.New("unified index unavailable")

// IndexError carries the failing operation and its cause
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return "index " + e.Op + ": " + e.Err.Error()
}

func (e *IndexError) Unwrap() error { return e.Err }

// Is makes every IndexError match ErrIndexUnavailable.
func (e *IndexError) Is(target error) bool { return target == ErrIndexUnavailable }

// IndexEpisodeSource is one site's view of an index episode
type IndexEpisodeSource struct {
	Available bool   `json:"available"`
	URL       string `json:"url"`
	ID        string `json:"id"`
}

// IndexEpisode is one entry of the index episode list. Sources are keyed by
// site name or site code depending on the index version.
type IndexEpisode struct {
	EpisodeNumber float64                       `json:"episode_number"`
	Sources       map[string]IndexEpisodeSource `json:"sources"`
}

// Source returns the entry for site, trying the full name then the code.
func (e IndexEpisode) Source(site models.SiteName) (IndexEpisodeSource, bool) {
	return lookupSite(e.Sources, site)
}

// IndexStream is one site's stream resolution
type IndexStream struct {
	Available bool   `json:"available"`
	StreamURL string `json:"stream_url"`
	Embed     string `json:"embed"`
}

func lookupSite[T any](m map[string]T, site models.SiteName) (T, bool) {
	if v, ok := m[string(site)]; ok {
		return v, true
	}
	if v, ok := m[site.Code()]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, string(site)) || strings.EqualFold(k, site.Code()) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// IndexClient is the HTTP client of the reconciliation index
type IndexClient struct {
	client        *http.Client
	baseURL       string
	searchTimeout time.Duration
}

// NewIndexClient creates an index client. A nil client selects the shared
// fast client.
func NewIndexClient(baseURL string, client *http.Client) *IndexClient {
	if client == nil {
		client = util.GetFastClient()
	}
	return &IndexClient{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		searchTimeout: DefaultSearchTimeout,
	}
}

// SetSearchTimeout overrides the search timeout.
func (c *IndexClient) SetSearchTimeout(d time.Duration) {
	if d > 0 {
		c.searchTimeout = d
	}
}

func (c *IndexClient) getJSON(ctx context.Context, op, path string, params url.Values, out any) error {
	if c.baseURL == "" {
		return &IndexError{Op: op, Err: errors.New("no index configured")}
	}
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &IndexError{Op: op, Err: errors.Wrap(err, "failed to create request")}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", htmlutil.DefaultUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &IndexError{Op: op, Err: errors.Wrap(err, "request failed")}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &IndexError{Op: op, Err: &htmlutil.UpstreamHTTPError{URL: endpoint, Status: resp.StatusCode}}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &IndexError{Op: op, Err: errors.Wrap(err, "failed to decode response")}
	}
	return nil
}

// Search queries the index by keyword.
func (c *IndexClient) Search(ctx context.Context, keyword string) ([]models.UnifiedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	var results []models.UnifiedResult
	if err := c.getJSON(ctx, "search", "/search", url.Values{"q": {keyword}}, &results); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Normalize()
	}
	return results, nil
}

// Episodes fetches the unified episode list for the given per-site ids.
func (c *IndexClient) Episodes(ctx context.Context, ids map[models.SiteName]string) ([]IndexEpisode, error) {
	params := url.Values{}
	for site, id := range ids {
		if id != "" && site.Code() != "" {
			params.Set(site.Code(), id)
		}
	}
	if len(params) == 0 {
		return nil, &IndexError{Op: "episodes", Err: errors.New("no site ids")}
	}

	var eps []IndexEpisode
	if err := c.getJSON(ctx, "episodes", "/episodes", params, &eps); err != nil {
		return nil, err
	}
	return eps, nil
}

// Stream asks the index to resolve one episode on one site.
func (c *IndexClient) Stream(ctx context.Context, site models.SiteName, id string, episode int) (IndexStream, error) {
	params := url.Values{}
	params.Set(site.Code(), id)
	params.Set("episode", strconv.Itoa(episode))

	var bySite map[string]IndexStream
	if err := c.getJSON(ctx, "stream", "/stream", params, &bySite); err != nil {
		return IndexStream{}, err
	}
	s, _ := lookupSite(bySite, site)
	return s, nil
}
