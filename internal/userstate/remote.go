package userstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

// ErrUnauthorized means the backend rejected the session token. Callers
// clear the token and continue anonymously.
var ErrUnauthorized = errors.New("session unauthorized")

// BackendError is any other non-2xx answer of the backend
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// BackendList is the wire shape of one list on the backend
type BackendList struct {
	Name  string             `json:"name"`
	Items []models.ListEntry `json:"items"`
}

// ToBackendLists converts lists to the backend shape, sorted by name.
func ToBackendLists(lists models.UserLists) []BackendList {
	out := make([]BackendList, 0, len(lists))
	for name, items := range lists {
		if items == nil {
			items = []models.ListEntry{}
		}
		out = append(out, BackendList{Name: name, Items: items})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FromBackendLists converts the backend shape back. Unnamed lists are
// dropped and duplicate names are merged.
func FromBackendLists(lists []BackendList) models.UserLists {
	out := make(models.UserLists, len(lists))
	for _, l := range lists {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			continue
		}
		out[name] = append(out[name], l.Items...)
	}
	return out
}

// TokenExpired reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; opaque tokens are never considered expired.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// Remote is the client of the external user-state backend
type Remote struct {
	client  *http.Client
	baseURL string
}

// NewRemote creates a backend client. A nil client selects the fast client.
func NewRemote(baseURL string, client *http.Client) *Remote {
	if client == nil {
		client = util.GetFastClient()
	}
	return &Remote{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// WithToken returns a Store acting on behalf of the session token.
func (r *Remote) WithToken(token string) Store {
	return &remoteSession{remote: r, token: token}
}

func (r *Remote) do(ctx context.Context, token, method, path string, in, out any) error {
	if token == "" || TokenExpired(token, time.Now()) {
		return ErrUnauthorized
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "backend %s %s failed", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode backend response")
	}
	return nil
}

func listPath(list, key string) string {
	return "/lists/" + url.PathEscape(list) + "/" + url.PathEscape(key)
}

type remoteSession struct {
	remote *Remote
	token  string
}

func (s *remoteSession) Lists(ctx context.Context) (models.UserLists, error) {
	var lists []BackendList
	if err := s.remote.do(ctx, s.token, http.MethodGet, "/lists", nil, &lists); err != nil {
		return nil, err
	}
	return FromBackendLists(lists), nil
}

func (s *remoteSession) PutListEntry(ctx context.Context, list string, e models.ListEntry) error {
	return s.remote.do(ctx, s.token, http.MethodPut, listPath(list, e.SeriesKey), e, nil)
}

func (s *remoteSession) DeleteListEntry(ctx context.Context, list, key string) error {
	return s.remote.do(ctx, s.token, http.MethodDelete, listPath(list, key), nil, nil)
}

func (s *remoteSession) Continue(ctx context.Context) ([]models.ContinueEntry, error) {
	var entries []models.ContinueEntry
	if err := s.remote.do(ctx, s.token, http.MethodGet, "/continue", nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.ContinueEntry{}
	}
	return entries, nil
}

func (s *remoteSession) PutContinue(ctx context.Context, e models.ContinueEntry) error {
	return s.remote.do(ctx, s.token, http.MethodPut, "/continue/"+url.PathEscape(e.SeriesKey), e, nil)
}
