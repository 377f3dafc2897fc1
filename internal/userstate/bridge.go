// Package userstate keeps per-user lists and progress. Signed-in users are
// served by the external backend; everyone else, and anyone whose session
// the backend rejects, by the local store.
package userstate

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

var (
	// ErrLocalUnavailable is returned by writes when no local store is open
	ErrLocalUnavailable = errors.New("local user state unavailable")
	ErrInvalidEntry     = errors.New("invalid user state entry")
)

// Store is the user-state surface shared by the backend session and the
// local store.
type Store interface {
	Lists(ctx context.Context) (models.UserLists, error)
	PutListEntry(ctx context.Context, list string, e models.ListEntry) error
	DeleteListEntry(ctx context.Context, list, key string) error
	Continue(ctx context.Context) ([]models.ContinueEntry, error)
	PutContinue(ctx context.Context, e models.ContinueEntry) error
}

// Origin names the store that answered
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// Status describes how a bridge call was served. Anonymous is set when the
// backend answered 401 and the caller must drop the session token.
type Status struct {
	Origin    Origin
	Anonymous bool
}

// Bridge routes user-state calls to the backend or the local store
type Bridge struct {
	remote *Remote
	local  Store
}

// NewBridge creates a bridge. remote may be nil when no backend is
// configured and local may be nil when no local store could be opened.
func NewBridge(remote *Remote, local Store) *Bridge {
	if local == nil {
		local = unavailableStore{}
	}
	return &Bridge{remote: remote, local: local}
}

func run[T any](ctx context.Context, b *Bridge, token string, op func(Store) (T, error)) (T, Status, error) {
	token = strings.TrimSpace(token)
	if token != "" && b.remote != nil {
		v, err := op(b.remote.WithToken(token))
		if !errors.Is(err, ErrUnauthorized) {
			return v, Status{Origin: OriginRemote}, err
		}
		util.Info("Backend rejected session, continuing anonymously")
		v, err = op(b.local)
		return v, Status{Origin: OriginLocal, Anonymous: true}, err
	}
	v, err := op(b.local)
	return v, Status{Origin: OriginLocal}, err
}

// Lists returns every list of the user.
func (b *Bridge) Lists(ctx context.Context, token string) (models.UserLists, Status, error) {
	return run(ctx, b, token, func(s Store) (models.UserLists, error) {
		return s.Lists(ctx)
	})
}

// PutListEntry adds or replaces one entry of a list.
func (b *Bridge) PutListEntry(ctx context.Context, token, list string, e models.ListEntry) (Status, error) {
	if list == "" || e.SeriesKey == "" {
		return Status{}, errors.Wrap(ErrInvalidEntry, "list and series key are required")
	}
	_, st, err := run(ctx, b, token, func(s Store) (struct{}, error) {
		return struct{}{}, s.PutListEntry(ctx, list, e)
	})
	return st, err
}

// DeleteListEntry removes one entry of a list.
func (b *Bridge) DeleteListEntry(ctx context.Context, token, list, key string) (Status, error) {
	_, st, err := run(ctx, b, token, func(s Store) (struct{}, error) {
		return struct{}{}, s.DeleteListEntry(ctx, list, key)
	})
	return st, err
}

// Continue returns the continue-watching/reading entries, newest first.
func (b *Bridge) Continue(ctx context.Context, token string) ([]models.ContinueEntry, Status, error) {
	return run(ctx, b, token, func(s Store) ([]models.ContinueEntry, error) {
		return s.Continue(ctx)
	})
}

// PutContinue records progress for one series.
func (b *Bridge) PutContinue(ctx context.Context, token string, e models.ContinueEntry) (Status, error) {
	if e.SeriesKey == "" {
		return Status{}, errors.Wrap(ErrInvalidEntry, "series key is required")
	}
	_, st, err := run(ctx, b, token, func(s Store) (struct{}, error) {
		return struct{}{}, s.PutContinue(ctx, e)
	})
	return st, err
}

// unavailableStore reads as empty and refuses writes
type unavailableStore struct{}

func (unavailableStore) Lists(context.Context) (models.UserLists, error) {
	return models.UserLists{}, nil
}

func (unavailableStore) PutListEntry(context.Context, string, models.ListEntry) error {
	return ErrLocalUnavailable
}

func (unavailableStore) DeleteListEntry(context.Context, string, string) error {
	return ErrLocalUnavailable
}

func (unavailableStore) Continue(context.Context) ([]models.ContinueEntry, error) {
	return []models.ContinueEntry{}, nil
}

func (unavailableStore) PutContinue(context.Context, models.ContinueEntry) error {
	return ErrLocalUnavailable
}
