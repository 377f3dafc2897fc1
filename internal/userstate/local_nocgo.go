//go:build !cgo

package userstate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
)

const LocalAvailable = false

// LocalStore is unavailable without cgo since SQLite needs it
type LocalStore struct{}

// OpenLocal always fails in builds without cgo.
func OpenLocal(string) (*LocalStore, error) {
	return nil, errors.Wrap(ErrLocalUnavailable, "built without cgo")
}

func (*LocalStore) Lists(context.Context) (models.UserLists, error) {
	return nil, ErrLocalUnavailable
}

func (*LocalStore) PutListEntry(context.Context, string, models.ListEntry) error {
	return ErrLocalUnavailable
}

func (*LocalStore) DeleteListEntry(context.Context, string, string) error {
	return ErrLocalUnavailable
}

func (*LocalStore) Continue(context.Context) ([]models.ContinueEntry, error) {
	return nil, ErrLocalUnavailable
}

func (*LocalStore) PutContinue(context.Context, models.ContinueEntry) error {
	return ErrLocalUnavailable
}

func (*LocalStore) Close() error { return nil }
