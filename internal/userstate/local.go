//go:build cgo

package userstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

// LocalAvailable tells whether this build carries the SQLite store
const LocalAvailable = true

const (
	defaultCacheSize  = -20000 // 20MB
	busyTimeout       = 5000   // ms
	walAutoCheckpoint = 1000   // pages
	maxOpenConns      = 5
	maxIdleConns      = 2
	avgEntriesPerUser = 64
)

// LocalStore keeps lists and progress in a SQLite file
type LocalStore struct {
	db *sql.DB

	putEntryPS    *sql.Stmt
	allEntriesPS  *sql.Stmt
	deleteEntryPS *sql.Stmt
	putContinuePS *sql.Stmt
	allContinuePS *sql.Stmt
}

func dsnFor(dbPath string) string {
	if runtime.GOOS == "windows" {
		dbPath = strings.ReplaceAll(dbPath, "\\", "/")
	}
	return fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_wal_autocheckpoint=%d&"+
			"_busy_timeout=%d&_cache_size=%d",
		dbPath,
		walAutoCheckpoint,
		busyTimeout,
		defaultCacheSize,
	)
}

// OpenLocal opens or creates the store at dbPath.
func OpenLocal(dbPath string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	db, err := sql.Open("sqlite3", dsnFor(dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := initializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &LocalStore{db: db}
	if err := s.prepare(); err != nil {
		_ = s.Close()
		return nil, err
	}
	util.Debug("Local user state opened", "path", dbPath)
	return s, nil
}

func initializeDatabase(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS list_entries (
			list_name  TEXT    NOT NULL,
			series_key TEXT    NOT NULL,
			title      TEXT    NOT NULL DEFAULT '',
			image      TEXT    NOT NULL DEFAULT '',
			sources    TEXT    NOT NULL DEFAULT '[]',
			added_at   INTEGER NOT NULL,
			PRIMARY KEY (list_name, series_key)
		)`,
		`CREATE TABLE IF NOT EXISTS continue_entries (
			series_key       TEXT    PRIMARY KEY,
			title            TEXT    NOT NULL DEFAULT '',
			episode          INTEGER NOT NULL DEFAULT 0 CHECK(episode >= 0),
			chapter          TEXT    NOT NULL DEFAULT '',
			position_seconds REAL    NOT NULL DEFAULT 0 CHECK(position_seconds >= 0),
			page             INTEGER NOT NULL DEFAULT 0 CHECK(page >= 0),
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_continue_updated ON continue_entries(updated_at DESC)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "schema creation failed")
		}
	}
	if _, err := db.Exec(`PRAGMA optimize`); err != nil {
		return errors.Wrap(err, "initial optimization failed")
	}
	return nil
}

func (s *LocalStore) prepare() error {
	var err error
	prep := func(dst **sql.Stmt, name, query string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(query)
		if err != nil {
			err = errors.Wrapf(err, "%s preparation failed", name)
		}
	}

	prep(&s.putEntryPS, "put entry", `INSERT INTO list_entries (
		list_name, series_key, title, image, sources, added_at
	) VALUES (?,?,?,?,?,?)
	ON CONFLICT(list_name, series_key) DO UPDATE SET
		title = excluded.title,
		image = excluded.image,
		sources = excluded.sources`)
	prep(&s.allEntriesPS, "all entries", `SELECT
		list_name, series_key, title, image, sources, added_at
	FROM list_entries
	ORDER BY list_name, added_at, series_key`)
	prep(&s.deleteEntryPS, "delete entry", `DELETE FROM list_entries
		WHERE list_name = ? AND series_key = ?`)
	prep(&s.putContinuePS, "put continue", `INSERT INTO continue_entries (
		series_key, title, episode, chapter, position_seconds, page, updated_at
	) VALUES (?,?,?,?,?,?,?)
	ON CONFLICT(series_key) DO UPDATE SET
		title = excluded.title,
		episode = excluded.episode,
		chapter = excluded.chapter,
		position_seconds = excluded.position_seconds,
		page = excluded.page,
		updated_at = excluded.updated_at`)
	prep(&s.allContinuePS, "all continue", `SELECT
		series_key, title, episode, chapter, position_seconds, page, updated_at
	FROM continue_entries
	ORDER BY updated_at DESC, series_key`)
	return err
}

// Lists returns every list with its entries in insertion order.
func (s *LocalStore) Lists(ctx context.Context) (models.UserLists, error) {
	rows, err := s.allEntriesPS.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() { _ = rows.Close() }()

	lists := make(models.UserLists)
	for rows.Next() {
		var (
			list, sources string
			e             models.ListEntry
			ts            int64
		)
		if err := rows.Scan(&list, &e.SeriesKey, &e.Title, &e.Image, &sources, &ts); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			util.Warn("Dropping unreadable sources of list entry", "list", list, "key", e.SeriesKey, "error", err)
			e.Sources = nil
		}
		e.AddedAt = time.Unix(ts, 0).UTC()
		if lists[list] == nil {
			lists[list] = make([]models.ListEntry, 0, avgEntriesPerUser)
		}
		lists[list] = append(lists[list], e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration failed")
	}
	return lists, nil
}

// PutListEntry inserts or updates an entry. The original AddedAt is kept on
// update.
func (s *LocalStore) PutListEntry(ctx context.Context, list string, e models.ListEntry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return errors.Wrap(err, "failed to encode sources")
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	_, err = s.putEntryPS.ExecContext(ctx, list, e.SeriesKey, e.Title, e.Image, string(sources), e.AddedAt.Unix())
	return errors.Wrap(err, "upsert failed")
}

// DeleteListEntry removes an entry; missing entries are not an error.
func (s *LocalStore) DeleteListEntry(ctx context.Context, list, key string) error {
	_, err := s.deleteEntryPS.ExecContext(ctx, list, key)
	return errors.Wrap(err, "delete failed")
}

// Continue returns the progress entries, most recently updated first.
func (s *LocalStore) Continue(ctx context.Context) ([]models.ContinueEntry, error) {
	rows, err := s.allContinuePS.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() { _ = rows.Close() }()

	entries := make([]models.ContinueEntry, 0, avgEntriesPerUser)
	for rows.Next() {
		var (
			e  models.ContinueEntry
			ts int64
		)
		if err := rows.Scan(&e.SeriesKey, &e.Title, &e.Episode, &e.Chapter, &e.PositionSeconds, &e.Page, &ts); err != nil {
			return nil, errors.Wrap(err, "row scan failed")
		}
		e.UpdatedAt = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows iteration failed")
	}
	return entries, nil
}

// PutContinue records progress. Negative positions are clamped to zero.
func (s *LocalStore) PutContinue(ctx context.Context, e models.ContinueEntry) error {
	if e.PositionSeconds < 0 {
		e.PositionSeconds = 0
	}
	if e.Page < 0 {
		e.Page = 0
	}
	if e.Episode < 0 {
		e.Episode = 0
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := s.putContinuePS.ExecContext(ctx,
		e.SeriesKey,
		e.Title,
		e.Episode,
		e.Chapter,
		e.PositionSeconds,
		e.Page,
		e.UpdatedAt.Unix(),
	)
	return errors.Wrap(err, "upsert failed")
}

// Close releases the prepared statements and the database.
func (s *LocalStore) Close() error {
	var finalErr error
	for _, stmt := range []*sql.Stmt{s.putEntryPS, s.allEntriesPS, s.deleteEntryPS, s.putContinuePS, s.allContinuePS} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				finalErr = errors.Wrap(err, "statement close error")
			}
		}
	}
	if err := s.db.Close(); err != nil {
		finalErr = errors.Wrap(err, "database close error")
	}
	return finalErr
}
