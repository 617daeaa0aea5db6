// Package sqlite stores usage in a SQLite database through the CGO-free
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty SQLite path")
	}

	if path != ":memory:" {
		if err := storage.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		// Wait for the enforcer's write instead of failing with SQLITE_BUSY.
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_daily(
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			minutes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS markers(
			date TEXT PRIMARY KEY,
			thresholds TEXT NOT NULL DEFAULT '',
			locked INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Usage returns the usage store.
func (s *Store) Usage() storage.UsageStore { return s }

// Markers returns the marker store.
func (s *Store) Markers() storage.MarkerStore { return markerStore{db: s.db} }

func (s *Store) Increment(ctx context.Context, date day.Date) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_daily(date, minutes) VALUES(?, 1)
		ON CONFLICT(date) DO UPDATE SET minutes = minutes + 1;`,
		date.String())
	return err
}

func (s *Store) MinutesUsed(ctx context.Context, date day.Date) (int, error) {
	var minutes int
	err := s.db.QueryRowContext(ctx,
		`SELECT minutes FROM usage_daily WHERE date = ?;`, date.String()).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if minutes < 0 {
		return 0, fmt.Errorf("%w: minutes %d", storage.ErrCorruptRow, minutes)
	}
	return minutes, nil
}

func (s *Store) List(ctx context.Context) ([]storage.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, minutes FROM usage_daily ORDER BY seq;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]storage.UsageRecord, 0)
	for rows.Next() {
		var (
			dateText string
			minutes  int
		)
		if err := rows.Scan(&dateText, &minutes); err != nil {
			return nil, err
		}
		date, err := day.Parse(dateText)
		if err != nil || minutes < 0 {
			continue
		}
		records = append(records, storage.UsageRecord{Date: date, Minutes: minutes})
	}
	return records, rows.Err()
}

func (s *Store) Merge(ctx context.Context, rec storage.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_daily(date, minutes) VALUES(?, ?)
		ON CONFLICT(date) DO UPDATE SET minutes = MAX(minutes, excluded.minutes);`,
		rec.Date.String(), rec.Minutes)
	return err
}
