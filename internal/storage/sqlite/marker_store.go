package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

type markerStore struct {
	db *sql.DB
}

func (s markerStore) GetMarkers(ctx context.Context, date day.Date) (*storage.Markers, error) {
	var (
		thresholds string
		locked     bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT thresholds, locked FROM markers WHERE date = ?;`, date.String()).Scan(&thresholds, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	markers := &storage.Markers{Locked: locked}
	if thresholds != "" {
		for _, part := range strings.Split(thresholds, ",") {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: marker %q", storage.ErrCorruptRow, part)
			}
			markers.Thresholds = append(markers.Thresholds, n)
		}
	}
	return markers, nil
}

func (s markerStore) SaveMarkers(ctx context.Context, date day.Date, markers storage.Markers) error {
	markers = markers.Normalized()
	parts := make([]string, len(markers.Thresholds))
	for i, t := range markers.Thresholds {
		parts[i] = strconv.Itoa(t)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markers(date, thresholds, locked) VALUES(?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET thresholds = excluded.thresholds, locked = excluded.locked;`,
		date.String(), strings.Join(parts, ","), markers.Locked)
	return err
}
