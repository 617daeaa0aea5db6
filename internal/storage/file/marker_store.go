package file

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

// lockToken marks a fired lock in the markers table, e.g. "2024-01-15,30|10|lock".
const lockToken = "lock"

type markerStore struct {
	path string
	mu   sync.Mutex
}

func (s *markerStore) GetMarkers(ctx context.Context, date day.Date) (*storage.Markers, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return nil, err
	}

	value, ok := t.get(date)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return parseMarkers(value)
}

func (s *markerStore) SaveMarkers(ctx context.Context, date day.Date, markers storage.Markers) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return err
	}
	t.set(date, formatMarkers(markers.Normalized()))

	return writeTable(s.path, t)
}

func parseMarkers(value string) (*storage.Markers, error) {
	m := &storage.Markers{}
	if value == "" {
		return m, nil
	}
	for _, token := range strings.Split(value, "|") {
		if token == lockToken {
			m.Locked = true
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("%w: marker %q", storage.ErrCorruptRow, token)
		}
		m.Thresholds = append(m.Thresholds, n)
	}
	return m, nil
}

func formatMarkers(m storage.Markers) string {
	tokens := make([]string, 0, len(m.Thresholds)+1)
	for _, t := range m.Thresholds {
		tokens = append(tokens, strconv.Itoa(t))
	}
	if m.Locked {
		tokens = append(tokens, lockToken)
	}
	return strings.Join(tokens, "|")
}
