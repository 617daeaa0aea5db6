package file

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

type usageStore struct {
	path string
	mu   sync.Mutex
}

// Increment re-reads the table, bumps the row for date and rewrites the file.
// A corrupt row for date restarts from zero.
func (s *usageStore) Increment(ctx context.Context, date day.Date) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return err
	}

	minutes := 0
	if value, ok := t.get(date); ok {
		if n, err := parseMinutes(value); err == nil {
			minutes = n
		}
	}
	t.set(date, strconv.Itoa(minutes+1))

	return writeTable(s.path, t)
}

func (s *usageStore) MinutesUsed(ctx context.Context, date day.Date) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return 0, err
	}

	value, ok := t.get(date)
	if !ok {
		return 0, nil
	}
	return parseMinutes(value)
}

// List returns valid rows in file order. Rows with an unparseable count are skipped.
func (s *usageStore) List(ctx context.Context) ([]storage.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return nil, err
	}

	records := make([]storage.UsageRecord, 0, len(t.rows))
	for _, r := range t.rows {
		if !r.valid() {
			continue
		}
		minutes, err := parseMinutes(r.value)
		if err != nil {
			continue
		}
		records = append(records, storage.UsageRecord{Date: r.date, Minutes: minutes})
	}
	return records, nil
}

func (s *usageStore) Merge(ctx context.Context, rec storage.UsageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := readTable(s.path)
	if err != nil {
		return err
	}

	if value, ok := t.get(rec.Date); ok {
		if n, err := parseMinutes(value); err == nil && n >= rec.Minutes {
			return nil
		}
	}
	t.set(rec.Date, strconv.Itoa(rec.Minutes))

	return writeTable(s.path, t)
}

func parseMinutes(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: minutes %q", storage.ErrCorruptRow, value)
	}
	return n, nil
}

// ReadUsageFile reads a usage table written by this package or by the
// legacy screen-timer script.
// Unlike the store, a missing file is an error.
func ReadUsageFile(path string) ([]storage.UsageRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	s := &usageStore{path: path}
	return s.List(context.Background())
}
