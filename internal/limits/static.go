package limits

import (
	"context"
	"sync"

	"github.com/goodtune/screentimer/internal/day"
)

// Static serves a fixed weekday table.
type Static struct {
	mu    sync.RWMutex
	table Table
}

// NewStatic creates a static source.
func NewStatic(table Table) *Static {
	return &Static{table: table}
}

func (s *Static) LimitFor(ctx context.Context, date day.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.For(date), nil
}

// Set replaces the table.
func (s *Static) Set(table Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
}

// Reload is a no-op; the table only changes through Set.
func (s *Static) Reload() error { return nil }

func (s *Static) Close() error { return nil }
