package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goodtune/screentimer/internal/quota"
)

// Board hands statuses from the tick loop to a renderer. Show never blocks;
// an unread status is replaced by the newer one.
type Board struct {
	updates chan quota.Status
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{updates: make(chan quota.Status, 1)}
}

// Show publishes s, discarding any status the renderer has not taken yet.
func (b *Board) Show(s quota.Status) {
	for {
		select {
		case b.updates <- s:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}

// Updates returns the channel the renderer drains.
func (b *Board) Updates() <-chan quota.Status {
	return b.updates
}

// Render writes one coloured line per status until ctx is cancelled.
func (b *Board) Render(ctx context.Context, w io.Writer) {
	for {
		select {
		case s := <-b.updates:
			text := Text(s)
			if s.LimitKnown {
				text = Colorize(BandFor(s.Remaining), text)
			}
			fmt.Fprintf(w, "%s  %s\n", s.Date, text)
		case <-ctx.Done():
			return
		}
	}
}

// Latest keeps the most recent status for concurrent readers.
type Latest struct {
	mu     sync.RWMutex
	status quota.Status
	set    bool
}

// Show records s.
func (l *Latest) Show(s quota.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = s
	l.set = true
}

// Get returns the latest status and whether one has been recorded.
func (l *Latest) Get() (quota.Status, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status, l.set
}

// Fanout forwards every status to each sink in order.
type Fanout []quota.DisplaySink

func (f Fanout) Show(s quota.Status) {
	for _, sink := range f {
		sink.Show(s)
	}
}
