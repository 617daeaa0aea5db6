package quota

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/metrics"
)

// WarningTitle is the title of every threshold warning.
const WarningTitle = "Screen Time Warning"

// WarningMessage returns the warning body for the given remaining minutes.
func WarningMessage(remaining int) string {
	unit := "minutes"
	if remaining == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("You have %d %s of screen time remaining.", remaining, unit)
}

// Notifier issues at most one warning per threshold per day.
type Notifier struct {
	sink       NotificationSink
	thresholds []int
	mode       NotifyMode
	notified   map[int]bool
	logger     zerolog.Logger
}

// NewNotifier creates a notifier over DefaultThresholds.
func NewNotifier(sink NotificationSink, mode NotifyMode, logger zerolog.Logger) *Notifier {
	if mode == "" {
		mode = ModeExact
	}
	return &Notifier{
		sink:       sink,
		thresholds: DefaultThresholds,
		mode:       mode,
		notified:   make(map[int]bool),
		logger:     logger.With().Str("component", "notifier").Logger(),
	}
}

// Evaluate warns for any threshold newly reached at remaining minutes and
// reports whether the set of notified thresholds changed. A threshold is
// marked even when delivery fails.
func (n *Notifier) Evaluate(ctx context.Context, remaining int) bool {
	if remaining <= 0 {
		return false
	}

	var crossed []int
	for _, t := range n.thresholds {
		if n.notified[t] {
			continue
		}
		switch n.mode {
		case ModeStaircase:
			if t >= remaining {
				crossed = append(crossed, t)
			}
		default:
			if t == remaining {
				crossed = append(crossed, t)
			}
		}
	}
	if len(crossed) == 0 {
		return false
	}

	for _, t := range crossed {
		n.notified[t] = true
	}

	// Staircase reports the lowest rung crossed on this tick.
	threshold := crossed[len(crossed)-1]
	n.deliver(ctx, threshold, remaining)
	return true
}

func (n *Notifier) deliver(ctx context.Context, threshold, remaining int) {
	metrics.NotificationsTotal.WithLabelValues(strconv.Itoa(threshold)).Inc()

	if err := n.sink.Notify(ctx, WarningTitle, WarningMessage(remaining)); err != nil {
		metrics.DeliveryErrors.WithLabelValues("notification").Inc()
		n.logger.Error().
			Err(err).
			Int("threshold", threshold).
			Int("remaining", remaining).
			Msg("Failed to deliver warning")
		return
	}

	n.logger.Info().
		Int("threshold", threshold).
		Int("remaining", remaining).
		Msg("Warning delivered")
}

// Reset forgets every notified threshold.
func (n *Notifier) Reset() {
	n.notified = make(map[int]bool)
}

// Restore marks the given thresholds as already notified.
func (n *Notifier) Restore(thresholds []int) {
	for _, t := range thresholds {
		n.notified[t] = true
	}
}

// Notified returns the notified thresholds in descending order.
func (n *Notifier) Notified() []int {
	out := make([]int, 0, len(n.notified))
	for t := range n.notified {
		out = append(out, t)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
