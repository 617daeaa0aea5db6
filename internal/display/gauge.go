package display

import (
	"github.com/goodtune/screentimer/internal/metrics"
	"github.com/goodtune/screentimer/internal/quota"
)

// Gauge publishes each status to the usage gauges.
type Gauge struct{}

func (Gauge) Show(s quota.Status) {
	metrics.MinutesUsed.Set(float64(s.Used))
	if s.LimitKnown {
		metrics.DailyLimit.Set(float64(s.Limit))
		metrics.MinutesRemaining.Set(float64(s.Remaining))
	}
}
