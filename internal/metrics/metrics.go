package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimer_ticks_total",
			Help: "Total enforcement ticks processed",
		},
	)

	TickGapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimer_tick_gaps_total",
			Help: "Ticks that arrived more than twice the interval after the previous one",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screentimer_tick_duration_seconds",
			Help:    "Time spent processing one tick",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Enforcement metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentimer_notifications_total",
			Help: "Warnings issued, by threshold",
		},
		[]string{"threshold"},
	)

	LocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimer_locks_total",
			Help: "Session locks issued",
		},
	)

	DeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentimer_delivery_errors_total",
			Help: "Failed notification or lock deliveries",
		},
		[]string{"sink"},
	)

	// Storage metrics
	PersistenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentimer_persistence_errors_total",
			Help: "Failed usage store operations",
		},
		[]string{"op"},
	)

	// Limit metrics
	LimitSourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentimer_limit_source_errors_total",
			Help: "Failed daily limit lookups",
		},
		[]string{"source"},
	)

	LimitCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimer_limit_cache_hits_total",
			Help: "Policy limit decisions served from cache",
		},
	)

	LimitCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimer_limit_cache_misses_total",
			Help: "Policy limit decisions evaluated",
		},
	)

	// Usage gauges
	MinutesUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentimer_minutes_used",
			Help: "Minutes used today",
		},
	)

	MinutesRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentimer_minutes_remaining",
			Help: "Minutes remaining today",
		},
	)

	DailyLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentimer_daily_limit_minutes",
			Help: "Today's limit in minutes",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TicksTotal,
		TickGapsTotal,
		TickDuration,
		NotificationsTotal,
		LocksTotal,
		DeliveryErrors,
		PersistenceErrors,
		LimitSourceErrors,
		LimitCacheHits,
		LimitCacheMisses,
		MinutesUsed,
		MinutesRemaining,
		DailyLimit,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server. A non-nil status handler is
// mounted at /status.
func NewServer(addr string, status http.Handler, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if status != nil {
		mux.Handle("/status", status)
	}

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the server's request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start binds the metrics listener and serves it in the background. A bind
// failure is returned to the caller.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	ln := s.listener
	if ln != nil {
		s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
	} else {
		var err error
		ln, err = net.Listen("tcp", s.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
		}
		s.listener = ln
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
