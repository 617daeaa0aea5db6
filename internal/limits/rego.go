package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/metrics"
)

// LimitQuery is the rule every limit policy must define.
const LimitQuery = "data.screentimer.limits.daily_minutes"

const decisionCacheSize = 64

// Rego evaluates limits from the *.rego files in a directory. Decisions are
// cached per date for the configured TTL.
type Rego struct {
	policyDir string
	logger    zerolog.Logger

	mu    sync.RWMutex
	query rego.PreparedEvalQuery

	cache *expirable.LRU[string, int]
}

// NewRego loads and compiles the policies in policyDir.
func NewRego(policyDir string, cacheTTL time.Duration, logger zerolog.Logger) (*Rego, error) {
	r := &Rego{
		policyDir: policyDir,
		logger:    logger.With().Str("component", "limits").Str("source", "rego").Logger(),
		cache:     expirable.NewLRU[string, int](decisionCacheSize, nil, cacheTTL),
	}

	query, err := r.prepare(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	r.query = query

	r.logger.Info().Str("policy_dir", policyDir).Msg("Limit policies loaded")
	return r, nil
}

// prepare reads every policy file and prepares the limit query
func (r *Rego) prepare(ctx context.Context) (rego.PreparedEvalQuery, error) {
	files, err := filepath.Glob(filepath.Join(r.policyDir, "*.rego"))
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to glob policy files: %w", err)
	}
	if len(files) == 0 {
		return rego.PreparedEvalQuery{}, fmt.Errorf("no policy files found in %s", r.policyDir)
	}

	opts := []func(*rego.Rego){rego.Query(LimitQuery)}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return rego.PreparedEvalQuery{}, fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return rego.PreparedEvalQuery{}, fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}
		r.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")

		opts = append(opts, rego.Module(file, string(content)))
	}

	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare limit query: %w", err)
	}
	return query, nil
}

func (r *Rego) LimitFor(ctx context.Context, date day.Date) (int, error) {
	key := date.String()
	if limit, ok := r.cache.Get(key); ok {
		metrics.LimitCacheHits.Inc()
		return limit, nil
	}
	metrics.LimitCacheMisses.Inc()

	limit, err := r.evaluate(ctx, date)
	if err != nil {
		metrics.LimitSourceErrors.WithLabelValues("rego").Inc()
		return 0, err
	}

	r.cache.Add(key, limit)
	return limit, nil
}

func (r *Rego) evaluate(ctx context.Context, date day.Date) (int, error) {
	input := map[string]interface{}{
		"date":         date.String(),
		"weekday":      int(date.Weekday()),
		"weekday_name": day.WeekdayNames[date.Weekday()],
	}

	r.mu.RLock()
	query := r.query
	r.mu.RUnlock()

	startTime := time.Now()
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return 0, fmt.Errorf("limit query evaluation failed: %w", err)
	}
	r.logger.Debug().
		Str("date", date.String()).
		Dur("duration", time.Since(startTime)).
		Msg("Limit query evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return 0, fmt.Errorf("no limit defined for %s", date)
	}

	return toMinutes(results[0].Expressions[0].Value)
}

func toMinutes(v interface{}) (int, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("limit is not a number: %q", n)
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("limit is not a number: %T", v)
	}

	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("limit must be a non-negative whole number of minutes, got %v", f)
	}
	return int(f), nil
}

// Reload recompiles the policies and drops cached decisions. On failure the
// previous policies stay in effect.
func (r *Rego) Reload() error {
	r.logger.Info().Msg("Reloading limit policies")

	query, err := r.prepare(context.Background())
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	r.mu.Lock()
	r.query = query
	r.mu.Unlock()
	r.cache.Purge()

	r.logger.Info().Msg("Limit policies reloaded successfully")
	return nil
}

func (r *Rego) Close() error {
	r.cache.Purge()
	return nil
}
