package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/cache"
	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
)

const (
	DefaultTimeout   = 45 * time.Second
	DefaultTopN      = 10
	DefaultCacheSize = 100
	DefaultCacheTTL  = time.Hour
)

type Config struct {
	Generator Generator
	// Cache holds parsed responses by fingerprint; defaults to an in-memory
	// LRU of DefaultCacheSize entries living DefaultCacheTTL.
	Cache    cache.Cache
	Currency string
	Timeout  time.Duration
	Retry    retry.Policy
	TopN     int
	Logger   *zap.Logger
}

type Result struct {
	Response models.AnalyzerResponse
	Degraded bool
	Reason   string
}

// Analyzer asks a model to describe a set of itineraries. It never fails:
// every error becomes a degraded placeholder response.
type Analyzer struct {
	generator Generator
	cache     cache.Cache
	currency  string
	timeout   time.Duration
	policy    retry.Policy
	topN      int
	logger    *zap.Logger
}

func New(cfg Config) *Analyzer {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Analyzer{
		generator: cfg.Generator,
		cache:     cfg.Cache,
		currency:  cfg.Currency,
		timeout:   cfg.Timeout,
		policy:    cfg.Retry,
		topN:      cfg.TopN,
		logger:    logging.Component(cfg.Logger, "analyzer"),
	}
}

// TopByPrice returns up to n itineraries ordered by ascending price, keeping
// the input order among equal prices.
func TopByPrice(its []models.Itinerary, n int) []models.Itinerary {
	sorted := make([]models.Itinerary, len(its))
	copy(sorted, its)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price.LessThan(sorted[j].Price)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Analyze describes its. Recommendation indexes refer to positions in
// TopByPrice(its, TopN).
func (a *Analyzer) Analyze(ctx context.Context, req models.SearchRequest, its []models.Itinerary) Result {
	top := TopByPrice(its, a.topN)
	if len(top) == 0 {
		return degraded(fmt.Sprintf("no flights found for %s → %s", req.Origin, req.Destination))
	}
	if a.generator == nil {
		return degraded("analysis unavailable: no model configured")
	}

	inputs := inputsFor(top)
	key, err := cache.Fingerprint("analysis", req, inputs)
	if err != nil {
		a.logger.Warn("analysis cache bypassed", zap.Error(err))
	}

	var cached models.AnalyzerResponse
	if key != "" && cache.GetJSON(ctx, a.cache, key, &cached) {
		a.logger.Info("analysis served from cache", zap.String("fingerprint", key))
		return Result{Response: cached}
	}

	prompt := buildPrompt(req, a.currency, inputs)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	policy := a.policy
	policy.Notify = func(attempt int, err error, delay time.Duration) {
		a.logger.Warn("model call failed, retrying",
			zap.String("generator", a.generator.Name()),
			zap.Int("retry", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	start := time.Now()
	var resp models.AnalyzerResponse
	err = retry.Do(callCtx, policy, func(ctx context.Context) error {
		text, err := a.generator.Generate(ctx, prompt)
		if err != nil {
			if transient(ctx, err) {
				return err
			}
			return retry.Permanent(err)
		}

		parsed, err := ParseResponse(text, len(top))
		if err != nil {
			return retry.Permanent(err)
		}
		resp = parsed
		return nil
	})
	if err != nil {
		reason := "analysis unavailable: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			reason = fmt.Sprintf("analysis unavailable: model did not answer within %s", a.timeout)
		}
		a.logger.Warn("analysis degraded", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return degraded(reason)
	}

	local := Summarize(top)
	local.Message = resp.Summary.Message
	resp.Summary = local

	if key != "" {
		if err := cache.SetJSON(ctx, a.cache, key, resp); err != nil {
			a.logger.Warn("caching analysis failed", zap.Error(err))
		}
	}

	a.logger.Info("analysis completed",
		zap.String("generator", a.generator.Name()),
		zap.Int("flights", len(top)),
		zap.Int("recommendations", len(resp.Recommendations)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Result{Response: resp}
}

func degraded(reason string) Result {
	return Result{
		Response: models.DegradedAnalysis(reason),
		Degraded: true,
		Reason:   reason,
	}
}

func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrEmptyResponse)
}
