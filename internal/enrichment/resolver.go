package enrichment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dharmasatrya/flightadvisor/internal/cache"
	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
)

const (
	// MaxConcurrentLookups bounds reference-data calls across the process.
	MaxConcurrentLookups = 5

	DefaultCacheTTL  = 24 * time.Hour
	DefaultCacheSize = 1000

	failureTTL  = 5 * time.Minute
	failureSize = 1000
)

var lookupGate = semaphore.NewWeighted(MaxConcurrentLookups)

// AirportLookup resolves a single IATA code against the provider.
type AirportLookup interface {
	LookupAirport(ctx context.Context, code string) (string, error)
}

type Config struct {
	// Cache holds resolved names; defaults to an in-memory 24h LRU.
	Cache  cache.Cache
	Static map[string]string
	Logger *zap.Logger
}

// Resolver maps airport codes to display names: cache first, then the
// static table, then a gated provider lookup. It never returns an error.
type Resolver struct {
	lookup   AirportLookup
	cache    cache.Cache
	static   map[string]string
	failures *expirable.LRU[string, string]
	logger   *zap.Logger
}

func NewResolver(lookup AirportLookup, cfg Config) *Resolver {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if cfg.Static == nil {
		cfg.Static = StaticAirports
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Resolver{
		lookup:   lookup,
		cache:    cfg.Cache,
		static:   cfg.Static,
		failures: expirable.NewLRU[string, string](failureSize, nil, failureTTL),
		logger:   logging.Component(cfg.Logger, "enrichment"),
	}
}

// ResolveMany returns a name, or nil, for every distinct code.
func (r *Resolver) ResolveMany(ctx context.Context, codes []string) map[string]*string {
	names, _ := r.resolveMany(ctx, codes)
	return names
}

// Failed reports whether the last lookup of code failed recently.
func (r *Resolver) Failed(code string) bool {
	_, failed := r.failures.Peek(strings.ToUpper(code))
	return failed
}

// Apply fills airport names on every segment of its in place and returns a
// warning for each code whose lookup failed.
func (r *Resolver) Apply(ctx context.Context, its []models.Itinerary) []models.Warning {
	var codes []string
	for _, it := range its {
		for _, s := range it.Segments {
			codes = append(codes, s.Departure.Airport, s.Arrival.Airport)
		}
	}
	if len(codes) == 0 {
		return nil
	}

	names, failed := r.resolveMany(ctx, codes)
	for i := range its {
		for j := range its[i].Segments {
			seg := &its[i].Segments[j]
			seg.Departure.AirportName = names[seg.Departure.Airport]
			seg.Arrival.AirportName = names[seg.Arrival.Airport]
		}
	}

	warnings := make([]models.Warning, 0, len(failed))
	for _, code := range failed {
		warnings = append(warnings, models.Warning{
			Kind:    models.KindEnrichmentDegraded,
			Message: fmt.Sprintf("airport name for %s unavailable", code),
		})
	}
	return warnings
}

func (r *Resolver) resolveMany(ctx context.Context, codes []string) (map[string]*string, []string) {
	names := make(map[string]*string)
	var pending, failed []string

	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if _, seen := names[code]; seen {
			continue
		}
		names[code] = nil

		if cached, ok := r.cache.Get(ctx, code); ok {
			name := string(cached)
			names[code] = &name
			continue
		}
		if name, ok := r.static[code]; ok {
			names[code] = &name
			continue
		}
		if r.lookup == nil {
			continue
		}
		if r.Failed(code) {
			failed = append(failed, code)
			continue
		}
		pending = append(pending, code)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, code := range pending {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()

			name, err := r.lookupOne(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, code)
				return
			}
			names[code] = &name
		}(code)
	}
	wg.Wait()

	sort.Strings(failed)
	return names, failed
}

func (r *Resolver) lookupOne(ctx context.Context, code string) (string, error) {
	if err := lookupGate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer lookupGate.Release(1)

	name, err := r.lookup.LookupAirport(ctx, code)
	if err != nil {
		if ctx.Err() == nil {
			r.failures.Add(code, err.Error())
		}
		r.logger.Warn("airport lookup failed", zap.String("code", code), zap.Error(err))
		return "", err
	}

	if err := r.cache.Set(ctx, code, []byte(name)); err != nil {
		r.logger.Warn("caching airport name failed", zap.String("code", code), zap.Error(err))
	}
	return name, nil
}
