package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/analyzer"
	"github.com/dharmasatrya/flightadvisor/internal/assembler"
	"github.com/dharmasatrya/flightadvisor/internal/cache"
	"github.com/dharmasatrya/flightadvisor/internal/config"
	"github.com/dharmasatrya/flightadvisor/internal/enrichment"
	"github.com/dharmasatrya/flightadvisor/internal/normalize"
	"github.com/dharmasatrya/flightadvisor/internal/providers"
	"github.com/dharmasatrya/flightadvisor/internal/ratelimit"
	"github.com/dharmasatrya/flightadvisor/internal/retry"
	"github.com/dharmasatrya/flightadvisor/internal/validation"
)

type BuildOptions struct {
	// NoAnalysisCache makes every run ask the model again.
	NoAnalysisCache bool
}

// Build wires a Pipeline from configuration. The returned close function
// releases cache connections.
func Build(cfg *config.Config, opts BuildOptions, logger *zap.Logger) (*Pipeline, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var analysisCache, airportCache cache.Cache
	closeFn := func() error { return nil }

	if cfg.CacheEnabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			Prefix:   "flightadvisor:analysis:",
			TTL:      analyzer.DefaultCacheTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis at %s:%s: %w", cfg.RedisHost, cfg.RedisPort, err)
		}
		analysisCache = redisCache
		airportCache = redisCache.Derive("flightadvisor:airport:", enrichment.DefaultCacheTTL)
		closeFn = redisCache.Close
		logger.Info("redis cache enabled",
			zap.String("host", cfg.RedisHost),
			zap.String("port", cfg.RedisPort),
		)
	} else {
		analysisCache = cache.NewMemoryCache(analyzer.DefaultCacheSize, analyzer.DefaultCacheTTL)
		airportCache = cache.NewMemoryCache(enrichment.DefaultCacheSize, enrichment.DefaultCacheTTL)
		logger.Info("in-memory cache enabled")
	}
	if opts.NoAnalysisCache {
		analysisCache = cache.NewNoOpCache()
	}

	limiter := newLimiter(cfg)

	provider := providers.NewAmadeusProvider(providers.AmadeusConfig{
		BaseURL:      cfg.AmadeusBaseURL,
		ClientID:     cfg.AmadeusAPIKey,
		ClientSecret: cfg.AmadeusAPISecret,
		Currency:     cfg.Currency,
		Timeout:      cfg.HTTPTimeout,
		Retry:        retry.DefaultPolicy(),
		Limiter:      limiter,
		Logger:       logger,
	})

	var generator analyzer.Generator
	switch cfg.AIProvider {
	case config.ProviderGemini:
		generator = analyzer.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.AnalyzerTimeout)
	case config.ProviderOpenAI:
		generator = analyzer.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.AnalyzerTimeout)
	}

	var an *analyzer.Analyzer
	if generator != nil {
		an = analyzer.New(analyzer.Config{
			Generator: generator,
			Cache:     analysisCache,
			Currency:  cfg.Currency,
			Timeout:   cfg.AnalyzerTimeout,
			Retry:     retry.DefaultPolicy(),
			Logger:    logger,
		})
	}

	p := New(Config{
		Validator:  validation.New(),
		Provider:   provider,
		Normalizer: normalize.New(cfg.Currency, logger),
		Resolver: enrichment.NewResolver(provider, enrichment.Config{
			Cache:  airportCache,
			Logger: logger,
		}),
		Analyzer:  an,
		Assembler: assembler.New(cfg.DeepLinkBaseURL),
		Logger:    logger,
	})
	return p, closeFn, nil
}

// newLimiter shapes the offers bucket from RATE_LIMIT_*; the locations and
// token buckets use their own settings when those are set.
func newLimiter(cfg *config.Config) *ratelimit.EndpointLimiter {
	perEndpoint := make(map[string]ratelimit.Limit)
	if cfg.LocationsRPS > 0 && cfg.LocationsBurst > 0 {
		perEndpoint[ratelimit.EndpointLocations] = ratelimit.Limit{RequestsPerSecond: cfg.LocationsRPS, Burst: cfg.LocationsBurst}
	}
	if cfg.TokenRPS > 0 && cfg.TokenBurst > 0 {
		perEndpoint[ratelimit.EndpointToken] = ratelimit.Limit{RequestsPerSecond: cfg.TokenRPS, Burst: cfg.TokenBurst}
	}
	return ratelimit.NewEndpointLimiter(ratelimit.Limit{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}, perEndpoint)
}
