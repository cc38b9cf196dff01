package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/analyzer"
	"github.com/dharmasatrya/flightadvisor/internal/assembler"
	"github.com/dharmasatrya/flightadvisor/internal/enrichment"
	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/normalize"
	"github.com/dharmasatrya/flightadvisor/internal/providers"
	"github.com/dharmasatrya/flightadvisor/internal/validation"
)

type Config struct {
	Validator  *validation.Validator
	Provider   providers.Provider
	Normalizer *normalize.Normalizer
	Resolver   *enrichment.Resolver
	Analyzer   *analyzer.Analyzer
	Assembler  *assembler.Assembler
	Logger     *zap.Logger
	Now        func() time.Time
}

// Pipeline runs one search end to end: validate, search, normalize, enrich,
// analyze, assemble. Only validation and upstream search failures abort a
// run; later stages degrade into warnings.
type Pipeline struct {
	validator  *validation.Validator
	provider   providers.Provider
	normalizer *normalize.Normalizer
	resolver   *enrichment.Resolver
	analyzer   *analyzer.Analyzer
	assembler  *assembler.Assembler
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg Config) *Pipeline {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New("", cfg.Logger)
	}
	if cfg.Assembler == nil {
		cfg.Assembler = assembler.New("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		validator:  cfg.Validator,
		provider:   cfg.Provider,
		normalizer: cfg.Normalizer,
		resolver:   cfg.Resolver,
		analyzer:   cfg.Analyzer,
		assembler:  cfg.Assembler,
		logger:     logging.Component(cfg.Logger, "pipeline"),
		now:        cfg.Now,
	}
}

// Run validates raw and executes the search. Errors are either an
// *models.InvalidInputError, an upstream error from the taxonomy, or the
// context's error when ctx ends mid-run.
func (p *Pipeline) Run(ctx context.Context, raw map[string]any) (*models.PipelineResponse, error) {
	req, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, req)
}

// Search executes an already validated request.
func (p *Pipeline) Search(ctx context.Context, req models.SearchRequest) (*models.PipelineResponse, error) {
	start := p.now()
	searchID := uuid.NewString()
	logger := p.logger.With(
		zap.String("search_id", searchID),
		zap.String("origin", req.Origin),
		zap.String("destination", req.Destination),
	)

	logger.Info("search started",
		zap.String("departure_date", req.DepartureDate.String()),
		zap.Bool("round_trip", req.IsRoundTrip()),
		zap.Int("passengers", req.Passengers),
	)

	if p.provider == nil {
		return nil, fmt.Errorf("pipeline: no provider configured")
	}

	raw, err := p.provider.Search(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("upstream search failed", zap.String("kind", string(models.KindOf(err))), zap.Error(err))
		return nil, err
	}

	var warnings []models.Warning
	if raw.Partial {
		warnings = append(warnings, models.Warning{
			Kind:    models.KindUpstreamRateLimited,
			Message: fmt.Sprintf("results truncated after %d page(s): provider rate limit reached", raw.Pages),
		})
	}

	its, skipped := p.normalizer.Normalize(req, raw)
	warnings = append(warnings, skipped...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.resolver != nil {
		warnings = append(warnings, p.resolver.Apply(ctx, its)...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	const disabled = "analysis unavailable: analyzer disabled"
	analysis := models.DegradedAnalysis(disabled)
	analysisAvailable := false
	if p.analyzer == nil {
		warnings = append(warnings, models.Warning{Kind: models.KindAnalyzerDegraded, Message: disabled})
	} else {
		res := p.analyzer.Analyze(ctx, req, its)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analysis = res.Response
		analysisAvailable = !res.Degraded
		if res.Degraded {
			warnings = append(warnings, models.Warning{Kind: models.KindAnalyzerDegraded, Message: res.Reason})
		}
	}

	meta := models.Metadata{
		SearchID:          searchID,
		Timestamp:         start.UTC(),
		Source:            p.provider.Name(),
		Partial:           raw.Partial,
		AnalysisAvailable: analysisAvailable,
		Warnings:          warnings,
	}
	resp := p.assembler.Assemble(meta, req, its, analysis)
	resp.Metadata.ExecutionTimeMs = p.now().Sub(start).Milliseconds()

	logger.Info("search finished",
		zap.Int("results", resp.Metadata.ResultCount),
		zap.Int("warnings", len(warnings)),
		zap.Bool("partial", raw.Partial),
		zap.Bool("analysis_available", analysisAvailable),
		zap.Int64("execution_time_ms", resp.Metadata.ExecutionTimeMs),
	)
	return resp, nil
}
