// Package orchestrator runs on-demand trace analyses: it fetches spans from the
// configured backend and hands them to the hotspot and statistics passes.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tracelens/internal/analyzer"
	"tracelens/internal/config"
	"tracelens/internal/hotspot"
	"tracelens/internal/metrics"
	"tracelens/internal/models"
	"tracelens/internal/remediation"
	"tracelens/internal/source"
)

// Orchestrator coordinates span retrieval and analysis.
type Orchestrator struct {
	source   source.Source
	detector *hotspot.Detector
	analyzer *analyzer.Analyzer
	metrics  *metrics.Recorder
	cfg      config.AnalysisConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a new orchestrator. an and rec may be nil.
func New(src source.Source, detector *hotspot.Detector, an *analyzer.Analyzer, rec *metrics.Recorder, cfg config.AnalysisConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = hotspot.NewDetector(cfg.MinSamples, nil, logger)
	}
	return &Orchestrator{
		source:   src,
		detector: detector,
		analyzer: an,
		metrics:  rec,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("tracelens/orchestrator"),
		now:      time.Now,
	}
}

// Detector returns the hotspot detector shared with the monitor.
func (o *Orchestrator) Detector() *hotspot.Detector {
	return o.detector
}

// Analyzer returns the narrative generator, nil when no LLM is configured.
func (o *Orchestrator) Analyzer() *analyzer.Analyzer {
	return o.analyzer
}

// Ping checks the trace backend.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.source.Ping(ctx)
}

// Analyze runs a full analysis: statistics, ranked hotspots, slowest spans,
// suggestions and, when requested and available, an LLM narrative.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalysisRequest) (*models.Analysis, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Analyze", trace.WithAttributes(
		attribute.String("service", req.Service),
	))
	defer span.End()

	started := time.Now()
	spans, tw, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	st := o.detector.Summarize(spans)
	hotspots := o.detector.Detect(spans)
	o.metrics.ObserveDetection(req.Service, time.Since(started), len(spans))
	o.metrics.SetHotspots(req.Service, hotspots)

	if top := o.cfg.TopHotspots; top > 0 && len(hotspots) > top {
		hotspots = hotspots[:top]
	}

	result := &models.Analysis{
		ID:           uuid.New().String(),
		Service:      req.Service,
		Statistics:   st,
		Hotspots:     hotspots,
		SlowestSpans: hotspot.SlowestSpans(spans, o.cfg.SlowestSpans),
		Suggestions:  remediation.Suggest(hotspots),
		TimeWindow:   tw,
		AnalyzedAt:   o.now(),
	}

	if req.IncludeNarrative && o.analyzer != nil && len(spans) > 0 {
		narrative, err := o.analyzer.AnalyzeTraces(ctx, st, hotspots, spans)
		if err != nil {
			o.logger.Warn("narrative generation failed", "service", req.Service, "error", err)
		} else {
			result.Narrative = narrative
		}
	}

	span.SetAttributes(attribute.Int("hotspots", len(hotspots)))
	o.logger.Info("analysis complete",
		"id", result.ID,
		"service", req.Service,
		"spans", len(spans),
		"hotspots", len(hotspots),
		"duration", time.Since(started),
	)
	return result, nil
}

// StatisticsReport is the aggregate view of a span set.
type StatisticsReport struct {
	Service    string            `json:"service"`
	Statistics models.Statistics `json:"statistics"`
	TimeWindow models.TimeWindow `json:"time_window"`
}

// Statistics summarizes the spans selected by req.
func (o *Orchestrator) Statistics(ctx context.Context, req AnalysisRequest) (*StatisticsReport, error) {
	spans, tw, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	return &StatisticsReport{
		Service:    req.Service,
		Statistics: o.detector.Summarize(spans),
		TimeWindow: tw,
	}, nil
}

// Chains rebuilds the call chains of the selected spans, slowest chain first.
func (o *Orchestrator) Chains(ctx context.Context, req AnalysisRequest, limit int) ([]models.CallChain, error) {
	spans, _, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	chains := hotspot.CallChains(spans)
	sortChains(chains)
	if limit > 0 && len(chains) > limit {
		chains = chains[:limit]
	}
	return chains, nil
}

// Slowest returns the n longest spans selected by req.
func (o *Orchestrator) Slowest(ctx context.Context, req AnalysisRequest, n int) ([]models.Span, error) {
	spans, _, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = o.cfg.SlowestSpans
	}
	return hotspot.SlowestSpans(spans, n), nil
}

func sortChains(chains []models.CallChain) {
	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].TotalDurationMs > chains[j].TotalDurationMs
	})
}
