package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tracelens/internal/analyzer"
	"tracelens/internal/hotspot"
	"tracelens/internal/models"
)

// ErrNoAnalyzer is returned by operations that need an LLM when none is configured.
var ErrNoAnalyzer = errors.New("no LLM provider configured")

// maxErrorSpans caps the failed spans echoed back in an error report.
const maxErrorSpans = 50

// ErrorReport is the failure view of a span set.
type ErrorReport struct {
	Service         string                        `json:"service"`
	Scope           models.Scope                  `json:"scope"`
	TotalSpans      int                           `json:"total_spans"`
	ErrorCount      int                           `json:"error_count"`
	ErrorRate       float64                       `json:"error_rate"`
	Methods         []models.ErrorMethodInfo      `json:"methods"`
	Classes         []models.ErrorClassStatistics `json:"classes"`
	FailedSpans     []models.Span                 `json:"failed_spans"`
	Narrative       string                        `json:"narrative,omitempty"`
	Recommendations []string                      `json:"recommendations,omitempty"`
	TimeWindow      models.TimeWindow             `json:"time_window"`
}

// Errors aggregates the failed spans selected by req per method and per class.
// With IncludeNarrative set and an LLM configured the report also carries a
// root cause narrative; an LLM failure is logged and leaves it empty.
func (o *Orchestrator) Errors(ctx context.Context, req AnalysisRequest) (*ErrorReport, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Errors", trace.WithAttributes(
		attribute.String("service", req.Service),
	))
	defer span.End()

	spans, tw, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	failed := hotspot.FailedSpans(spans)
	methods := hotspot.ErrorMethods(failed)

	report := &ErrorReport{
		Service:     req.Service,
		Scope:       req.Scope(),
		TotalSpans:  len(spans),
		ErrorCount:  len(failed),
		Methods:     sortedMethods(methods),
		Classes:     sortedClasses(hotspot.ErrorClasses(failed)),
		FailedSpans: hotspot.SlowestSpans(failed, maxErrorSpans),
		TimeWindow:  tw,
	}
	if len(spans) > 0 {
		report.ErrorRate = float64(len(failed)) / float64(len(spans))
	}

	if req.IncludeNarrative && o.analyzer != nil && len(failed) > 0 {
		narrative, err := o.analyzer.AnalyzeErrors(ctx, req.Question, methods)
		if err != nil {
			o.logger.Warn("error narrative failed", "service", req.Service, "error", err)
		} else {
			report.Narrative = narrative
			report.Recommendations = analyzer.ExtractRecommendations(narrative)
		}
	}

	span.SetAttributes(attribute.Int("errors", len(failed)))
	return report, nil
}

// BottleneckReport lists the bottleneck findings of a span set.
type BottleneckReport struct {
	Service       string             `json:"service"`
	Scope         models.Scope       `json:"scope"`
	AnalyzedSpans int                `json:"analyzed_spans"`
	Bottlenecks   models.Bottlenecks `json:"bottlenecks"`
	TimeWindow    models.TimeWindow  `json:"time_window"`
}

// Bottlenecks runs the variance, trend, spike, chain and total time passes.
func (o *Orchestrator) Bottlenecks(ctx context.Context, req AnalysisRequest) (*BottleneckReport, error) {
	spans, tw, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	return &BottleneckReport{
		Service:       req.Service,
		Scope:         req.Scope(),
		AnalyzedSpans: len(spans),
		Bottlenecks:   hotspot.FindBottlenecks(spans),
		TimeWindow:    tw,
	}, nil
}

// HotspotReport is the ranked hotspot list of a scoped span set.
type HotspotReport struct {
	Service       string            `json:"service"`
	Scope         models.Scope      `json:"scope"`
	AnalyzedSpans int               `json:"analyzed_spans"`
	Hotspots      []models.Hotspot  `json:"hotspots"`
	TimeWindow    models.TimeWindow `json:"time_window"`
}

// Hotspots detects hotspots among the spans selected by req, capped at the
// configured top count.
func (o *Orchestrator) Hotspots(ctx context.Context, req AnalysisRequest) (*HotspotReport, error) {
	spans, tw, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	hotspots := o.detector.Detect(spans)
	if top := o.cfg.TopHotspots; top > 0 && len(hotspots) > top {
		hotspots = hotspots[:top]
	}
	return &HotspotReport{
		Service:       req.Service,
		Scope:         req.Scope(),
		AnalyzedSpans: len(spans),
		Hotspots:      hotspots,
		TimeWindow:    tw,
	}, nil
}

// Catalog lists the code locations seen in a span set.
type Catalog struct {
	Service       string   `json:"service"`
	Classes       []string `json:"classes"`
	Packages      []string `json:"packages"`
	ErrorClasses  []string `json:"error_classes"`
	ErrorPackages []string `json:"error_packages"`
}

// Catalog returns the distinct classes and packages of the selected spans and
// those of the failed ones.
func (o *Orchestrator) Catalog(ctx context.Context, req AnalysisRequest) (*Catalog, error) {
	spans, _, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	failed := hotspot.FailedSpans(spans)
	return &Catalog{
		Service:       req.Service,
		Classes:       hotspot.ClassNames(spans),
		Packages:      hotspot.PackageNames(spans),
		ErrorClasses:  hotspot.ClassNames(failed),
		ErrorPackages: hotspot.PackageNames(failed),
	}, nil
}

// OperationAnalysis is the LLM explanation of one operation.
type OperationAnalysis struct {
	Operation       string         `json:"operation"`
	Observed        bool           `json:"observed"`
	Hotspot         models.Hotspot `json:"hotspot"`
	Analysis        string         `json:"analysis"`
	Recommendations []string       `json:"recommendations"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
}

// AnalyzeOperation asks the LLM why one operation is slow. The operation is
// profiled from the spans selected by req; when it was not observed the LLM
// still gets its name. Unlike narratives, an LLM failure is returned.
func (o *Orchestrator) AnalyzeOperation(ctx context.Context, req AnalysisRequest, operation string) (*OperationAnalysis, error) {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		return nil, fmt.Errorf("%w: operation is required", ErrInvalidRequest)
	}
	if o.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.AnalyzeOperation", trace.WithAttributes(
		attribute.String("service", req.Service),
		attribute.String("operation", operation),
	))
	defer span.End()

	spans, _, err := o.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	h, observed := o.detector.Profile(operation, spans)
	var own []models.Span
	key := hotspot.Normalize(operation)
	for _, s := range spans {
		if s.Valid() && hotspot.Normalize(s.Operation) == key {
			own = append(own, s)
		}
	}
	var slowest *models.Span
	if top := hotspot.SlowestSpans(own, 1); len(top) == 1 {
		slowest = &top[0]
	}

	text, err := o.analyzer.AnalyzeHotspot(ctx, h, slowest, own)
	if err != nil {
		return nil, err
	}

	o.logger.Info("operation analyzed", "service", req.Service, "operation", key, "samples", len(own))
	return &OperationAnalysis{
		Operation:       key,
		Observed:        observed,
		Hotspot:         h,
		Analysis:        text,
		Recommendations: analyzer.ExtractRecommendations(text),
		AnalyzedAt:      o.now(),
	}, nil
}

func sortedMethods(methods map[string]models.ErrorMethodInfo) []models.ErrorMethodInfo {
	list := make([]models.ErrorMethodInfo, 0, len(methods))
	for _, m := range methods {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ErrorCount != list[j].ErrorCount {
			return list[i].ErrorCount > list[j].ErrorCount
		}
		return list[i].MethodName < list[j].MethodName
	})
	return list
}

func sortedClasses(classes map[string]models.ErrorClassStatistics) []models.ErrorClassStatistics {
	list := make([]models.ErrorClassStatistics, 0, len(classes))
	for _, c := range classes {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalErrors != list[j].TotalErrors {
			return list[i].TotalErrors > list[j].TotalErrors
		}
		return list[i].ClassName < list[j].ClassName
	})
	return list
}
