package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tracelens/internal/config"
	"tracelens/internal/hotspot"
	"tracelens/internal/models"
)

// ErrInvalidRequest marks requests rejected before any backend call.
var ErrInvalidRequest = errors.New("invalid analysis request")

var validate = validator.New()

// AnalysisRequest selects the spans an analysis runs over.
type AnalysisRequest struct {
	Service          string `json:"service" validate:"required"`
	OperationPrefix  string `json:"operation_prefix,omitempty"`
	TimeRange        string `json:"time_range,omitempty"`
	MinDurationMs    int    `json:"min_duration_ms,omitempty" validate:"gte=0"`
	Limit            int    `json:"limit,omitempty" validate:"gte=0"`
	ErrorsOnly       bool   `json:"errors_only,omitempty"`
	IncludeNarrative bool   `json:"include_narrative,omitempty"`

	// ClassName and PackageName narrow the fetched spans after the backend
	// query. ClassName wins when both are set.
	ClassName          string `json:"class_name,omitempty"`
	PackageName        string `json:"package_name,omitempty"`
	IncludeSubPackages bool   `json:"include_sub_packages,omitempty"`

	// Question frames the LLM prompt of error analyses.
	Question string `json:"question,omitempty"`
}

// Scope returns the class or package restriction of the request.
func (r AnalysisRequest) Scope() models.Scope {
	return models.Scope{
		ClassName:          r.ClassName,
		PackageName:        r.PackageName,
		IncludeSubPackages: r.IncludeSubPackages,
	}
}

// buildQuery resolves the request's time range against now.
func (o *Orchestrator) buildQuery(req AnalysisRequest) (models.SpanQuery, models.TimeWindow, error) {
	if err := validate.Struct(req); err != nil {
		return models.SpanQuery{}, models.TimeWindow{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	window := o.cfg.GetDefaultTimeRangeDuration()
	if req.TimeRange != "" {
		d, err := config.ParseTimeRange(req.TimeRange)
		if err != nil || d <= 0 {
			return models.SpanQuery{}, models.TimeWindow{}, fmt.Errorf("%w: time range %q", ErrInvalidRequest, req.TimeRange)
		}
		window = d
	}

	minDuration := req.MinDurationMs
	if minDuration == 0 {
		minDuration = o.cfg.MinDurationMs
	}

	end := o.now()
	start := end.Add(-window)

	q := models.SpanQuery{
		Service:         req.Service,
		OperationPrefix: req.OperationPrefix,
		MinDuration:     time.Duration(minDuration) * time.Millisecond,
		Start:           start,
		End:             end,
		Limit:           req.Limit,
		ErrorsOnly:      req.ErrorsOnly,
	}
	tw := models.TimeWindow{
		Start:    start,
		End:      end,
		Duration: window.String(),
	}
	return q, tw, nil
}

// Query fetches the spans selected by req from the configured backend.
func (o *Orchestrator) Query(ctx context.Context, req AnalysisRequest) ([]models.Span, models.TimeWindow, error) {
	q, tw, err := o.buildQuery(req)
	if err != nil {
		return nil, tw, err
	}

	ctx, span := o.tracer.Start(ctx, "source.QuerySpans", trace.WithAttributes(
		attribute.String("backend", o.source.Name()),
		attribute.String("service", q.Service),
		attribute.String("window", tw.Duration),
	))
	defer span.End()

	spans, err := o.source.QuerySpans(ctx, q)
	if err != nil {
		o.metrics.BackendError(o.source.Name())
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, tw, fmt.Errorf("failed to query %s: %w", o.source.Name(), err)
	}

	fetched := len(spans)
	if scope := req.Scope(); !scope.IsZero() {
		spans = hotspot.FilterByScope(spans, scope)
	}

	span.SetAttributes(attribute.Int("spans", len(spans)))
	o.logger.Debug("spans fetched", "backend", o.source.Name(), "service", q.Service, "count", fetched, "in_scope", len(spans))
	return spans, tw, nil
}
