// Package sla compares trace statistics and hotspots against latency and error-rate thresholds.
package sla

import (
	"fmt"
	"log/slog"

	"tracelens/internal/models"
)

// Policy holds the thresholds of one SLA. A zero threshold disables its check.
// Error rates are fractions between 0 and 1.
type Policy struct {
	CriticalDurationMs    float64 `json:"critical_duration_ms"`
	HighDurationMs        float64 `json:"high_duration_ms"`
	CriticalErrorRate     float64 `json:"critical_error_rate"`
	HighErrorRate         float64 `json:"high_error_rate"`
	Percentile            int     `json:"percentile"`
	PercentileThresholdMs float64 `json:"percentile_threshold_ms"`
	MinSampleSize         int     `json:"min_sample_size"`
}

// Evaluator produces violations for a policy.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate runs the aggregate checks followed by the per-hotspot checks.
// Hotspots are updated in place as described on EvaluateHotspots.
func (e *Evaluator) Evaluate(st models.Statistics, hotspots []models.Hotspot, p *Policy) []models.Violation {
	mustPolicy(p)

	violations := e.EvaluateAggregate(st, p)
	violations = append(violations, e.EvaluateHotspots(hotspots, p)...)

	if len(violations) > 0 {
		e.logger.Info("sla violations detected",
			"count", len(violations),
			"spans", st.Count,
			"hotspots", len(hotspots),
		)
	}
	return violations
}

// EvaluateAggregate checks overall latency, the configured percentile and the
// error rate. The error rate is only checked once more than MinSampleSize spans
// were seen.
func (e *Evaluator) EvaluateAggregate(st models.Statistics, p *Policy) []models.Violation {
	mustPolicy(p)
	violations := make([]models.Violation, 0)

	if st.Count == 0 {
		return violations
	}

	if p.CriticalDurationMs > 0 && st.Avg > p.CriticalDurationMs {
		violations = append(violations, models.Violation{
			Type:        models.ViolationResponseTime,
			Severity:    models.SeverityCritical,
			ActualValue: st.Avg,
			Threshold:   p.CriticalDurationMs,
			Message:     fmt.Sprintf("Avg response time %.2fms exceeds %.2fms", st.Avg, p.CriticalDurationMs),
		})
	}

	if p.PercentileThresholdMs > 0 {
		if value, ok := st.Percentile(p.Percentile); ok && value > p.PercentileThresholdMs {
			violations = append(violations, models.Violation{
				Type:        models.ViolationPercentile,
				Severity:    models.SeverityHigh,
				ActualValue: value,
				Threshold:   p.PercentileThresholdMs,
				Message:     fmt.Sprintf("P%d %.2fms exceeds %.2fms", p.Percentile, value, p.PercentileThresholdMs),
			})
		} else if !ok {
			e.logger.Warn("unsupported sla percentile, skipping check", "percentile", p.Percentile)
		}
	}

	if p.CriticalErrorRate > 0 && st.Count > p.MinSampleSize {
		rate := float64(st.ErrorCount) / float64(st.Count)
		if rate > p.CriticalErrorRate {
			violations = append(violations, models.Violation{
				Type:        models.ViolationErrorRate,
				Severity:    models.SeverityCritical,
				ActualValue: rate * 100,
				Threshold:   p.CriticalErrorRate * 100,
				Message:     fmt.Sprintf("Error rate %.2f%% exceeds %.2f%%", rate*100, p.CriticalErrorRate*100),
			})
		}
	}

	return violations
}

// EvaluateHotspots checks each hotspot's latency and error rate. It also
// overwrites each hotspot's severity from the duration thresholds (CRITICAL,
// HIGH, otherwise MEDIUM) and appends one advisory line to every hotspot that
// breached a threshold.
func (e *Evaluator) EvaluateHotspots(hotspots []models.Hotspot, p *Policy) []models.Violation {
	mustPolicy(p)
	violations := make([]models.Violation, 0)

	for i := range hotspots {
		h := &hotspots[i]
		breached := false

		switch {
		case p.CriticalDurationMs > 0 && h.AvgDurationMs > p.CriticalDurationMs:
			h.Severity = models.SeverityCritical
			violations = append(violations, slowMethod(h, models.SeverityCritical, p.CriticalDurationMs))
			breached = true
		case p.HighDurationMs > 0 && h.AvgDurationMs > p.HighDurationMs:
			h.Severity = models.SeverityHigh
			violations = append(violations, slowMethod(h, models.SeverityHigh, p.HighDurationMs))
			breached = true
		default:
			h.Severity = models.SeverityMedium
		}

		if p.CriticalErrorRate > 0 && h.ErrorRate > p.CriticalErrorRate {
			violations = append(violations, models.Violation{
				Type:        models.ViolationHighErrorRate,
				Severity:    models.SeverityCritical,
				Operation:   h.NormalizedOperation,
				ActualValue: h.ErrorRate * 100,
				Threshold:   p.CriticalErrorRate * 100,
				Message: fmt.Sprintf("Method %s error rate %.2f%% exceeds %.2f%%",
					h.NormalizedOperation, h.ErrorRate*100, p.CriticalErrorRate*100),
			})
			breached = true
		}

		if breached {
			h.Recommendations = append(h.Recommendations,
				fmt.Sprintf("SLA breach (%s) - prioritize optimization of this operation", h.Severity))
		}
	}

	return violations
}

func slowMethod(h *models.Hotspot, sev models.Severity, threshold float64) models.Violation {
	return models.Violation{
		Type:        models.ViolationSlowMethod,
		Severity:    sev,
		Operation:   h.NormalizedOperation,
		ActualValue: h.AvgDurationMs,
		Threshold:   threshold,
		Message: fmt.Sprintf("Method %s avg duration %.2fms exceeds %.2fms",
			h.NormalizedOperation, h.AvgDurationMs, threshold),
	}
}

func mustPolicy(p *Policy) {
	if p == nil {
		panic("sla: nil policy")
	}
}
