// Package metrics exposes Prometheus collectors for hotspot detection and SLA alerting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tracelens/internal/models"
)

const namespace = "tracelens"

// Recorder records analysis and alerting metrics.
type Recorder struct {
	detectionDuration *prometheus.HistogramVec
	spansAnalyzed     *prometheus.CounterVec
	hotspots          *prometheus.GaugeVec
	violations        *prometheus.CounterVec
	alertsSent        *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	backendErrors     *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		detectionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_duration_seconds",
				Help:      "Time spent querying and analyzing spans for one service",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		spansAnalyzed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spans_analyzed_total",
				Help:      "Spans fetched from the trace backend and analyzed",
			},
			[]string{"service"},
		),
		hotspots: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hotspots",
				Help:      "Hotspots found in the latest analysis, by severity",
			},
			[]string{"service", "severity"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sla_violations_total",
				Help:      "SLA violations detected",
			},
			[]string{"target", "type", "severity"},
		),
		alertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_sent_total",
				Help:      "Alerts delivered to notifiers",
			},
			[]string{"target"},
		),
		alertsSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_suppressed_total",
				Help:      "Alerts suppressed by the cooldown window",
			},
			[]string{"target"},
		),
		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_query_errors_total",
				Help:      "Failed span queries, by backend",
			},
			[]string{"backend"},
		),
	}
}

// ObserveDetection records one analysis pass over spanCount spans.
func (r *Recorder) ObserveDetection(service string, d time.Duration, spanCount int) {
	if r == nil {
		return
	}
	r.detectionDuration.WithLabelValues(service).Observe(d.Seconds())
	r.spansAnalyzed.WithLabelValues(service).Add(float64(spanCount))
}

// SetHotspots replaces the per-severity hotspot gauge for service.
func (r *Recorder) SetHotspots(service string, hotspots []models.Hotspot) {
	if r == nil {
		return
	}
	counts := map[models.Severity]int{
		models.SeverityCritical: 0,
		models.SeverityHigh:     0,
		models.SeverityMedium:   0,
		models.SeverityLow:      0,
	}
	for _, h := range hotspots {
		counts[h.Severity]++
	}
	for sev, n := range counts {
		r.hotspots.WithLabelValues(service, string(sev)).Set(float64(n))
	}
}

// RecordViolations counts each violation raised for target.
func (r *Recorder) RecordViolations(target string, violations []models.Violation) {
	if r == nil {
		return
	}
	for _, v := range violations {
		r.violations.WithLabelValues(target, string(v.Type), string(v.Severity)).Inc()
	}
}

// AlertSent counts a delivered alert.
func (r *Recorder) AlertSent(target string) {
	if r == nil {
		return
	}
	r.alertsSent.WithLabelValues(target).Inc()
}

// AlertSuppressed counts an alert held back by the cooldown.
func (r *Recorder) AlertSuppressed(target string) {
	if r == nil {
		return
	}
	r.alertsSuppressed.WithLabelValues(target).Inc()
}

// BackendError counts a failed backend query.
func (r *Recorder) BackendError(backend string) {
	if r == nil {
		return
	}
	r.backendErrors.WithLabelValues(backend).Inc()
}
