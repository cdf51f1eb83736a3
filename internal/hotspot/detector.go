package hotspot

import (
	"log/slog"
	"sort"

	"tracelens/internal/models"
	"tracelens/internal/remediation"
	"tracelens/internal/stats"
)

const (
	// DefaultMinSamples is the smallest group that can become a hotspot.
	DefaultMinSamples = 2
	// MaxRelatedOperations caps the co-occurring operations listed per hotspot.
	MaxRelatedOperations = 5
)

// severityRule assigns a tier when any of its thresholds is exceeded.
type severityRule struct {
	severity  models.Severity
	errorRate float64
	avgMs     float64
	maxMs     float64
}

// severityRules are checked in order; the first match wins.
var severityRules = []severityRule{
	{severity: models.SeverityHigh, errorRate: 0.10, avgMs: 5000, maxMs: 10000},
	{severity: models.SeverityMedium, errorRate: 0.05, avgMs: 2000, maxMs: 5000},
}

// Classify returns the severity tier for a group's metrics.
func Classify(avgMs, maxMs, errorRate float64) models.Severity {
	for _, r := range severityRules {
		if errorRate > r.errorRate || avgMs > r.avgMs || maxMs > r.maxMs {
			return r.severity
		}
	}
	return models.SeverityLow
}

// Detector turns a span snapshot into a ranked hotspot list.
type Detector struct {
	minSamples int
	engine     *remediation.Engine
	logger     *slog.Logger
}

// NewDetector creates a detector. A minSamples below 1 falls back to DefaultMinSamples.
func NewDetector(minSamples int, engine *remediation.Engine, logger *slog.Logger) *Detector {
	if minSamples < 1 {
		minSamples = DefaultMinSamples
	}
	if engine == nil {
		engine = remediation.NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		minSamples: minSamples,
		engine:     engine,
		logger:     logger,
	}
}

// MinSamples returns the group size below which operations are ignored.
func (d *Detector) MinSamples() int {
	return d.minSamples
}

type spanGroup struct {
	key   string
	spans []models.Span
}

// Detect groups spans by normalized operation and returns one hotspot per
// group of at least MinSamples spans, highest severity first and slower
// operations first within a tier. Malformed spans are ignored.
func (d *Detector) Detect(spans []models.Span) []models.Hotspot {
	valid, keys := d.prepare(spans)

	var order []string
	groups := make(map[string]*spanGroup)
	for i, s := range valid {
		g, ok := groups[keys[i]]
		if !ok {
			g = &spanGroup{key: keys[i]}
			groups[keys[i]] = g
			order = append(order, keys[i])
		}
		g.spans = append(g.spans, s)
	}

	hotspots := make([]models.Hotspot, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g.spans) < d.minSamples {
			continue
		}
		hotspots = append(hotspots, d.build(g, valid, keys))
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		wi, wj := hotspots[i].Severity.Weight(), hotspots[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return hotspots[i].AvgDurationMs > hotspots[j].AvgDurationMs
	})

	d.logger.Debug("hotspot detection complete",
		"spans", len(spans),
		"groups", len(order),
		"hotspots", len(hotspots),
	)

	return hotspots
}

// Profile builds the hotspot of a single operation regardless of MinSamples.
// ok is false when no valid span carries the operation.
func (d *Detector) Profile(op string, spans []models.Span) (h models.Hotspot, ok bool) {
	key := Normalize(op)
	valid, keys := d.prepare(spans)

	g := &spanGroup{key: key}
	for i, s := range valid {
		if keys[i] == key {
			g.spans = append(g.spans, s)
		}
	}
	if len(g.spans) == 0 {
		return models.Hotspot{Operation: key, NormalizedOperation: key}, false
	}
	return d.build(g, valid, keys), true
}

// prepare filters malformed spans and computes each remaining span's key.
func (d *Detector) prepare(spans []models.Span) ([]models.Span, []string) {
	valid := make([]models.Span, 0, len(spans))
	keys := make([]string, 0, len(spans))
	skipped := 0

	for _, s := range spans {
		key := Normalize(s.Operation)
		if !s.Valid() || key == "" {
			skipped++
			continue
		}
		valid = append(valid, s)
		keys = append(keys, key)
	}

	if skipped > 0 {
		d.logger.Warn("skipping malformed spans", "count", skipped)
	}
	return valid, keys
}

func (d *Detector) build(g *spanGroup, all []models.Span, keys []string) models.Hotspot {
	durations := make([]float64, len(g.spans))
	errors := 0
	for i, s := range g.spans {
		durations[i] = s.DurationMs
		if !s.IsSuccessful() {
			errors++
		}
	}

	summary := stats.Aggregate(durations)
	errorRate := float64(errors) / float64(len(g.spans))
	info := ParseMethod(g.key)

	return models.Hotspot{
		Operation:           describeOperation(g.key, info),
		NormalizedOperation: g.key,
		AvgDurationMs:       summary.Avg,
		MaxDurationMs:       summary.Max,
		OccurrenceCount:     len(g.spans),
		ErrorRate:           errorRate,
		Severity:            Classify(summary.Avg, summary.Max, errorRate),
		RelatedOperations:   relatedOperations(g, all, keys),
		Recommendations: d.engine.Recommend(remediation.Facts{
			Operation:       g.key,
			AvgDurationMs:   summary.Avg,
			MaxDurationMs:   summary.Max,
			ErrorRate:       errorRate,
			OccurrenceCount: len(g.spans),
			Class:           info.Class,
			Method:          info.Method,
		}),
	}
}

// relatedOperations lists other operations seen in the same traces as the group.
func relatedOperations(g *spanGroup, all []models.Span, keys []string) []string {
	traces := make(map[string]struct{})
	for _, s := range g.spans {
		if s.TraceID != "" {
			traces[s.TraceID] = struct{}{}
		}
	}

	related := make([]string, 0)
	seen := make(map[string]struct{})
	for i, s := range all {
		if len(related) == MaxRelatedOperations {
			break
		}
		if _, ok := traces[s.TraceID]; !ok || keys[i] == g.key {
			continue
		}
		if _, dup := seen[keys[i]]; dup {
			continue
		}
		seen[keys[i]] = struct{}{}
		related = append(related, keys[i])
	}
	return related
}

// Summarize computes aggregate statistics over all well-formed spans.
func (d *Detector) Summarize(spans []models.Span) models.Statistics {
	durations := make([]float64, 0, len(spans))
	errors := 0
	for _, s := range spans {
		if !s.Valid() {
			continue
		}
		durations = append(durations, s.DurationMs)
		if !s.IsSuccessful() {
			errors++
		}
	}

	st := models.Statistics{
		Summary:    stats.Aggregate(durations),
		ErrorCount: errors,
	}
	if st.Count > 0 {
		st.ErrorRate = float64(errors) / float64(st.Count)
	}
	return st
}
