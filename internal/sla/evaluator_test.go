package sla

import (
	"testing"

	"tracelens/internal/models"
	"tracelens/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPolicy() *Policy {
	return &Policy{
		CriticalDurationMs:    5000,
		HighDurationMs:        2000,
		CriticalErrorRate:     0.1,
		HighErrorRate:         0.05,
		Percentile:            95,
		PercentileThresholdMs: 3000,
		MinSampleSize:         10,
	}
}

func statistics(avg, p95 float64, count, errors int) models.Statistics {
	return models.Statistics{
		Summary:    stats.Summary{Count: count, Avg: avg, P95: p95},
		ErrorCount: errors,
	}
}

func TestEvaluateAggregateResponseTimeBoundary(t *testing.T) {
	e := NewEvaluator(nil)
	p := defaultPolicy()

	assert.Empty(t, e.EvaluateAggregate(statistics(5000, 0, 5, 0), p))

	v := e.EvaluateAggregate(statistics(5000.01, 0, 5, 0), p)
	require.Len(t, v, 1)
	assert.Equal(t, models.ViolationResponseTime, v[0].Type)
	assert.Equal(t, models.SeverityCritical, v[0].Severity)
	assert.Equal(t, 5000.01, v[0].ActualValue)
	assert.Equal(t, 5000.0, v[0].Threshold)
	assert.Equal(t, "Avg response time 5000.01ms exceeds 5000.00ms", v[0].Message)
}

func TestEvaluateAggregatePercentile(t *testing.T) {
	e := NewEvaluator(nil)
	p := defaultPolicy()

	v := e.EvaluateAggregate(statistics(100, 3500, 5, 0), p)
	require.Len(t, v, 1)
	assert.Equal(t, models.ViolationPercentile, v[0].Type)
	assert.Equal(t, models.SeverityHigh, v[0].Severity)
	assert.Equal(t, "P95 3500.00ms exceeds 3000.00ms", v[0].Message)

	p.Percentile = 99
	assert.Empty(t, e.EvaluateAggregate(statistics(100, 3500, 5, 0), p))

	p.Percentile = 42
	assert.Empty(t, e.EvaluateAggregate(statistics(100, 3500, 5, 0), p))
}

func TestEvaluateAggregateErrorRate(t *testing.T) {
	e := NewEvaluator(nil)
	p := defaultPolicy()

	// at the minimum sample size the rate is not trusted yet
	assert.Empty(t, e.EvaluateAggregate(statistics(100, 100, 10, 5), p))

	v := e.EvaluateAggregate(statistics(100, 100, 20, 5), p)
	require.Len(t, v, 1)
	assert.Equal(t, models.ViolationErrorRate, v[0].Type)
	assert.Equal(t, models.SeverityCritical, v[0].Severity)
	assert.Equal(t, 25.0, v[0].ActualValue)
	assert.Equal(t, 10.0, v[0].Threshold)
	assert.Equal(t, "Error rate 25.00% exceeds 10.00%", v[0].Message)
}

func TestEvaluateAggregateUnsetThresholds(t *testing.T) {
	e := NewEvaluator(nil)

	v := e.EvaluateAggregate(statistics(99999, 99999, 1000, 1000), &Policy{})
	assert.NotNil(t, v)
	assert.Empty(t, v)
}

func TestEvaluateAggregateEmptyStatistics(t *testing.T) {
	assert.Empty(t, NewEvaluator(nil).EvaluateAggregate(models.Statistics{}, defaultPolicy()))
}

func TestEvaluateHotspots(t *testing.T) {
	e := NewEvaluator(nil)
	hotspots := []models.Hotspot{
		{NormalizedOperation: "svc.Foo", AvgDurationMs: 6000, ErrorRate: 1.0 / 3, Severity: models.SeverityHigh},
		{NormalizedOperation: "svc.Bar", AvgDurationMs: 2500, Severity: models.SeverityMedium},
		{NormalizedOperation: "svc.Baz", AvgDurationMs: 10, Severity: models.SeverityLow, Recommendations: []string{"keep"}},
	}

	v := e.EvaluateHotspots(hotspots, defaultPolicy())
	require.Len(t, v, 3)

	assert.Equal(t, models.ViolationSlowMethod, v[0].Type)
	assert.Equal(t, models.SeverityCritical, v[0].Severity)
	assert.Equal(t, "svc.Foo", v[0].Operation)
	assert.Equal(t, 6000.0, v[0].ActualValue)
	assert.Equal(t, 5000.0, v[0].Threshold)
	assert.Equal(t, "Method svc.Foo avg duration 6000.00ms exceeds 5000.00ms", v[0].Message)

	assert.Equal(t, models.ViolationHighErrorRate, v[1].Type)
	assert.Equal(t, models.SeverityCritical, v[1].Severity)
	assert.Equal(t, "Method svc.Foo error rate 33.33% exceeds 10.00%", v[1].Message)

	assert.Equal(t, models.ViolationSlowMethod, v[2].Type)
	assert.Equal(t, models.SeverityHigh, v[2].Severity)
	assert.Equal(t, 2000.0, v[2].Threshold)

	assert.Equal(t, models.SeverityCritical, hotspots[0].Severity)
	assert.Equal(t, models.SeverityHigh, hotspots[1].Severity)
	assert.Equal(t, models.SeverityMedium, hotspots[2].Severity)

	assert.Len(t, hotspots[0].Recommendations, 1)
	assert.Len(t, hotspots[1].Recommendations, 1)
	assert.Equal(t, []string{"keep"}, hotspots[2].Recommendations)
}

func TestEvaluateCombinesModes(t *testing.T) {
	e := NewEvaluator(nil)
	hotspots := []models.Hotspot{{NormalizedOperation: "svc.Foo", AvgDurationMs: 6000}}

	v := e.Evaluate(statistics(6000, 11000, 3, 1), hotspots, defaultPolicy())
	require.Len(t, v, 3)
	assert.Equal(t, models.ViolationResponseTime, v[0].Type)
	assert.Equal(t, models.ViolationPercentile, v[1].Type)
	assert.Equal(t, models.ViolationSlowMethod, v[2].Type)
}

func TestNilPolicyPanics(t *testing.T) {
	e := NewEvaluator(nil)
	assert.Panics(t, func() { e.Evaluate(models.Statistics{}, nil, nil) })
	assert.Panics(t, func() { e.EvaluateHotspots(nil, nil) })
}
