package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanIsSuccessful(t *testing.T) {
	tests := []struct {
		name     string
		span     Span
		expected bool
	}{
		{"no status no flag", Span{}, true},
		{"success flag true", Span{Attributes: map[string]string{"success": "TRUE"}}, true},
		{"success flag false", Span{Attributes: map[string]string{"success": "false"}}, false},
		{"http 200", Span{Status: "200"}, true},
		{"http 204 with failure flag", Span{Status: "204", Attributes: map[string]string{"success": "false"}}, true},
		{"grpc ok", Span{Status: "0"}, true},
		{"http 500", Span{Status: "500"}, false},
		{"error status", Span{Status: "error"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.span.IsSuccessful())
		})
	}
}

func TestSpanValid(t *testing.T) {
	assert.True(t, Span{Operation: "a", DurationMs: 0}.Valid())
	assert.False(t, Span{DurationMs: 10}.Valid())
	assert.False(t, Span{Operation: "a", DurationMs: -1}.Valid())
	assert.False(t, Span{Operation: "a", DurationMs: math.NaN()}.Valid())
	assert.False(t, Span{Operation: "a", DurationMs: math.Inf(1)}.Valid())
}

func TestSpanAttribute(t *testing.T) {
	span := Span{Attributes: map[string]string{"target": "db"}}

	assert.Equal(t, "db", span.Attribute("target"))
	assert.Equal(t, "", span.Attribute("nonexistent"))
	assert.Equal(t, "", Span{}.Attribute("any"))
}

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 4, SeverityCritical.Weight())
	assert.Equal(t, 3, SeverityHigh.Weight())
	assert.Equal(t, 2, SeverityMedium.Weight())
	assert.Equal(t, 1, SeverityLow.Weight())
	assert.Equal(t, 0, Severity("UNKNOWN").Weight())
}

func TestAlertSeverity(t *testing.T) {
	alert := Alert{
		Violations: []Violation{
			{Type: ViolationPercentile, Severity: SeverityHigh},
			{Type: ViolationResponseTime, Severity: SeverityCritical},
			{Type: ViolationSlowMethod, Severity: SeverityHigh},
		},
	}

	assert.Equal(t, SeverityCritical, alert.Severity())
	assert.Equal(t, 2, alert.CountBySeverity(SeverityHigh))
	assert.Equal(t, Severity(""), (&Alert{}).Severity())
}

func TestAlertInsightsFor(t *testing.T) {
	alert := Alert{Insights: map[string][]string{"svc.Foo": {"add an index"}}}

	assert.Equal(t, []string{"add an index"}, alert.InsightsFor("svc.Foo"))
	assert.Nil(t, alert.InsightsFor("svc.Bar"))
	assert.Nil(t, (&Alert{}).InsightsFor("svc.Foo"))
}
