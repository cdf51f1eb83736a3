package models

import "tracelens/internal/stats"

// Severity is the tier assigned to a hotspot or a violation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Weight ranks severities for sorting. Unknown values weigh zero.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Hotspot aggregates all spans of one normalized operation.
type Hotspot struct {
	Operation           string   `json:"operation"`
	NormalizedOperation string   `json:"normalized_operation"`
	AvgDurationMs       float64  `json:"avg_duration_ms"`
	MaxDurationMs       float64  `json:"max_duration_ms"`
	OccurrenceCount     int      `json:"occurrence_count"`
	ErrorRate           float64  `json:"error_rate"`
	Severity            Severity `json:"severity"`
	RelatedOperations   []string `json:"related_operations"`
	Recommendations     []string `json:"recommendations"`
}

// ViolationType tags the threshold a violation breached.
type ViolationType string

const (
	ViolationResponseTime  ViolationType = "RESPONSE_TIME"
	ViolationPercentile    ViolationType = "PERCENTILE"
	ViolationErrorRate     ViolationType = "ERROR_RATE"
	ViolationSlowMethod    ViolationType = "SLOW_METHOD"
	ViolationHighErrorRate ViolationType = "HIGH_ERROR_RATE"
)

// Violation is a single SLA breach with the observed and allowed values.
// Rate values are expressed in percent.
type Violation struct {
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Operation   string        `json:"operation,omitempty"`
	ActualValue float64       `json:"actual_value"`
	Threshold   float64       `json:"threshold"`
	Message     string        `json:"message"`
}

// Statistics summarizes a whole span set.
type Statistics struct {
	stats.Summary
	ErrorCount int     `json:"error_count"`
	ErrorRate  float64 `json:"error_rate"`
}
