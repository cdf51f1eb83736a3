// Package models defines the shared core data structures used throughout TraceLens.
package models

import (
	"math"
	"strings"
	"time"
)

// Span is one observed unit of traced work as returned by a trace backend.
// Spans are read-only once built; analysis passes never modify them.
type Span struct {
	Operation    string            `json:"operation"`
	DurationMs   float64           `json:"duration_ms"`
	Timestamp    time.Time         `json:"timestamp"`
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Service      string            `json:"service,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// IsSuccessful reports whether the span completed without error.
//
// An empty status defers to the "success" attribute (absent counts as success).
// Otherwise a status starting with "2" (HTTP 2xx) or equal to "0" (gRPC OK) is a success.
func (s Span) IsSuccessful() bool {
	if s.Status == "" {
		v, ok := s.Attributes["success"]
		if !ok || strings.EqualFold(v, "true") {
			return true
		}
	}
	return strings.HasPrefix(s.Status, "2") || s.Status == "0"
}

// IsRoot reports whether the span has no parent.
func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

// Valid reports whether the span can take part in aggregation.
func (s Span) Valid() bool {
	if s.Operation == "" {
		return false
	}
	d := s.DurationMs
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d >= 0
}

// Attribute returns an attribute value, empty string if not found
func (s Span) Attribute(key string) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes[key]
}

// SpanQuery narrows the spans fetched from a backend.
type SpanQuery struct {
	Service         string        `json:"service"`
	OperationPrefix string        `json:"operation_prefix,omitempty"`
	MinDuration     time.Duration `json:"min_duration,omitempty"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	Limit           int           `json:"limit,omitempty"`
	ErrorsOnly      bool          `json:"errors_only,omitempty"`
}

// Window returns the query time range as a duration.
func (q SpanQuery) Window() time.Duration {
	return q.End.Sub(q.Start)
}
