package models

import "time"

// Analysis is the result of one on-demand trace analysis.
type Analysis struct {
	ID           string     `json:"id"`
	Service      string     `json:"service"`
	Statistics   Statistics `json:"statistics"`
	Hotspots     []Hotspot  `json:"hotspots"`
	SlowestSpans []Span     `json:"slowest_spans"`
	Suggestions  []string   `json:"suggestions"`
	Narrative    string     `json:"narrative,omitempty"`
	TimeWindow   TimeWindow `json:"time_window"`
	AnalyzedAt   time.Time  `json:"analyzed_at"`
}

// CallChain is the ordered set of spans that make up one trace.
type CallChain struct {
	TraceID         string             `json:"trace_id"`
	Spans           []Span             `json:"spans"`
	TotalDurationMs float64            `json:"total_duration_ms"`
	CriticalPath    []string           `json:"critical_path"`
	TimeBreakdown   map[string]float64 `json:"time_breakdown"`
}

// TimeWindow represents the time range for queries
type TimeWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
}
