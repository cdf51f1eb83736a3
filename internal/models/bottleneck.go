package models

// Bottlenecks groups the patterns found by a bottleneck pass. Every list is
// capped and ordered worst first.
type Bottlenecks struct {
	HighVariance         []VarianceFinding    `json:"high_variance"`
	DegradingPerformance []DegradationFinding `json:"degrading_performance"`
	PerformanceSpikes    []SpikeFinding       `json:"performance_spikes"`
	ExpensiveCallChains  []ChainCost          `json:"expensive_call_chains"`
	TotalTimeConsumers   []TimeConsumer       `json:"total_time_consumers"`
}

// VarianceFinding is an operation whose durations are unstable.
type VarianceFinding struct {
	Operation              string  `json:"operation"`
	AvgDurationMs          float64 `json:"avg_duration_ms"`
	StdDeviationMs         float64 `json:"std_deviation_ms"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	MinDurationMs          float64 `json:"min_duration_ms"`
	MaxDurationMs          float64 `json:"max_duration_ms"`
	SampleCount            int     `json:"sample_count"`
}

// DegradationFinding is an operation that gets slower over time. The rate is
// the added milliseconds per call.
type DegradationFinding struct {
	Operation       string  `json:"operation"`
	DegradationRate float64 `json:"degradation_rate"`
	StartAvgMs      float64 `json:"start_avg_ms"`
	EndAvgMs        float64 `json:"end_avg_ms"`
	SampleCount     int     `json:"sample_count"`
}

// SpikeFinding is an operation with calls far above its average.
type SpikeFinding struct {
	Operation     string  `json:"operation"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	SpikeCount    int     `json:"spike_count"`
	MaxSpikeMs    float64 `json:"max_spike_ms"`
	SpikeRatio    float64 `json:"spike_ratio"`
}

// ChainCost is the summed span time of one trace.
type ChainCost struct {
	TraceID         string   `json:"trace_id"`
	TotalDurationMs float64  `json:"total_duration_ms"`
	SpanCount       int      `json:"span_count"`
	Operations      []string `json:"operations"`
	RootOperation   string   `json:"root_operation,omitempty"`
}

// TimeConsumer is an operation ranked by the total time spent in it.
type TimeConsumer struct {
	Operation     string  `json:"operation"`
	TotalTimeMs   float64 `json:"total_time_ms"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	CallCount     int     `json:"call_count"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}
