// Package stats computes latency summaries over span durations.
package stats

import (
	"math"
	"sort"
)

// Summary holds the count, mean, bounds and percentile tiers of a duration sample.
// All values are in milliseconds. The zero value describes an empty sample.
type Summary struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Aggregate summarizes durations. The input slice is not modified.
func Aggregate(durations []float64) Summary {
	n := len(durations)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, durations)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range sorted {
		sum += d
	}

	return Summary{
		Count: n,
		Avg:   sum / float64(n),
		Min:   sorted[0],
		Max:   sorted[n-1],
		P50:   Percentile(sorted, 50),
		P75:   Percentile(sorted, 75),
		P90:   Percentile(sorted, 90),
		P95:   Percentile(sorted, 95),
		P99:   Percentile(sorted, 99),
	}
}

// Percentile returns the p-th percentile of an ascending sample, interpolating
// linearly between the two closest ranks when (p/100)*(n-1) is fractional.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	position := (p / 100) * float64(n-1)
	lower := clampIndex(int(math.Floor(position)), n)
	upper := clampIndex(int(math.Ceil(position)), n)

	if lower == upper {
		return sorted[lower]
	}

	frac := position - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Percentile looks up one of the computed tiers (50, 75, 90, 95 or 99).
func (s Summary) Percentile(p int) (float64, bool) {
	switch p {
	case 50:
		return s.P50, true
	case 75:
		return s.P75, true
	case 90:
		return s.P90, true
	case 95:
		return s.P95, true
	case 99:
		return s.P99, true
	}
	return 0, false
}
