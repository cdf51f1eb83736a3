package hotspot

import (
	"fmt"
	"sort"

	"tracelens/internal/models"
)

// SlowestSpans returns up to limit spans ordered by duration, longest first.
// A limit of zero or less returns every span.
func SlowestSpans(spans []models.Span, limit int) []models.Span {
	sorted := make([]models.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DurationMs > sorted[j].DurationMs
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// CallChains groups spans by trace and orders each trace parent before child.
// Spans without a trace ID are ignored. Chains keep first-seen trace order.
func CallChains(spans []models.Span) []models.CallChain {
	var order []string
	byTrace := make(map[string][]models.Span)
	for _, s := range spans {
		if s.TraceID == "" {
			continue
		}
		if _, ok := byTrace[s.TraceID]; !ok {
			order = append(order, s.TraceID)
		}
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	chains := make([]models.CallChain, 0, len(order))
	for _, id := range order {
		sorted := sortChain(byTrace[id])
		var longest float64
		for _, s := range sorted {
			if s.DurationMs > longest {
				longest = s.DurationMs
			}
		}
		chains = append(chains, models.CallChain{
			TraceID:         id,
			Spans:           sorted,
			TotalDurationMs: longest,
			CriticalPath:    CriticalPath(sorted),
			TimeBreakdown:   TimeBreakdown(sorted),
		})
	}
	return chains
}

// TimeBreakdown sums span durations per normalized operation.
func TimeBreakdown(chain []models.Span) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, s := range chain {
		breakdown[Normalize(s.Operation)] += s.DurationMs
	}
	return breakdown
}

// CriticalPath lists "operation (12.34ms)" entries in call order.
func CriticalPath(chain []models.Span) []string {
	sorted := sortChain(chain)
	path := make([]string, 0, len(sorted))
	for _, s := range sorted {
		path = append(path, fmt.Sprintf("%s (%.2fms)", s.Operation, s.DurationMs))
	}
	return path
}

// sortChain walks the tree depth first from the root, visiting children by
// start time. Without a root the chain is ordered by start time. Spans not
// reachable from the root follow in start-time order.
func sortChain(chain []models.Span) []models.Span {
	byStart := make([]models.Span, len(chain))
	copy(byStart, chain)
	sort.SliceStable(byStart, func(i, j int) bool {
		return byStart[i].Timestamp.Before(byStart[j].Timestamp)
	})

	rootIdx := -1
	children := make(map[string][]int)
	for i, s := range byStart {
		if s.IsRoot() {
			if rootIdx < 0 {
				rootIdx = i
			}
			continue
		}
		children[s.ParentSpanID] = append(children[s.ParentSpanID], i)
	}

	if rootIdx < 0 {
		return byStart
	}

	sorted := make([]models.Span, 0, len(byStart))
	visited := make([]bool, len(byStart))

	var walk func(i int)
	walk = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		sorted = append(sorted, byStart[i])
		if byStart[i].SpanID == "" {
			return
		}
		for _, c := range children[byStart[i].SpanID] {
			walk(c)
		}
	}
	walk(rootIdx)

	for i, s := range byStart {
		if !visited[i] {
			sorted = append(sorted, s)
		}
	}
	return sorted
}
