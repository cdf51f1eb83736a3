// Package analyzer turns trace statistics and hotspots into LLM prompts and
// reads recommendations back out of the answers.
package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tracelens/internal/models"
	"tracelens/pkg/llm"
)

// MaxRecommendations caps the advice lines taken from one LLM answer.
const MaxRecommendations = 3

// Analyzer utilizes an underlying LLM provider to explain trace hotspots.
type Analyzer struct {
	provider llm.Provider
}

// New initializes a new Analyzer with the given LLM provider.
func New(provider llm.Provider) *Analyzer {
	return &Analyzer{
		provider: provider,
	}
}

// Provider returns the name of the backing LLM.
func (a *Analyzer) Provider() string {
	return a.provider.Name()
}

// AnalyzeTraces asks for a narrative over a whole analysis.
func (a *Analyzer) AnalyzeTraces(ctx context.Context, st models.Statistics, hotspots []models.Hotspot, spans []models.Span) (string, error) {
	response, err := a.provider.Analyze(ctx, buildTracesPrompt(st, hotspots, spans))
	if err != nil {
		return "", fmt.Errorf("LLM analysis failed: %w", err)
	}
	return response, nil
}

// AnalyzeHotspot asks why a single operation is slow. slowest may be nil.
func (a *Analyzer) AnalyzeHotspot(ctx context.Context, h models.Hotspot, slowest *models.Span, spans []models.Span) (string, error) {
	response, err := a.provider.Analyze(ctx, buildHotspotPrompt(h, slowest, spans))
	if err != nil {
		return "", fmt.Errorf("LLM analysis failed for %s: %w", h.Operation, err)
	}
	return response, nil
}

// AnalyzeErrors asks for root causes behind the failing methods. question is
// the user's framing of the request and may be empty.
func (a *Analyzer) AnalyzeErrors(ctx context.Context, question string, methods map[string]models.ErrorMethodInfo) (string, error) {
	response, err := a.provider.Analyze(ctx, buildErrorsPrompt(question, methods))
	if err != nil {
		return "", fmt.Errorf("LLM error analysis failed: %w", err)
	}
	return response, nil
}

func buildTracesPrompt(st models.Statistics, hotspots []models.Hotspot, spans []models.Span) string {
	var b strings.Builder
	b.WriteString("Analyze the following trace data and provide insights:\n\n")

	b.WriteString("Overall Statistics:\n")
	fmt.Fprintf(&b, "- count: %d\n", st.Count)
	fmt.Fprintf(&b, "- avg: %.2fms\n", st.Avg)
	fmt.Fprintf(&b, "- p95: %.2fms\n", st.P95)
	fmt.Fprintf(&b, "- p99: %.2fms\n", st.P99)
	fmt.Fprintf(&b, "- max: %.2fms\n", st.Max)
	fmt.Fprintf(&b, "- error rate: %.2f%%\n", st.ErrorRate*100)

	b.WriteString("\nActual Traces Found (grouped by operation):\n")
	for _, g := range groupByOperation(spans, 10) {
		fmt.Fprintf(&b, "- %s: %d occurrences, avg %.2fms, max %.2fms\n", g.operation, g.count, g.total/float64(g.count), g.max)
	}

	b.WriteString("\nTop Performance Hotspots:\n")
	if len(hotspots) == 0 {
		b.WriteString("No hotspots detected by the detection algorithm.\n")
	}
	for i, h := range hotspots {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- Operation: %s, Avg Duration: %.2fms, Max Duration: %.2fms, Occurrences: %d, Error Rate: %.1f%%, Severity: %s\n",
			h.Operation, h.AvgDurationMs, h.MaxDurationMs, h.OccurrenceCount, h.ErrorRate*100, h.Severity)
	}

	b.WriteString("\nProvide:\n")
	b.WriteString("1. Summary of the actual operations found\n")
	b.WriteString("2. Key performance issues based on the real data\n")
	b.WriteString("3. Specific optimization recommendations for the actual methods\n")
	b.WriteString("4. Priority order for addressing issues\n")
	return b.String()
}

func buildHotspotPrompt(h models.Hotspot, slowest *models.Span, spans []models.Span) string {
	var b strings.Builder
	b.WriteString("Analyze why this specific method is slow:\n\n")
	fmt.Fprintf(&b, "Method: %s\n", h.Operation)
	if slowest != nil {
		fmt.Fprintf(&b, "Slowest execution: %.2fms\n", slowest.DurationMs)
	}
	if len(spans) > 0 {
		total := 0.0
		for _, s := range spans {
			total += s.DurationMs
		}
		fmt.Fprintf(&b, "Average duration: %.2fms\n", total/float64(len(spans)))
	}
	fmt.Fprintf(&b, "Error rate: %.1f%%\n", h.ErrorRate*100)
	if len(h.RelatedOperations) > 0 {
		fmt.Fprintf(&b, "Seen together with: %s\n", strings.Join(h.RelatedOperations, ", "))
	}

	b.WriteString("\nAnalyze and identify:\n")
	b.WriteString("1. Likely causes of slowness\n")
	b.WriteString("2. Database query issues (N+1 queries, missing indexes, etc.)\n")
	b.WriteString("3. Algorithm complexity problems\n")
	b.WriteString("4. I/O bottlenecks\n")
	b.WriteString("5. Synchronization issues\n")
	b.WriteString("6. Memory allocation patterns\n")
	b.WriteString("\nProvide specific recommendations.\n")
	return b.String()
}

func buildErrorsPrompt(question string, methods map[string]models.ErrorMethodInfo) string {
	var b strings.Builder
	b.WriteString("Analyze the following error data:\n\n")
	if question != "" {
		fmt.Fprintf(&b, "User Query: %s\n\n", question)
	}

	b.WriteString("Methods with Errors:\n")
	if len(methods) == 0 {
		b.WriteString("No failed operations in the selected window.\n")
	}
	for _, m := range topErrorMethods(methods, 10) {
		fmt.Fprintf(&b, "- %s: %d errors, Avg Duration: %.2fms\n", m.MethodName, m.ErrorCount, m.AvgDurationMs)
		if len(m.ErrorTypes) > 0 {
			fmt.Fprintf(&b, "  Error types: %s\n", formatCounts(m.ErrorTypes))
		}
		if len(m.SampleMessages) > 0 {
			fmt.Fprintf(&b, "  Sample message: %s\n", m.SampleMessages[0])
		}
	}

	b.WriteString("\nProvide:\n")
	b.WriteString("1. Root cause analysis of the most common errors\n")
	b.WriteString("2. Pattern identification across error types\n")
	b.WriteString("3. Specific recommendations to fix each error type\n")
	b.WriteString("4. Priority order for addressing these errors\n")
	return b.String()
}

// topErrorMethods orders by error count, then name, and keeps the first limit.
func topErrorMethods(methods map[string]models.ErrorMethodInfo, limit int) []models.ErrorMethodInfo {
	list := make([]models.ErrorMethodInfo, 0, len(methods))
	for _, m := range methods {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ErrorCount != list[j].ErrorCount {
			return list[i].ErrorCount > list[j].ErrorCount
		}
		return list[i].MethodName < list[j].MethodName
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

type operationGroup struct {
	operation string
	count     int
	total     float64
	max       float64
}

// groupByOperation returns the limit busiest operations.
func groupByOperation(spans []models.Span, limit int) []operationGroup {
	idx := make(map[string]int)
	var groups []operationGroup
	for _, s := range spans {
		i, ok := idx[s.Operation]
		if !ok {
			i = len(groups)
			idx[s.Operation] = i
			groups = append(groups, operationGroup{operation: s.Operation})
		}
		g := &groups[i]
		g.count++
		g.total += s.DurationMs
		if s.DurationMs > g.max {
			g.max = s.DurationMs
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].count > groups[j].count
	})
	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

var (
	numbered     = regexp.MustCompile(`^\d+\.`)
	actionWords  = []string{"consider", "implement", "optimize", "add", "use"}
	bulletPrefix = regexp.MustCompile(`^(\d+\.|-|•)`)
)

// ExtractRecommendations picks up to MaxRecommendations advice lines out of free text.
// A line qualifies when it is numbered, bulleted or contains an action word, and is
// longer than 10 characters once its marker is removed.
func ExtractRecommendations(text string) []string {
	recs := make([]string, 0, MaxRecommendations)
	if text == "" {
		return recs
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !isAdviceLine(line) {
			continue
		}
		rec := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if len(rec) <= 10 {
			continue
		}
		recs = append(recs, rec)
		if len(recs) == MaxRecommendations {
			break
		}
	}
	return recs
}

func isAdviceLine(line string) bool {
	if numbered.MatchString(line) || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") {
		return true
	}
	lower := strings.ToLower(line)
	for _, w := range actionWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
