// Package remediation provides a fast, rule-based engine for suggesting performance fixes.
package remediation

import (
	"fmt"
	"strings"

	"tracelens/internal/models"
)

// Facts is everything a rule may look at for one hotspot.
type Facts struct {
	Operation       string
	AvgDurationMs   float64
	MaxDurationMs   float64
	ErrorRate       float64
	OccurrenceCount int

	// Class and Method are filled when the operation parses as a code location.
	Class  string
	Method string
}

// HasMethod reports whether the operation was recognised as a class (and possibly method).
func (f Facts) HasMethod() bool {
	return f.Class != ""
}

// Rule produces zero or more recommendations for a hotspot.
type Rule struct {
	Name   string
	Advise func(f Facts) []string
}

// Engine evaluates hotspot facts against an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine initializes the engine with the built-in rules.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewEngineWithRules initializes the engine with a custom rule list.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Recommend runs every rule in order and concatenates their advice.
func (e *Engine) Recommend(f Facts) []string {
	recs := make([]string, 0)
	for _, r := range e.rules {
		recs = append(recs, r.Advise(f)...)
	}
	return recs
}

// DefaultRules returns the built-in rule list.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "latency", Advise: latencyRule},
		{Name: "variance", Advise: varianceRule},
		{Name: "error_rate", Advise: errorRateRule},
		{Name: "data_store", Advise: dataStoreRule},
		{Name: "startup", Advise: startupRule},
		{Name: "outbound_http", Advise: outboundHTTPRule},
		{Name: "http_endpoint", Advise: httpEndpointRule},
	}
}

func latencyRule(f Facts) []string {
	switch {
	case f.AvgDurationMs > 5000:
		recs := []string{"Critical performance issue - operation taking > 5 seconds on average"}
		if f.HasMethod() && f.Method != "" {
			recs = append(recs, fmt.Sprintf("Profile method %s.%s to identify bottlenecks", f.Class, f.Method))
		}
		return recs
	case f.AvgDurationMs > 2000:
		return []string{"Significant delay detected - consider optimization"}
	}
	return nil
}

func varianceRule(f Facts) []string {
	if f.MaxDurationMs > f.AvgDurationMs*3 {
		return []string{
			"High variance in execution time - investigate environmental factors",
			"Consider implementing timeout and retry mechanisms",
		}
	}
	return nil
}

func errorRateRule(f Facts) []string {
	if f.ErrorRate > 0.1 {
		return []string{fmt.Sprintf("High error rate (%.1f%%) - review error handling", f.ErrorRate*100)}
	}
	return nil
}

func dataStoreRule(f Facts) []string {
	if !f.HasMethod() || f.Method == "" {
		return nil
	}
	m := strings.ToLower(f.Method)
	if strings.Contains(m, "database") || strings.Contains(m, "repository") || strings.Contains(m, "findall") {
		return []string{
			"Database operation detected - check query performance and indexes",
			"Consider implementing pagination for findAll operations",
		}
	}
	return nil
}

func startupRule(f Facts) []string {
	if f.HasMethod() && f.Method == "main" {
		return []string{
			"Application startup is slow - review initialization logic",
			"Consider lazy loading of components",
		}
	}
	return nil
}

func outboundHTTPRule(f Facts) []string {
	if f.HasMethod() && f.Method != "" && strings.Contains(f.Operation, "restTemplate") {
		return []string{
			"HTTP client operation - check network latency and timeouts",
			"Consider implementing connection pooling",
		}
	}
	return nil
}

func httpEndpointRule(f Facts) []string {
	if strings.HasPrefix(f.Operation, "GET ") || strings.HasPrefix(f.Operation, "POST ") {
		return []string{
			"HTTP endpoint - consider caching for GET requests",
			"Monitor external service dependencies",
		}
	}
	return nil
}

// Defaults is the advice used when no narrative generator is available for a hotspot.
func Defaults(h models.Hotspot) []string {
	var recs []string

	if h.AvgDurationMs > 5000 {
		recs = append(recs,
			"Consider implementing caching to reduce response time",
			"Review and optimize database queries in this method",
		)
	} else if h.AvgDurationMs > 2000 {
		recs = append(recs,
			"Analyze method for optimization opportunities",
			"Consider adding database indexes if applicable",
		)
	}

	if h.ErrorRate > 0.1 {
		recs = append(recs,
			"Implement retry logic with exponential backoff",
			"Add circuit breaker pattern to prevent cascading failures",
		)
	}

	if h.OccurrenceCount > 100 {
		recs = append(recs, "This is a hot path - prioritize optimization efforts")
	}

	if len(recs) == 0 {
		recs = append(recs,
			"Review method implementation for performance improvements",
			"Consider profiling to identify bottlenecks",
		)
	}

	return recs
}

// Suggest produces analysis-wide suggestions from a ranked hotspot list.
func Suggest(hotspots []models.Hotspot) []string {
	var anyHigh, anyErrors, anySlow bool
	for _, h := range hotspots {
		if h.Severity == models.SeverityHigh || h.Severity == models.SeverityCritical {
			anyHigh = true
		}
		if h.ErrorRate > 0.1 {
			anyErrors = true
		}
		if h.AvgDurationMs > 5000 {
			anySlow = true
		}
	}

	suggestions := make([]string, 0)
	if anyHigh {
		suggestions = append(suggestions, "Critical performance issues detected - immediate action recommended")
	}
	if anyErrors {
		suggestions = append(suggestions, "High error rates detected - review error handling and retry logic")
	}
	if anySlow {
		suggestions = append(suggestions, "Extremely slow operations detected - consider async processing")
	}
	return suggestions
}
