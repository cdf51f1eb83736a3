package hotspot

import (
	"strconv"
	"unicode/utf8"

	"tracelens/internal/models"
)

const (
	// MaxSampleMessages caps the distinct messages kept per method.
	MaxSampleMessages = 5
	maxMessageLength  = 200
	unknownClass      = "Unknown"
)

var (
	errorTypeAttributes = []string{"exception.type", "error.type"}
	messageAttributes   = []string{"exception.message", "error.message", "error_message", "message"}
)

// FailedSpans returns the well-formed spans that did not succeed.
func FailedSpans(spans []models.Span) []models.Span {
	failed := make([]models.Span, 0)
	for _, s := range spans {
		if s.Valid() && !s.IsSuccessful() {
			failed = append(failed, s)
		}
	}
	return failed
}

// ErrorMethods groups failed spans by normalized operation. Successful spans
// are ignored, so callers may pass an unfiltered span set.
func ErrorMethods(spans []models.Span) map[string]models.ErrorMethodInfo {
	type acc struct {
		info  models.ErrorMethodInfo
		total float64
		seen  map[string]struct{}
	}

	groups := make(map[string]*acc)
	for _, s := range FailedSpans(spans) {
		key := Normalize(s.Operation)
		g, ok := groups[key]
		if !ok {
			g = &acc{
				info: models.ErrorMethodInfo{
					MethodName:     key,
					ErrorTypes:     make(map[string]int),
					SampleMessages: make([]string, 0),
				},
				seen: make(map[string]struct{}),
			}
			groups[key] = g
		}

		g.info.ErrorCount++
		g.total += s.DurationMs
		if s.Timestamp.After(g.info.LastErrorTime) {
			g.info.LastErrorTime = s.Timestamp
		}
		for _, t := range errorTypes(s) {
			g.info.ErrorTypes[t]++
		}
		if msg := errorMessage(s); msg != "" && len(g.info.SampleMessages) < MaxSampleMessages {
			if _, dup := g.seen[msg]; !dup {
				g.seen[msg] = struct{}{}
				g.info.SampleMessages = append(g.info.SampleMessages, msg)
			}
		}
	}

	result := make(map[string]models.ErrorMethodInfo, len(groups))
	for key, g := range groups {
		g.info.AvgDurationMs = g.total / float64(g.info.ErrorCount)
		result[key] = g.info
	}
	return result
}

// ErrorClasses groups failed spans by fully qualified class. Spans whose
// operation names no class are collected under "Unknown".
func ErrorClasses(spans []models.Span) map[string]models.ErrorClassStatistics {
	type acc struct {
		stats   models.ErrorClassStatistics
		total   float64
		methods map[string]struct{}
	}

	groups := make(map[string]*acc)
	for _, s := range FailedSpans(spans) {
		op := Normalize(s.Operation)
		info := ParseMethod(op)
		class := info.FullClass
		if class == "" {
			class = unknownClass
		}

		g, ok := groups[class]
		if !ok {
			g = &acc{
				stats: models.ErrorClassStatistics{
					ClassName:   class,
					PackageName: info.Package,
					ErrorTypes:  make(map[string]int),
				},
				methods: make(map[string]struct{}),
			}
			groups[class] = g
		}

		g.stats.TotalErrors++
		g.total += s.DurationMs
		g.methods[op] = struct{}{}
		for _, t := range errorTypes(s) {
			g.stats.ErrorTypes[t]++
		}
	}

	result := make(map[string]models.ErrorClassStatistics, len(groups))
	for class, g := range groups {
		g.stats.UniqueMethodsWithErrors = len(g.methods)
		g.stats.AvgDurationMs = g.total / float64(g.stats.TotalErrors)
		result[class] = g.stats
	}
	return result
}

// errorTypes names the failure kinds of one failed span: the recorded
// exception type, then the status. A failure with neither counts as
// "Failed Operation".
func errorTypes(s models.Span) []string {
	types := make([]string, 0, 2)
	for _, key := range errorTypeAttributes {
		if v := s.Attribute(key); v != "" {
			types = append(types, v)
			break
		}
	}

	switch {
	case s.Status == "":
		if len(types) == 0 {
			types = append(types, "Failed Operation")
		}
	case isNumeric(s.Status):
		types = append(types, "HTTP "+s.Status)
	default:
		types = append(types, "Status "+s.Status)
	}
	return types
}

func errorMessage(s models.Span) string {
	for _, key := range messageAttributes {
		if v := s.Attribute(key); v != "" {
			return truncate(v, maxMessageLength)
		}
	}
	return ""
}

func isNumeric(v string) bool {
	_, err := strconv.Atoi(v)
	return err == nil
}

func truncate(v string, n int) string {
	if utf8.RuneCountInString(v) <= n {
		return v
	}
	r := []rune(v)
	return string(r[:n])
}
