package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tracelens/internal/config"
	"tracelens/internal/models"
)

// MarkdownWriter stores one Markdown report per alert under dir.
type MarkdownWriter struct {
	dir string
}

// NewMarkdownWriter creates a writer for dir.
func NewMarkdownWriter(dir string) *MarkdownWriter {
	if dir == "" {
		dir = "./reports"
	}
	return &MarkdownWriter{dir: dir}
}

// NewMarkdownWriterFromConfig constructs a MarkdownWriter using the provided configuration block.
func NewMarkdownWriterFromConfig(cfg config.MarkdownOutputConfig) *MarkdownWriter {
	return NewMarkdownWriter(cfg.OutputDir)
}

// Name returns "markdown".
func (w *MarkdownWriter) Name() string {
	return "markdown"
}

// Path returns the report file used for alert.
func (w *MarkdownWriter) Path(alert *models.Alert) string {
	name := fmt.Sprintf("%s-%s.md", alert.CreatedAt.UTC().Format("20060102-150405"), sanitize(alert.Target))
	return filepath.Join(w.dir, name)
}

// Notify renders the alert and writes it to disk.
func (w *MarkdownWriter) Notify(_ context.Context, alert *models.Alert) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(w.Path(alert), []byte(RenderMarkdown(alert)), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats an alert as a Markdown report.
func RenderMarkdown(alert *models.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# SLA Violation: %s\n", alert.Target)
	fmt.Fprintf(&b, "**Service:** %s\n", alert.Service)
	fmt.Fprintf(&b, "**Date:** %s\n", alert.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Time range:** %s\n", alert.TimeRange)
	fmt.Fprintf(&b, "**Severity:** %s\n\n", alert.Severity())

	b.WriteString("## Statistics\n")
	b.WriteString("| Spans | Avg | P50 | P95 | P99 | Max | Error rate |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	st := alert.Statistics
	fmt.Fprintf(&b, "| %d | %.2fms | %.2fms | %.2fms | %.2fms | %.2fms | %.2f%% |\n\n",
		st.Count, st.Avg, st.P50, st.P95, st.P99, st.Max, st.ErrorRate*100)

	b.WriteString("## Violations\n")
	for _, v := range alert.Violations {
		fmt.Fprintf(&b, "- **%s** `%s`: %s\n", v.Severity, v.Type, v.Message)
	}
	b.WriteString("\n")

	b.WriteString("## Hotspots\n")
	if len(alert.Hotspots) == 0 {
		b.WriteString("No hotspots detected.\n")
	}
	for _, h := range alert.Hotspots {
		fmt.Fprintf(&b, "### %s (%s)\n", h.Operation, h.Severity)
		fmt.Fprintf(&b, "avg %.2fms, max %.2fms, %d calls, %.1f%% errors\n\n",
			h.AvgDurationMs, h.MaxDurationMs, h.OccurrenceCount, h.ErrorRate*100)

		if insights := alert.InsightsFor(h.Operation); len(insights) > 0 {
			b.WriteString("**Insights**\n")
			for _, s := range insights {
				fmt.Fprintf(&b, "- %s\n", s)
			}
			b.WriteString("\n")
		}
		if len(h.Recommendations) > 0 {
			b.WriteString("**Recommendations**\n")
			for _, r := range h.Recommendations {
				fmt.Fprintf(&b, "- %s\n", r)
			}
			b.WriteString("\n")
		}
		if len(h.RelatedOperations) > 0 {
			fmt.Fprintf(&b, "Related: %s\n\n", strings.Join(h.RelatedOperations, ", "))
		}
	}

	fmt.Fprintf(&b, "---\nAlert ID: %s\n", alert.ID)
	return b.String()
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
