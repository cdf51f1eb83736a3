// Package mcp exposes hotspot detection and SLA checks as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tracelens/internal/models"
	"tracelens/internal/monitor"
	"tracelens/internal/orchestrator"
)

// Server defines the core MCP capability layer, exposing native handler functions to connected AI agents.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	monitor      *monitor.Monitor
}

// New creates a new MCP server wrapper
func New(orch *orchestrator.Orchestrator, mon *monitor.Monitor) *Server {
	return &Server{
		orchestrator: orch,
		monitor:      mon,
	}
}

// RegisterTools registers the TraceLens tools with the MCP server
func (s *Server) RegisterTools(mcpServer *server.MCPServer) {
	hotspotsTool := mcp.NewTool("detect_hotspots",
		mcp.WithDescription("Finds the slowest and most error-prone operations of a service, ranked by severity."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
		mcp.WithString("operation_prefix", mcp.Description("Only operations starting with this prefix")),
		mcp.WithString("class_name", mcp.Description("Only operations of this class")),
		mcp.WithString("package_name", mcp.Description("Only operations of classes in this package")),
		mcp.WithBoolean("include_sub_packages", mcp.Description("Let package_name match sub-packages too")),
		mcp.WithNumber("limit", mcp.Description("Maximum hotspots to report")),
	)
	mcpServer.AddTool(hotspotsTool, s.HandleDetectHotspots)

	statsTool := mcp.NewTool("get_trace_statistics",
		mcp.WithDescription("Returns span count, latency percentiles and error rate for a service."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
		mcp.WithString("operation_prefix", mcp.Description("Only operations starting with this prefix")),
	)
	mcpServer.AddTool(statsTool, s.HandleGetTraceStatistics)

	slaTool := mcp.NewTool("check_sla",
		mcp.WithDescription("Checks a configured alert target against its SLA now. Alerts respect the cooldown window."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Name of the configured alert target")),
	)
	mcpServer.AddTool(slaTool, s.HandleCheckSLA)

	errorsTool := mcp.NewTool("analyze_errors",
		mcp.WithDescription("Groups failed operations by method and class. With explain set, an LLM suggests root causes."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
		mcp.WithString("class_name", mcp.Description("Only operations of this class")),
		mcp.WithString("package_name", mcp.Description("Only operations of classes in this package")),
		mcp.WithBoolean("include_sub_packages", mcp.Description("Let package_name match sub-packages too")),
		mcp.WithString("question", mcp.Description("What the user wants to know about the errors")),
		mcp.WithBoolean("explain", mcp.Description("Ask the configured LLM for a root cause analysis")),
	)
	mcpServer.AddTool(errorsTool, s.HandleAnalyzeErrors)

	bottlenecksTool := mcp.NewTool("find_bottlenecks",
		mcp.WithDescription("Finds unstable, degrading and spiking operations plus the most expensive traces and total time consumers."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
		mcp.WithString("class_name", mcp.Description("Only operations of this class")),
		mcp.WithString("package_name", mcp.Description("Only operations of classes in this package")),
		mcp.WithBoolean("include_sub_packages", mcp.Description("Let package_name match sub-packages too")),
	)
	mcpServer.AddTool(bottlenecksTool, s.HandleFindBottlenecks)

	operationTool := mcp.NewTool("analyze_operation",
		mcp.WithDescription("Asks the configured LLM why one operation is slow, using its observed latency and error figures."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Operation name, e.g. com.shop.Cart.load")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
	)
	mcpServer.AddTool(operationTool, s.HandleAnalyzeOperation)

	locationsTool := mcp.NewTool("list_code_locations",
		mcp.WithDescription("Lists the classes and packages seen in a service's traces and those with failures."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Name of the traced service")),
		mcp.WithString("time_range", mcp.Description("Lookback window such as 15m, 1h or 1d")),
	)
	mcpServer.AddTool(locationsTool, s.HandleListCodeLocations)
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.Params.Arguments[name].(string)
	return strings.TrimSpace(v)
}

func numberArg(req mcp.CallToolRequest, name string, def int) int {
	if v, ok := req.Params.Arguments[name].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func boolArg(req mcp.CallToolRequest, name string) bool {
	v, _ := req.Params.Arguments[name].(bool)
	return v
}

func analysisRequest(req mcp.CallToolRequest) orchestrator.AnalysisRequest {
	return orchestrator.AnalysisRequest{
		Service:            stringArg(req, "service"),
		TimeRange:          stringArg(req, "time_range"),
		OperationPrefix:    stringArg(req, "operation_prefix"),
		ClassName:          stringArg(req, "class_name"),
		PackageName:        stringArg(req, "package_name"),
		IncludeSubPackages: boolArg(req, "include_sub_packages"),
	}
}

// HandleDetectHotspots runs an analysis and reports the ranked hotspots.
func (s *Server) HandleDetectHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}

	result, err := s.orchestrator.Analyze(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	limit := numberArg(request, "limit", 5)
	var b strings.Builder
	fmt.Fprintf(&b, "Hotspots for %s (last %s, %d spans):\n", req.Service, result.TimeWindow.Duration, result.Statistics.Count)
	if len(result.Hotspots) == 0 {
		b.WriteString("No hotspots detected.\n")
	}
	for i, h := range result.Hotspots {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "%d. [%s] %s: avg %.2fms, max %.2fms, %d calls, %.1f%% errors\n",
			i+1, h.Severity, h.Operation, h.AvgDurationMs, h.MaxDurationMs, h.OccurrenceCount, h.ErrorRate*100)
		for _, r := range h.Recommendations {
			fmt.Fprintf(&b, "   - %s\n", r)
		}
	}
	if len(result.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, sug := range result.Suggestions {
			fmt.Fprintf(&b, "- %s\n", sug)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

// HandleGetTraceStatistics reports aggregate latency and error figures.
func (s *Server) HandleGetTraceStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}

	report, err := s.orchestrator.Statistics(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := report.Statistics
	text := fmt.Sprintf("Statistics for %s (last %s):\n- Spans: %d\n- Avg: %.2fms\n- Min/Max: %.2fms / %.2fms\n- P50/P90/P95/P99: %.2f / %.2f / %.2f / %.2f ms\n- Errors: %d (%.2f%%)",
		req.Service, report.TimeWindow.Duration, st.Count, st.Avg, st.Min, st.Max, st.P50, st.P90, st.P95, st.P99, st.ErrorCount, st.ErrorRate*100)

	return mcp.NewToolResultText(text), nil
}

// HandleCheckSLA runs the SLA check of one configured target.
func (s *Server) HandleCheckSLA(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.monitor == nil {
		return mcp.NewToolResultError("alerting is not configured"), nil
	}
	name := stringArg(request, "target")
	if name == "" {
		return mcp.NewToolResultError("target is required"), nil
	}

	result, err := s.monitor.CheckByName(ctx, name)
	if result == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCheck(result, err)), nil
}

// HandleAnalyzeErrors reports failing methods and classes, optionally with an
// LLM root cause analysis.
func (s *Server) HandleAnalyzeErrors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}
	req.Question = stringArg(request, "question")
	req.IncludeNarrative = boolArg(request, "explain")
	if req.IncludeNarrative && s.orchestrator.Analyzer() == nil {
		return mcp.NewToolResultError("explain needs an LLM provider; none is configured"), nil
	}

	report, err := s.orchestrator.Errors(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error analysis failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatErrors(report)), nil
}

// HandleFindBottlenecks reports the bottleneck findings of a service.
func (s *Server) HandleFindBottlenecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}

	report, err := s.orchestrator.Bottlenecks(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Bottleneck analysis failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatBottlenecks(report)), nil
}

// HandleAnalyzeOperation asks the LLM about a single operation.
func (s *Server) HandleAnalyzeOperation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}
	op := stringArg(request, "operation")
	if op == "" {
		return mcp.NewToolResultError("operation is required"), nil
	}

	result, err := s.orchestrator.AnalyzeOperation(ctx, req, op)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Operation analysis failed: %v", err)), nil
	}

	var b strings.Builder
	if result.Observed {
		h := result.Hotspot
		fmt.Fprintf(&b, "%s [%s]: avg %.2fms, max %.2fms, %d calls, %.1f%% errors\n\n",
			result.Operation, h.Severity, h.AvgDurationMs, h.MaxDurationMs, h.OccurrenceCount, h.ErrorRate*100)
	} else {
		fmt.Fprintf(&b, "%s was not observed in the selected window.\n\n", result.Operation)
	}
	b.WriteString(result.Analysis)
	return mcp.NewToolResultText(b.String()), nil
}

// HandleListCodeLocations lists classes and packages seen in the traces.
func (s *Server) HandleListCodeLocations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := analysisRequest(request)
	if req.Service == "" {
		return mcp.NewToolResultError("service is required"), nil
	}

	c, err := s.orchestrator.Catalog(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	writeList(&b, "Classes", c.Classes)
	writeList(&b, "Packages", c.Packages)
	writeList(&b, "Classes with errors", c.ErrorClasses)
	writeList(&b, "Packages with errors", c.ErrorPackages)
	return mcp.NewToolResultText(b.String()), nil
}

func writeList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func formatErrors(r *orchestrator.ErrorReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Errors for %s (last %s): %d of %d spans failed (%.2f%%)\n",
		r.Service, r.TimeWindow.Duration, r.ErrorCount, r.TotalSpans, r.ErrorRate*100)
	if r.ErrorCount == 0 {
		b.WriteString("No failed operations.\n")
		return b.String()
	}

	b.WriteString("\nMethods:\n")
	for i, m := range r.Methods {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "- %s: %d errors, avg %.2fms\n", m.MethodName, m.ErrorCount, m.AvgDurationMs)
		for _, msg := range m.SampleMessages {
			fmt.Fprintf(&b, "   > %s\n", msg)
		}
	}

	b.WriteString("\nClasses:\n")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "- %s: %d errors in %d methods\n", c.ClassName, c.TotalErrors, c.UniqueMethodsWithErrors)
	}

	if r.Narrative != "" {
		b.WriteString("\nAnalysis:\n")
		b.WriteString(r.Narrative)
		b.WriteString("\n")
	}
	return b.String()
}

func formatBottlenecks(r *orchestrator.BottleneckReport) string {
	bn := r.Bottlenecks
	var b strings.Builder
	fmt.Fprintf(&b, "Bottlenecks for %s (last %s, %d spans):\n", r.Service, r.TimeWindow.Duration, r.AnalyzedSpans)

	if len(bn.HighVariance) > 0 {
		b.WriteString("\nUnstable latency:\n")
		for _, v := range bn.HighVariance {
			fmt.Fprintf(&b, "- %s: avg %.2fms, stddev %.2fms (cv %.2f)\n", v.Operation, v.AvgDurationMs, v.StdDeviationMs, v.CoefficientOfVariation)
		}
	}
	if len(bn.DegradingPerformance) > 0 {
		b.WriteString("\nDegrading:\n")
		for _, d := range bn.DegradingPerformance {
			fmt.Fprintf(&b, "- %s: %.2fms -> %.2fms (+%.2fms per call)\n", d.Operation, d.StartAvgMs, d.EndAvgMs, d.DegradationRate)
		}
	}
	if len(bn.PerformanceSpikes) > 0 {
		b.WriteString("\nSpikes:\n")
		for _, sp := range bn.PerformanceSpikes {
			fmt.Fprintf(&b, "- %s: %d spikes, worst %.2fms (%.1fx avg)\n", sp.Operation, sp.SpikeCount, sp.MaxSpikeMs, sp.SpikeRatio)
		}
	}
	if len(bn.ExpensiveCallChains) > 0 {
		b.WriteString("\nMost expensive traces:\n")
		for _, c := range bn.ExpensiveCallChains {
			fmt.Fprintf(&b, "- %s: %.2fms over %d spans (root %s)\n", c.TraceID, c.TotalDurationMs, c.SpanCount, c.RootOperation)
		}
	}
	if len(bn.TotalTimeConsumers) > 0 {
		b.WriteString("\nTotal time:\n")
		for _, tc := range bn.TotalTimeConsumers {
			fmt.Fprintf(&b, "- %s: %.2fms over %d calls\n", tc.Operation, tc.TotalTimeMs, tc.CallCount)
		}
	}
	return b.String()
}

func formatCheck(r *monitor.Result, notifyErr error) string {
	var b strings.Builder
	if len(r.Violations) == 0 {
		fmt.Fprintf(&b, "Target %s is within its SLA (%d spans).\n", r.Target, r.Statistics.Count)
		return b.String()
	}

	fmt.Fprintf(&b, "Target %s has %d SLA violations:\n", r.Target, len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "- [%s] %s\n", v.Severity, v.Message)
	}

	switch {
	case r.Suppressed:
		b.WriteString("\nAlert suppressed: an alert was already sent within the cooldown window.\n")
	case notifyErr != nil:
		fmt.Fprintf(&b, "\nAlert %s raised but delivery failed: %v\n", r.Alert.ID, notifyErr)
	case r.Alert != nil:
		fmt.Fprintf(&b, "\nAlert %s sent (severity %s).\n", r.Alert.ID, r.Alert.Severity())
	}

	if top := topHotspot(r.Hotspots); top != nil {
		fmt.Fprintf(&b, "Top hotspot: %s (avg %.2fms)\n", top.Operation, top.AvgDurationMs)
	}
	return b.String()
}

func topHotspot(hotspots []models.Hotspot) *models.Hotspot {
	if len(hotspots) == 0 {
		return nil
	}
	return &hotspots[0]
}
