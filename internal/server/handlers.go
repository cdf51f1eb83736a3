package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tracelens/internal/monitor"
	"tracelens/internal/orchestrator"
)

// Handler holds the server dependencies
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	monitor      *monitor.Monitor
	logger       *slog.Logger
}

// NewHandler creates a new handler. mon may be nil when alerting is disabled.
func NewHandler(orch *orchestrator.Orchestrator, mon *monitor.Monitor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orchestrator: orch,
		monitor:      mon,
		logger:       logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/traces/analyze", h.HandleAnalyze)
		r.Get("/traces/statistics", h.HandleStatistics)
		r.Get("/traces/chains", h.HandleChains)
		r.Get("/traces/slowest", h.HandleSlowest)

		r.Get("/traces/errors", h.HandleErrors)
		r.Get("/traces/errors/methods", h.HandleErrorMethods)
		r.Get("/traces/errors/statistics/by-class", h.HandleErrorClassStatistics)
		r.Get("/traces/errors/classes", h.HandleErrorClasses)
		r.Get("/traces/errors/packages", h.HandleErrorPackages)
		r.Post("/traces/errors/analyze", h.HandleAnalyzeErrors)

		r.Get("/traces/performance/bottlenecks", h.HandleBottlenecks)
		r.Get("/traces/classes", h.HandleClasses)
		r.Get("/traces/packages", h.HandlePackages)
		r.Get("/traces/hotspots", h.HandleHotspots)
		r.Get("/traces/hotspots/class/{className}", h.HandleClassHotspots)
		r.Post("/traces/hotspots/package", h.HandlePackageHotspots)
		// operations may contain slashes (HTTP routes)
		r.Post("/traces/analyze/hotspot/*", h.HandleAnalyzeOperation)

		r.Get("/alerts/targets", h.HandleTargets)
		r.Post("/alerts/check/{target}", h.HandleCheck)
	})
}

// HandleAnalyze runs a full analysis for the JSON request body.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.Analyze(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleStatistics returns aggregate statistics for the query parameters.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.orchestrator.Statistics(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleChains returns call chains, slowest first.
func (h *Handler) HandleChains(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := intParam(r, "chains", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chains, err := h.orchestrator.Chains(r.Context(), req, n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": req.Service,
		"count":   len(chains),
		"chains":  chains,
	})
}

// HandleSlowest returns the slowest spans.
func (h *Handler) HandleSlowest(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := intParam(r, "n", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spans, err := h.orchestrator.Slowest(r.Context(), req, n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": req.Service,
		"count":   len(spans),
		"spans":   spans,
	})
}

// HandleErrors returns the full error report without a narrative.
func (h *Handler) HandleErrors(w http.ResponseWriter, r *http.Request) {
	report, ok := h.errorReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleErrorMethods returns the failing methods, most errors first.
func (h *Handler) HandleErrorMethods(w http.ResponseWriter, r *http.Request) {
	report, ok := h.errorReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": report.Service,
		"count":   len(report.Methods),
		"methods": report.Methods,
	})
}

// HandleErrorClassStatistics returns error statistics per class.
func (h *Handler) HandleErrorClassStatistics(w http.ResponseWriter, r *http.Request) {
	report, ok := h.errorReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     report.Service,
		"total_spans": report.TotalSpans,
		"error_count": report.ErrorCount,
		"classes":     report.Classes,
	})
}

// HandleErrorClasses lists the classes with at least one failed span.
func (h *Handler) HandleErrorClasses(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": c.Service,
		"count":   len(c.ErrorClasses),
		"classes": c.ErrorClasses,
	})
}

// HandleErrorPackages lists the packages with at least one failed span.
func (h *Handler) HandleErrorPackages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":  c.Service,
		"count":    len(c.ErrorPackages),
		"packages": c.ErrorPackages,
	})
}

// HandleAnalyzeErrors runs an error report with an LLM narrative for the JSON
// request body.
func (h *Handler) HandleAnalyzeErrors(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator.Analyzer() == nil {
		h.fail(w, r, orchestrator.ErrNoAnalyzer)
		return
	}
	var req orchestrator.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IncludeNarrative = true

	report, err := h.orchestrator.Errors(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleBottlenecks returns the bottleneck findings.
func (h *Handler) HandleBottlenecks(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.orchestrator.Bottlenecks(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleClasses lists the classes seen in the selected spans.
func (h *Handler) HandleClasses(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": c.Service,
		"count":   len(c.Classes),
		"classes": c.Classes,
	})
}

// HandlePackages lists the packages seen in the selected spans.
func (h *Handler) HandlePackages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.catalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":  c.Service,
		"count":    len(c.Packages),
		"packages": c.Packages,
	})
}

// HandleHotspots returns hotspots for the query parameters, including any
// class_name or package_name scope.
func (h *Handler) HandleHotspots(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.hotspots(w, r, req)
}

// HandleClassHotspots returns the hotspots of one class.
func (h *Handler) HandleClassHotspots(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ClassName = chi.URLParam(r, "className")
	req.PackageName = ""
	h.hotspots(w, r, req)
}

// HandlePackageHotspots returns the hotspots of the package named in the JSON body.
func (h *Handler) HandlePackageHotspots(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PackageName == "" {
		writeError(w, http.StatusBadRequest, "package_name is required")
		return
	}
	req.ClassName = ""
	h.hotspots(w, r, req)
}

// HandleAnalyzeOperation asks the LLM about the operation named in the path.
func (h *Handler) HandleAnalyzeOperation(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orchestrator.AnalyzeOperation(r.Context(), req, chi.URLParam(r, "*"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) hotspots(w http.ResponseWriter, r *http.Request, req orchestrator.AnalysisRequest) {
	report, err := h.orchestrator.Hotspots(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) errorReport(w http.ResponseWriter, r *http.Request) (*orchestrator.ErrorReport, bool) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	req.IncludeNarrative = false

	report, err := h.orchestrator.Errors(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return report, true
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) (*orchestrator.Catalog, bool) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	c, err := h.orchestrator.Catalog(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return c, true
}

// HandleTargets lists the monitored targets.
func (h *Handler) HandleTargets(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "alerting is disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets": h.monitor.Targets(),
	})
}

// HandleCheck runs an SLA check for one target immediately.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "alerting is disabled")
		return
	}

	result, err := h.monitor.CheckByName(r.Context(), chi.URLParam(r, "target"))
	if err != nil && result == nil {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		h.logger.Warn("alert delivery failed", "target", result.Target, "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady reports whether the trace backend answers.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, monitor.ErrUnknownTarget):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNoAnalyzer):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusBadGateway {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func requestFromQuery(r *http.Request) (orchestrator.AnalysisRequest, error) {
	q := r.URL.Query()
	req := orchestrator.AnalysisRequest{
		Service:         q.Get("service"),
		OperationPrefix: q.Get("operation_prefix"),
		TimeRange:       q.Get("time_range"),
		ClassName:       q.Get("class_name"),
		PackageName:     q.Get("package_name"),
		Question:        q.Get("question"),
	}

	var err error
	if req.MinDurationMs, err = intParam(r, "min_duration_ms", 0); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(r, "limit", 0); err != nil {
		return req, err
	}
	if v := q.Get("errors_only"); v != "" {
		if req.ErrorsOnly, err = strconv.ParseBool(v); err != nil {
			return req, errors.New("errors_only must be a boolean")
		}
	}
	if v := q.Get("include_sub_packages"); v != "" {
		if req.IncludeSubPackages, err = strconv.ParseBool(v); err != nil {
			return req, errors.New("include_sub_packages must be a boolean")
		}
	}
	return req, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
