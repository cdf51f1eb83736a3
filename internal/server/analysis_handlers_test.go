package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelens/internal/analyzer"
	"tracelens/internal/config"
	"tracelens/internal/metrics"
	"tracelens/internal/models"
	"tracelens/internal/orchestrator"
)

type recordingProvider struct {
	response string
	prompts  []string
}

func (p *recordingProvider) Analyze(_ context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	return p.response, nil
}

func (p *recordingProvider) Name() string { return "recording" }

func newAnalyzerRouter(src *fakeSource, p *recordingProvider) chi.Router {
	reg := prometheus.NewRegistry()
	orch := orchestrator.New(src, nil, analyzer.New(p), metrics.New(reg),
		config.AnalysisConfig{DefaultTimeRange: "1h", MinSamples: 2, TopHotspots: 10, SlowestSpans: 10}, nil)
	return SetupRouter(NewHandler(orch, nil, nil), reg)
}

func TestHandleErrorViews(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)

	w := do(t, router, http.MethodGet, "/api/traces/errors/methods?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var methods struct {
		Count   int                      `json:"count"`
		Methods []models.ErrorMethodInfo `json:"methods"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &methods))
	require.Equal(t, 1, methods.Count)
	assert.Equal(t, "com.shop.Checkout.submit", methods.Methods[0].MethodName)
	assert.Equal(t, 1, methods.Methods[0].ErrorTypes["HTTP 500"])

	w = do(t, router, http.MethodGet, "/api/traces/errors/statistics/by-class?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byClass struct {
		TotalSpans int                           `json:"total_spans"`
		Classes    []models.ErrorClassStatistics `json:"classes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byClass))
	assert.Equal(t, 4, byClass.TotalSpans)
	require.Len(t, byClass.Classes, 1)
	assert.Equal(t, "com.shop.Checkout", byClass.Classes[0].ClassName)

	w = do(t, router, http.MethodGet, "/api/traces/errors/classes?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"classes":["com.shop.Checkout"]`)

	w = do(t, router, http.MethodGet, "/api/traces/errors/packages?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"packages":["com.shop"]`)

	w = do(t, router, http.MethodGet, "/api/traces/errors?service=shop&class_name=Repo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report orchestrator.ErrorReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalSpans)
	assert.Zero(t, report.ErrorCount)

	w = do(t, router, http.MethodGet, "/api/traces/errors/methods", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyzeErrors(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)
	w := do(t, router, http.MethodPost, "/api/traces/errors/analyze", []byte(`{"service":"shop"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	p := &recordingProvider{response: "1. Retry the payment gateway call"}
	router = newAnalyzerRouter(&fakeSource{spans: testSpans()}, p)

	w = do(t, router, http.MethodPost, "/api/traces/errors/analyze", []byte(`{"service":"shop","question":"why does checkout fail"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var report orchestrator.ErrorReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "1. Retry the payment gateway call", report.Narrative)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "User Query: why does checkout fail")

	w = do(t, router, http.MethodPost, "/api/traces/errors/analyze", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBottlenecks(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)

	w := do(t, router, http.MethodGet, "/api/traces/performance/bottlenecks?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report orchestrator.BottleneckReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 4, report.AnalyzedSpans)
	require.Len(t, report.Bottlenecks.ExpensiveCallChains, 2)
	assert.Equal(t, "t1", report.Bottlenecks.ExpensiveCallChains[0].TraceID)
}

func TestHandleCatalog(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)

	w := do(t, router, http.MethodGet, "/api/traces/classes?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"classes":["com.shop.Checkout","com.shop.Repo"]`)

	w = do(t, router, http.MethodGet, "/api/traces/packages?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"packages":["com.shop"]`)
}

func TestHandleScopedHotspots(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
		want   []string
	}{
		{"by class path", http.MethodGet, "/api/traces/hotspots/class/Repo?service=shop", "", http.StatusOK, []string{"com.shop.Repo.save"}},
		{"by class query", http.MethodGet, "/api/traces/hotspots?service=shop&class_name=Checkout", "", http.StatusOK, []string{"com.shop.Checkout.submit"}},
		{"by package", http.MethodPost, "/api/traces/hotspots/package", `{"service":"shop","package_name":"com.shop"}`, http.StatusOK, []string{"com.shop.Checkout.submit", "com.shop.Repo.save"}},
		{"unknown package", http.MethodPost, "/api/traces/hotspots/package", `{"service":"shop","package_name":"org.other"}`, http.StatusOK, []string{}},
		{"missing package", http.MethodPost, "/api/traces/hotspots/package", `{"service":"shop"}`, http.StatusBadRequest, nil},
		{"bad sub-package flag", http.MethodGet, "/api/traces/hotspots?service=shop&include_sub_packages=maybe", "", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			w := do(t, router, tt.method, tt.target, body)
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				return
			}

			var report orchestrator.HotspotReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
			got := make([]string, 0, len(report.Hotspots))
			for _, h := range report.Hotspots {
				got = append(got, h.NormalizedOperation)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleAnalyzeOperation(t *testing.T) {
	router := newTestRouter(&fakeSource{spans: testSpans()}, false)
	w := do(t, router, http.MethodPost, "/api/traces/analyze/hotspot/com.shop.Repo.save?service=shop", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	p := &recordingProvider{response: "1. Batch the repository writes"}
	router = newAnalyzerRouter(&fakeSource{spans: testSpans()}, p)

	w = do(t, router, http.MethodPost, "/api/traces/analyze/hotspot/com.shop.Repo.save?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result orchestrator.OperationAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "com.shop.Repo.save", result.Operation)
	assert.True(t, result.Observed)
	assert.Equal(t, []string{"Batch the repository writes"}, result.Recommendations)
	assert.Contains(t, p.prompts[0], "Method: com.shop.Repo.save")

	w = do(t, router, http.MethodPost, "/api/traces/analyze/hotspot/GET%20/orders?service=shop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "GET /orders", result.Operation)
	assert.False(t, result.Observed)

	w = do(t, router, http.MethodPost, "/api/traces/analyze/hotspot/com.shop.Repo.save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
