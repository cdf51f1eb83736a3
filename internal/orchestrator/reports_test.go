package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelens/internal/analyzer"
	"tracelens/internal/models"
)

type failingProvider struct{}

func (failingProvider) Analyze(context.Context, string) (string, error) {
	return "", errors.New("model overloaded")
}
func (failingProvider) Name() string { return "failing" }

func TestErrors(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, analyzer.New(fakeProvider{response: "1. Retry the payment gateway call"}))

	report, err := o.Errors(context.Background(), AnalysisRequest{Service: "shop", IncludeNarrative: true})
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalSpans)
	assert.Equal(t, 1, report.ErrorCount)
	assert.InDelta(t, 0.2, report.ErrorRate, 1e-9)

	require.Len(t, report.Methods, 1)
	assert.Equal(t, "com.shop.Checkout.submit", report.Methods[0].MethodName)
	assert.Equal(t, map[string]int{"HTTP 500": 1}, report.Methods[0].ErrorTypes)

	require.Len(t, report.Classes, 1)
	assert.Equal(t, "com.shop.Checkout", report.Classes[0].ClassName)
	assert.Equal(t, "com.shop", report.Classes[0].PackageName)

	require.Len(t, report.FailedSpans, 1)
	assert.Equal(t, "a", report.FailedSpans[0].SpanID)
	assert.Equal(t, "1. Retry the payment gateway call", report.Narrative)
	assert.Equal(t, []string{"Retry the payment gateway call"}, report.Recommendations)
}

func TestErrorsScoped(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, analyzer.New(fakeProvider{response: "unused"}))

	report, err := o.Errors(context.Background(), AnalysisRequest{Service: "shop", ClassName: "Repo", IncludeNarrative: true})
	require.NoError(t, err)

	assert.Equal(t, models.Scope{ClassName: "Repo"}, report.Scope)
	assert.Equal(t, 2, report.TotalSpans)
	assert.Zero(t, report.ErrorCount)
	assert.Empty(t, report.Methods)
	assert.Empty(t, report.Narrative)
}

func TestErrorsNarrativeFailure(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, analyzer.New(failingProvider{}))

	report, err := o.Errors(context.Background(), AnalysisRequest{Service: "shop", IncludeNarrative: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Empty(t, report.Narrative)
}

func TestQueryAppliesScope(t *testing.T) {
	src := &fakeSource{spans: testSpans()}
	o := newTestOrchestrator(src, nil)

	spans, _, err := o.Query(context.Background(), AnalysisRequest{Service: "shop", ClassName: "com.shop.Checkout"})
	require.NoError(t, err)
	assert.Len(t, spans, 2)

	spans, _, err = o.Query(context.Background(), AnalysisRequest{Service: "shop", PackageName: "org.other"})
	require.NoError(t, err)
	assert.Empty(t, spans)

	for _, q := range src.queries {
		assert.Empty(t, q.OperationPrefix)
	}
}

func TestBottlenecks(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, nil)

	report, err := o.Bottlenecks(context.Background(), AnalysisRequest{Service: "shop", PackageName: "com.shop"})
	require.NoError(t, err)

	assert.Equal(t, 5, report.AnalyzedSpans)
	require.Len(t, report.Bottlenecks.ExpensiveCallChains, 2)
	assert.Equal(t, "t1", report.Bottlenecks.ExpensiveCallChains[0].TraceID)
	assert.Equal(t, 6600.0, report.Bottlenecks.ExpensiveCallChains[0].TotalDurationMs)
	assert.Equal(t, "com.shop.Checkout.submit", report.Bottlenecks.TotalTimeConsumers[0].Operation)
	assert.Equal(t, 12000.0, report.Bottlenecks.TotalTimeConsumers[0].TotalTimeMs)
}

func TestHotspotsScoped(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, nil)

	report, err := o.Hotspots(context.Background(), AnalysisRequest{Service: "shop", ClassName: "Checkout"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.AnalyzedSpans)
	require.Len(t, report.Hotspots, 1)
	assert.Equal(t, "com.shop.Checkout.submit", report.Hotspots[0].NormalizedOperation)
}

func TestCatalog(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, nil)

	c, err := o.Catalog(context.Background(), AnalysisRequest{Service: "shop"})
	require.NoError(t, err)
	assert.Equal(t, []string{"com.shop.Checkout", "com.shop.Health", "com.shop.Repo"}, c.Classes)
	assert.Equal(t, []string{"com.shop"}, c.Packages)
	assert.Equal(t, []string{"com.shop.Checkout"}, c.ErrorClasses)
	assert.Equal(t, []string{"com.shop"}, c.ErrorPackages)
}

func TestAnalyzeOperation(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{spans: testSpans()}, analyzer.New(fakeProvider{response: "1. Batch the repository writes"}))

	result, err := o.AnalyzeOperation(context.Background(), AnalysisRequest{Service: "shop"}, "com.shop.Repo.save")
	require.NoError(t, err)
	assert.Equal(t, "com.shop.Repo.save", result.Operation)
	assert.True(t, result.Observed)
	assert.Equal(t, 2, result.Hotspot.OccurrenceCount)
	assert.Equal(t, []string{"com.shop.Checkout.submit"}, result.Hotspot.RelatedOperations)
	assert.Equal(t, "1. Batch the repository writes", result.Analysis)
	assert.Equal(t, []string{"Batch the repository writes"}, result.Recommendations)
	assert.Equal(t, fixedNow, result.AnalyzedAt)

	unseen, err := o.AnalyzeOperation(context.Background(), AnalysisRequest{Service: "shop"}, "com.shop.Cart.load")
	require.NoError(t, err)
	assert.False(t, unseen.Observed)
	assert.Equal(t, "com.shop.Cart.load", unseen.Hotspot.Operation)
}

func TestAnalyzeOperationErrors(t *testing.T) {
	src := &fakeSource{spans: testSpans()}
	o := newTestOrchestrator(src, nil)

	_, err := o.AnalyzeOperation(context.Background(), AnalysisRequest{Service: "shop"}, "com.shop.Repo.save")
	assert.ErrorIs(t, err, ErrNoAnalyzer)
	assert.Empty(t, src.queries)

	o = newTestOrchestrator(src, analyzer.New(failingProvider{}))
	_, err = o.AnalyzeOperation(context.Background(), AnalysisRequest{Service: "shop"}, " ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.AnalyzeOperation(context.Background(), AnalysisRequest{Service: "shop"}, "com.shop.Repo.save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}
