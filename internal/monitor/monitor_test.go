package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelens/internal/analyzer"
	"tracelens/internal/config"
	"tracelens/internal/metrics"
	"tracelens/internal/models"
	"tracelens/internal/orchestrator"
)

type fakeSource struct {
	mu      sync.Mutex
	spans   map[string][]models.Span
	queries int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) QuerySpans(_ context.Context, q models.SpanQuery) ([]models.Span, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if q.Service == "broken" {
		return nil, errors.New("backend unavailable")
	}
	return f.spans[q.Service], nil
}

func (f *fakeSource) Ping(context.Context) error { return nil }

type fakeProvider struct {
	response string
	err      error
}

func (f fakeProvider) Analyze(context.Context, string) (string, error) { return f.response, f.err }
func (f fakeProvider) Name() string                                    { return "fake" }

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*models.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

var policy = config.SLAConfig{
	CriticalDurationMs:    5000,
	HighDurationMs:        2000,
	CriticalErrorRate:     0.1,
	HighErrorRate:         0.05,
	Percentile:            95,
	PercentileThresholdMs: 3000,
	MinSampleSize:         10,
}

func newSource() *fakeSource {
	return &fakeSource{spans: map[string][]models.Span{
		"shop": {
			{TraceID: "t1", SpanID: "a", Operation: "com.shop.Checkout.submit", DurationMs: 6200},
			{TraceID: "t1", SpanID: "b", ParentSpanID: "a", Operation: "com.shop.Repo.save", DurationMs: 400},
			{TraceID: "t2", SpanID: "c", Operation: "com.shop.Checkout.submit", DurationMs: 5800},
			{TraceID: "t2", SpanID: "d", ParentSpanID: "c", Operation: "com.shop.Repo.save", DurationMs: 300},
		},
		"search": {
			{TraceID: "t3", Operation: "com.search.Index.lookup", DurationMs: 10},
			{TraceID: "t4", Operation: "com.search.Index.lookup", DurationMs: 12},
		},
	}}
}

func newTestMonitor(src *fakeSource, an *analyzer.Analyzer, n *recordingNotifier, targets ...config.TargetConfig) *Monitor {
	rec := metrics.New(prometheus.NewRegistry())
	orch := orchestrator.New(src, nil, an, rec, config.AnalysisConfig{DefaultTimeRange: "1h", MinSamples: 2}, nil)
	cfg := config.AlertsConfig{
		Interval:      "1h",
		Cooldown:      "30m",
		MaxConcurrent: 2,
		InsightLimit:  5,
		Targets:       targets,
	}
	return New(orch, n, rec, cfg, nil)
}

func target(name, service string) config.TargetConfig {
	return config.TargetConfig{Name: name, Service: service, TimeRange: "15m", SLA: policy}
}

func TestCheckAlertsOncePerCooldown(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(newSource(), nil, n, target("checkout", "shop"))

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	res, err := m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	require.NotEmpty(t, res.Violations)
	require.NotNil(t, res.Alert)
	assert.False(t, res.Suppressed)
	assert.Equal(t, models.SeverityCritical, res.Alert.Severity())
	assert.Equal(t, "shop", res.Alert.Service)
	assert.Equal(t, now, res.Alert.CreatedAt)

	now = now.Add(10 * time.Minute)
	res, err = m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Nil(t, res.Alert)

	now = now.Add(25 * time.Minute)
	res, err = m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	assert.NotNil(t, res.Alert)

	assert.Equal(t, 2, n.count())
}

func TestCheckWithinSLA(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(newSource(), nil, n, target("search", "search"))

	res, err := m.CheckByName(context.Background(), "search")
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.Nil(t, res.Alert)
	assert.False(t, res.Suppressed)
	assert.Equal(t, 0, n.count())
}

func TestCheckDefaultInsights(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(newSource(), nil, n, target("checkout", "shop"))

	res, err := m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	require.NotNil(t, res.Alert)

	top := res.Alert.Hotspots[0]
	assert.Equal(t, "com.shop.Checkout.submit", top.NormalizedOperation)
	assert.Equal(t, "Consider implementing caching to reduce response time", res.Alert.InsightsFor(top.Operation)[0])
}

func TestCheckLLMInsights(t *testing.T) {
	n := &recordingNotifier{}
	an := analyzer.New(fakeProvider{response: "Causes:\n1. Add an index on checkout.cart_id\n2. Batch the repository writes"})
	m := newTestMonitor(newSource(), an, n, target("checkout", "shop"))

	res, err := m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	require.NotNil(t, res.Alert)

	top := res.Alert.Hotspots[0]
	assert.Equal(t, []string{"Add an index on checkout.cart_id", "Batch the repository writes"}, res.Alert.InsightsFor(top.Operation))
}

func TestCheckLLMFailureFallsBack(t *testing.T) {
	n := &recordingNotifier{}
	an := analyzer.New(fakeProvider{err: errors.New("quota exceeded")})
	m := newTestMonitor(newSource(), an, n, target("checkout", "shop"))

	res, err := m.CheckByName(context.Background(), "checkout")
	require.NoError(t, err)
	require.NotNil(t, res.Alert)

	top := res.Alert.Hotspots[0]
	assert.Equal(t, "Consider implementing caching to reduce response time", res.Alert.InsightsFor(top.Operation)[0])
}

func TestCheckNotifyError(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook down")}
	m := newTestMonitor(newSource(), nil, n, target("checkout", "shop"))

	res, err := m.CheckByName(context.Background(), "checkout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	require.NotNil(t, res)
	assert.NotNil(t, res.Alert)
}

func TestCheckByNameUnknown(t *testing.T) {
	m := newTestMonitor(newSource(), nil, &recordingNotifier{})

	_, err := m.CheckByName(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestCheckAll(t *testing.T) {
	n := &recordingNotifier{}
	src := newSource()
	m := newTestMonitor(src, nil, n,
		target("checkout", "shop"),
		target("search", "search"),
		target("broken", "broken"),
	)

	results, err := m.CheckAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")

	require.Len(t, results, 3)
	require.NotNil(t, results[0])
	assert.NotNil(t, results[0].Alert)
	require.NotNil(t, results[1])
	assert.Nil(t, results[1].Alert)
	assert.Nil(t, results[2])

	assert.Equal(t, 3, src.queries)
	assert.Equal(t, 1, n.count())
}

func TestStartStop(t *testing.T) {
	n := &recordingNotifier{}
	m := newTestMonitor(newSource(), nil, n, target("checkout", "shop"))

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool { return n.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
}

func TestStartWithoutTargets(t *testing.T) {
	m := newTestMonitor(newSource(), nil, &recordingNotifier{})
	assert.Error(t, m.Start(context.Background()))
}
