package output

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracelens/internal/models"
	"tracelens/internal/stats"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:      "alert-1",
		Target:  "checkout api",
		Service: "shop",
		Violations: []models.Violation{
			{Type: models.ViolationResponseTime, Severity: models.SeverityCritical, Message: "Avg response time 6000.00ms exceeds 5000.00ms"},
		},
		Hotspots: []models.Hotspot{
			{Operation: "Checkout.submit", AvgDurationMs: 6000, MaxDurationMs: 6200, OccurrenceCount: 2, Severity: models.SeverityCritical,
				Recommendations: []string{"Consider implementing caching"}, RelatedOperations: []string{"com.shop.Repo.save"}},
		},
		Statistics: models.Statistics{Summary: stats.Summary{Count: 4, Avg: 3175, P95: 6200}, ErrorRate: 0.25},
		Insights:   map[string][]string{"Checkout.submit": {"Batch the inventory lookups"}},
		TimeRange:  "15m",
		CreatedAt:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestSlackSenderNotify(t *testing.T) {
	var got SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSlackSender(server.URL)
	require.NoError(t, sender.Notify(context.Background(), testAlert()))

	assert.Equal(t, "🚨 SLA violation: checkout api (shop)", got.Text)
	require.NotEmpty(t, got.Blocks)
	assert.Equal(t, "header", got.Blocks[0].Type)

	var texts []string
	for _, b := range got.Blocks {
		if b.Text != nil {
			texts = append(texts, b.Text.Text)
		}
	}
	assert.Contains(t, texts, "*Violations*\n• *CRITICAL* Avg response time 6000.00ms exceeds 5000.00ms")
	assert.Contains(t, texts, "*CRITICAL* `Checkout.submit`\navg 6000.00ms | max 6200.00ms | 2 calls | 0.0% errors\n>Batch the inventory lookups")
}

func TestSlackSenderErrors(t *testing.T) {
	err := NewSlackSender("").Notify(context.Background(), testAlert())
	assert.ErrorContains(t, err, "not configured")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err = NewSlackSender(server.URL).Notify(context.Background(), testAlert())
	assert.ErrorContains(t, err, "403")
}

func TestMarkdownWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewMarkdownWriter(dir)
	alert := testAlert()

	require.NoError(t, w.Notify(context.Background(), alert))

	path := w.Path(alert)
	assert.Equal(t, filepath.Join(dir, "20240301-123000-checkout_api.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "# SLA Violation: checkout api")
	assert.Contains(t, report, "**Severity:** CRITICAL")
	assert.Contains(t, report, "| 4 | 3175.00ms |")
	assert.Contains(t, report, "- **CRITICAL** `RESPONSE_TIME`: Avg response time 6000.00ms exceeds 5000.00ms")
	assert.Contains(t, report, "### Checkout.submit (CRITICAL)")
	assert.Contains(t, report, "- Batch the inventory lookups")
	assert.Contains(t, report, "- Consider implementing caching")
	assert.Contains(t, report, "Related: com.shop.Repo.save")
	assert.Contains(t, report, "Alert ID: alert-1")
}

func TestRenderMarkdownNoHotspots(t *testing.T) {
	alert := testAlert()
	alert.Hotspots = nil
	assert.Contains(t, RenderMarkdown(alert), "No hotspots detected.")
}

type recordingNotifier struct {
	name  string
	err   error
	calls int
}

func (r *recordingNotifier) Notify(context.Context, *models.Alert) error {
	r.calls++
	return r.err
}

func (r *recordingNotifier) Name() string { return r.name }

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: errors.New("boom")}
	last := &recordingNotifier{name: "last"}

	err := Multi{ok, bad, last}.Notify(context.Background(), testAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, last.calls)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), testAlert()))
	assert.NoError(t, Multi(nil).Notify(context.Background(), testAlert()))
}
