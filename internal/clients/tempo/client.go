// Package tempo provides a client for interacting with the Grafana Tempo distributed tracing backend.
package tempo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tracelens/internal/models"
)

// Client implements HTTP interaction with the Tempo API to fetch spans.
type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Tempo client
func NewClient(baseURL string, timeout time.Duration, limit int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	return &Client{
		baseURL: baseURL,
		limit:   limit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "tempo"
}

// doRequest performs the HTTP request to Tempo via HTTP API
func (c *Client) doRequest(ctx context.Context, apiPath string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	u.Path = apiPath
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tempo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from tempo: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// QuerySpans runs a TraceQL search and flattens the matched span sets.
func (c *Client) QuerySpans(ctx context.Context, q models.SpanQuery) ([]models.Span, error) {
	query := BuildSpanQuery(q)
	limit := q.Limit
	if limit <= 0 {
		limit = c.limit
	}

	params := url.Values{
		"q":     []string{query},
		"limit": []string{strconv.Itoa(limit)},
		"spss":  []string{strconv.Itoa(limit)},
	}
	if !q.Start.IsZero() {
		params.Set("start", strconv.FormatInt(q.Start.Unix(), 10))
	}
	if !q.End.IsZero() {
		params.Set("end", strconv.FormatInt(q.End.Unix(), 10))
	}

	resp, err := c.doRequest(ctx, "/api/search", params)
	if err != nil {
		c.logger.Error("Failed to search spans", "query", query, "error", err)
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	spans := make([]models.Span, 0)
	for _, t := range result.Traces {
		for _, set := range t.AllSpanSets() {
			for _, s := range set.Spans {
				spans = append(spans, toSpan(t, s))
			}
		}
	}

	c.logger.Debug("tempo search complete", "query", query, "traces", len(result.Traces), "spans", len(spans))
	return spans, nil
}

// Ping checks that Tempo answers on its echo endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, "/api/echo", nil); err != nil {
		return fmt.Errorf("tempo not ready: %w", err)
	}
	return nil
}

func toSpan(t TraceMatch, s MatchedSpan) models.Span {
	attrs := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[a.Key] = a.Value.String()
	}

	span := models.Span{
		Operation:  s.Name,
		DurationMs: float64(parseInt(s.DurationNanos)) / float64(time.Millisecond),
		Timestamp:  time.Unix(0, parseInt(s.StartTimeUnixNano)).UTC(),
		TraceID:    t.TraceID,
		SpanID:     s.SpanID,
		Service:    t.RootServiceName,
		Attributes: attrs,
	}
	if svc := attrs["service.name"]; svc != "" {
		span.Service = svc
	}

	switch {
	case attrs["http.status_code"] != "":
		span.Status = attrs["http.status_code"]
	case strings.EqualFold(attrs["status"], "error"):
		span.Status = "error"
	}
	return span
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
