// Package loki provides a client that reads span-completion records from Grafana Loki via LogQL.
package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tracelens/internal/models"
)

// Client handles LogQL queries against a specified Loki instance.
type Client struct {
	baseURL string
	limit   int
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a new Loki client
func NewClient(baseURL string, timeout time.Duration, limit int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3100"
	}
	if limit <= 0 {
		limit = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		limit:   limit,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "loki"
}

// LogResponse represents Loki query response
type LogResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][]string        `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// spanRecord is the JSON body of one span log line.
type spanRecord struct {
	Operation    string            `json:"operation"`
	DurationMs   *float64          `json:"duration_ms"`
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id"`
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Success      *bool             `json:"success"`
	Attributes   map[string]string `json:"attributes"`
}

// BuildSpanQuery constructs the LogQL selector for span records of a service.
func BuildSpanQuery(q models.SpanQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{service=%q} | json`, q.Service)
	if q.OperationPrefix != "" {
		fmt.Fprintf(&b, ` | operation=~%q`, regexpPrefix(q.OperationPrefix))
	}
	if ms := q.MinDuration.Milliseconds(); ms > 0 {
		fmt.Fprintf(&b, ` | duration_ms > %d`, ms)
	}
	return b.String()
}

func regexpPrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String() + ".*"
}

// QuerySpans runs the span query over [q.Start, q.End] and decodes each log line.
// Lines that are not valid span records are skipped.
func (c *Client) QuerySpans(ctx context.Context, q models.SpanQuery) ([]models.Span, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = c.limit
	}

	result, err := c.Query(ctx, BuildSpanQuery(q), q.Start, q.End, limit)
	if err != nil {
		c.logger.Error("Failed to query span logs", "service", q.Service, "error", err)
		return nil, err
	}

	spans := make([]models.Span, 0)
	skipped := 0
	for _, res := range result.Data.Result {
		for _, value := range res.Values {
			if len(value) < 2 {
				skipped++
				continue
			}
			span, ok := decodeSpan(value[0], value[1], res.Stream)
			if !ok {
				skipped++
				continue
			}
			if q.ErrorsOnly && span.IsSuccessful() {
				continue
			}
			spans = append(spans, span)
		}
	}

	if skipped > 0 {
		c.logger.Warn("skipped undecodable span log lines", "count", skipped)
	}
	return spans, nil
}

// Query executes a LogQL range query.
func (c *Client) Query(ctx context.Context, query string, start, end time.Time, limit int) (*LogResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	if !start.IsZero() {
		params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	}
	if !end.IsZero() {
		params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	}
	params.Set("limit", strconv.Itoa(limit))

	req, err := c.newRequest(ctx, http.MethodGet, "/loki/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result LogResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Ping checks Loki's readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ready", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("loki not ready: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loki not ready: status %d", resp.StatusCode)
	}
	return nil
}

func decodeSpan(ts, line string, stream map[string]string) (models.Span, bool) {
	var rec spanRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return models.Span{}, false
	}
	if rec.Operation == "" || rec.DurationMs == nil {
		return models.Span{}, false
	}

	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return models.Span{}, false
	}

	attrs := rec.Attributes
	if rec.Success != nil {
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs["success"] = strconv.FormatBool(*rec.Success)
	}

	service := rec.Service
	if service == "" {
		service = stream["service"]
	}

	return models.Span{
		Operation:    rec.Operation,
		DurationMs:   *rec.DurationMs,
		Timestamp:    time.Unix(0, nanos).UTC(),
		TraceID:      rec.TraceID,
		SpanID:       rec.SpanID,
		ParentSpanID: rec.ParentSpanID,
		Status:       rec.Status,
		Service:      service,
		Attributes:   attrs,
	}, true
}

// newRequest creates a new HTTP request
func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	u.Path = path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return req, nil
}
