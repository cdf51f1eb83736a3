// Package jaeger provides a client for the Jaeger query service HTTP API.
package jaeger

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

// Client queries Jaeger's /api/traces endpoint and flattens traces into spans.
type Client struct {
	baseURL    string
	limit      int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Jaeger client
func NewClient(baseURL string, timeout time.Duration, limit int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:16686"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 100
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limit:   limit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "jaeger"
}

// TracesResponse is the body of /api/traces.
type TracesResponse struct {
	Data   []Trace `json:"data"`
	Errors []struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"errors"`
}

// Trace is a Jaeger trace with its process table.
type Trace struct {
	TraceID   string             `json:"traceID"`
	Spans     []Span             `json:"spans"`
	Processes map[string]Process `json:"processes"`
}

// Span is a Jaeger span. Times are in microseconds.
type Span struct {
	TraceID       string      `json:"traceID"`
	SpanID        string      `json:"spanID"`
	OperationName string      `json:"operationName"`
	References    []Reference `json:"references"`
	StartTime     int64       `json:"startTime"`
	Duration      int64       `json:"duration"`
	Tags          []KeyValue  `json:"tags"`
	ProcessID     string      `json:"processID"`
}

// Reference links a span to another span.
type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// KeyValue is a typed tag.
type KeyValue struct {
	Key   string      `json:"key"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Process describes the emitting service.
type Process struct {
	ServiceName string     `json:"serviceName"`
	Tags        []KeyValue `json:"tags"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jaeger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code from jaeger: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// QuerySpans fetches traces for the query's service and returns every span whose
// operation starts with the query's operation prefix.
func (c *Client) QuerySpans(ctx context.Context, q models.SpanQuery) ([]models.Span, error) {
	if q.Service == "" {
		return nil, fmt.Errorf("jaeger queries require a service")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.limit
	}

	params := url.Values{}
	params.Set("service", q.Service)
	params.Set("limit", strconv.Itoa(limit))
	if !q.Start.IsZero() {
		params.Set("start", strconv.FormatInt(q.Start.UnixMicro(), 10))
	}
	if !q.End.IsZero() {
		params.Set("end", strconv.FormatInt(q.End.UnixMicro(), 10))
	}
	if q.MinDuration > 0 {
		params.Set("minDuration", q.MinDuration.String())
	}
	if q.ErrorsOnly {
		params.Set("tags", `{"error":"true"}`)
	}

	var result TracesResponse
	if err := c.get(ctx, "/api/traces", params, &result); err != nil {
		c.logger.Error("Failed to fetch traces", "service", q.Service, "error", err)
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("jaeger error %d: %s", result.Errors[0].Code, result.Errors[0].Msg)
	}

	spans := make([]models.Span, 0)
	for _, t := range result.Data {
		for _, s := range t.Spans {
			if q.OperationPrefix != "" && !strings.HasPrefix(s.OperationName, q.OperationPrefix) {
				continue
			}
			if q.MinDuration > 0 && time.Duration(s.Duration)*time.Microsecond <= q.MinDuration {
				continue
			}
			spans = append(spans, toSpan(t, s))
		}
	}

	c.logger.Debug("jaeger query complete", "service", q.Service, "traces", len(result.Data), "spans", len(spans))
	return spans, nil
}

// Ping checks that the query service answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.get(ctx, "/api/services", nil, nil); err != nil {
		return fmt.Errorf("jaeger not ready: %w", err)
	}
	return nil
}

func toSpan(t Trace, s Span) models.Span {
	attrs := make(map[string]string, len(s.Tags))
	for _, kv := range s.Tags {
		attrs[kv.Key] = tagString(kv.Value)
	}

	span := models.Span{
		Operation:  s.OperationName,
		DurationMs: float64(s.Duration) / 1000,
		Timestamp:  time.UnixMicro(s.StartTime).UTC(),
		TraceID:    s.TraceID,
		SpanID:     s.SpanID,
		Service:    t.Processes[s.ProcessID].ServiceName,
		Attributes: attrs,
	}
	if span.TraceID == "" {
		span.TraceID = t.TraceID
	}

	for _, ref := range s.References {
		if ref.RefType == "CHILD_OF" {
			span.ParentSpanID = ref.SpanID
			break
		}
	}

	switch {
	case attrs["http.status_code"] != "":
		span.Status = attrs["http.status_code"]
	case attrs["error"] == "true":
		span.Status = "error"
	}
	return span
}

func tagString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
