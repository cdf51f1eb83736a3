package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tracelens/internal/config"
	"tracelens/internal/models"
)

// maxSlackHotspots limits the hotspot sections in one message.
const maxSlackHotspots = 3

// SlackSender handles the dispatch of SLA alert notifications to a Slack webhook.
type SlackSender struct {
	webhookURL string
	client     *http.Client
}

// NewSlackSender initializes a SlackSender with a configured webhook URL and HTTP client.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSlackSenderFromConfig constructs a SlackSender using the provided configuration block.
func NewSlackSenderFromConfig(cfg config.SlackOutputConfig) *SlackSender {
	return NewSlackSender(cfg.WebhookURL)
}

// SlackBlock represents a Slack message block
type SlackBlock struct {
	Type   string       `json:"type"`
	Text   *SlackText   `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackText represents text in Slack
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackField represents a field in Slack
type SlackField struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackMessage represents a Slack message
type SlackMessage struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

// Name returns "slack".
func (s *SlackSender) Name() string {
	return "slack"
}

// Notify posts the alert to the webhook.
func (s *SlackSender) Notify(ctx context.Context, alert *models.Alert) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	body, err := json.Marshal(s.buildMessage(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status: %d", resp.StatusCode)
	}

	return nil
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "🚨"
	case models.SeverityHigh:
		return "⚠️"
	default:
		return "🔍"
	}
}

// buildMessage constructs a Slack block kit payload from an alert.
func (s *SlackSender) buildMessage(alert *models.Alert) SlackMessage {
	title := fmt.Sprintf("%s SLA violation: %s (%s)", severityEmoji(alert.Severity()), alert.Target, alert.Service)

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{Type: "plain_text", Text: title},
		},
		{
			Type: "section",
			Fields: []SlackField{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Spans:*\n%d", alert.Statistics.Count)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Time range:*\n%s", alert.TimeRange)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Avg / P95:*\n%.2fms / %.2fms", alert.Statistics.Avg, alert.Statistics.P95)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Error rate:*\n%.2f%%", alert.Statistics.ErrorRate*100)},
			},
		},
	}

	var lines []string
	for _, v := range alert.Violations {
		lines = append(lines, fmt.Sprintf("• *%s* %s", v.Severity, v.Message))
	}
	if len(lines) > 0 {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: "*Violations*\n" + strings.Join(lines, "\n")},
		})
	}

	for i, h := range alert.Hotspots {
		if i == maxSlackHotspots {
			break
		}
		if i == 0 {
			blocks = append(blocks, SlackBlock{Type: "divider"})
		}
		text := fmt.Sprintf("*%s* `%s`\navg %.2fms | max %.2fms | %d calls | %.1f%% errors",
			h.Severity, h.Operation, h.AvgDurationMs, h.MaxDurationMs, h.OccurrenceCount, h.ErrorRate*100)
		for _, rec := range alert.InsightsFor(h.Operation) {
			text += "\n>" + rec
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: text},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Fields: []SlackField{
			{Type: "mrkdwn", Text: fmt.Sprintf("Raised at: %s | ID: %s", alert.CreatedAt.Format(time.RFC3339), alert.ID)},
		},
	})

	return SlackMessage{Text: title, Blocks: blocks}
}
