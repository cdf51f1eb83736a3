// Package monitor periodically checks configured targets against their SLA and
// raises alerts, at most one per target per cooldown window.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tracelens/internal/analyzer"
	"tracelens/internal/config"
	"tracelens/internal/cooldown"
	"tracelens/internal/hotspot"
	"tracelens/internal/metrics"
	"tracelens/internal/models"
	"tracelens/internal/orchestrator"
	"tracelens/internal/output"
	"tracelens/internal/remediation"
	"tracelens/internal/sla"
)

// ErrUnknownTarget is returned for a target name missing from the configuration.
var ErrUnknownTarget = errors.New("unknown alert target")

// Result is the outcome of checking one target.
type Result struct {
	Target     string             `json:"target"`
	Statistics models.Statistics  `json:"statistics"`
	Hotspots   []models.Hotspot   `json:"hotspots"`
	Violations []models.Violation `json:"violations"`
	Alert      *models.Alert      `json:"alert,omitempty"`
	Suppressed bool               `json:"suppressed"`
	CheckedAt  time.Time          `json:"checked_at"`
}

// Monitor runs SLA checks for every configured target.
type Monitor struct {
	orch      *orchestrator.Orchestrator
	evaluator *sla.Evaluator
	tracker   *cooldown.Tracker
	notifier  output.Notifier
	metrics   *metrics.Recorder
	cfg       config.AlertsConfig
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a monitor. notifier and rec may be nil.
func New(orch *orchestrator.Orchestrator, notifier output.Notifier, rec *metrics.Recorder, cfg config.AlertsConfig, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = output.Multi{}
	}
	return &Monitor{
		orch:      orch,
		evaluator: sla.NewEvaluator(logger),
		tracker:   cooldown.NewTracker(),
		notifier:  notifier,
		metrics:   rec,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Targets returns the configured targets.
func (m *Monitor) Targets() []config.TargetConfig {
	return m.cfg.Targets
}

// CheckByName checks the configured target with the given name.
func (m *Monitor) CheckByName(ctx context.Context, name string) (*Result, error) {
	target, ok := m.cfg.Target(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return m.Check(ctx, target)
}

// Check queries the target's spans, evaluates its SLA and sends an alert when
// violations are found outside the cooldown window.
func (m *Monitor) Check(ctx context.Context, target config.TargetConfig) (*Result, error) {
	spans, _, err := m.orch.Query(ctx, orchestrator.AnalysisRequest{
		Service:         target.Service,
		OperationPrefix: target.OperationPrefix,
		TimeRange:       target.TimeRange,
		MinDurationMs:   target.MinDurationMs,
	})
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target.Name, err)
	}

	detector := m.orch.Detector()
	st := detector.Summarize(spans)
	hotspots := detector.Detect(spans)
	insights := m.insights(ctx, hotspots, spans)

	violations := m.evaluator.Evaluate(st, hotspots, target.SLA.Policy())
	m.metrics.RecordViolations(target.Name, violations)

	now := m.now()
	result := &Result{
		Target:     target.Name,
		Statistics: st,
		Hotspots:   hotspots,
		Violations: violations,
		CheckedAt:  now,
	}

	if len(violations) == 0 {
		m.logger.Debug("target within SLA", "target", target.Name, "spans", st.Count)
		return result, nil
	}

	if !m.tracker.ShouldAlert(target.Key(), now, m.cfg.GetCooldownDuration()) {
		result.Suppressed = true
		m.metrics.AlertSuppressed(target.Name)
		m.logger.Info("alert suppressed by cooldown", "target", target.Name, "violations", len(violations))
		return result, nil
	}

	result.Alert = &models.Alert{
		ID:         uuid.New().String(),
		Target:     target.Name,
		Service:    target.Service,
		Violations: violations,
		Hotspots:   hotspots,
		Statistics: st,
		Insights:   insights,
		TimeRange:  target.TimeRange,
		CreatedAt:  now,
	}

	if err := m.notifier.Notify(ctx, result.Alert); err != nil {
		m.logger.Error("failed to deliver alert", "target", target.Name, "alert", result.Alert.ID, "error", err)
		return result, fmt.Errorf("target %s: notify: %w", target.Name, err)
	}

	m.metrics.AlertSent(target.Name)
	m.logger.Warn("sla alert sent",
		"target", target.Name,
		"alert", result.Alert.ID,
		"severity", result.Alert.Severity(),
		"violations", len(violations),
	)
	return result, nil
}

// insights gathers advice for the top hotspots. The LLM answer is used when one
// is configured and yields recommendations; otherwise the built-in defaults are.
func (m *Monitor) insights(ctx context.Context, hotspots []models.Hotspot, spans []models.Span) map[string][]string {
	limit := m.cfg.InsightLimit
	if limit <= 0 || len(hotspots) == 0 {
		return nil
	}

	an := m.orch.Analyzer()
	out := make(map[string][]string)
	for i, h := range hotspots {
		if i == limit {
			break
		}
		out[h.Operation] = m.hotspotInsights(ctx, an, h, spans)
	}
	return out
}

func (m *Monitor) hotspotInsights(ctx context.Context, an *analyzer.Analyzer, h models.Hotspot, spans []models.Span) []string {
	if an == nil {
		return remediation.Defaults(h)
	}

	var matching []models.Span
	slowestIdx := -1
	for _, s := range spans {
		if hotspot.Normalize(s.Operation) != h.NormalizedOperation {
			continue
		}
		if slowestIdx < 0 || s.DurationMs > matching[slowestIdx].DurationMs {
			slowestIdx = len(matching)
		}
		matching = append(matching, s)
	}

	var slowest *models.Span
	if slowestIdx >= 0 {
		slowest = &matching[slowestIdx]
	}

	text, err := an.AnalyzeHotspot(ctx, h, slowest, matching)
	if err != nil {
		m.logger.Error("hotspot analysis failed", "operation", h.Operation, "error", err)
		return remediation.Defaults(h)
	}
	if recs := analyzer.ExtractRecommendations(text); len(recs) > 0 {
		return recs
	}
	return remediation.Defaults(h)
}

// CheckAll checks every target, at most MaxConcurrent at a time. A failing
// target does not stop the others; its Result is nil and its error is joined
// into the returned error.
func (m *Monitor) CheckAll(ctx context.Context) ([]*Result, error) {
	targets := m.cfg.Targets
	results := make([]*Result, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	if m.cfg.MaxConcurrent > 0 {
		g.SetLimit(m.cfg.MaxConcurrent)
	}
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			res, err := m.Check(gctx, t)
			if err != nil {
				m.logger.Error("sla check failed", "target", t.Name, "error", err)
			}
			results[i], errs[i] = res, err
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Start launches the periodic check loop. It returns an error when the loop is
// already running or no targets are configured.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor already running")
	}
	if len(m.cfg.Targets) == 0 {
		return fmt.Errorf("no alert targets configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop(ctx, m.cfg.GetIntervalDuration())

	m.logger.Info("sla monitor started",
		"targets", len(m.cfg.Targets),
		"interval", m.cfg.GetIntervalDuration(),
		"cooldown", m.cfg.GetCooldownDuration(),
	)
	return nil
}

// Stop stops the loop and waits for the current sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("sla monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	m.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	results, err := m.CheckAll(ctx)
	alerts := 0
	for _, r := range results {
		if r != nil && r.Alert != nil {
			alerts++
		}
	}
	m.logger.Info("sla sweep complete", "targets", len(results), "alerts", alerts, "failed", err != nil)
}
