// Package app wires configuration into the running components shared by the
// HTTP server and the MCP server.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tracelens/internal/analyzer"
	"tracelens/internal/config"
	"tracelens/internal/hotspot"
	"tracelens/internal/metrics"
	"tracelens/internal/monitor"
	"tracelens/internal/orchestrator"
	"tracelens/internal/output"
	"tracelens/internal/source"
	"tracelens/pkg/llm"
)

// Components holds everything built from one configuration.
type Components struct {
	Config       *config.Config
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.Recorder
	Source       source.Source
	Orchestrator *orchestrator.Orchestrator
	Monitor      *monitor.Monitor
}

// NewLogger returns a JSON logger writing to w at the given level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Build creates the components for cfg.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	src, err := source.New(cfg.Backend, logger.With("component", "source"))
	if err != nil {
		return nil, err
	}

	var an *analyzer.Analyzer
	if cfg.LLM.Enabled {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		an = analyzer.New(provider)
		logger.Info("llm insights enabled", "provider", provider.Name())
	}

	detector := hotspot.NewDetector(cfg.Analysis.MinSamples, nil, logger.With("component", "detector"))
	orch := orchestrator.New(src, detector, an, rec, cfg.Analysis, logger.With("component", "orchestrator"))
	mon := monitor.New(orch, notifiers(cfg.Output, logger), rec, cfg.Alerts, logger.With("component", "monitor"))

	logger.Info("components ready",
		"backend", src.Name(),
		"targets", len(cfg.Alerts.Targets),
	)

	return &Components{
		Config:       cfg,
		Logger:       logger,
		Registry:     reg,
		Metrics:      rec,
		Source:       src,
		Orchestrator: orch,
		Monitor:      mon,
	}, nil
}

func notifiers(cfg config.OutputConfig, logger *slog.Logger) output.Multi {
	var out output.Multi
	if cfg.Slack.Enabled {
		if cfg.Slack.WebhookURL == "" {
			logger.Warn("slack output enabled without a webhook URL", "env", cfg.Slack.WebhookURLEnv)
		}
		out = append(out, output.NewSlackSenderFromConfig(cfg.Slack))
	}
	if cfg.Markdown.Enabled {
		out = append(out, output.NewMarkdownWriterFromConfig(cfg.Markdown))
	}
	return out
}
