// Package config provides configuration structures and loading logic for TraceLens.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"tracelens/internal/sla"
)

// Config represents the root configuration structure for TraceLens.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Output   OutputConfig   `mapstructure:"output"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
}

// AppConfig defines application-level settings such as host and port.
type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// BackendConfig selects the trace backend queried for spans. Only the
// endpoint matching Type is used.
type BackendConfig struct {
	Type   string         `mapstructure:"type" validate:"oneof=tempo jaeger loki"`
	Tempo  EndpointConfig `mapstructure:"tempo"`
	Jaeger EndpointConfig `mapstructure:"jaeger"`
	Loki   EndpointConfig `mapstructure:"loki"`
}

// EndpointConfig defines connection settings for one trace backend.
type EndpointConfig struct {
	URL         string `mapstructure:"url" validate:"omitempty,url"`
	Timeout     string `mapstructure:"timeout"`
	SearchLimit int    `mapstructure:"search_limit" validate:"gte=0"`
}

// LLMConfig defines the selected Language Model provider and its operational parameters.
type LLMConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Provider    string  `mapstructure:"provider" validate:"oneof=openai ollama anthropic"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	OllamaURL   string  `mapstructure:"ollama_url" validate:"omitempty,url"`
	OllamaModel string  `mapstructure:"ollama_model"`
	APIKey      string  `mapstructure:"-"`

	// AnthropicModel replaces Model when the provider is anthropic.
	AnthropicModel string `mapstructure:"anthropic_model"`
}

// OutputConfig defines the notification channels for SLA alerts.
type OutputConfig struct {
	Slack    SlackOutputConfig    `mapstructure:"slack"`
	Markdown MarkdownOutputConfig `mapstructure:"markdown"`
}

// SlackOutputConfig defines settings for the Slack incoming webhook integration.
type SlackOutputConfig struct {
	WebhookURLEnv string `mapstructure:"webhook_url_env"`
	WebhookURL    string `mapstructure:"-"`
	Enabled       bool   `mapstructure:"enabled"`
}

// MarkdownOutputConfig defines settings for locally generating Markdown alert reports.
type MarkdownOutputConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Enabled   bool   `mapstructure:"enabled"`
}

// AnalysisConfig defines defaults for on-demand trace analysis.
type AnalysisConfig struct {
	DefaultTimeRange string `mapstructure:"default_time_range"`
	MinSamples       int    `mapstructure:"min_samples" validate:"gte=1"`
	TopHotspots      int    `mapstructure:"top_hotspots" validate:"gte=1"`
	SlowestSpans     int    `mapstructure:"slowest_spans" validate:"gte=0"`
	MinDurationMs    int    `mapstructure:"min_duration_ms" validate:"gte=0"`
}

// AlertsConfig defines the periodic SLA monitor.
type AlertsConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	Interval      string         `mapstructure:"interval"`
	Cooldown      string         `mapstructure:"cooldown"`
	MaxConcurrent int            `mapstructure:"max_concurrent" validate:"gte=1"`
	InsightLimit  int            `mapstructure:"insight_limit" validate:"gte=0"`
	DefaultSLA    SLAConfig      `mapstructure:"default_sla"`
	Targets       []TargetConfig `mapstructure:"targets" validate:"dive"`
}

// TargetConfig is one monitored service or package.
type TargetConfig struct {
	Name            string    `mapstructure:"name" validate:"required"`
	Service         string    `mapstructure:"service" validate:"required"`
	OperationPrefix string    `mapstructure:"operation_prefix"`
	TimeRange       string    `mapstructure:"time_range"`
	MinDurationMs   int       `mapstructure:"min_duration_ms" validate:"gte=0"`
	SLA             SLAConfig `mapstructure:"sla"`
}

// SLAConfig holds the thresholds of a target. Zero values inherit from alerts.default_sla.
type SLAConfig struct {
	CriticalDurationMs    float64 `mapstructure:"critical_duration_ms" validate:"gte=0"`
	HighDurationMs        float64 `mapstructure:"high_duration_ms" validate:"gte=0"`
	CriticalErrorRate     float64 `mapstructure:"critical_error_rate" validate:"gte=0,lte=1"`
	HighErrorRate         float64 `mapstructure:"high_error_rate" validate:"gte=0,lte=1"`
	Percentile            int     `mapstructure:"percentile" validate:"omitempty,oneof=50 75 90 95 99"`
	PercentileThresholdMs float64 `mapstructure:"percentile_threshold_ms" validate:"gte=0"`
	MinSampleSize         int     `mapstructure:"min_sample_size" validate:"gte=0"`
}

// Policy converts the configured thresholds into an evaluator policy.
func (s SLAConfig) Policy() *sla.Policy {
	return &sla.Policy{
		CriticalDurationMs:    s.CriticalDurationMs,
		HighDurationMs:        s.HighDurationMs,
		CriticalErrorRate:     s.CriticalErrorRate,
		HighErrorRate:         s.HighErrorRate,
		Percentile:            s.Percentile,
		PercentileThresholdMs: s.PercentileThresholdMs,
		MinSampleSize:         s.MinSampleSize,
	}
}

// withDefaults fills unset thresholds from def.
func (s SLAConfig) withDefaults(def SLAConfig) SLAConfig {
	if s.CriticalDurationMs == 0 {
		s.CriticalDurationMs = def.CriticalDurationMs
	}
	if s.HighDurationMs == 0 {
		s.HighDurationMs = def.HighDurationMs
	}
	if s.CriticalErrorRate == 0 {
		s.CriticalErrorRate = def.CriticalErrorRate
	}
	if s.HighErrorRate == 0 {
		s.HighErrorRate = def.HighErrorRate
	}
	if s.Percentile == 0 {
		s.Percentile = def.Percentile
	}
	if s.PercentileThresholdMs == 0 {
		s.PercentileThresholdMs = def.PercentileThresholdMs
	}
	if s.MinSampleSize == 0 {
		s.MinSampleSize = def.MinSampleSize
	}
	return s
}

// Key identifies the target in the alert cooldown ledger.
func (t TargetConfig) Key() string {
	return "alert_" + t.Name
}

// GetTimeRangeDuration returns the target's lookback window, 15m when unset or invalid.
func (t *TargetConfig) GetTimeRangeDuration() time.Duration {
	return parseOr(t.TimeRange, 15*time.Minute)
}

// GetTimeoutDuration returns the timeout as a time.Duration
func (c *EndpointConfig) GetTimeoutDuration() time.Duration {
	return parseOr(c.Timeout, 30*time.Second)
}

// GetDefaultTimeRangeDuration parses the default analysis window.
func (c *AnalysisConfig) GetDefaultTimeRangeDuration() time.Duration {
	return parseOr(c.DefaultTimeRange, time.Hour)
}

// GetIntervalDuration returns how often the monitor checks every target.
func (c *AlertsConfig) GetIntervalDuration() time.Duration {
	return parseOr(c.Interval, 15*time.Minute)
}

// GetCooldownDuration returns the minimum time between two alerts for one target.
func (c *AlertsConfig) GetCooldownDuration() time.Duration {
	return parseOr(c.Cooldown, 30*time.Minute)
}

// Target returns the target with the given name.
func (c *AlertsConfig) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// Endpoint returns the connection settings of the selected backend.
func (c *BackendConfig) Endpoint() EndpointConfig {
	switch c.Type {
	case "jaeger":
		return c.Jaeger
	case "loki":
		return c.Loki
	default:
		return c.Tempo
	}
}

func parseOr(s string, def time.Duration) time.Duration {
	d, err := ParseTimeRange(s)
	if err != nil || d == 0 {
		return def
	}
	return d
}

// Load loads configuration from config.yaml or environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tracelens")
	return load(v)
}

// LoadFile loads configuration from an explicit YAML file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Allow environment variables to override config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Alerts.Targets {
		t := &cfg.Alerts.Targets[i]
		t.SLA = t.SLA.withDefaults(cfg.Alerts.DefaultSLA)
		if t.TimeRange == "" {
			t.TimeRange = cfg.Analysis.DefaultTimeRange
		}
	}

	switch cfg.LLM.ProviderType() {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if cfg.Output.Slack.WebhookURLEnv != "" {
		cfg.Output.Slack.WebhookURL = os.Getenv(cfg.Output.Slack.WebhookURLEnv)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("backend.type", "tempo")
	v.SetDefault("backend.tempo.url", "http://localhost:3200")
	v.SetDefault("backend.tempo.timeout", "30s")
	v.SetDefault("backend.tempo.search_limit", 100)
	v.SetDefault("backend.jaeger.url", "http://localhost:16686")
	v.SetDefault("backend.jaeger.timeout", "30s")
	v.SetDefault("backend.jaeger.search_limit", 100)
	v.SetDefault("backend.loki.url", "http://localhost:3100")
	v.SetDefault("backend.loki.timeout", "30s")
	v.SetDefault("backend.loki.search_limit", 1000)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.ollama_model", "llama3")
	v.SetDefault("llm.anthropic_model", "claude-3-5-sonnet-20241022")

	v.SetDefault("output.markdown.output_dir", "./reports")

	v.SetDefault("analysis.default_time_range", "1h")
	v.SetDefault("analysis.min_samples", 2)
	v.SetDefault("analysis.top_hotspots", 10)
	v.SetDefault("analysis.slowest_spans", 10)
	v.SetDefault("analysis.min_duration_ms", 0)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.interval", "15m")
	v.SetDefault("alerts.cooldown", "30m")
	v.SetDefault("alerts.max_concurrent", 4)
	v.SetDefault("alerts.insight_limit", 5)
	v.SetDefault("alerts.default_sla.critical_duration_ms", 5000)
	v.SetDefault("alerts.default_sla.high_duration_ms", 2000)
	v.SetDefault("alerts.default_sla.critical_error_rate", 0.1)
	v.SetDefault("alerts.default_sla.high_error_rate", 0.05)
	v.SetDefault("alerts.default_sla.percentile", 95)
	v.SetDefault("alerts.default_sla.percentile_threshold_ms", 3000)
	v.SetDefault("alerts.default_sla.min_sample_size", 10)
}

// Validate checks field constraints and reports the first violation.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Alerts.Targets))
	for _, t := range c.Alerts.Targets {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("invalid config: duplicate alert target %q", t.Name)
		}
		seen[t.Name] = struct{}{}

		if _, err := ParseTimeRange(t.TimeRange); t.TimeRange != "" && err != nil {
			return fmt.Errorf("invalid config: target %q: %w", t.Name, err)
		}
	}
	return nil
}

// ProviderType returns the LLM provider type
func (c *LLMConfig) ProviderType() string {
	return strings.ToLower(c.Provider)
}
