// Package source selects the trace backend that spans are read from.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracelens/internal/clients/jaeger"
	"tracelens/internal/clients/loki"
	"tracelens/internal/clients/tempo"
	"tracelens/internal/config"
	"tracelens/internal/models"
)

// ErrUnknownBackend is returned by New for an unsupported backend type.
var ErrUnknownBackend = errors.New("unknown trace backend")

// Source fetches spans from a trace backend.
type Source interface {
	Name() string
	QuerySpans(ctx context.Context, q models.SpanQuery) ([]models.Span, error)
	Ping(ctx context.Context) error
}

// New builds the source selected by cfg.Type.
func New(cfg config.BackendConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ep := cfg.Endpoint()
	timeout := ep.GetTimeoutDuration()

	switch cfg.Type {
	case "", "tempo":
		return tempo.NewClient(ep.URL, timeout, ep.SearchLimit, logger), nil
	case "jaeger":
		return jaeger.NewClient(ep.URL, timeout, ep.SearchLimit, logger), nil
	case "loki":
		return loki.NewClient(ep.URL, timeout, ep.SearchLimit, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}
