// Package output delivers SLA alerts to Slack and to Markdown reports on disk.
package output

import (
	"context"
	"errors"
	"fmt"

	"tracelens/internal/models"
)

// Notifier delivers an alert to one channel.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) error
	Name() string
}

// Multi sends every alert to all of its notifiers.
type Multi []Notifier

// Notify calls each notifier in turn. A failing notifier does not stop the others;
// the joined error names every channel that failed.
func (m Multi) Notify(ctx context.Context, alert *models.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Name returns "multi".
func (m Multi) Name() string {
	return "multi"
}
