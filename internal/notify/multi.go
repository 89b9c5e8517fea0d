// Package notify fans feedback events out to every configured channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/presentable/presentable/internal/feedback"
	"github.com/presentable/presentable/internal/webhook"
)

var _ feedback.Dispatcher = (*Multi)(nil)

// Multi delivers each event to all enabled dispatchers. A failing channel is
// logged and does not stop the others.
type Multi struct {
	dispatchers []feedback.Dispatcher
}

func NewMulti(dispatchers ...feedback.Dispatcher) *Multi {
	return &Multi{dispatchers: dispatchers}
}

func (m *Multi) Enabled() bool {
	for _, d := range m.dispatchers {
		if d.Enabled() {
			return true
		}
	}
	return false
}

func (m *Multi) Dispatch(ctx context.Context, event webhook.Event) error {
	for _, d := range m.dispatchers {
		if !d.Enabled() {
			continue
		}
		if err := d.Dispatch(ctx, event); err != nil {
			slog.Error("multi-notifier: dispatch failed", "event", event.Name, "event_id", event.ID, "error", err)
		}
	}
	return nil
}
