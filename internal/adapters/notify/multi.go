package notify

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
)

// Multi hace fanout a varios notificadores. Un fallo en uno no corta
// la entrega al resto.
type Multi struct {
	notifiers []ports.Notifier
}

// NewMulti crea el fanout.
func NewMulti(notifiers ...ports.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) NotifyCycle(ctx context.Context, eligibilities []domain.RewardEligibility) error {
	for _, n := range m.notifiers {
		if err := n.NotifyCycle(ctx, eligibilities); err != nil {
			slog.Warn("notifier failed", "err", err)
		}
	}
	return nil
}

func (m *Multi) NotifyAlert(ctx context.Context, alert domain.Alert) error {
	for _, n := range m.notifiers {
		if err := n.NotifyAlert(ctx, alert); err != nil {
			slog.Warn("notifier failed", "err", err)
		}
	}
	return nil
}
