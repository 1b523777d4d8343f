package ports

import (
	"context"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Notifier presenta resultados de ciclo y emite alertas de lifecycle.
// Las implementaciones son fire-and-forget: un error se loguea y nunca
// bloquea el trading.
type Notifier interface {
	// NotifyCycle muestra las elegibilidades del ciclo ordenadas por reward.
	NotifyCycle(ctx context.Context, eligibilities []domain.RewardEligibility) error

	// NotifyAlert envía un evento de lifecycle (start, order placed,
	// error, daily summary) por el canal de alertas.
	NotifyAlert(ctx context.Context, alert domain.Alert) error
}
