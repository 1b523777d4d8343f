package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Storage persiste los artefactos de revisión de cada ciclo y el audit
// trail de órdenes. Es un registro histórico, nunca fuente de verdad
// del estado de órdenes (eso es el venue).
type Storage interface {
	// SaveScan persiste el resumen del ciclo y las elegibilidades evaluadas.
	SaveScan(ctx context.Context, summary domain.CycleSummary, eligibilities []domain.RewardEligibility) error

	// SaveOrder registra una orden nueva en el audit trail.
	SaveOrder(ctx context.Context, order domain.Order) error

	// UpdateOrder actualiza estado y fill de una orden registrada.
	UpdateOrder(ctx context.Context, order domain.Order) error

	// GetEligibilityHistory devuelve las elegibilidades registradas en el rango dado.
	GetEligibilityHistory(ctx context.Context, from, to time.Time) ([]domain.RewardEligibility, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
