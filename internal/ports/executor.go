package ports

import (
	"context"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// OrderExecutor coloca y cancela órdenes reales en el CLOB.
// Los errores devueltos envuelven los sentinels de domain/errors.go para
// que el lifecycle manager pueda clasificarlos.
type OrderExecutor interface {
	// PlaceOrder firma y envía una orden limit maker al CLOB.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancela una orden por su venue order ID.
	CancelOrder(ctx context.Context, venueOrderID string) error

	// GetOpenOrders devuelve todas las órdenes abiertas del wallet.
	// Es la fuente de verdad contra la que se reconcilia el estado local.
	GetOpenOrders(ctx context.Context) ([]domain.VenueOrder, error)
}
