package ports

import (
	"context"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// MarketProvider obtiene el catálogo de mercados de una fuente externa.
// Cada implementación draga su API paginada completa en cada llamada;
// las páginas fallidas se reportan como warnings dentro del FeedResult,
// no como error fatal.
type MarketProvider interface {
	FetchMarkets(ctx context.Context) (domain.FeedResult, error)
}
