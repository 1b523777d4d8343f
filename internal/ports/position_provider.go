package ports

import (
	"context"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// PositionProvider lee las tenencias actuales de un wallet desde el
// position feed del venue.
type PositionProvider interface {
	FetchPositions(ctx context.Context, wallet string) ([]domain.Position, error)
}
