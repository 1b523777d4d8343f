package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

const positionsPath = "/positions"

// FetchPositions implementa ports.PositionProvider contra el data-api.
// Devuelve las tenencias actuales del wallet con precio medio, precio
// actual y P&L ya calculados por el venue.
func (c *Client) FetchPositions(ctx context.Context, wallet string) ([]domain.Position, error) {
	if wallet == "" {
		return nil, fmt.Errorf("positions: wallet address required")
	}

	q := url.Values{}
	q.Set("user", wallet)
	q.Set("sizeThreshold", "0")
	reqURL := c.dataBase + positionsPath + "?" + q.Encode()

	var resp []dataPosition
	if err := c.get(ctx, c.dataLimiter, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("positions: fetch: %w", err)
	}

	positions := mapPositions(resp)
	if skipped := len(resp) - len(positions); skipped > 0 {
		slog.Debug("positions: skipped malformed entries", "skipped", skipped)
	}

	slog.Debug("positions fetched", "wallet", wallet, "count", len(positions))
	return positions, nil
}
