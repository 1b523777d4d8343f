package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

const (
	gammaEventsPath = "/events"
	gammaPageSize   = 100
	gammaMaxPages   = 50 // corte de seguridad contra paginación infinita
)

// GammaFeed implementa ports.MarketProvider sobre GET /events de Gamma.
// Gamma agrupa mercados por evento y usa nombres de campo distintos al
// CLOB; mapping.go hace la reconciliación.
type GammaFeed struct {
	client *Client
}

// NewGammaFeed crea el provider del catálogo de metadata.
func NewGammaFeed(client *Client) *GammaFeed {
	return &GammaFeed{client: client}
}

// FetchMarkets pagina /events por offset hasta recibir una página vacía.
// Una página fallida se salta con warning y el drenaje continúa en el
// siguiente offset en vez de fallar el ciclo entero.
func (f *GammaFeed) FetchMarkets(ctx context.Context) (domain.FeedResult, error) {
	var result domain.FeedResult

	for page := 0; page < gammaMaxPages; page++ {
		url := fmt.Sprintf("%s%s?closed=false&limit=%d&offset=%d",
			f.client.gammaBase, gammaEventsPath, gammaPageSize, page*gammaPageSize)

		var resp gammaEventsResponse
		if err := f.client.get(ctx, f.client.gammaLimiter, url, &resp); err != nil {
			if ctx.Err() != nil {
				return result, nil
			}
			// A diferencia del cursor del CLOB, el offset del siguiente
			// page no depende de esta respuesta: se salta y se sigue.
			result.PagesFailed++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("gamma page %d failed: %v", page, err))
			slog.Warn("gamma: page failed, skipping to next offset",
				"page", page, "accumulated", len(result.Markets), "err", err)
			continue
		}

		if len(resp) == 0 {
			break
		}

		for _, ev := range resp {
			for _, gm := range ev.Markets {
				if gm.ConditionID == "" {
					// data-shape error: registro sin identificador, se salta
					continue
				}
				result.Markets = append(result.Markets, mapGammaMarket(gm))
			}
		}

		slog.Debug("fetched gamma events page",
			"events", len(resp),
			"markets", len(result.Markets),
		)
	}

	slog.Info("gamma catalog fetched",
		"markets", len(result.Markets),
		"pages_failed", result.PagesFailed,
	)
	return result, nil
}
