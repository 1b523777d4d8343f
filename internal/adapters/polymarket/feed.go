package polymarket

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// MergedFeed implementa ports.MarketProvider reconciliando los dos
// catálogos: el CLOB (sampling-markets, con reward terms y flags de
// tradabilidad) y Gamma (metadata, volumen y liquidez). El CLOB es la
// base; Gamma enriquece por condition id. Un mercado que solo aparece
// en Gamma entra únicamente si trae rewards configurados.
type MergedFeed struct {
	clob  *CLOBFeed
	gamma *GammaFeed
}

// NewMergedFeed crea el feed reconciliado.
func NewMergedFeed(clob *CLOBFeed, gamma *GammaFeed) *MergedFeed {
	return &MergedFeed{clob: clob, gamma: gamma}
}

// FetchMarkets drena ambos catálogos y los merges por condition id.
// Las páginas fallidas de cualquiera de los dos se acumulan como
// warnings; el resultado parcial sigue siendo utilizable.
func (f *MergedFeed) FetchMarkets(ctx context.Context) (domain.FeedResult, error) {
	clobRes, err := f.clob.FetchMarkets(ctx)
	if err != nil {
		return domain.FeedResult{}, err
	}

	gammaRes, err := f.gamma.FetchMarkets(ctx)
	if err != nil {
		// El catálogo CLOB solo ya es accionable; Gamma caído degrada
		// a mercados sin volumen/categoría, no a ciclo perdido.
		slog.Warn("gamma catalog unavailable, continuing with clob only", "err", err)
		gammaRes = domain.FeedResult{PagesFailed: 1,
			Warnings: []string{"gamma catalog unavailable: " + err.Error()}}
	}

	byID := make(map[string]domain.Market, len(gammaRes.Markets))
	for _, gm := range gammaRes.Markets {
		byID[gm.ConditionID] = gm
	}

	result := domain.FeedResult{
		Markets:     make([]domain.Market, 0, len(clobRes.Markets)),
		PagesFailed: clobRes.PagesFailed + gammaRes.PagesFailed,
		Warnings:    append(clobRes.Warnings, gammaRes.Warnings...),
	}

	seen := make(map[string]bool, len(clobRes.Markets))
	for _, cm := range clobRes.Markets {
		seen[cm.ConditionID] = true
		if gm, ok := byID[cm.ConditionID]; ok {
			result.Markets = append(result.Markets, mergeMarkets(cm, gm))
		} else {
			result.Markets = append(result.Markets, cm)
		}
	}

	for _, gm := range gammaRes.Markets {
		if !seen[gm.ConditionID] && gm.HasRewards() {
			result.Markets = append(result.Markets, gm)
		}
	}

	slog.Info("catalog merged",
		"clob", len(clobRes.Markets),
		"gamma", len(gammaRes.Markets),
		"merged", len(result.Markets),
		"pages_failed", result.PagesFailed,
	)
	return result, nil
}
