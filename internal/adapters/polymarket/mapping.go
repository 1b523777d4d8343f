package polymarket

import (
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// mapping.go — capa de reconciliación tipada entre los dos esquemas de
// catálogo y el domain.Market canónico. El CLOB manda en flags de
// tradabilidad; Gamma manda en volumen/liquidez/categoría.

// mapSamplingMarkets convierte los DTOs del CLOB a domain.Market.
func mapSamplingMarkets(raw []samplingMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		markets = append(markets, mapSamplingMarket(r))
	}
	return markets
}

// mapSamplingMarket convierte un samplingMarket DTO a domain.Market.
func mapSamplingMarket(r samplingMarket) domain.Market {
	m := domain.Market{
		ConditionID:     r.ConditionID,
		QuestionID:      r.QuestionID,
		Question:        r.Question,
		Category:        r.Category,
		Active:          r.Active,
		Closed:          r.Closed,
		EnableOrderBook: r.EnableOrderBook,
		AcceptingOrders: r.AcceptingOrders,
		NegRisk:         r.NegRisk,
		EndDate:         parseEndDate(r.EndDateISO),
		Rewards: domain.RewardConfig{
			MinSize:   r.Rewards.MinSize,
			MaxSpread: r.Rewards.MaxSpread,
		},
	}

	for _, rate := range r.Rewards.Rates {
		m.Rewards.DailyRate += rate.RewardsDailyRate
	}

	m.Tokens = make([]domain.Token, 0, len(r.Tokens))
	for _, t := range r.Tokens {
		m.Tokens = append(m.Tokens, domain.Token{
			TokenID: t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
		})
	}

	return m
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
// Los nombres de campo difieren del CLOB; aquí se normalizan.
func mapGammaMarket(r gammaMarket) domain.Market {
	m := domain.Market{
		ConditionID:     r.ConditionID,
		Question:        r.Question,
		Slug:            r.Slug,
		Category:        r.Category,
		Active:          r.Active,
		Closed:          r.Closed,
		EnableOrderBook: r.EnableBook,
		AcceptingOrders: r.Accepting,
		EndDate:         parseEndDate(r.EndDateISO),
	}

	if v, err := r.Volume24h.Float64(); err == nil {
		m.Volume24h = v
	}
	if v, err := r.Liquidity.Float64(); err == nil {
		m.Liquidity = v
	}
	if v, err := r.RewardMinSize.Float64(); err == nil {
		m.Rewards.MinSize = v
	}
	if v, err := r.RewardSpread.Float64(); err == nil {
		m.Rewards.MaxSpread = v
	}

	m.Tokens = make([]domain.Token, 0, len(r.ClobTokenIDs))
	for i, id := range r.ClobTokenIDs {
		outcome := ""
		if i < len(r.Outcomes) {
			outcome = r.Outcomes[i]
		}
		m.Tokens = append(m.Tokens, domain.Token{TokenID: id, Outcome: outcome})
	}

	return m
}

// mergeMarkets reconcilia un mercado del CLOB con su versión de Gamma.
// Last-writer-wins por campo: el CLOB gana en tradabilidad y reward
// terms, Gamma gana en volumen/liquidez/categoría/metadata.
func mergeMarkets(clob, gamma domain.Market) domain.Market {
	m := clob

	m.Volume24h = gamma.Volume24h
	m.Liquidity = gamma.Liquidity
	if gamma.Category != "" {
		m.Category = gamma.Category
	}
	if gamma.Question != "" && m.Question == "" {
		m.Question = gamma.Question
	}
	if gamma.Slug != "" {
		m.Slug = gamma.Slug
	}
	if m.EndDate.IsZero() {
		m.EndDate = gamma.EndDate
	}
	// Reward terms: el CLOB es la fuente primaria, Gamma solo rellena huecos.
	if !m.HasRewards() && gamma.HasRewards() {
		m.Rewards = gamma.Rewards
	}
	if len(m.Tokens) == 0 {
		m.Tokens = gamma.Tokens
	}

	return m
}

// parseEndDate intenta los formatos de fecha que usa Polymarket.
func parseEndDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		ob := domain.OrderBook{
			TokenID: r.AssetID,
			Bids:    mapBookEntries(r.Bids, false),
			Asks:    mapBookEntries(r.Asks, true),
		}
		result[r.AssetID] = ob
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}

// mapPositions convierte el feed de data-api a domain.Position.
// Las posiciones sin asset o sin tamaño se descartan (data-shape error).
func mapPositions(raw []dataPosition) []domain.Position {
	positions := make([]domain.Position, 0, len(raw))
	for _, r := range raw {
		if r.Asset == "" || r.Size <= 0 {
			continue
		}
		positions = append(positions, domain.Position{
			TokenID:      r.Asset,
			ConditionID:  r.ConditionID,
			MarketTitle:  r.Title,
			Outcome:      r.Outcome,
			Size:         r.Size,
			AvgPrice:     r.AvgPrice,
			CurrentPrice: r.CurPrice,
			CurrentValue: r.CurrentValue,
			CashPnL:      r.CashPnl,
		})
	}
	return positions
}
