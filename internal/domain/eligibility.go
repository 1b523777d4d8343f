package domain

import "time"

// RewardEligibility es la decisión derivada para un mercado en un ciclo.
// Se recalcula en cada ciclo; nunca se persiste salvo al artefacto de
// revisión en SQLite.
type RewardEligibility struct {
	MarketID        string
	Question        string
	Category        string
	CompetitionBars int     // tier ordinal de competencia (0 = vacío)
	EstDailyReward  float64 // tu reward diario estimado en USDC
	BestBid         float64 // del outcome con peor spread (el que decide)
	BestAsk         float64
	SpreadPct       float64
	Passes          bool
	Reason          string // causa de rechazo, vacío si pasa
	ScannedAt       time.Time
}

// Side de una orden o intención de quote.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// QuoteIntent es una orden resting objetivo derivada de un mercado elegible.
// Un mercado puede producir varias (una por outcome cotizado).
type QuoteIntent struct {
	ConditionID string
	TokenID     string
	Side        Side
	Price       float64
	Size        float64
	NegRisk     bool
	// Reduced marca intents de mercados no binarios cotizados en modo
	// conservador (tamaño reducido).
	Reduced bool
}
