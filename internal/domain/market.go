package domain

import "time"

// Market representa un mercado de predicción en Polymarket, ya reconciliado
// desde las dos fuentes (CLOB y Gamma). Inmutable durante un ciclo de scan.
type Market struct {
	ConditionID     string
	QuestionID      string
	Question        string // enriquecido desde Gamma
	Slug            string // enriquecido desde Gamma
	Category        string // enriquecido desde Gamma
	EndDate         time.Time
	Volume24h       float64 // volumen últimas 24h en USDC, enriquecido desde Gamma
	Liquidity       float64 // liquidez total, enriquecido desde Gamma
	Tokens          []Token
	Rewards         RewardConfig
	Active          bool
	Closed          bool
	EnableOrderBook bool
	AcceptingOrders bool
	// NegRisk marca mercados que operan sobre el NegRisk adapter; cambia
	// el contrato verificador de la firma EIP-712.
	NegRisk bool
}

// Token es un outcome del mercado. Los mercados binarios tienen dos,
// los categóricos pueden tener más.
type Token struct {
	TokenID string
	Outcome string
	Price   float64 // último precio mid del CLOB
}

// RewardConfig contiene la configuración de rewards del mercado.
// MinSize o MaxSpread en cero significa que el mercado no paga rewards.
type RewardConfig struct {
	// DailyRate es el total de USDC/día distribuidos entre los LPs.
	DailyRate float64
	// MinSize es el tamaño mínimo de orden para calificar al reward.
	MinSize float64
	// MaxSpread es el spread máximo respecto al midpoint para calificar.
	MaxSpread float64
}

// HasRewards devuelve true si el mercado tiene rewards activos configurados.
func (m Market) HasRewards() bool {
	return m.Rewards.MinSize > 0 && m.Rewards.MaxSpread > 0
}

// Tradable devuelve true si el venue acepta órdenes para este mercado.
func (m Market) Tradable() bool {
	return m.Active && !m.Closed && m.EnableOrderBook && m.AcceptingOrders
}

// IsBinary devuelve true si el mercado tiene exactamente dos outcomes.
// Los mercados categóricos (>2 tokens) requieren tratamiento conservador.
func (m Market) IsBinary() bool {
	return len(m.Tokens) == 2
}

// TokenIDs devuelve los token_ids de todos los outcomes.
func (m Market) TokenIDs() []string {
	ids := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		if t.TokenID != "" {
			ids = append(ids, t.TokenID)
		}
	}
	return ids
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	// Truncar sobre runes: cortar por bytes puede partir un carácter
	// multibyte y emitir UTF-8 inválido a los notificadores.
	if runes := []rune(q); len(runes) > maxLen {
		q = string(runes[:maxLen-3]) + "..."
	}
	return q
}
