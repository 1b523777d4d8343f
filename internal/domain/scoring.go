package domain

import "math"

// Las fórmulas de competencia y estimación de reward varían entre
// despliegues; por eso son funciones inyectables y no constantes del
// dominio. Estas son las implementaciones por defecto.

// CompetitionScorer convierte volumen 24h en un tier ordinal de competencia.
// Monótonamente creciente; tiers mayores = pool más disputado.
type CompetitionScorer func(volume24h float64) int

// RewardEstimator estima tu reward diario en USDC para un mercado.
type RewardEstimator func(orderSize, volume24h, dailyRate, spreadPct, maxSpread float64) float64

// MaxCompetitionBars es el tier máximo que produce el scorer por defecto.
const MaxCompetitionBars = 5

// DefaultCompetitionScorer bucketiza el volumen 24h en tiers 0..5
// por orden de magnitud: <$1k=0, <$10k=1, <$100k=2, <$1M=3, <$10M=4, resto=5.
func DefaultCompetitionScorer(volume24h float64) int {
	if volume24h < 1_000 {
		return 0
	}
	bars := int(math.Floor(math.Log10(volume24h))) - 2
	if bars > MaxCompetitionBars {
		return MaxCompetitionBars
	}
	return bars
}

// DefaultRewardEstimator estima tu cuota del pool diario.
//
// Fórmula:
//
//	yourShare   = orderSize / (orderSize + volume24h/24)
//	spreadScore = ((maxSpread - spreadPct) / maxSpread)²
//	yourReward  = dailyRate × yourShare × spreadScore
//
// El volumen horario aproxima la liquidez que compite por el pool.
// Devuelve 0 si los inputs son inválidos o el spread no califica.
func DefaultRewardEstimator(orderSize, volume24h, dailyRate, spreadPct, maxSpread float64) float64 {
	if orderSize <= 0 || dailyRate <= 0 || maxSpread <= 0 {
		return 0
	}
	if spreadPct < 0 || spreadPct >= maxSpread {
		return 0
	}

	competing := volume24h / 24
	if competing < 0 {
		competing = 0
	}
	yourShare := orderSize / (orderSize + competing)

	spreadScore := math.Pow((maxSpread-spreadPct)/maxSpread, 2)
	return dailyRate * yourShare * spreadScore
}

// ComputeSpreadScore devuelve el factor cuadrático de posición en el spread.
// Resultado entre 0 (spread = maxSpread) y 1 (spread = 0).
func ComputeSpreadScore(spreadPct, maxSpread float64) float64 {
	if maxSpread <= 0 || spreadPct < 0 || spreadPct >= maxSpread {
		return 0
	}
	return math.Pow((maxSpread-spreadPct)/maxSpread, 2)
}
