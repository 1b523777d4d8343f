package quoter

import (
	"log/slog"
	"math"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

// Config controla la forma de los quotes.
type Config struct {
	MinOrderSize  float64 // tamaño mínimo operativo en shares
	SkipNonBinary bool    // true: ignorar mercados con >2 outcomes
}

// Planner convierte mercados elegibles en intents de órdenes maker.
type Planner struct {
	cfg Config
}

// New crea el planner.
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan deriva los QuoteIntents de un mercado elegible. Emite una orden
// BUY resting por outcome, con precio dentro del reward band alrededor
// del midpoint y sin cruzar nunca el mejor precio opuesto. Los mercados
// binarios cotizan ambos outcomes a tamaño completo; con más de dos
// outcomes se pasa a modo conservador: tamaño a la mitad y solo los
// outcomes cuyo propio spread cabe en el band.
func (p *Planner) Plan(m domain.Market, books map[string]domain.OrderBook, elig domain.RewardEligibility) []domain.QuoteIntent {
	if !elig.Passes {
		return nil
	}

	size := p.cfg.MinOrderSize
	if m.Rewards.MinSize > size {
		size = m.Rewards.MinSize
	}

	reduced := !m.IsBinary()
	if reduced {
		if p.cfg.SkipNonBinary {
			slog.Debug("skipping non-binary market", "condition_id", m.ConditionID, "outcomes", len(m.Tokens))
			return nil
		}
		size = size / 2
	}

	intents := make([]domain.QuoteIntent, 0, len(m.Tokens))
	for _, token := range m.Tokens {
		book, ok := books[token.TokenID]
		if !ok || !book.TwoSided() {
			continue
		}

		// En modo conservador cada outcome se juzga por su propio spread.
		if reduced && book.SpreadPct() > m.Rewards.MaxSpread {
			continue
		}

		price, ok := quotePrice(book, m.Rewards.MaxSpread)
		if !ok {
			continue
		}

		intents = append(intents, domain.QuoteIntent{
			ConditionID: m.ConditionID,
			TokenID:     token.TokenID,
			Side:        domain.SideBuy,
			Price:       price,
			Size:        size,
			NegRisk:     m.NegRisk,
			Reduced:     reduced,
		})
	}

	return intents
}

// quotePrice calcula el precio de un quote BUY: el midpoint redondeado
// al tick, acotado al reward band [mid − maxSpread/2, mid + maxSpread/2]
// y recortado para nunca cruzar el best ask. ok=false si no existe un
// precio válido dentro del band.
func quotePrice(book domain.OrderBook, maxSpread float64) (float64, bool) {
	bid := book.BestBid()
	ask := book.BestAsk()
	mid := book.Midpoint()
	if mid <= 0 {
		return 0, false
	}

	tick := tickSize(bid, ask)
	price := roundToTick(mid, tick)

	// Nunca cruzar el lado opuesto: un maker BUY debe quedar bajo el ask.
	if price >= ask {
		price = ask - tick
	}

	// Clamp al reward band; si el band no deja ningún tick válido, no hay quote.
	floor := mid - maxSpread/2
	if price < floor {
		price = roundUpToTick(floor, tick)
	}
	if price >= ask || price <= 0 {
		return 0, false
	}
	if price < floor-1e-9 {
		return 0, false
	}

	return price, true
}

// tickSize infiere el tick del mercado a partir de los precios del book.
// Mercados con precios a 3 decimales operan con tick 0.001; el resto 0.01.
func tickSize(prices ...float64) float64 {
	for _, p := range prices {
		cents := p * 100
		if math.Abs(cents-math.Round(cents)) > 1e-9 {
			return 0.001
		}
	}
	return 0.01
}

func roundToTick(v, tick float64) float64 {
	return math.Round(v/tick) * tick
}

func roundUpToTick(v, tick float64) float64 {
	return math.Ceil(v/tick-1e-9) * tick
}
