package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
)

// Config contiene los criterios de elegibilidad del ciclo.
type Config struct {
	MinReward          float64  // reward diario estimado mínimo en USDC
	MaxCompetitionBars int      // tier máximo de competencia aceptado
	TargetCategories   []string // vacío = todas
	MaxSpreadPct       float64  // techo operativo de spread, además del band del mercado
	OrderSize          float64  // tamaño de referencia para estimar reward
	Workers            int      // goroutines de evaluación (0 = NumCPU*2)
}

// Evaluation es el resultado de evaluar un mercado: la decisión más los
// books ya descargados, que el quote planner reutiliza sin refetch.
type Evaluation struct {
	Market      domain.Market
	Books       map[string]domain.OrderBook
	Eligibility domain.RewardEligibility
}

// ScanResult agrupa lo que produce un ciclo de scan.
type ScanResult struct {
	Evaluations []Evaluation // todas, elegibles o no, ordenadas por reward desc
	Feed        domain.FeedResult
	Duration    time.Duration
}

// Eligible devuelve solo las evaluaciones que pasaron el filtro.
func (r ScanResult) Eligible() []Evaluation {
	out := make([]Evaluation, 0, len(r.Evaluations))
	for _, ev := range r.Evaluations {
		if ev.Eligibility.Passes {
			out = append(out, ev)
		}
	}
	return out
}

// Eligibilities devuelve las decisiones planas para notifier y storage.
func (r ScanResult) Eligibilities() []domain.RewardEligibility {
	out := make([]domain.RewardEligibility, 0, len(r.Evaluations))
	for _, ev := range r.Evaluations {
		out = append(out, ev.Eligibility)
	}
	return out
}

// Scanner descubre mercados elegibles: drena el catálogo, descarga los
// books por mercado en un worker pool y aplica el filtro de elegibilidad.
type Scanner struct {
	cfg        Config
	markets    ports.MarketProvider
	books      ports.BookProvider
	scorer     domain.CompetitionScorer
	estimator  domain.RewardEstimator
	categories map[string]bool
}

// New crea un Scanner. scorer y estimator son políticas inyectables;
// con nil se usan las implementaciones por defecto del dominio.
func New(
	cfg Config,
	markets ports.MarketProvider,
	books ports.BookProvider,
	scorer domain.CompetitionScorer,
	estimator domain.RewardEstimator,
) *Scanner {
	if scorer == nil {
		scorer = domain.DefaultCompetitionScorer
	}
	if estimator == nil {
		estimator = domain.DefaultRewardEstimator
	}

	categories := make(map[string]bool, len(cfg.TargetCategories))
	for _, c := range cfg.TargetCategories {
		categories[c] = true
	}

	return &Scanner{
		cfg:        cfg,
		markets:    markets,
		books:      books,
		scorer:     scorer,
		estimator:  estimator,
		categories: categories,
	}
}

// Scan ejecuta un ciclo completo: fetch → evaluación concurrente → rank.
// El catálogo se descarga fresco en cada llamada; nunca se cachea entre
// ciclos porque las ventanas de reward cambian.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()

	feed, err := s.markets.FetchMarkets(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scanner.Scan: fetch markets: %w", err)
	}

	evals := evaluateConcurrent(ctx, s, feed.Markets, s.cfg.Workers)

	sort.Slice(evals, func(i, j int) bool {
		return evals[i].Eligibility.EstDailyReward > evals[j].Eligibility.EstDailyReward
	})

	result := ScanResult{
		Evaluations: evals,
		Feed:        feed,
		Duration:    time.Since(start),
	}

	slog.Info("scan cycle complete",
		"markets", len(feed.Markets),
		"eligible", len(result.Eligible()),
		"pages_failed", feed.PagesFailed,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// evaluate decide la elegibilidad de un mercado. El input nunca se muta;
// la decisión con su causa queda en la Evaluation. El fetch de books es
// la latencia dominante del ciclo, por eso corre dentro del worker pool.
func (s *Scanner) evaluate(ctx context.Context, m domain.Market) Evaluation {
	e := domain.RewardEligibility{
		MarketID:  m.ConditionID,
		Question:  m.Question,
		Category:  m.Category,
		SpreadPct: -1,
		ScannedAt: time.Now().UTC(),
	}
	ev := Evaluation{Market: m, Eligibility: e}

	if !m.Tradable() {
		ev.Eligibility.Reason = "market not tradable"
		return ev
	}
	if !m.HasRewards() {
		ev.Eligibility.Reason = "no reward config"
		return ev
	}
	if len(s.categories) > 0 && !s.categories[m.Category] {
		ev.Eligibility.Reason = "category not targeted"
		return ev
	}

	books, err := s.books.FetchOrderBooks(ctx, m.TokenIDs())
	if err != nil {
		// Sin reintento dentro del ciclo: el mercado queda no elegible
		// con causa y se reevalúa en el próximo ciclo.
		ev.Eligibility.Reason = "book fetch failed"
		slog.Debug("book fetch failed", "condition_id", m.ConditionID, "err", err)
		return ev
	}
	ev.Books = books

	// El outcome con peor spread decide: un solo lado vacío o fuera de
	// banda descalifica el mercado entero (criterio conservador).
	worst, ok := worstSpreadBook(m, books)
	if !ok {
		ev.Eligibility.Reason = "one-sided or missing book"
		return ev
	}

	ev.Eligibility.BestBid = worst.BestBid()
	ev.Eligibility.BestAsk = worst.BestAsk()
	ev.Eligibility.SpreadPct = worst.SpreadPct()

	if ev.Eligibility.SpreadPct > m.Rewards.MaxSpread {
		ev.Eligibility.Reason = "spread outside reward band"
		return ev
	}
	if s.cfg.MaxSpreadPct > 0 && ev.Eligibility.SpreadPct > s.cfg.MaxSpreadPct {
		ev.Eligibility.Reason = "spread above ceiling"
		return ev
	}

	ev.Eligibility.CompetitionBars = s.scorer(m.Volume24h)
	if ev.Eligibility.CompetitionBars > s.cfg.MaxCompetitionBars {
		ev.Eligibility.Reason = "competition too high"
		return ev
	}

	orderSize := s.cfg.OrderSize
	if m.Rewards.MinSize > orderSize {
		orderSize = m.Rewards.MinSize
	}
	ev.Eligibility.EstDailyReward = s.estimator(
		orderSize, m.Volume24h, m.Rewards.DailyRate,
		ev.Eligibility.SpreadPct, m.Rewards.MaxSpread,
	)
	if ev.Eligibility.EstDailyReward < s.cfg.MinReward {
		ev.Eligibility.Reason = "reward below minimum"
		return ev
	}

	ev.Eligibility.Passes = true
	return ev
}

// worstSpreadBook devuelve el book con mayor spread entre los outcomes
// del mercado. ok=false si falta algún book o alguno es one-sided.
func worstSpreadBook(m domain.Market, books map[string]domain.OrderBook) (domain.OrderBook, bool) {
	var worst domain.OrderBook
	found := false

	for _, id := range m.TokenIDs() {
		book, ok := books[id]
		if !ok || !book.TwoSided() {
			return domain.OrderBook{}, false
		}
		if !found || book.SpreadPct() > worst.SpreadPct() {
			worst = book
			found = true
		}
	}
	return worst, found
}
