package engine

// Engine une las piezas en los dos loops del bot: el scan loop
// (descubrir → planificar → colocar) y el exit loop (gestionar salidas
// de posiciones). Cada loop tiene su propio ticker y una iteración
// nunca se solapa con la siguiente del mismo loop: si el tick llega con
// el ciclo anterior aún corriendo, se salta.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyfarm/internal/application/exit"
	"github.com/alejandrodnm/polyfarm/internal/application/orders"
	"github.com/alejandrodnm/polyfarm/internal/application/quoter"
	"github.com/alejandrodnm/polyfarm/internal/application/scanner"
	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
)

// Config de los loops.
type Config struct {
	ScanInterval time.Duration
	ExitInterval time.Duration
	// CycleTimeout acota cada iteración de scan; 0 = sin deadline extra.
	CycleTimeout time.Duration
	// ShutdownTimeout acota el CancelAll de salida.
	ShutdownTimeout time.Duration
	// DryRun planifica e informa pero no coloca órdenes.
	DryRun bool
}

// Engine orquesta scanner, planner, lifecycle manager y exit manager.
type Engine struct {
	cfg      Config
	scanner  *scanner.Scanner
	planner  *quoter.Planner
	orders   *orders.Manager
	exits    *exit.Manager
	notifier ports.Notifier
	storage  ports.Storage

	mu    sync.Mutex
	stats dayStats
}

// dayStats acumula lo que entra en el resumen diario.
type dayStats struct {
	since        time.Time
	cycles       int
	placed       int
	failed       int
	cancelled    int
	bestReward   float64
	lastEligible int
}

// New crea el engine. notifier y storage pueden ser nil en dry-run de tests.
func New(cfg Config, sc *scanner.Scanner, pl *quoter.Planner, om *orders.Manager, em *exit.Manager, notifier ports.Notifier, storage ports.Storage) *Engine {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		scanner:  sc,
		planner:  pl,
		orders:   om,
		exits:    em,
		notifier: notifier,
		storage:  storage,
		stats:    dayStats{since: time.Now().UTC()},
	}
}

// Run arranca los dos loops y bloquea hasta que ctx se cancele. A la
// salida cancela todas las órdenes abiertas best-effort bajo su propio
// timeout, independiente del contexto ya cancelado.
func (e *Engine) Run(ctx context.Context) error {
	e.alert(ctx, domain.AlertStart, "bot started")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.loop(ctx, "scan", e.cfg.ScanInterval, e.RunCycle)
	}()
	go func() {
		defer wg.Done()
		e.loop(ctx, "exit", e.cfg.ExitInterval, e.exits.Cycle)
	}()
	go e.dailySummaryLoop(ctx)

	wg.Wait()
	e.shutdown()
	return nil
}

// RunOnce ejecuta un único ciclo de scan y uno de exit, para el flag -once.
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.RunCycle(ctx); err != nil {
		return err
	}
	return e.exits.Cycle(ctx)
}

// loop ejecuta fn en cada tick. El primer ciclo corre inmediatamente.
// Una iteración corre a término antes de que la siguiente pueda empezar:
// time.Ticker descarta ticks mientras fn sigue corriendo.
func (e *Engine) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	run := func() {
		cycleCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.CycleTimeout > 0 {
			cycleCtx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
			defer cancel()
		}
		if err := fn(cycleCtx); err != nil {
			slog.Error("cycle failed", "loop", name, "err", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// RunCycle es una iteración del scan loop: scan → reconcile → plan →
// place → persist → notify. Los fallos por orden no abortan el ciclo.
func (e *Engine) RunCycle(ctx context.Context) error {
	result, err := e.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("engine.RunCycle: %w", err)
	}

	if result.Feed.Partial() {
		e.alert(ctx, domain.AlertError,
			fmt.Sprintf("partial catalog: %d pages failed this cycle", result.Feed.PagesFailed))
	}

	var placed, failed int
	if !e.cfg.DryRun {
		placed, failed = e.placeQuotes(ctx, result)
	} else {
		e.logPlans(result)
	}

	summary := e.summarize(result, placed, failed)
	e.persist(ctx, summary, result)
	e.notifyCycle(ctx, result)
	e.accumulate(summary)
	return nil
}

// placeQuotes reconcilia contra el venue y coloca los intents nuevos.
// La deduplicación es contra el estado real del venue: un quote idéntico
// (token, side, price) que ya descansa en el book no se repite.
func (e *Engine) placeQuotes(ctx context.Context, result scanner.ScanResult) (placed, failed int) {
	live, err := e.orders.Reconcile(ctx)
	if err != nil {
		slog.Error("reconcile failed, skipping placement this cycle", "err", err)
		return 0, 0
	}

	for _, ev := range result.Eligible() {
		intents := e.planner.Plan(ev.Market, ev.Books, ev.Eligibility)
		for _, intent := range intents {
			key := domain.QuoteKey{TokenID: intent.TokenID, Side: intent.Side, Price: intent.Price}
			if live[key] {
				continue
			}

			if _, err := e.orders.Place(ctx, intent, ev.Market.Question); err != nil {
				failed++
				slog.Warn("placement failed", "token", intent.TokenID, "err", err)
				continue
			}
			placed++
		}
	}
	return placed, failed
}

func (e *Engine) logPlans(result scanner.ScanResult) {
	for _, ev := range result.Eligible() {
		for _, intent := range e.planner.Plan(ev.Market, ev.Books, ev.Eligibility) {
			slog.Info("dry-run quote",
				"market", domain.TruncateQuestion(ev.Market.Question, ev.Market.ConditionID, 50),
				"token", intent.TokenID,
				"side", intent.Side,
				"price", intent.Price,
				"size", intent.Size,
			)
		}
	}
}

func (e *Engine) summarize(result scanner.ScanResult, placed, failed int) domain.CycleSummary {
	summary := domain.CycleSummary{
		MarketsSeen:  len(result.Evaluations),
		Eligible:     len(result.Eligible()),
		OrdersPlaced: placed,
		OrdersFailed: failed,
		PartialPages: result.Feed.PagesFailed,
		DurationMS:   result.Duration.Milliseconds(),
	}
	for _, ev := range result.Eligible() {
		summary.Quoted++
		if ev.Eligibility.EstDailyReward > summary.BestEstReward {
			summary.BestEstReward = ev.Eligibility.EstDailyReward
		}
	}
	return summary
}

func (e *Engine) persist(ctx context.Context, summary domain.CycleSummary, result scanner.ScanResult) {
	if e.storage == nil {
		return
	}
	if err := e.storage.SaveScan(ctx, summary, result.Eligibilities()); err != nil {
		slog.Warn("scan persistence failed", "err", err)
	}
}

func (e *Engine) notifyCycle(ctx context.Context, result scanner.ScanResult) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyCycle(ctx, result.Eligibilities()); err != nil {
		slog.Warn("cycle notification failed", "err", err)
	}
}

func (e *Engine) accumulate(summary domain.CycleSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.cycles++
	e.stats.placed += summary.OrdersPlaced
	e.stats.failed += summary.OrdersFailed
	e.stats.lastEligible = summary.Eligible
	if summary.BestEstReward > e.stats.bestReward {
		e.stats.bestReward = summary.BestEstReward
	}
}

// dailySummaryLoop emite el resumen una vez al día mientras el bot viva.
func (e *Engine) dailySummaryLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.alert(ctx, domain.AlertDailySummary, e.dailySummary())
		}
	}
}

// dailySummary formatea y resetea las estadísticas acumuladas.
func (e *Engine) dailySummary() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg := fmt.Sprintf(
		"daily summary: %d cycles, %d orders placed, %d failed, best est reward $%.2f/day, %d markets eligible last cycle",
		e.stats.cycles, e.stats.placed, e.stats.failed, e.stats.bestReward, e.stats.lastEligible,
	)
	e.stats = dayStats{since: time.Now().UTC()}
	return msg
}

// shutdown cancela las órdenes abiertas con su propio contexto: el del
// proceso ya está cancelado en este punto.
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()

	cancelled, errs := e.orders.CancelAll(ctx)
	if len(errs) > 0 {
		slog.Warn("shutdown cancel-all incomplete", "cancelled", cancelled, "failed", len(errs))
		return
	}
	slog.Info("shutdown complete", "orders_cancelled", cancelled)
}

func (e *Engine) alert(ctx context.Context, kind domain.AlertKind, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyAlert(ctx, domain.NewAlert(kind, msg)); err != nil {
		slog.Warn("alert failed", "err", err)
	}
}
