package orders

// manager.go — lifecycle de órdenes contra el CLOB.
//
// El venue es la fuente de verdad: los registros locales son un cache
// que se reconcilia antes de cada batch de colocación. La máquina de
// estados local solo admite transiciones legales; un estado del venue
// que no cuadra se adopta igualmente y se loggea.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
	"github.com/alejandrodnm/polyfarm/internal/retry"
)

// Config del lifecycle manager.
type Config struct {
	// MarketCapitalCap limita la exposición notional (precio × tamaño)
	// en órdenes LIVE por mercado, en USDC. 0 = sin límite.
	MarketCapitalCap float64
	Retry            retry.Policy
}

// Manager implementa el ciclo de vida de órdenes.
type Manager struct {
	cfg      Config
	executor ports.OrderExecutor
	storage  ports.Storage
	notifier ports.Notifier
	locks    *TokenLocks

	mu    sync.Mutex
	local map[string]*domain.Order // local ID → orden
}

// New crea el manager. locks se comparte con el exit manager.
func New(cfg Config, executor ports.OrderExecutor, storage ports.Storage, notifier ports.Notifier, locks *TokenLocks) *Manager {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default
	}
	if locks == nil {
		locks = NewTokenLocks()
	}
	return &Manager{
		cfg:      cfg,
		executor: executor,
		storage:  storage,
		notifier: notifier,
		locks:    locks,
		local:    make(map[string]*domain.Order),
	}
}

// Place coloca una orden derivada de un intent. La colocación por token
// está serializada por el lock registry; un token tomado (p.ej. en
// liquidación) hace que el intent se salte sin error fatal.
func (m *Manager) Place(ctx context.Context, intent domain.QuoteIntent, question string) (domain.Order, error) {
	if !m.locks.TryLock(intent.TokenID) {
		return domain.Order{}, fmt.Errorf("orders.Place: token %s busy", intent.TokenID)
	}
	defer m.locks.Unlock(intent.TokenID)

	return m.place(ctx, intent, question)
}

// PlaceHeld coloca una orden para un caller que ya tiene tomado el lock
// del token (el exit manager lo retiene durante toda la salida).
func (m *Manager) PlaceHeld(ctx context.Context, intent domain.QuoteIntent, question string) (domain.Order, error) {
	return m.place(ctx, intent, question)
}

func (m *Manager) place(ctx context.Context, intent domain.QuoteIntent, question string) (domain.Order, error) {
	order := domain.Order{
		ID:          uuid.NewString(),
		ConditionID: intent.ConditionID,
		TokenID:     intent.TokenID,
		Side:        intent.Side,
		Price:       intent.Price,
		Size:        intent.Size,
		Status:      domain.StatusPending,
		PlacedAt:    time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
		Question:    question,
	}

	if err := m.checkCapitalCap(intent); err != nil {
		return order, err
	}

	m.saveOrder(ctx, order)

	var placed domain.PlacedOrder
	err := m.cfg.Retry.Do(ctx, func() error {
		p, err := m.executor.PlaceOrder(ctx, domain.PlaceOrderRequest{
			TokenID:     intent.TokenID,
			ConditionID: intent.ConditionID,
			Price:       intent.Price,
			Size:        intent.Size,
			Side:        intent.Side,
			NegRisk:     intent.NegRisk,
		})
		if err != nil {
			// Solo lo transitorio se reintenta. Firma y rechazo del
			// venue son permanentes por definición.
			if errors.Is(err, domain.ErrTransient) {
				return err
			}
			return retry.NoRetry(err)
		}
		placed = p
		return nil
	})

	if err != nil {
		return m.failOrder(ctx, order, err), err
	}

	order.VenueOrderID = placed.VenueOrderID
	m.transition(&order, domain.StatusLive)
	m.track(order)
	m.updateOrder(ctx, order)

	slog.Info("order placed",
		"id", order.ID,
		"venue_id", order.VenueOrderID,
		"token", order.TokenID,
		"side", order.Side,
		"price", order.Price,
		"size", order.Size,
	)
	m.alert(ctx, domain.AlertOrderPlaced,
		fmt.Sprintf("%s %.0f @ %.3f %s", order.Side, order.Size, order.Price,
			domain.TruncateQuestion(order.Question, order.ConditionID, 40)))

	return order, nil
}

// Cancel cancela una orden local por su ID. Devuelve false si la orden
// no existe o ya está en estado terminal.
func (m *Manager) Cancel(ctx context.Context, localID string) bool {
	m.mu.Lock()
	order, ok := m.local[localID]
	if !ok || order.Status.Terminal() || order.VenueOrderID == "" {
		m.mu.Unlock()
		return false
	}
	venueID := order.VenueOrderID
	m.mu.Unlock()

	if err := m.executor.CancelOrder(ctx, venueID); err != nil {
		slog.Warn("cancel failed", "id", localID, "venue_id", venueID, "err", err)
		return false
	}

	m.mu.Lock()
	m.transition(order, domain.StatusCancelled)
	snapshot := *order
	m.mu.Unlock()

	m.updateOrder(ctx, snapshot)
	return true
}

// CancelAll cancela todas las órdenes abiertas del venue. Los fallos por
// orden se acumulan y el batch nunca se aborta: con cero órdenes
// devuelve (0, nil).
func (m *Manager) CancelAll(ctx context.Context) (int, []error) {
	open, err := m.executor.GetOpenOrders(ctx)
	if err != nil {
		return 0, []error{fmt.Errorf("orders.CancelAll: list open: %w", err)}
	}
	if len(open) == 0 {
		return 0, nil
	}

	var cancelled int
	var errs []error
	for _, o := range open {
		if err := m.executor.CancelOrder(ctx, o.VenueOrderID); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.VenueOrderID, err))
			continue
		}
		cancelled++
		m.adoptCancellation(ctx, o.VenueOrderID)
	}

	slog.Info("cancel all done", "cancelled", cancelled, "failed", len(errs))
	return cancelled, errs
}

// ListOpen devuelve las órdenes abiertas según el venue.
func (m *Manager) ListOpen(ctx context.Context) ([]domain.VenueOrder, error) {
	return m.executor.GetOpenOrders(ctx)
}

// Reconcile sincroniza el cache local con el estado real del venue y
// devuelve las QuoteKeys con exposición viva, para deduplicar intents.
// Se llama antes de cada batch de colocación.
func (m *Manager) Reconcile(ctx context.Context) (map[domain.QuoteKey]bool, error) {
	open, err := m.executor.GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders.Reconcile: %w", err)
	}

	openByVenueID := make(map[string]domain.VenueOrder, len(open))
	live := make(map[domain.QuoteKey]bool, len(open))
	for _, o := range open {
		openByVenueID[o.VenueOrderID] = o
		live[domain.QuoteKey{TokenID: o.TokenID, Side: o.Side, Price: o.Price}] = true
	}

	m.mu.Lock()
	var updates []domain.Order
	for _, order := range m.local {
		if order.Status.Terminal() || order.VenueOrderID == "" {
			continue
		}

		venue, stillOpen := openByVenueID[order.VenueOrderID]
		if stillOpen {
			if venue.FilledSize > order.FilledSize {
				order.FilledSize = venue.FilledSize
				if order.Status == domain.StatusLive {
					m.transition(order, domain.StatusPartial)
				}
				updates = append(updates, *order)
			}
			continue
		}

		// El venue ya no la lista: fillada o cancelada fuera de nuestro
		// control. Se adopta el estado del venue sin discutir.
		if order.FilledSize >= order.Size {
			m.transition(order, domain.StatusFilled)
		} else {
			m.transition(order, domain.StatusCancelled)
		}
		updates = append(updates, *order)
	}
	m.mu.Unlock()

	for _, o := range updates {
		m.updateOrder(ctx, o)
	}

	slog.Debug("reconciled order state", "venue_open", len(open), "adjusted", len(updates))
	return live, nil
}

// LiveNotional devuelve la exposición BUY viva por mercado, en USDC.
func (m *Manager) LiveNotional(conditionID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveNotionalLocked(conditionID)
}

// --- internos ---

func (m *Manager) liveNotionalLocked(conditionID string) float64 {
	var sum float64
	for _, o := range m.local {
		if o.ConditionID != conditionID || o.Side != domain.SideBuy {
			continue
		}
		if o.Status == domain.StatusLive || o.Status == domain.StatusPartial {
			sum += o.Price * o.Remaining()
		}
	}
	return sum
}

// checkCapitalCap rechaza el intent si rompería el límite de exposición
// del mercado. Se evalúa contra las órdenes LIVE del cache reconciliado.
func (m *Manager) checkCapitalCap(intent domain.QuoteIntent) error {
	// El cap limita capital comprometido en compras; las salidas SELL
	// liberan inventario y no cuentan.
	if m.cfg.MarketCapitalCap <= 0 || intent.Side == domain.SideSell {
		return nil
	}

	m.mu.Lock()
	current := m.liveNotionalLocked(intent.ConditionID)
	m.mu.Unlock()

	if current+intent.Price*intent.Size > m.cfg.MarketCapitalCap {
		return fmt.Errorf("orders.Place: market %s capital cap reached (%.2f + %.2f > %.2f)",
			intent.ConditionID, current, intent.Price*intent.Size, m.cfg.MarketCapitalCap)
	}
	return nil
}

// failOrder marca la orden según la clase de fallo y alerta si hace falta.
func (m *Manager) failOrder(ctx context.Context, order domain.Order, err error) domain.Order {
	order.FailReason = err.Error()

	switch {
	case errors.Is(err, domain.ErrVenueRejected):
		m.transition(&order, domain.StatusRejected)
	case errors.Is(err, domain.ErrSignature):
		m.transition(&order, domain.StatusError)
		// Defecto de configuración: escalar fuerte, nunca reintentar a ciegas.
		slog.Error("signature/auth rejected — check signing mode and credentials",
			"token", order.TokenID, "err", err)
		m.alert(ctx, domain.AlertError,
			"firma rechazada por el venue: revisar signing mode y credenciales")
	default:
		m.transition(&order, domain.StatusError)
	}

	m.track(order)
	m.updateOrder(ctx, order)
	return order
}

// transition aplica un cambio de estado validando la máquina de estados.
func (m *Manager) transition(order *domain.Order, to domain.OrderStatus) {
	if !order.Status.CanTransition(to) {
		slog.Warn("illegal order transition, adopting anyway",
			"id", order.ID, "from", order.Status, "to", to)
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
}

func (m *Manager) track(order domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := order
	m.local[order.ID] = &o
}

func (m *Manager) adoptCancellation(ctx context.Context, venueID string) {
	m.mu.Lock()
	var snapshot *domain.Order
	for _, o := range m.local {
		if o.VenueOrderID == venueID && !o.Status.Terminal() {
			m.transition(o, domain.StatusCancelled)
			s := *o
			snapshot = &s
			break
		}
	}
	m.mu.Unlock()

	if snapshot != nil {
		m.updateOrder(ctx, *snapshot)
	}
}

// saveOrder y updateOrder persisten al audit trail; un fallo de storage
// se loggea y no bloquea el trading.
func (m *Manager) saveOrder(ctx context.Context, order domain.Order) {
	if m.storage == nil {
		return
	}
	if err := m.storage.SaveOrder(ctx, order); err != nil {
		slog.Warn("audit trail save failed", "id", order.ID, "err", err)
	}
}

func (m *Manager) updateOrder(ctx context.Context, order domain.Order) {
	if m.storage == nil {
		return
	}
	if err := m.storage.UpdateOrder(ctx, order); err != nil {
		slog.Warn("audit trail update failed", "id", order.ID, "err", err)
	}
}

func (m *Manager) alert(ctx context.Context, kind domain.AlertKind, msg string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyAlert(ctx, domain.NewAlert(kind, msg)); err != nil {
		slog.Warn("alert failed", "err", err)
	}
}
