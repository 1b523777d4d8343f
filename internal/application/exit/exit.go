package exit

// Gestor de salida de posiciones. Corre en su propio loop, independiente
// del scan: lee las tenencias del data-api, filtra polvo y trabaja cada
// salida como una orden SELL al mejor bid actual. Nunca cruza al ask.
//
// Mientras una posición está saliendo, su token queda tomado en el lock
// registry compartido para que el scan loop no cotice encima.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyfarm/internal/application/orders"
	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/ports"
)

// ConfirmToken es el valor exacto que exige LiquidateAll antes de enviar
// una sola orden. Protege contra liquidaciones accidentales por script.
const ConfirmToken = "LIQUIDATE"

// Config del exit manager.
type Config struct {
	// Wallet es la dirección cuyas posiciones se gestionan (el maker).
	Wallet string
	// DustMinSize: posiciones por debajo no se tocan.
	DustMinSize float64
}

// Manager planifica y ejecuta salidas de posiciones.
type Manager struct {
	cfg       Config
	positions ports.PositionProvider
	books     ports.BookProvider
	orders    *orders.Manager
	locks     *orders.TokenLocks

	// exiting mapea token → local order ID de la salida en curso.
	exiting map[string]string
}

// New crea el exit manager. locks es el registro compartido con el
// lifecycle manager.
func New(cfg Config, positions ports.PositionProvider, books ports.BookProvider, om *orders.Manager, locks *orders.TokenLocks) *Manager {
	return &Manager{
		cfg:       cfg,
		positions: positions,
		books:     books,
		orders:    om,
		locks:     locks,
		exiting:   make(map[string]string),
	}
}

// ScanPositions lee las tenencias actuales del wallet. Sin wallet
// configurado (dry-run sin clave) no hay posiciones que gestionar.
func (m *Manager) ScanPositions(ctx context.Context) ([]domain.Position, error) {
	if m.cfg.Wallet == "" {
		slog.Debug("no wallet configured, skipping position scan")
		return nil, nil
	}
	positions, err := m.positions.FetchPositions(ctx, m.cfg.Wallet)
	if err != nil {
		return nil, fmt.Errorf("exit.ScanPositions: %w", err)
	}
	return positions, nil
}

// PlanExit deriva el intent de salida para una posición: SELL al best
// bid actual. Devuelve nil para polvo, posiciones ya marcadas en salida
// o libros sin bid donde apoyarse.
func (m *Manager) PlanExit(ctx context.Context, pos domain.Position) (*domain.QuoteIntent, error) {
	if pos.IsDust(m.cfg.DustMinSize) || pos.ExitRequested {
		return nil, nil
	}

	booksByToken, err := m.books.FetchOrderBooks(ctx, []string{pos.TokenID})
	if err != nil {
		return nil, fmt.Errorf("exit.PlanExit: book for %s: %w", pos.TokenID, err)
	}

	book, ok := booksByToken[pos.TokenID]
	if !ok {
		return nil, nil
	}
	bid := book.BestBid()
	if bid <= 0 {
		// Sin bid no hay salida maker posible; se reintenta en el
		// próximo ciclo.
		return nil, nil
	}

	return &domain.QuoteIntent{
		ConditionID: pos.ConditionID,
		TokenID:     pos.TokenID,
		Side:        domain.SideSell,
		Price:       bid,
		Size:        pos.Size,
	}, nil
}

// Cycle es una iteración del exit loop: libera tokens cuya salida ya
// terminó y abre salidas nuevas para posiciones no-polvo sin salida en
// curso. Los fallos por posición se loggean y el ciclo sigue.
func (m *Manager) Cycle(ctx context.Context) error {
	positions, err := m.ScanPositions(ctx)
	if err != nil {
		return err
	}

	m.releaseCompleted(positions)

	var opened int
	for _, pos := range positions {
		if _, busy := m.exiting[pos.TokenID]; busy {
			continue
		}

		intent, err := m.PlanExit(ctx, pos)
		if err != nil {
			slog.Warn("exit plan failed", "token", pos.TokenID, "err", err)
			continue
		}
		if intent == nil {
			continue
		}

		if err := m.open(ctx, *intent, pos.MarketTitle); err != nil {
			slog.Warn("exit order failed", "token", pos.TokenID, "err", err)
			continue
		}
		opened++
	}

	if opened > 0 {
		slog.Info("exit cycle", "positions", len(positions), "exits_opened", opened)
	}
	return nil
}

// LiquidateAll vende todas las posiciones no-polvo al best bid. Exige el
// token de confirmación exacto; sin él falla antes de enviar nada.
func (m *Manager) LiquidateAll(ctx context.Context, confirm string) (int, error) {
	if confirm != ConfirmToken {
		return 0, fmt.Errorf("exit.LiquidateAll: refusing without confirmation token %q", ConfirmToken)
	}

	positions, err := m.ScanPositions(ctx)
	if err != nil {
		return 0, err
	}

	var sold int
	for _, pos := range positions {
		if pos.IsDust(m.cfg.DustMinSize) {
			continue
		}
		if _, busy := m.exiting[pos.TokenID]; busy {
			continue
		}

		pos.ExitRequested = false // liquidación forzosa ignora la marca
		intent, err := m.PlanExit(ctx, pos)
		if err != nil || intent == nil {
			if err != nil {
				slog.Warn("liquidation plan failed", "token", pos.TokenID, "err", err)
			}
			continue
		}

		if err := m.open(ctx, *intent, pos.MarketTitle); err != nil {
			slog.Warn("liquidation order failed", "token", pos.TokenID, "err", err)
			continue
		}
		sold++
	}

	slog.Info("liquidation submitted", "positions", len(positions), "orders", sold)
	return sold, nil
}

// open toma el lock del token, coloca la salida y registra la orden en
// curso. El lock se retiene hasta que la posición desaparece.
func (m *Manager) open(ctx context.Context, intent domain.QuoteIntent, title string) error {
	if !m.locks.TryLock(intent.TokenID) {
		return fmt.Errorf("token %s busy", intent.TokenID)
	}

	order, err := m.orders.PlaceHeld(ctx, intent, title)
	if err != nil {
		m.locks.Unlock(intent.TokenID)
		return err
	}

	m.exiting[intent.TokenID] = order.ID
	return nil
}

// releaseCompleted libera los locks de tokens cuya posición ya no existe
// (la salida filló) o quedó en polvo.
func (m *Manager) releaseCompleted(positions []domain.Position) {
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		if !p.IsDust(m.cfg.DustMinSize) {
			held[p.TokenID] = true
		}
	}

	for token, orderID := range m.exiting {
		if held[token] {
			continue
		}
		m.locks.Unlock(token)
		delete(m.exiting, token)
		slog.Info("exit completed", "token", token, "order", orderID)
	}
}
