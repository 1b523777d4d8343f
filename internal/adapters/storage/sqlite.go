package storage

// sqlite.go — artefacto de revisión y audit trail, eficiente y sin ruido.
//
// Estrategia:
//   - `cycles`: resumen ligero por ciclo de scan. Siempre 1 fila.
//   - `eligibility`: UNA fila por mercado (UPSERT). Solo mercados que
//     pasaron el filtro — los rechazados no aportan señal como histórico.
//   - Cache en memoria: evita writes si la elegibilidad no cambió
//     (> 5% en reward estimado o cambio de estado). La mayoría de los
//     mercados no cambian entre ciclos.
//   - `orders`: audit trail completo de órdenes, una fila por orden.
//   - Prune automático al arrancar: cycles > 30d, eligibility no vista en 14d.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polyfarm/internal/domain"
)

const schema = `
-- Resumen ligero por ciclo de scan
CREATE TABLE IF NOT EXISTS cycles (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at    DATETIME NOT NULL,
    markets_seen  INTEGER  NOT NULL DEFAULT 0,
    eligible      INTEGER  NOT NULL DEFAULT 0,
    quoted        INTEGER  NOT NULL DEFAULT 0,
    orders_placed INTEGER  NOT NULL DEFAULT 0,
    orders_failed INTEGER  NOT NULL DEFAULT 0,
    partial_pages INTEGER  NOT NULL DEFAULT 0,
    best_reward   REAL     NOT NULL DEFAULT 0,
    duration_ms   INTEGER  NOT NULL DEFAULT 0
);

-- Una fila por mercado elegible, sin duplicados
CREATE TABLE IF NOT EXISTS eligibility (
    market_id        TEXT PRIMARY KEY,
    question         TEXT,
    category         TEXT NOT NULL DEFAULT '',
    competition_bars INTEGER NOT NULL DEFAULT 0,
    est_daily_reward REAL    NOT NULL DEFAULT 0,
    best_bid         REAL    NOT NULL DEFAULT 0,
    best_ask         REAL    NOT NULL DEFAULT 0,
    spread_pct       REAL    NOT NULL DEFAULT 0,
    first_seen       DATETIME NOT NULL,
    last_seen        DATETIME NOT NULL,
    peak_reward      REAL    NOT NULL DEFAULT 0
);

-- Audit trail de órdenes (nunca fuente de verdad, eso es el venue)
CREATE TABLE IF NOT EXISTS orders (
    id             TEXT PRIMARY KEY,
    venue_order_id TEXT NOT NULL DEFAULT '',
    condition_id   TEXT NOT NULL,
    token_id       TEXT NOT NULL,
    side           TEXT NOT NULL,
    price          REAL NOT NULL,
    size           REAL NOT NULL,
    filled_size    REAL NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    question       TEXT,
    fail_reason    TEXT NOT NULL DEFAULT '',
    placed_at      DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(scanned_at DESC);
CREATE INDEX IF NOT EXISTS idx_elig_last   ON eligibility(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_elig_reward ON eligibility(est_daily_reward DESC);
CREATE INDEX IF NOT EXISTS idx_orders_at   ON orders(placed_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_st   ON orders(status);
`

const (
	retentionCycles      = 30 * 24 * time.Hour
	retentionEligibility = 14 * 24 * time.Hour // la mayoría de mercados resuelven antes
	rewardChangePct      = 0.05                // 5% de cambio en reward → reescribir
)

// cachedState es el snapshot del último estado guardado de un mercado.
type cachedState struct {
	reward float64
	passes bool
}

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[string]cachedState // marketID → estado guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[string]cachedState),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveScan persiste el resumen del ciclo y hace upsert de las
// elegibilidades que cambiaron respecto al ciclo anterior.
func (s *SQLiteStorage) SaveScan(ctx context.Context, summary domain.CycleSummary, eligibilities []domain.RewardEligibility) error {
	now := time.Now().UTC()

	// 1. Resumen del ciclo — siempre una fila, pesa ~60 bytes
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles
		   (scanned_at, markets_seen, eligible, quoted, orders_placed,
		    orders_failed, partial_pages, best_reward, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		now, summary.MarketsSeen, summary.Eligible, summary.Quoted,
		summary.OrdersPlaced, summary.OrdersFailed, summary.PartialPages,
		summary.BestEstReward, summary.DurationMS,
	); err != nil {
		return fmt.Errorf("storage.SaveScan: insert cycle: %w", err)
	}

	// 2. Upsert de elegibles que cambiaron
	toWrite := s.filterChanged(eligibilities)
	if len(toWrite) == 0 {
		return nil // nada nuevo — la gran mayoría de ciclos terminan aquí
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveScan: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eligibility
			(market_id, question, category, competition_bars, est_daily_reward,
			 best_bid, best_ask, spread_pct, first_seen, last_seen, peak_reward)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			question         = excluded.question,
			category         = excluded.category,
			competition_bars = excluded.competition_bars,
			est_daily_reward = excluded.est_daily_reward,
			best_bid         = excluded.best_bid,
			best_ask         = excluded.best_ask,
			spread_pct       = excluded.spread_pct,
			last_seen        = excluded.last_seen,
			peak_reward      = MAX(peak_reward, excluded.est_daily_reward)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveScan: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range toWrite {
		if _, err := stmt.ExecContext(ctx,
			e.MarketID,
			e.Question,
			e.Category,
			e.CompetitionBars,
			e.EstDailyReward,
			e.BestBid,
			e.BestAsk,
			e.SpreadPct,
			now, // first_seen: ignorado en ON CONFLICT
			now, // last_seen
			e.EstDailyReward,
		); err != nil {
			return fmt.Errorf("storage.SaveScan: upsert %s: %w", e.MarketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveScan: commit: %w", err)
	}
	return nil
}

// SaveOrder registra una orden nueva en el audit trail.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, o domain.Order) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
			(id, venue_order_id, condition_id, token_id, side, price, size,
			 filled_size, status, question, fail_reason, placed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.VenueOrderID, o.ConditionID, o.TokenID, string(o.Side),
		o.Price, o.Size, o.FilledSize, string(o.Status), o.Question,
		o.FailReason, o.PlacedAt.UTC(), o.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveOrder: %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrder actualiza estado y fill de una orden registrada.
func (s *SQLiteStorage) UpdateOrder(ctx context.Context, o domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			venue_order_id = ?, filled_size = ?, status = ?,
			fail_reason = ?, updated_at = ?
		WHERE id = ?`,
		o.VenueOrderID, o.FilledSize, string(o.Status),
		o.FailReason, time.Now().UTC(), o.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateOrder: %s: %w", o.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateOrder: %s: order not found", o.ID)
	}
	return nil
}

// GetEligibilityHistory devuelve las elegibilidades cuyo last_seen está en
// el rango dado, ordenadas por reward estimado desc.
func (s *SQLiteStorage) GetEligibilityHistory(ctx context.Context, from, to time.Time) ([]domain.RewardEligibility, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, question, category, competition_bars,
		       est_daily_reward, best_bid, best_ask, spread_pct, last_seen
		FROM eligibility
		WHERE last_seen BETWEEN ? AND ?
		ORDER BY est_daily_reward DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetEligibilityHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RewardEligibility
	for rows.Next() {
		var e domain.RewardEligibility
		var lastSeen time.Time

		if err := rows.Scan(
			&e.MarketID,
			&e.Question,
			&e.Category,
			&e.CompetitionBars,
			&e.EstDailyReward,
			&e.BestBid,
			&e.BestAsk,
			&e.SpreadPct,
			&lastSeen,
		); err != nil {
			return nil, fmt.Errorf("storage.GetEligibilityHistory: scan row: %w", err)
		}

		e.ScannedAt = lastSeen
		e.Passes = true
		out = append(out, e)
	}

	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// filterChanged devuelve las elegibilidades que pasaron el filtro y
// cambiaron respecto al estado en caché, actualizando la caché.
func (s *SQLiteStorage) filterChanged(eligibilities []domain.RewardEligibility) []domain.RewardEligibility {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toWrite []domain.RewardEligibility
	for _, e := range eligibilities {
		// Solo persistir señal útil
		if !e.Passes {
			continue
		}

		prev, seen := s.cache[e.MarketID]
		changed := !seen ||
			prev.passes != e.Passes ||
			relChange(prev.reward, e.EstDailyReward) > rewardChangePct

		if changed {
			toWrite = append(toWrite, e)
			s.cache[e.MarketID] = cachedState{reward: e.EstDailyReward, passes: e.Passes}
		}
	}
	return toWrite
}

// warmCache precarga el último estado guardado para evitar reescrituras
// en el primer ciclo tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT market_id, est_daily_reward FROM eligibility`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var id string
		var reward float64
		if err := rows.Scan(&id, &reward); err != nil {
			continue
		}
		s.cache[id] = cachedState{reward: reward, passes: true}
	}
}

// pruneOld borra ciclos y elegibilidades fuera de la ventana de retención.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutCycles := time.Now().UTC().Add(-retentionCycles)
	cutElig := time.Now().UTC().Add(-retentionEligibility)

	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE scanned_at < ?`, cutCycles)
	s.db.ExecContext(ctx, `DELETE FROM eligibility WHERE last_seen < ?`, cutElig)
}

// relChange devuelve el cambio relativo entre dos valores.
func relChange(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	base := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) / base
}
