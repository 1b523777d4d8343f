package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyfarm/internal/adapters/storage"
	"github.com/alejandrodnm/polyfarm/internal/domain"
)

func makeEligibility(marketID string, reward float64, passes bool) domain.RewardEligibility {
	e := domain.RewardEligibility{
		MarketID:        marketID,
		Question:        "Will X happen?",
		Category:        "Economics",
		CompetitionBars: 3,
		EstDailyReward:  reward,
		BestBid:         0.40,
		BestAsk:         0.44,
		SpreadPct:       0.095,
		Passes:          passes,
		ScannedAt:       time.Now().UTC().Truncate(time.Second),
	}
	if !passes {
		e.Reason = "spread above ceiling"
	}
	return e
}

func makeSummary(seen, eligible int) domain.CycleSummary {
	return domain.CycleSummary{
		MarketsSeen:   seen,
		Eligible:      eligible,
		BestEstReward: 4.2,
		DurationMS:    120,
	}
}

func TestSQLiteStorage_SaveScanAndHistory(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	elig := []domain.RewardEligibility{
		makeEligibility("0xaaa", 24.0, true),
		makeEligibility("0xbbb", 12.5, true),
		makeEligibility("0xccc", 3.0, false), // los rechazados no se persisten
	}

	require.NoError(t, db.SaveScan(context.Background(), makeSummary(3, 2), elig))

	from := time.Now().UTC().Add(-time.Minute)
	to := time.Now().UTC().Add(time.Minute)
	history, err := db.GetEligibilityHistory(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Ordenados por reward desc
	assert.InDelta(t, 24.0, history[0].EstDailyReward, 0.001)
	assert.Equal(t, "0xaaa", history[0].MarketID)
	assert.InDelta(t, 12.5, history[1].EstDailyReward, 0.001)
}

func TestSQLiteStorage_UpsertKeepsOneRowPerMarket(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveScan(ctx, makeSummary(1, 1),
		[]domain.RewardEligibility{makeEligibility("0xaaa", 10.0, true)}))

	// Mismo mercado, reward distinto → misma fila, reward actualizado
	require.NoError(t, db.SaveScan(ctx, makeSummary(1, 1),
		[]domain.RewardEligibility{makeEligibility("0xaaa", 20.0, true)}))

	history, err := db.GetEligibilityHistory(ctx,
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 20.0, history[0].EstDailyReward, 0.001)
}

func TestSQLiteStorage_OrderAuditTrail(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	order := domain.Order{
		ID:          "local-1",
		ConditionID: "0xaaa",
		TokenID:     "tok-1",
		Side:        domain.SideBuy,
		Price:       0.42,
		Size:        100,
		Status:      domain.StatusPending,
		PlacedAt:    time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
		Question:    "Will X happen?",
	}

	require.NoError(t, db.SaveOrder(ctx, order))

	order.VenueOrderID = "0xdeadbeef"
	order.Status = domain.StatusLive
	require.NoError(t, db.UpdateOrder(ctx, order))

	order.FilledSize = 40
	order.Status = domain.StatusPartial
	require.NoError(t, db.UpdateOrder(ctx, order))

	// Actualizar una orden inexistente es un error
	missing := order
	missing.ID = "no-such-order"
	assert.Error(t, db.UpdateOrder(ctx, missing))
}

func TestSQLiteStorage_SaveScanEmptyEligibilities(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	// El resumen del ciclo se guarda aunque no haya elegibles
	require.NoError(t, db.SaveScan(context.Background(), makeSummary(50, 0), nil))
}
