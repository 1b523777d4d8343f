package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyfarm/internal/application/orders"
	"github.com/alejandrodnm/polyfarm/internal/domain"
	"github.com/alejandrodnm/polyfarm/internal/retry"
)

// fakeExecutor permite programar respuestas por llamada y registra lo
// que el manager le pide.
type fakeExecutor struct {
	mu          sync.Mutex
	placeCalls  int
	placed      int
	placeErrs   []error // errores a devolver en orden; agotados = éxito
	placeReqs   []domain.PlaceOrderRequest
	open        []domain.VenueOrder
	openErr     error
	cancelErrs  map[string]error
	cancelCalls []string
}

func (f *fakeExecutor) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeReqs = append(f.placeReqs, req)
	call := f.placeCalls
	f.placeCalls++
	if call < len(f.placeErrs) && f.placeErrs[call] != nil {
		return domain.PlacedOrder{}, f.placeErrs[call]
	}
	f.placed++
	return domain.PlacedOrder{VenueOrderID: fmt.Sprintf("0xord%d", f.placed), Status: "live"}, nil
}

func (f *fakeExecutor) CancelOrder(_ context.Context, venueID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, venueID)
	if f.cancelErrs != nil {
		return f.cancelErrs[venueID]
	}
	return nil
}

func (f *fakeExecutor) GetOpenOrders(context.Context) ([]domain.VenueOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.openErr
}

type fakeStorage struct {
	mu      sync.Mutex
	saved   []domain.Order
	updated []domain.Order
}

func (f *fakeStorage) SaveScan(context.Context, domain.CycleSummary, []domain.RewardEligibility) error {
	return nil
}

func (f *fakeStorage) SaveOrder(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, o)
	return nil
}

func (f *fakeStorage) UpdateOrder(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, o)
	return nil
}

func (f *fakeStorage) GetEligibilityHistory(context.Context, time.Time, time.Time) ([]domain.RewardEligibility, error) {
	return nil, nil
}

func (f *fakeStorage) Close() error { return nil }

func (f *fakeStorage) lastUpdate() domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updated[len(f.updated)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (f *fakeNotifier) NotifyCycle(context.Context, []domain.RewardEligibility) error { return nil }

func (f *fakeNotifier) NotifyAlert(_ context.Context, a domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeNotifier) kinds() []domain.AlertKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]domain.AlertKind, 0, len(f.alerts))
	for _, a := range f.alerts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

var fastRetry = retry.Policy{MaxAttempts: 3, BaseWait: time.Millisecond}

func testIntent() domain.QuoteIntent {
	return domain.QuoteIntent{
		ConditionID: "0xcond",
		TokenID:     "111",
		Side:        domain.SideBuy,
		Price:       0.42,
		Size:        10,
	}
}

func TestPlace_SuccessGoesLive(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeStorage{}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, store, nil, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "Will it rain?")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLive, order.Status)
	assert.Equal(t, "0xord1", order.VenueOrderID)
	assert.NotEmpty(t, order.ID)

	require.Len(t, store.saved, 1)
	assert.Equal(t, domain.StatusPending, store.saved[0].Status)
	assert.Equal(t, domain.StatusLive, store.lastUpdate().Status)

	require.Len(t, exec.placeReqs, 1)
	assert.Equal(t, "111", exec.placeReqs[0].TokenID)
	assert.Equal(t, domain.SideBuy, exec.placeReqs[0].Side)
}

func TestPlace_TransientErrorRetried(t *testing.T) {
	exec := &fakeExecutor{placeErrs: []error{domain.ErrTransient}}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLive, order.Status)
	assert.Equal(t, 2, exec.placeCalls)
}

func TestPlace_SignatureErrorNeverRetried(t *testing.T) {
	exec := &fakeExecutor{placeErrs: []error{
		domain.ErrSignature, domain.ErrSignature, domain.ErrSignature,
	}}
	store := &fakeStorage{}
	notif := &fakeNotifier{}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, store, notif, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSignature)

	// Un rechazo de firma es un defecto de configuración: un solo intento
	// y alerta inmediata.
	assert.Equal(t, 1, exec.placeCalls)
	assert.Equal(t, domain.StatusError, order.Status)
	assert.Contains(t, notif.kinds(), domain.AlertError)
}

func TestPlace_VenueRejectionIsRejected(t *testing.T) {
	exec := &fakeExecutor{placeErrs: []error{domain.ErrVenueRejected}}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "")
	require.Error(t, err)

	assert.Equal(t, 1, exec.placeCalls)
	assert.Equal(t, domain.StatusRejected, order.Status)
	assert.NotEmpty(t, order.FailReason)
}

func TestPlace_ExhaustedRetriesEndsInError(t *testing.T) {
	exec := &fakeExecutor{placeErrs: []error{
		domain.ErrTransient, domain.ErrTransient, domain.ErrTransient,
	}}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "")
	require.Error(t, err)

	assert.Equal(t, 3, exec.placeCalls)
	assert.Equal(t, domain.StatusError, order.Status)
}

func TestPlace_RespectsCapitalCap(t *testing.T) {
	exec := &fakeExecutor{}
	mgr := orders.New(orders.Config{Retry: fastRetry, MarketCapitalCap: 8}, exec, &fakeStorage{}, nil, nil)

	_, err := mgr.Place(context.Background(), testIntent(), "") // 0.42 × 10 = 4.20
	require.NoError(t, err)

	second := testIntent()
	second.TokenID = "222"
	_, err = mgr.Place(context.Background(), second, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capital cap")
	assert.Equal(t, 1, exec.placeCalls)
}

func TestPlace_CapIsPerMarket(t *testing.T) {
	exec := &fakeExecutor{}
	mgr := orders.New(orders.Config{Retry: fastRetry, MarketCapitalCap: 5}, exec, &fakeStorage{}, nil, nil)

	_, err := mgr.Place(context.Background(), testIntent(), "")
	require.NoError(t, err)

	other := testIntent()
	other.ConditionID = "0xother"
	other.TokenID = "222"
	_, err = mgr.Place(context.Background(), other, "")
	require.NoError(t, err)
}

func TestPlace_LockedTokenSkipped(t *testing.T) {
	exec := &fakeExecutor{}
	locks := orders.NewTokenLocks()
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, locks)

	require.True(t, locks.TryLock("111"))
	defer locks.Unlock("111")

	_, err := mgr.Place(context.Background(), testIntent(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.Equal(t, 0, exec.placeCalls)
}

func TestReconcile_AdoptsVenueState(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeStorage{}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, store, nil, nil)

	first, err := mgr.Place(context.Background(), testIntent(), "")
	require.NoError(t, err)

	second := testIntent()
	second.TokenID = "222"
	_, err = mgr.Place(context.Background(), second, "")
	require.NoError(t, err)

	// El venue solo lista la primera, parcialmente fillada. La segunda
	// desapareció sin fills: cancelada fuera de nuestro control.
	exec.mu.Lock()
	exec.open = []domain.VenueOrder{{
		VenueOrderID: "0xord1",
		TokenID:      "111",
		Side:         domain.SideBuy,
		Price:        0.42,
		Size:         10,
		FilledSize:   4,
	}}
	exec.mu.Unlock()

	live, err := mgr.Reconcile(context.Background())
	require.NoError(t, err)

	assert.True(t, live[domain.QuoteKey{TokenID: "111", Side: domain.SideBuy, Price: 0.42}])
	assert.Len(t, live, 1)

	var sawPartial, sawCancelled bool
	store.mu.Lock()
	for _, u := range store.updated {
		if u.ID == first.ID && u.Status == domain.StatusPartial && u.FilledSize == 4 {
			sawPartial = true
		}
		if u.TokenID == "222" && u.Status == domain.StatusCancelled {
			sawCancelled = true
		}
	}
	store.mu.Unlock()
	assert.True(t, sawPartial, "partially filled order should move to PARTIALLY_FILLED")
	assert.True(t, sawCancelled, "vanished order should move to CANCELLED")
}

func TestReconcile_FullyFilledOrder(t *testing.T) {
	exec := &fakeExecutor{}
	store := &fakeStorage{}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, store, nil, nil)

	_, err := mgr.Place(context.Background(), testIntent(), "")
	require.NoError(t, err)

	// Primero el venue la reporta fillada al completo, luego desaparece.
	exec.mu.Lock()
	exec.open = []domain.VenueOrder{{
		VenueOrderID: "0xord1", TokenID: "111", Side: domain.SideBuy,
		Price: 0.42, Size: 10, FilledSize: 10,
	}}
	exec.mu.Unlock()
	_, err = mgr.Reconcile(context.Background())
	require.NoError(t, err)

	exec.mu.Lock()
	exec.open = nil
	exec.mu.Unlock()
	live, err := mgr.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live)

	assert.Equal(t, domain.StatusFilled, store.lastUpdate().Status)
	assert.Equal(t, 0.0, mgr.LiveNotional("0xcond"))
}

func TestCancel(t *testing.T) {
	exec := &fakeExecutor{}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, nil)

	order, err := mgr.Place(context.Background(), testIntent(), "")
	require.NoError(t, err)

	assert.True(t, mgr.Cancel(context.Background(), order.ID))
	assert.Equal(t, []string{"0xord1"}, exec.cancelCalls)

	// Ya terminal: segundo cancel es no-op.
	assert.False(t, mgr.Cancel(context.Background(), order.ID))
	assert.False(t, mgr.Cancel(context.Background(), "missing"))
}

func TestCancelAll_CollectsPerOrderFailures(t *testing.T) {
	exec := &fakeExecutor{
		open: []domain.VenueOrder{
			{VenueOrderID: "0x1", TokenID: "111"},
			{VenueOrderID: "0x2", TokenID: "222"},
			{VenueOrderID: "0x3", TokenID: "333"},
		},
		cancelErrs: map[string]error{"0x2": errors.New("boom")},
	}
	mgr := orders.New(orders.Config{Retry: fastRetry}, exec, &fakeStorage{}, nil, nil)

	cancelled, errs := mgr.CancelAll(context.Background())
	assert.Equal(t, 2, cancelled)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "0x2")
}

func TestCancelAll_NoOpenOrders(t *testing.T) {
	mgr := orders.New(orders.Config{Retry: fastRetry}, &fakeExecutor{}, &fakeStorage{}, nil, nil)

	cancelled, errs := mgr.CancelAll(context.Background())
	assert.Zero(t, cancelled)
	assert.Nil(t, errs)
}

func TestTokenLocks(t *testing.T) {
	locks := orders.NewTokenLocks()

	assert.True(t, locks.TryLock("a"))
	assert.False(t, locks.TryLock("a"))
	assert.True(t, locks.Locked("a"))

	locks.Unlock("a")
	assert.False(t, locks.Locked("a"))
	assert.True(t, locks.TryLock("a"))
}
