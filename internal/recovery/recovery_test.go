package recovery

import (
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubCanceller struct {
	calls   []string
	succeed bool
}

func (c *stubCanceller) CancelOrder(code, side string) bool {
	c.calls = append(c.calls, code+"|"+side)
	return c.succeed
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
}

func TestSweepRecoversStuckBuyOrderToWatching(t *testing.T) {
	st := newTestStore(t)
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.BuyOrderID = "ORD1"
		ti.BuyOrderTime = time.Now().Add(-5 * time.Minute)
	})

	canceller := &stubCanceller{succeed: true}
	mgr := New(st, canceller, config.Performance{StuckOrderTimeoutMinutes: 3}, nil, zerolog.Nop())

	n := mgr.Sweep()
	require.Equal(t, 1, n)

	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusWatching, status)
	require.Equal(t, []string{"005930|buy"}, canceller.calls)

	counters := mgr.Counters()
	require.Equal(t, int64(1), counters.TotalRecoveries)
	require.Equal(t, int64(1), counters.CancelSuccesses)
}

func TestSweepIgnoresFreshOrders(t *testing.T) {
	st := newTestStore(t)
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.BuyOrderID = "ORD1"
		ti.BuyOrderTime = time.Now()
	})

	mgr := New(st, &stubCanceller{succeed: true}, config.Performance{StuckOrderTimeoutMinutes: 3}, nil, zerolog.Nop())

	n := mgr.Sweep()
	require.Equal(t, 0, n)

	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusBuyOrdered, status)
}

func TestSweepPartiallyFilledBuyTransitionsToBoughtWithOrderedQtyDown(t *testing.T) {
	st := newTestStore(t)
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.BuyOrderID = "ORD1"
		ti.BuyOrderTime = time.Now().Add(-10 * time.Minute)
	})
	st.ChangeStatus("005930", domain.StatusPartialBought, "", func(ti *domain.TradeInfo) {
		ti.FilledQty = 4
		ti.RemainingQty = 6
		ti.BuyOrderTime = time.Now().Add(-10 * time.Minute)
	})

	mgr := New(st, &stubCanceller{succeed: false}, config.Performance{StuckOrderTimeoutMinutes: 3}, nil, zerolog.Nop())
	n := mgr.Sweep()
	require.Equal(t, 1, n)

	snap := st.Snapshot("005930")
	require.Equal(t, domain.StatusBought, snap.Status)
	require.Equal(t, int64(4), snap.Trade.OrderedQty)
	require.Equal(t, int64(0), snap.Trade.RemainingQty)

	counters := mgr.Counters()
	require.Equal(t, int64(1), counters.CancelFailures)
}

func TestSweepRecoversStuckSellOrderToBought(t *testing.T) {
	st := newTestStore(t)
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.BuyOrderTime = time.Now()
	})
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
	})
	st.ChangeStatus("005930", domain.StatusSellOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.SellOrderID = "ORD2"
		ti.SellOrderTime = time.Now().Add(-5 * time.Minute)
	})

	canceller := &stubCanceller{succeed: true}
	mgr := New(st, canceller, config.Performance{StuckOrderTimeoutMinutes: 3}, nil, zerolog.Nop())

	n := mgr.Sweep()
	require.Equal(t, 1, n)

	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusBought, status)
	require.Equal(t, []string{"005930|sell"}, canceller.calls)
}

func TestForceCancelAllPendingRecoversRegardlessOfAge(t *testing.T) {
	st := newTestStore(t)
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.BuyOrderTime = time.Now() // fresh, would be ignored by Sweep
	})

	mgr := New(st, &stubCanceller{succeed: true}, config.Performance{StuckOrderTimeoutMinutes: 3}, nil, zerolog.Nop())

	n := mgr.ForceCancelAllPending()
	require.Equal(t, 1, n)

	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusWatching, status)
}
