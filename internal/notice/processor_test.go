package notice

import (
	"testing"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{ unsubscribed []string }

func (g *stubGateway) Unsubscribe(code string) error {
	g.unsubscribed = append(g.unsubscribed, code)
	return nil
}

type stubRecorder struct {
	calls []string
	pnl   float64
}

func (r *stubRecorder) RecordSellNotice(code string, buyPrice, sellPrice float64, qty int64, realizedPnL, realizedPnLRate float64, reason string, holdingMinutes float64) {
	r.calls = append(r.calls, code)
	r.pnl = realizedPnL
}

func newTestSetup(t *testing.T) (*store.Store, *stubGateway, *stubRecorder, *Processor) {
	t.Helper()
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
	})

	gw := &stubGateway{}
	rec := &stubRecorder{}
	risk := config.Risk{CommissionRate: 0.003}
	p := New(st, gw, rec, risk, zerolog.Nop())
	return st, gw, rec, p
}

func TestHandleIgnoresUnexecutedNotice(t *testing.T) {
	st, _, _, p := newTestSetup(t)
	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "1", "exec_price": 71000.0, "exec_qty": int64(10),
		"sell_buy_dvsn": "02", "ord_qty": int64(10),
	})
	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusBuyOrdered, status)
}

func TestHandleBuyFillFullyFilled(t *testing.T) {
	st, _, _, p := newTestSetup(t)
	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 71000.0, "exec_qty": int64(10),
		"sell_buy_dvsn": "02", "ord_qty": int64(10), "order_no": "O1", "exec_time": "091500",
	})
	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusBought, status)

	snap := st.Snapshot("005930")
	require.Equal(t, int64(10), snap.Trade.BuyQuantity)
	require.Equal(t, 71000.0, snap.Trade.BuyPrice)
}

func TestHandleBuyFillPartialThenComplete(t *testing.T) {
	st, _, _, p := newTestSetup(t)
	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 71000.0, "exec_qty": int64(4),
		"sell_buy_dvsn": "02", "ord_qty": int64(10), "order_no": "O1", "exec_time": "091500",
	})
	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusPartialBought, status)

	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 72000.0, "exec_qty": int64(6),
		"sell_buy_dvsn": "02", "ord_qty": int64(10), "order_no": "O1", "exec_time": "091501",
	})
	status, _ = st.Status("005930")
	require.Equal(t, domain.StatusBought, status)

	snap := st.Snapshot("005930")
	wantAvg := (71000.0*4 + 72000.0*6) / 10
	require.InDelta(t, wantAvg, snap.Trade.BuyPrice, 1e-9)
}

func TestHandleDedupesRepeatedNotice(t *testing.T) {
	st, _, _, p := newTestSetup(t)
	notice := map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 71000.0, "exec_qty": int64(10),
		"sell_buy_dvsn": "02", "ord_qty": int64(10), "order_no": "O1", "exec_time": "091500",
	}
	p.Handle(notice)
	p.Handle(notice)

	snap := st.Snapshot("005930")
	require.Equal(t, int64(10), snap.Trade.BuyQuantity, "duplicate notice must not double-apply the fill")
}

func TestHandleSellFillTriggersRecorderAndUnsubscribe(t *testing.T) {
	st, gw, rec, p := newTestSetup(t)
	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 71000.0, "exec_qty": int64(10),
		"sell_buy_dvsn": "02", "ord_qty": int64(10), "order_no": "O1", "exec_time": "091500",
	})
	st.ChangeStatus("005930", domain.StatusSellOrdered, "", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 10
		ti.RemainingQty = 10
		ti.FilledQty = 0
	})

	p.Handle(map[string]any{
		"stock_code": "005930", "exec_yn": "2", "exec_price": 73000.0, "exec_qty": int64(10),
		"sell_buy_dvsn": "01", "ord_qty": int64(10), "order_no": "O2", "exec_time": "100000",
	})

	status, _ := st.Status("005930")
	require.Equal(t, domain.StatusSold, status)
	require.Equal(t, []string{"005930"}, rec.calls)
	require.Equal(t, []string{"005930"}, gw.unsubscribed)
	require.Greater(t, rec.pnl, 0.0)
}
