// Package notice implements the Execution Notice Processor: applies the
// Gateway's normalized H0STCNI0 callback to the Stock Store, aggregating
// partial/full fills into a weighted-average price and driving the
// status transitions that only the Notice Processor and Order Executor
// are allowed to make (spec section 3's change_status gate).
package notice

import (
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// SellRecorder receives a completed trade once a sell reaches SOLD. It is
// satisfied by *executor.Executor's RecordSellNotice method, which main.go
// passes in directly,
// kept minimal here to avoid a notice→executor import cycle risk as the
// two packages grow.
type SellRecorder interface {
	RecordSellNotice(code string, buyPrice, sellPrice float64, qty int64, realizedPnL, realizedPnLRate float64, reason string, holdingMinutes float64)
}

// Unsubscriber is the Gateway capability the processor needs once a
// symbol reaches SOLD.
type Unsubscriber interface {
	Unsubscribe(code string) error
}

// Processor applies execution notices to the Store.
type Processor struct {
	store    *store.Store
	gateway  Unsubscriber
	recorder SellRecorder
	risk     config.Risk
	log      zerolog.Logger

	dedupMu sync.Mutex
	seen    map[string]bool
}

// New builds a Processor.
func New(st *store.Store, gateway Unsubscriber, recorder SellRecorder, risk config.Risk, log zerolog.Logger) *Processor {
	return &Processor{
		store:    st,
		gateway:  gateway,
		recorder: recorder,
		risk:     risk,
		log:      log.With().Str("component", "notice").Logger(),
		seen:     make(map[string]bool),
	}
}

// Handle processes one normalized H0STCNI0 field dict, as produced by
// gateway.parseExecutionNotice.
func (p *Processor) Handle(fields map[string]any) {
	code, _ := fields["stock_code"].(string)
	execYn, _ := fields["exec_yn"].(string)
	if code == "" || execYn != "2" {
		return
	}

	execPrice, _ := fields["exec_price"].(float64)
	execQty, _ := fields["exec_qty"].(int64)
	if execPrice <= 0 || execQty <= 0 {
		return
	}

	if !p.store.Contains(code) {
		return
	}

	orderNo, _ := fields["order_no"].(string)
	execTime, _ := fields["exec_time"].(string)
	if p.alreadyApplied(code, orderNo, execTime, execQty) {
		return
	}

	sellBuyDvsn, _ := fields["sell_buy_dvsn"].(string)
	ordQty, _ := fields["ord_qty"].(int64)

	switch sellBuyDvsn {
	case "02":
		p.applyBuyFill(code, ordQty, execPrice, execQty)
	case "01":
		p.applySellFill(code, ordQty, execPrice, execQty)
	}
}

// alreadyApplied guards against redelivery of the same notice: keyed on
// order_no+exec_time+exec_qty, which together identify one fill event.
func (p *Processor) alreadyApplied(code, orderNo, execTime string, execQty int64) bool {
	key := code + "|" + orderNo + "|" + execTime + "|" + itoa64(execQty)
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()
	if p.seen[key] {
		return true
	}
	p.seen[key] = true
	return false
}

// applyBuyFill aggregates a buy-side fill: filled_new = filled_prev +
// exec_qty, weighted-average fill price, and the PARTIAL_BOUGHT/BOUGHT
// transition.
func (p *Processor) applyBuyFill(code string, orderedQty int64, execPrice float64, execQty int64) {
	snap := p.store.Snapshot(code)
	if snap == nil {
		return
	}
	prev := snap.Trade
	if orderedQty <= 0 {
		orderedQty = prev.OrderedQty
	}

	filledNew := prev.FilledQty + execQty
	if filledNew > orderedQty {
		filledNew = orderedQty
	}
	avg := weightedAverage(prev.AvgExecPrice, prev.FilledQty, execPrice, execQty)
	remaining := orderedQty - filledNew

	next := domain.StatusPartialBought
	if remaining <= 0 {
		next = domain.StatusBought
	}

	p.store.ChangeStatus(code, next, "buy fill", func(ti *domain.TradeInfo) {
		ti.OrderedQty = orderedQty
		ti.FilledQty = filledNew
		ti.RemainingQty = remaining
		ti.AvgExecPrice = avg
		ti.BuyPrice = avg
		ti.BuyQuantity = filledNew
		ti.ExecutionTime = time.Now()
	})
}

// applySellFill mirrors applyBuyFill for the sell side, additionally
// computing realized P&L against the known buy price, net of commission
// applied once at full confirmation (see DESIGN.md, Open Question:
// commission application point).
func (p *Processor) applySellFill(code string, orderedQty int64, execPrice float64, execQty int64) {
	snap := p.store.Snapshot(code)
	if snap == nil {
		return
	}
	prev := snap.Trade
	if orderedQty <= 0 {
		orderedQty = prev.OrderedQty
	}

	filledNew := prev.FilledQty + execQty
	if filledNew > orderedQty {
		filledNew = orderedQty
	}
	avg := weightedAverage(prev.AvgExecPrice, prev.FilledQty, execPrice, execQty)
	remaining := orderedQty - filledNew

	var realizedPnL, realizedPnLRate float64
	if prev.BuyPrice > 0 {
		realizedPnL = (avg - prev.BuyPrice) * float64(filledNew)
		realizedPnLRate = (avg - prev.BuyPrice) / prev.BuyPrice * 100
	}

	next := domain.StatusPartialSold
	if remaining <= 0 {
		next = domain.StatusSold
	}

	p.store.ChangeStatus(code, next, "sell fill", func(ti *domain.TradeInfo) {
		ti.OrderedQty = orderedQty
		ti.FilledQty = filledNew
		ti.RemainingQty = remaining
		ti.AvgExecPrice = avg
		ti.RealizedPnL = realizedPnL
		ti.RealizedPnLRate = realizedPnLRate
		ti.ExecutionTime = time.Now()
	})

	if next != domain.StatusSold {
		return
	}

	commission := p.risk.CommissionRate * (prev.BuyPrice*float64(filledNew) + avg*float64(filledNew))
	netPnL := realizedPnL - commission
	netPnLRate := realizedPnLRate
	if prev.BuyPrice > 0 {
		netPnLRate = netPnL / (prev.BuyPrice * float64(filledNew)) * 100
	}

	holdingMinutes := 0.0
	if !prev.BuyOrderTime.IsZero() {
		holdingMinutes = time.Since(prev.BuyOrderTime).Minutes()
	}

	if p.recorder != nil {
		p.recorder.RecordSellNotice(code, prev.BuyPrice, avg, filledNew, netPnL, netPnLRate, prev.SellReason, holdingMinutes)
	}
	if p.gateway != nil {
		if err := p.gateway.Unsubscribe(code); err != nil {
			p.log.Warn().Str("code", code).Err(err).Msg("unsubscribe after sold failed")
		}
	}
}

func weightedAverage(prevAvg float64, prevQty int64, newPrice float64, newQty int64) float64 {
	totalQty := prevQty + newQty
	if totalQty <= 0 {
		return newPrice
	}
	return (prevAvg*float64(prevQty) + newPrice*float64(newQty)) / float64(totalQty)
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
