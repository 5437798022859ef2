// Package executor implements the Order Executor: converts analyzer
// decisions into broker orders, tracks order identifiers through the
// Store, computes dynamic stop-loss/take-profit targets, aggregates
// trade statistics, and enforces daily limits and the emergency-stop
// latch. A single mutex-guarded struct, narrow in surface, mirroring
// the rate-aware client shape used elsewhere in this module for order
// submission.
package executor

import (
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// consecutiveLossesForEmergencyStop is the run of losing trades, with no
// intervening win, that latches the emergency stop.
const consecutiveLossesForEmergencyStop = 3

// Executor converts buy/sell decisions into broker calls and tracks the
// resulting order lifecycle in the Store.
type Executor struct {
	store   *store.Store
	broker  domain.Broker
	gateway domain.Gateway
	risk    config.Risk
	bus     *events.Bus // optional; nil means no event emission
	log     zerolog.Logger

	mu              sync.Mutex
	dailyTradeCount int
	dailyPnL        float64
	emergencyStop   bool
	trades          []TradeRecord
	equityCurve     []float64
	peakEquity      float64
	maxDrawdown     float64
}

// TradeRecord is one completed (sold) position, appended to the bounded
// recent-trades ring on each confirmed sell.
type TradeRecord struct {
	Code           string
	BuyPrice       float64
	SellPrice      float64
	Qty            int64
	RealizedPnL    float64
	RealizedPnLRate float64
	IsWinning      bool
	Reason         string
	HoldingMinutes float64
}

// maxTradeHistory bounds the recent-trades ring used for the win-rate
// computation that feeds dynamic stop/target sizing.
const maxTradeHistory = 50

// New builds an Executor. bus may be nil, in which case no events are
// emitted.
func New(st *store.Store, broker domain.Broker, gateway domain.Gateway, risk config.Risk, bus *events.Bus, log zerolog.Logger) *Executor {
	return &Executor{
		store:   st,
		broker:  broker,
		gateway: gateway,
		risk:    risk,
		bus:     bus,
		log:     log.With().Str("component", "executor").Logger(),
	}
}

// emit fans out to the event bus when one was configured.
func (e *Executor) emit(evt events.EventType, data any) {
	if e.bus != nil {
		e.bus.Emit(evt, data)
	}
}

// ExecuteBuy submits a buy order for code. It auto-reduces qty to satisfy
// max_position_size and rejects when the symbol already has an open buy
// leg, the emergency stop is latched, the daily trade count or daily P&L
// floor is breached, or the position book is full.
func (e *Executor) ExecuteBuy(code string, price float64, qty int64, currentPositions int) bool {
	status, ok := e.store.Status(code)
	if !ok {
		return false
	}
	switch status {
	case domain.StatusBuyOrdered, domain.StatusPartialBought, domain.StatusBought:
		return false
	}

	e.mu.Lock()
	if e.emergencyStop {
		e.mu.Unlock()
		e.log.Warn().Str("code", code).Msg("buy rejected: emergency stop latched")
		return false
	}
	if e.dailyTradeCount >= e.risk.MaxDailyTrades {
		e.mu.Unlock()
		return false
	}
	if e.dailyPnL <= e.risk.MaxDailyLoss {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	if currentPositions >= e.risk.MaxPositions {
		return false
	}

	if price > 0 && e.risk.MaxPositionSize > 0 {
		maxQty := int64(e.risk.MaxPositionSize / price)
		if maxQty < 1 {
			maxQty = 1
		}
		if qty > maxQty {
			qty = maxQty
		}
	}
	if qty < 1 {
		return false
	}

	ack, err := e.broker.PlaceOrder(code, "buy", qty, price)
	if err != nil || !brokerAccepted(ack, err) {
		e.log.Error().Str("code", code).Err(err).Msg("buy order rejected by broker")
		return false
	}

	stopLoss, target, dynTarget := initialTargets(price, e.risk)

	ok = e.store.ChangeStatus(code, domain.StatusBuyOrdered, "buy submitted", func(ti *domain.TradeInfo) {
		ti.OrderedQty = qty
		ti.RemainingQty = qty
		ti.StopLossPrice = stopLoss
		ti.TargetPrice = target
		ti.DynamicPeakPrice = price
		ti.DynamicTargetPrice = dynTarget
		if ack != nil {
			ti.BuyOrderID = ack.OrderID
			ti.BuyOrgNo = ack.OrgNo
			ti.BuyOrderTime = orderTimeOrNow(ack)
		}
	})
	if !ok {
		return false
	}

	e.mu.Lock()
	e.dailyTradeCount++
	e.mu.Unlock()

	e.emit(events.TradeExecuted, events.TradeExecutedData{
		Code: code, Side: "buy", Quantity: qty, Price: price, OrderID: ack.OrderID,
	})
	return true
}

// ExecuteSell submits a sell order for code. Requires status BOUGHT; if
// price is omitted (<=0), the cached current price from the Store is
// used. The final price floor is the current market price, guarding
// against an inverted limit order.
func (e *Executor) ExecuteSell(code string, price float64, reason string) bool {
	snap := e.store.Snapshot(code)
	if snap == nil || snap.Status != domain.StatusBought {
		return false
	}

	if price <= 0 {
		price = snap.Price
	}
	if price < snap.Price {
		price = snap.Price
	}

	qty := snap.Trade.BuyQuantity
	if qty <= 0 {
		return false
	}

	ack, err := e.broker.PlaceOrder(code, "sell", qty, price)
	if err != nil || !brokerAccepted(ack, err) {
		e.log.Error().Str("code", code).Err(err).Msg("sell order rejected by broker")
		return false
	}

	ok := e.store.ChangeStatus(code, domain.StatusSellOrdered, reason, func(ti *domain.TradeInfo) {
		ti.OrderedQty = qty
		ti.RemainingQty = qty
		ti.FilledQty = 0
		ti.SellReason = reason
		if ack != nil {
			ti.SellOrderID = ack.OrderID
			ti.SellOrgNo = ack.OrgNo
			ti.SellOrderTime = orderTimeOrNow(ack)
		}
	})
	if ok {
		e.emit(events.TradeExecuted, events.TradeExecutedData{
			Code: code, Side: "sell", Quantity: qty, Price: price, OrderID: ack.OrderID, Reason: reason,
		})
	}
	return ok
}

// CancelOrder cancels the full open quantity for code on the given side
// ("buy" or "sell") at the broker. It does not touch the Store's status:
// the caller (the Recovery Manager) owns deciding and applying the
// post-cancel status, since that decision depends on how much of the
// order had already filled.
func (e *Executor) CancelOrder(code, side string) bool {
	snap := e.store.Snapshot(code)
	if snap == nil {
		return false
	}

	var orderID, orgNo string
	var qty int64

	switch side {
	case "buy":
		orderID, orgNo, qty = snap.Trade.BuyOrderID, snap.Trade.BuyOrgNo, snap.Trade.OrderedQty-snap.Trade.FilledQty
	case "sell":
		orderID, orgNo, qty = snap.Trade.SellOrderID, snap.Trade.SellOrgNo, snap.Trade.OrderedQty-snap.Trade.FilledQty
	default:
		return false
	}
	if orderID == "" {
		return false
	}

	_, err := e.broker.CancelOrder(code, orderID, orgNo, qty)
	if err != nil {
		e.log.Warn().Str("code", code).Err(err).Msg("cancel order failed")
		return false
	}
	return true
}

// brokerAccepted implements the normalized success rule: an explicit
// Accepted flag, or simply a non-nil ack with an order ID when the
// broker's response carried no rt_cd at all (the empty/simulated case).
func brokerAccepted(ack *domain.BrokerOrderAck, err error) bool {
	if err != nil {
		return false
	}
	if ack == nil {
		return false
	}
	return ack.Accepted || ack.OrderID != ""
}

func orderTimeOrNow(ack *domain.BrokerOrderAck) time.Time {
	if ack != nil && !ack.OrderTime.IsZero() {
		return ack.OrderTime
	}
	return time.Now()
}

// EmergencyStop reports whether new buys are currently blocked.
func (e *Executor) EmergencyStop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emergencyStop
}

// ResetEmergencyStop clears the latch, e.g. after operator intervention
// or at the start of a new trading day.
func (e *Executor) ResetEmergencyStop() {
	e.mu.Lock()
	e.emergencyStop = false
	e.mu.Unlock()
}

// ResetDaily clears the daily trade counter and P&L accumulator for a new
// trading day. Trade history and the equity curve persist across days.
func (e *Executor) ResetDaily() {
	e.mu.Lock()
	e.dailyTradeCount = 0
	e.dailyPnL = 0
	e.mu.Unlock()
}
