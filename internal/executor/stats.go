package executor

import "github.com/aristath/sentinel/internal/events"

// RecordSell appends a completed trade to the bounded recent-trades ring,
// updates the equity curve and running maximum drawdown, and latches the
// emergency stop when the sustained-loss pattern triggers (three
// consecutive losses with no intervening win). Called by the Execution
// Notice Processor once a sell reaches SOLD.
func (e *Executor) RecordSell(rec TradeRecord) {
	e.mu.Lock()

	e.trades = append(e.trades, rec)
	if len(e.trades) > maxTradeHistory {
		e.trades = e.trades[len(e.trades)-maxTradeHistory:]
	}

	e.dailyPnL += rec.RealizedPnL

	equity := rec.RealizedPnL
	if len(e.equityCurve) > 0 {
		equity += e.equityCurve[len(e.equityCurve)-1]
	}
	e.equityCurve = append(e.equityCurve, equity)
	if equity > e.peakEquity {
		e.peakEquity = equity
	}
	if drawdown := e.peakEquity - equity; drawdown > e.maxDrawdown {
		e.maxDrawdown = drawdown
	}

	justLatched := false
	if n := consecutiveLosses(e.trades); n >= consecutiveLossesForEmergencyStop && !e.emergencyStop {
		e.emergencyStop = true
		justLatched = true
		e.log.Warn().Int("consecutive_losses", n).Msg("emergency stop latched")
	}
	e.mu.Unlock()

	e.emit(events.TradeExecuted, events.TradeExecutedData{
		Code: rec.Code, Side: "sell", Quantity: rec.Qty, Price: rec.SellPrice,
		Reason: rec.Reason,
	})
	if justLatched {
		e.emit(events.EmergencyStop, nil)
	}
}

// RecordSellNotice adapts a completed sell (as computed by the Execution
// Notice Processor) into a TradeRecord and records it. Satisfies
// notice.SellRecorder.
func (e *Executor) RecordSellNotice(code string, buyPrice, sellPrice float64, qty int64, realizedPnL, realizedPnLRate float64, reason string, holdingMinutes float64) {
	e.RecordSell(TradeRecord{
		Code:            code,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		Qty:             qty,
		RealizedPnL:     realizedPnL,
		RealizedPnLRate: realizedPnLRate,
		IsWinning:       realizedPnL > 0,
		Reason:          reason,
		HoldingMinutes:  holdingMinutes,
	})
}

// consecutiveLosses counts the run of losing trades at the tail of
// trades, stopping at the first win.
func consecutiveLosses(trades []TradeRecord) int {
	n := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].IsWinning {
			break
		}
		n++
	}
	return n
}

// RecentWinRate is the win rate over the bounded recent-trades ring, or
// 0.5 (neutral) when there's no history yet.
func (e *Executor) RecentWinRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.trades) == 0 {
		return 0.5
	}
	wins := 0
	for _, t := range e.trades {
		if t.IsWinning {
			wins++
		}
	}
	return float64(wins) / float64(len(e.trades))
}

// MaxDrawdown returns the largest peak-to-trough equity decline observed
// so far.
func (e *Executor) MaxDrawdown() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxDrawdown
}

// DailyPnL returns the accumulated realized P&L for the current trading
// day.
func (e *Executor) DailyPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyPnL
}

// TradeHistory returns a defensive copy of the recent-trades ring.
func (e *Executor) TradeHistory() []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TradeRecord, len(e.trades))
	copy(out, e.trades)
	return out
}
