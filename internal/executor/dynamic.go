package executor

import (
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

// initialTargets computes the stop-loss, static target, and initial
// trailing-stop target set on an accepted buy order.
func initialTargets(price float64, risk config.Risk) (stopLoss, target, dynamicTarget float64) {
	stopLoss = price * (1 + risk.StopLossRate)
	target = price * (1 + risk.TakeProfitRate)
	dynamicTarget = price * (1 - risk.TrailingStopRatio/100)
	return stopLoss, target, dynamicTarget
}

// DynamicStopLossRate scales the configured base stop-loss rate by the
// Executor's recent win rate (tighter when losing, looser when winning),
// by time-of-day (day-trading mode skips this adjustment — the position
// is being flattened anyway), and by a market-volatility proxy.
func (e *Executor) DynamicStopLossRate(phase domain.MarketPhase, tradingMode string, kospiDailyRangePct float64) float64 {
	rate := e.risk.StopLossRate

	winRate := e.RecentWinRate()
	switch {
	case winRate < 0.3:
		rate *= 0.7 // tighten: cut losses faster on a cold streak
	case winRate > 0.6:
		rate *= 1.3 // loosen: give winners more room
	}

	if tradingMode != "day" {
		switch phase {
		case domain.PhaseOpening:
			rate *= 1.2
		case domain.PhasePreClose:
			rate *= 0.6
		}
	}

	if kospiDailyRangePct > 2.5 {
		rate *= 1.0 + (kospiDailyRangePct-2.5)/10
	}

	return rate
}

// DynamicTargetRate mirrors DynamicStopLossRate for the take-profit side:
// winning streaks widen the target, losing streaks narrow it so gains
// lock in sooner.
func (e *Executor) DynamicTargetRate(phase domain.MarketPhase, tradingMode string, kospiDailyRangePct float64) float64 {
	rate := e.risk.TakeProfitRate

	winRate := e.RecentWinRate()
	switch {
	case winRate > 0.6:
		rate *= 1.3
	case winRate < 0.3:
		rate *= 0.7
	}

	if tradingMode != "day" {
		switch phase {
		case domain.PhaseOpening:
			rate *= 1.1
		case domain.PhasePreClose:
			rate *= 0.7
		}
	}

	if kospiDailyRangePct > 2.5 {
		rate *= 1.0 + (kospiDailyRangePct-2.5)/10
	}

	return rate
}

// UpdateTrailingStop advances the dynamic peak/target pair for an open
// position as the price makes new highs. Called by the Monitor on every
// tick for BOUGHT symbols.
func (e *Executor) UpdateTrailingStop(code string, currentPrice float64) {
	snap := e.store.Snapshot(code)
	if snap == nil || snap.Status != domain.StatusBought {
		return
	}
	if currentPrice <= snap.Trade.DynamicPeakPrice {
		return
	}

	newTarget := currentPrice * (1 - e.risk.TrailingStopRatio/100)
	e.store.ChangeStatus(code, domain.StatusBought, "trailing stop advanced", func(ti *domain.TradeInfo) {
		ti.DynamicPeakPrice = currentPrice
		ti.DynamicTargetPrice = newTarget
	})
}
