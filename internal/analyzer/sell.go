package analyzer

import (
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

// longHoldMildLossRate and a few other thresholds below aren't exposed as
// their own configuration keys; they're derived from existing ones to
// avoid growing the configuration surface for a single rarely-hit rule.
const longHoldMildLossRate = -1.0

// AnalyzeSell walks the priority-ordered sell-reason chain and returns the
// first matching reason, or ("", false) if the position should be held.
// holdingMinutes is the elapsed time since the position was filled.
func AnalyzeSell(snap domain.Snapshot, phase domain.MarketPhase, cfg config.Performance, holdingMinutes float64) (string, bool) {
	rt := snap.Realtime
	trade := snap.Trade
	pnlRate := trade.UnrealizedPnLRate

	// 1. Immediate.
	if rt.TradingHalt {
		return "trading_halt", true
	}
	if phase == domain.PhaseClosing {
		return "market_closing", true
	}
	if rt.PriceChangeRate >= cfg.LimitUpProfitRate {
		return "daily_limit_up_reached", true
	}
	if pnlRate <= cfg.EmergencyStopLossRate && rt.Volatility >= cfg.EmergencyVolatilityThreshold {
		return "emergency_drop", true
	}

	// 2. Stop-loss.
	if trade.StopLossPrice > 0 && rt.CurrentPrice <= trade.StopLossPrice {
		return "static_stop_loss", true
	}
	if dynamicStop := dynamicStopLossPrice(trade, holdingMinutes); dynamicStop > 0 && rt.CurrentPrice <= dynamicStop {
		return "time_based_dynamic_stop", true
	}
	if declineFromBuy(trade, rt) <= cfg.RapidDeclineFromBuyThreshold {
		return "rapid_decline_from_buy", true
	}

	// 3. Take-profit.
	if trade.DynamicTargetPrice > 0 && rt.CurrentPrice <= trade.DynamicTargetPrice && pnlRate > 0 {
		return "trailing_stop_hit", true
	}
	if trade.TargetPrice > 0 && rt.CurrentPrice >= trade.TargetPrice {
		return "static_target_reached", true
	}
	if phase == domain.PhasePreClose && pnlRate > 0 {
		return "pre_close_conservative_target", true
	}
	if holdingMinutes >= float64(cfg.LongHoldMinutes) && pnlRate > 0 {
		return "time_decay_target", true
	}

	// Everything past this point respects the minimum holding cooldown.
	if holdingMinutes < float64(cfg.MinHoldingMinutesBeforeSell) {
		return "", false
	}

	// 4. Technicals.
	if rt.ContractStrength < 100 && pnlRate <= 0 {
		return "weak_contract_strength_at_loss", true
	}
	if rt.BuyRatio < cfg.MinBuyRatioForBuy && pnlRate <= 0 {
		return "low_buy_ratio", true
	}
	if rt.MarketPressure == domain.PressureSell && pnlRate <= 0 {
		return "hostile_market_pressure", true
	}

	// 5. Orderbook.
	bidQty, askQty := depthTotals(rt)
	if askQty > 0 && bidQty > 0 {
		ratio := float64(bidQty) / float64(askQty)
		if ratio < 0.5 && pnlRate <= 2 {
			return "heavy_ask_pressure", true
		}
		if ratio < 0.8 && pnlRate < 0 {
			return "low_bid_interest_at_loss", true
		}
	}
	if spreadPct(rt) > excessiveSpreadPct {
		return "widening_spread_liquidity_loss", true
	}

	// 6. Volume pattern.
	if rt.VolumeSpikeRatio > 0 && rt.VolumeSpikeRatio < 0.5 {
		return "volume_drying_up", true
	}
	if rt.VolumeTurnoverRate > 0 && rt.VolumeTurnoverRate < 0.3 && holdingMinutes >= float64(cfg.LongHoldMinutes)/2 {
		return "low_turnover_over_time", true
	}

	// 7. Enhanced contract.
	if rt.MarketPressure == domain.PressureSell && rt.ContractStrength < 80 {
		return "sustained_sell_contract_dominance", true
	}
	if rt.ContractStrength < 60 {
		return "very_weak_contract_strength", true
	}
	if rt.MarketPressure == domain.PressureSell && askQty > bidQty*2 {
		return "combined_sell_pressure", true
	}

	// 8. Volatility-driven.
	if rt.Volatility >= cfg.VolatilityThreshold && pullbackFromHigh(rt) >= 3 {
		return "volatility_pullback_from_high", true
	}

	// 9. Time-based.
	if holdingMinutes >= float64(cfg.MaxHoldingDays)*24*60 {
		return "max_holding_days_exceeded", true
	}
	if holdingMinutes >= float64(cfg.LongHoldMinutes) && pnlRate <= longHoldMildLossRate {
		return "long_hold_opportunity_cost", true
	}

	return "", false
}

// dynamicStopLossPrice tightens the static stop as holding time grows:
// the gap between buy price and stop shrinks to 70% after 30 minutes and
// to 50% after 60. It only computes the price for this analysis;
// TradeInfo.StopLossPrice itself is left unchanged.
func dynamicStopLossPrice(trade domain.TradeInfo, holdingMinutes float64) float64 {
	if trade.StopLossPrice <= 0 || trade.BuyPrice <= 0 {
		return 0
	}
	multiplier := 1.0
	switch {
	case holdingMinutes >= 60:
		multiplier = 0.5
	case holdingMinutes >= 30:
		multiplier = 0.7
	}
	gap := trade.BuyPrice - trade.StopLossPrice
	return trade.BuyPrice - gap*multiplier
}

func declineFromBuy(trade domain.TradeInfo, rt domain.RealtimeData) float64 {
	if trade.BuyPrice <= 0 {
		return 0
	}
	return (rt.CurrentPrice - trade.BuyPrice) / trade.BuyPrice * 100
}

func pullbackFromHigh(rt domain.RealtimeData) float64 {
	if rt.TodayHigh <= 0 {
		return 0
	}
	return (rt.TodayHigh - rt.CurrentPrice) / rt.TodayHigh * 100
}
