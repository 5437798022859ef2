// Package analyzer implements the buy/sell condition analyzers: pure
// functions over a Snapshot, the derived market phase, and the trading
// configuration. Neither analyzer mutates state or calls out to the
// broker; the Executor acts on their verdicts.
package analyzer

import (
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

// excessiveSpreadPct is the bid/ask spread, as a percentage of the best
// bid, above which a buy is rejected outright regardless of score. Not a
// tunable in the configuration surface; kept as a narrow internal
// constant since nothing else exercises it.
const excessiveSpreadPct = 3.0

// BuyVerdict is the outcome of a single buy-analysis pass.
type BuyVerdict struct {
	Should bool
	Score  float64
	Reject string // set when Should is false due to a hard reject or pre-filter
}

// AnalyzeBuy runs the full buy-condition chain: hard rejects, pre-filters,
// momentum scoring with a phase floor, then additive components compared
// against the phase's qualifying threshold.
func AnalyzeBuy(snap domain.Snapshot, phase domain.MarketPhase, cfg config.Performance) BuyVerdict {
	rt := snap.Realtime

	if reject := hardReject(snap, cfg); reject != "" {
		return BuyVerdict{Reject: reject}
	}

	bidQty, askQty := depthTotals(rt)
	liquidityScore := liquidityProxy(rt)

	if askQty > 0 && float64(bidQty)/float64(askQty) < cfg.MinBidAskRatioForBuy {
		return BuyVerdict{Reject: "bid_ask_ratio_below_minimum"}
	}
	if rt.BuyRatio < cfg.MinBuyRatioForBuy {
		return BuyVerdict{Reject: "buy_ratio_below_minimum"}
	}
	if rt.ContractStrength < cfg.MinContractStrengthForBuy {
		return BuyVerdict{Reject: "contract_strength_below_minimum"}
	}
	if rt.PriceChangeRate >= cfg.MaxPriceChangeRateForBuy {
		return BuyVerdict{Reject: "price_change_rate_too_high"}
	}
	if liquidityScore < cfg.MinLiquidityScoreForBuy {
		return BuyVerdict{Reject: "liquidity_score_below_minimum"}
	}

	momentum := momentumScore(rt, phase)
	if momentum < minMomentumForPhase(phase, cfg) {
		return BuyVerdict{Reject: "momentum_below_phase_floor", Score: momentum}
	}

	score := momentum
	score += divergenceComponent(snap)
	score += timeSensitivityComponent(rt, phase)
	score += orderbookStrengthComponent(bidQty, askQty)
	score += contractImbalanceComponent(rt)
	score += volumeQualityComponent(rt)
	score += buyRatioBonus(rt)
	score += patternBonus(snap.Reference)

	if score > 100 {
		score = 100
	}

	threshold := buyThresholdForPhase(phase, cfg)
	return BuyVerdict{Should: score >= threshold, Score: score}
}

// hardReject evaluates the unconditional rejects that short-circuit
// scoring entirely.
func hardReject(snap domain.Snapshot, cfg config.Performance) string {
	rt := snap.Realtime
	if rt.TradingHalt {
		return "trading_halt"
	}
	if snap.ViActive {
		return "vi_active"
	}
	if rt.PriceChangeRate <= -5 {
		return "price_change_rate_below_floor"
	}
	if spread := spreadPct(rt); spread > excessiveSpreadPct {
		return "excessive_spread"
	}
	if countRealtimeSignals(rt) < 2 {
		return "insufficient_realtime_data"
	}
	return ""
}

// countRealtimeSignals counts how many of {orderbook depth, turnover,
// contracts} carry data, used by the hard-reject "insufficient realtime
// data" rule.
func countRealtimeSignals(rt domain.RealtimeData) int {
	n := 0
	if rt.Bids[0].Price > 0 || rt.Asks[0].Price > 0 {
		n++
	}
	if rt.VolumeTurnoverRate > 0 {
		n++
	}
	if rt.ContractVolume > 0 {
		n++
	}
	return n
}

func spreadPct(rt domain.RealtimeData) float64 {
	bid, ask := rt.Bids[0].Price, rt.Asks[0].Price
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (ask - bid) / bid * 100
}

func depthTotals(rt domain.RealtimeData) (bidQty, askQty int64) {
	for _, l := range rt.Bids {
		bidQty += l.Quantity
	}
	for _, l := range rt.Asks {
		askQty += l.Quantity
	}
	return bidQty, askQty
}

// liquidityProxy stands in for a liquidity score (0-10-ish) from the
// volume spike ratio, since the Store doesn't carry a dedicated
// liquidity-score field.
func liquidityProxy(rt domain.RealtimeData) float64 {
	score := rt.VolumeSpikeRatio * 5
	if score > 10 {
		score = 10
	}
	return score
}

// momentumScore tiers the 0-40 momentum component by price change rate,
// volume spike, and contract strength, with a small phase multiplier.
func momentumScore(rt domain.RealtimeData, phase domain.MarketPhase) float64 {
	var score float64

	switch {
	case rt.PriceChangeRate >= 5:
		score += 18
	case rt.PriceChangeRate >= 3:
		score += 13
	case rt.PriceChangeRate >= 1:
		score += 8
	case rt.PriceChangeRate > 0:
		score += 3
	}

	switch {
	case rt.VolumeSpikeRatio >= 3:
		score += 12
	case rt.VolumeSpikeRatio >= 2:
		score += 8
	case rt.VolumeSpikeRatio >= 1.2:
		score += 4
	}

	switch {
	case rt.ContractStrength >= 150:
		score += 10
	case rt.ContractStrength >= 120:
		score += 6
	case rt.ContractStrength >= 100:
		score += 3
	}

	score *= phaseMultiplier(phase)
	if score > 40 {
		score = 40
	}
	return score
}

func phaseMultiplier(phase domain.MarketPhase) float64 {
	switch phase {
	case domain.PhaseOpening:
		return 1.1
	case domain.PhaseLunch:
		return 0.9
	case domain.PhasePreClose:
		return 0.8
	default:
		return 1.0
	}
}

func minMomentumForPhase(phase domain.MarketPhase, cfg config.Performance) float64 {
	switch phase {
	case domain.PhaseOpening:
		return cfg.MinMomentumOpening
	case domain.PhaseLunch:
		return cfg.MinMomentumLunch
	case domain.PhasePreClose:
		return cfg.MinMomentumPreClose
	case domain.PhaseClosing:
		return cfg.MinMomentumClosing
	default:
		return cfg.MinMomentumActive
	}
}

func buyThresholdForPhase(phase domain.MarketPhase, cfg config.Performance) float64 {
	switch phase {
	case domain.PhaseOpening:
		return cfg.BuyScoreOpeningThreshold
	case domain.PhaseLunch:
		return cfg.BuyScoreLunchThreshold
	case domain.PhasePreClose:
		return cfg.BuyScorePreCloseThreshold
	case domain.PhaseClosing:
		return cfg.BuyScoreClosingThreshold
	default:
		return cfg.BuyScoreActiveThreshold
	}
}

// divergenceComponent (0-25) rewards a price sitting above SMA20 while
// still within the middle of today's range, 30-70% of the way from low
// to high (room to run, not yet overheated).
func divergenceComponent(snap domain.Snapshot) float64 {
	ref := snap.Reference
	rt := snap.Realtime
	if ref.SMA20 <= 0 || rt.CurrentPrice <= 0 {
		return 0
	}

	aboveSMA := (rt.CurrentPrice - ref.SMA20) / ref.SMA20 * 100
	var score float64
	switch {
	case aboveSMA > 0 && aboveSMA <= 3:
		score = 18
	case aboveSMA > 3 && aboveSMA <= 6:
		score = 10
	case aboveSMA > 6:
		score = 3
	}

	if rt.TodayHigh > rt.TodayLow {
		pos := (rt.CurrentPrice - rt.TodayLow) / (rt.TodayHigh - rt.TodayLow)
		if pos >= 0.3 && pos <= 0.7 {
			score += 7
		}
	}
	if score > 25 {
		score = 25
	}
	return score
}

// timeSensitivityComponent (0-15) rewards action early in the session
// while recent volume activity is elevated.
func timeSensitivityComponent(rt domain.RealtimeData, phase domain.MarketPhase) float64 {
	var score float64
	switch phase {
	case domain.PhaseOpening:
		score = 10
	case domain.PhaseActive:
		score = 6
	case domain.PhaseLunch:
		score = 3
	default:
		score = 1
	}
	if rt.VolumeSpikeRatio >= 1.5 {
		score += 5
	}
	if score > 15 {
		score = 15
	}
	return score
}

// orderbookStrengthComponent (0-10) from the bid/ask quantity ratio.
func orderbookStrengthComponent(bidQty, askQty int64) float64 {
	if askQty <= 0 {
		return 0
	}
	ratio := float64(bidQty) / float64(askQty)
	switch {
	case ratio >= 2:
		return 10
	case ratio >= 1.5:
		return 7
	case ratio >= 1:
		return 4
	default:
		return 0
	}
}

// contractImbalanceComponent (0-8), approximated from the dominant market
// pressure side since the Store doesn't retain raw buy/sell contract
// counts, only the derived pressure classification.
func contractImbalanceComponent(rt domain.RealtimeData) float64 {
	switch rt.MarketPressure {
	case domain.PressureBuy:
		return 8
	case domain.PressureNeutral:
		return 3
	default:
		return 0
	}
}

// volumeQualityComponent (0-7) from turnover rate and volume spike ratio.
func volumeQualityComponent(rt domain.RealtimeData) float64 {
	var score float64
	if rt.VolumeTurnoverRate >= 1 {
		score += 4
	}
	if rt.VolumeSpikeRatio >= 1 {
		score += 3
	}
	if score > 7 {
		score = 7
	}
	return score
}

// buyRatioBonus (0-10) rewards a buy_ratio well above the minimum floor.
func buyRatioBonus(rt domain.RealtimeData) float64 {
	switch {
	case rt.BuyRatio >= 65:
		return 10
	case rt.BuyRatio >= 55:
		return 6
	case rt.BuyRatio >= 50:
		return 3
	default:
		return 0
	}
}

// patternBonus (0-10) scales the pre-market pattern score computed by the
// scanner at selection time.
func patternBonus(ref domain.ReferenceData) float64 {
	score := ref.PatternScore / patternScoreCap * 10
	if score > 10 {
		score = 10
	}
	return score
}

// patternScoreCap mirrors the scanner's cap (18) so the bonus here scales
// against the same ceiling the reference data was produced under.
const patternScoreCap = 18.0
