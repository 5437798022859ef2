package analyzer

import (
	"testing"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

func baseCfg() config.Performance {
	return config.Performance{
		MinBidAskRatioForBuy:      0.8,
		MinBuyRatioForBuy:         45,
		MinContractStrengthForBuy: 100,
		MaxPriceChangeRateForBuy:  8.0,
		MinLiquidityScoreForBuy:   1.0,
		MinMomentumOpening:        5,
		MinMomentumActive:         5,
		MinMomentumLunch:          5,
		MinMomentumPreClose:       5,
		MinMomentumClosing:        5,
		BuyScoreOpeningThreshold:  20,
		BuyScoreActiveThreshold:   20,
		BuyScoreLunchThreshold:    20,
		BuyScorePreCloseThreshold: 20,
		BuyScoreClosingThreshold:  20,
	}
}

func goodSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Realtime: domain.RealtimeData{
			CurrentPrice:     71000,
			PriceChangeRate:  2.5,
			VolumeSpikeRatio: 2.0,
			ContractStrength: 130,
			BuyRatio:         60,
			MarketPressure:   domain.PressureBuy,
			VolumeTurnoverRate: 1.2,
			ContractVolume:   5000,
			TodayHigh:        72000,
			TodayLow:         70000,
			Bids:             [5]domain.PriceLevel{{Price: 70900, Quantity: 200}},
			Asks:             [5]domain.PriceLevel{{Price: 71000, Quantity: 100}},
		},
		Reference: domain.ReferenceData{SMA20: 70000, PatternScore: 12},
	}
}

func TestAnalyzeBuyRejectsTradingHalt(t *testing.T) {
	snap := goodSnapshot()
	snap.Realtime.TradingHalt = true
	v := AnalyzeBuy(snap, domain.PhaseActive, baseCfg())
	if v.Should || v.Reject != "trading_halt" {
		t.Errorf("expected trading_halt reject, got %+v", v)
	}
}

func TestAnalyzeBuyRejectsViActive(t *testing.T) {
	snap := goodSnapshot()
	snap.ViActive = true
	v := AnalyzeBuy(snap, domain.PhaseActive, baseCfg())
	if v.Should || v.Reject != "vi_active" {
		t.Errorf("expected vi_active reject, got %+v", v)
	}
}

func TestAnalyzeBuyRejectsSteepDrop(t *testing.T) {
	snap := goodSnapshot()
	snap.Realtime.PriceChangeRate = -6
	v := AnalyzeBuy(snap, domain.PhaseActive, baseCfg())
	if v.Should || v.Reject != "price_change_rate_below_floor" {
		t.Errorf("expected price floor reject, got %+v", v)
	}
}

func TestAnalyzeBuyAcceptsStrongCandidate(t *testing.T) {
	v := AnalyzeBuy(goodSnapshot(), domain.PhaseActive, baseCfg())
	if !v.Should {
		t.Errorf("expected strong candidate to qualify, got %+v", v)
	}
}

func TestAnalyzeBuyRejectsLowBuyRatio(t *testing.T) {
	snap := goodSnapshot()
	snap.Realtime.BuyRatio = 10
	v := AnalyzeBuy(snap, domain.PhaseActive, baseCfg())
	if v.Should || v.Reject != "buy_ratio_below_minimum" {
		t.Errorf("expected buy_ratio reject, got %+v", v)
	}
}
