package analyzer

import (
	"testing"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

func TestPositionSizeCapsAtMaxPositionSize(t *testing.T) {
	risk := config.Risk{BaseInvestmentAmount: 5_000_000, MaxPositionSize: 1_000_000, MaxPositions: 10}
	shares := PositionSize(10000, 0, 10_000_000, 0, domain.PhaseActive, risk)
	if shares != 100 {
		t.Errorf("expected 100 shares (1,000,000/10,000), got %d", shares)
	}
}

func TestPositionSizeHalvedAtOpening(t *testing.T) {
	risk := config.Risk{BaseInvestmentAmount: 1_000_000, MaxPositionSize: 5_000_000, MaxPositions: 10}
	shares := PositionSize(10000, 0, 10_000_000, 0, domain.PhaseOpening, risk)
	if shares != 50 {
		t.Errorf("expected 50 shares (500,000/10,000), got %d", shares)
	}
}

func TestPositionSizeMinimumOneShare(t *testing.T) {
	risk := config.Risk{BaseInvestmentAmount: 100, MaxPositionSize: 5_000_000, MaxPositions: 10}
	shares := PositionSize(10000, 0, 10_000_000, 0, domain.PhaseActive, risk)
	if shares != 1 {
		t.Errorf("expected floor of 1 share, got %d", shares)
	}
}

func TestPositionSizeConservativeWhenNearlyFull(t *testing.T) {
	risk := config.Risk{BaseInvestmentAmount: 1_000_000, MaxPositionSize: 5_000_000, MaxPositions: 10}
	shares := PositionSize(10000, 0, 10_000_000, 9, domain.PhaseActive, risk)
	if shares != 50 {
		t.Errorf("expected 50 shares (500,000/10,000) under conservative ratio, got %d", shares)
	}
}
