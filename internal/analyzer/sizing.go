package analyzer

import (
	"math"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
)

// PositionSize computes the share quantity to buy at price, given the
// account's current stock value and available cash, the number of
// currently open positions, and the market phase.
func PositionSize(price float64, stockValue, availableCash float64, openPositions int, phase domain.MarketPhase, risk config.Risk) int64 {
	if price <= 0 {
		return 0
	}

	amount := risk.BaseInvestmentAmount
	if risk.UseAccountRatio {
		amount = risk.PositionSizeRatio * (stockValue + availableCash)
	}
	if amount > risk.MaxPositionSize {
		amount = risk.MaxPositionSize
	}
	if amount > availableCash {
		amount = availableCash
	}

	amount *= phaseSizeMultiplier(phase)
	amount *= positionLoadMultiplier(openPositions, risk.MaxPositions)

	if amount <= 0 {
		return 0
	}

	shares := int64(math.Floor(amount / price))
	if shares < 1 {
		shares = 1
	}
	return shares
}

func phaseSizeMultiplier(phase domain.MarketPhase) float64 {
	switch phase {
	case domain.PhaseOpening:
		return 0.5
	case domain.PhasePreClose:
		return 0.3
	default:
		return 1.0
	}
}

// conservativeRatio scales sizing down once the position book is mostly
// full, easing into the remaining capacity rather than filling it in one
// shot.
const conservativeRatio = 0.5

func positionLoadMultiplier(open, max int) float64 {
	if max <= 0 {
		return 1.0
	}
	if float64(open)/float64(max) >= 0.8 {
		return conservativeRatio
	}
	return 1.0
}
