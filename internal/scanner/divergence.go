package scanner

import "github.com/aristath/sentinel/pkg/indicators"

// DivergenceTag classifies the relationship between short/mid/long moving
// averages.
type DivergenceTag string

const (
	DivergenceBuy       DivergenceTag = "BUY"
	DivergenceMomentum  DivergenceTag = "MOMENTUM"
	DivergenceOverheated DivergenceTag = "OVERHEATED"
	DivergenceHold      DivergenceTag = "HOLD"
)

// computeDivergence tags the SMA(5,10,20) spread and scores it 0-25:
// a freshly-crossed-up short MA over a rising mid/long MA scores highest
// (BUY), a stack of SMAs too far separated scores as OVERHEATED (everyone
// already bought), and a flat stack scores HOLD.
func computeDivergence(closes []float64) (DivergenceTag, float64) {
	sma5 := indicators.SMA(closes, 5)
	sma10 := indicators.SMA(closes, 10)
	sma20 := indicators.SMA(closes, 20)
	if sma5 == nil || sma10 == nil || sma20 == nil || *sma20 == 0 {
		return DivergenceHold, 0
	}

	spreadShort := (*sma5 - *sma10) / *sma20 * 100
	spreadLong := (*sma10 - *sma20) / *sma20 * 100

	switch {
	case spreadShort > 5 || spreadLong > 8:
		return DivergenceOverheated, 5
	case spreadShort > 0 && spreadLong > 0 && spreadShort < 3:
		return DivergenceBuy, 25
	case spreadShort > 0 && spreadLong > 0:
		return DivergenceMomentum, 15
	default:
		return DivergenceHold, 8
	}
}
