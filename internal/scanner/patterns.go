package scanner

import "github.com/aristath/sentinel/internal/domain"

// patternReliability weights each candle pattern's contribution to the
// composite pattern score (capped at 18 overall, per spec section 4.3).
var patternReliability = map[string]float64{
	"hammer":           6.0,
	"bullish_engulfing": 7.0,
	"doji":             3.0,
	"dragonfly_doji":    5.0,
	"inverted_hammer":   4.0,
}

const patternScoreCap = 18.0

// detectPatterns scans the last 5 bars of bars (oldest first) for simple
// single/two-candle patterns and returns the names found plus the capped
// composite score.
func detectPatterns(bars []domain.DailyBar) (names []string, score float64) {
	if len(bars) == 0 {
		return nil, 0
	}
	window := bars
	if len(window) > 5 {
		window = window[len(window)-5:]
	}

	for i, b := range window {
		body := b.Close - b.Open
		absBody := abs(body)
		rng := b.High - b.Low
		if rng <= 0 {
			continue
		}
		upperShadow := b.High - max(b.Open, b.Close)
		lowerShadow := min(b.Open, b.Close) - b.Low

		if isHammer(absBody, upperShadow, lowerShadow, rng) {
			names = append(names, "hammer")
		}
		if isDragonflyDoji(absBody, upperShadow, lowerShadow, rng) {
			names = append(names, "dragonfly_doji")
		} else if isDoji(absBody, rng) {
			names = append(names, "doji")
		}
		if isInvertedHammer(absBody, upperShadow, lowerShadow, rng) {
			names = append(names, "inverted_hammer")
		}
		if i > 0 && isBullishEngulfing(window[i-1], b) {
			names = append(names, "bullish_engulfing")
		}
	}

	for _, n := range names {
		score += patternReliability[n]
	}
	if score > patternScoreCap {
		score = patternScoreCap
	}
	return names, score
}

// isHammer: small body near the top of the range, long lower shadow
// (≥ 2x body), short upper shadow.
func isHammer(absBody, upperShadow, lowerShadow, rng float64) bool {
	return absBody > 0 && lowerShadow >= 2*absBody && upperShadow <= absBody*0.5 && absBody/rng <= 0.35
}

// isInvertedHammer: small body near the bottom of the range, long upper
// shadow, short lower shadow.
func isInvertedHammer(absBody, upperShadow, lowerShadow, rng float64) bool {
	return absBody > 0 && upperShadow >= 2*absBody && lowerShadow <= absBody*0.5 && absBody/rng <= 0.35
}

// isDoji: body is a negligible fraction of the range.
func isDoji(absBody, rng float64) bool {
	return rng > 0 && absBody/rng <= 0.1
}

// isDragonflyDoji: doji with almost no upper shadow and a long lower one.
func isDragonflyDoji(absBody, upperShadow, lowerShadow, rng float64) bool {
	return isDoji(absBody, rng) && upperShadow/rng <= 0.1 && lowerShadow/rng >= 0.6
}

// isBullishEngulfing: prev candle red, current candle green and its body
// fully engulfs the previous body.
func isBullishEngulfing(prev, cur domain.DailyBar) bool {
	prevRed := prev.Close < prev.Open
	curGreen := cur.Close > cur.Open
	return prevRed && curGreen && cur.Open <= prev.Close && cur.Close >= prev.Open
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
