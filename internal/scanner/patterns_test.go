package scanner

import (
	"testing"

	"github.com/aristath/sentinel/internal/domain"
)

func bar(o, h, l, c float64) domain.DailyBar {
	return domain.DailyBar{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func TestDetectPatternsFindsHammer(t *testing.T) {
	bars := []domain.DailyBar{bar(100, 101.5, 90, 101)}
	names, score := detectPatterns(bars)
	if !contains(names, "hammer") {
		t.Errorf("expected hammer in %v", names)
	}
	if score <= 0 {
		t.Error("expected positive pattern score")
	}
}

func TestDetectPatternsFindsBullishEngulfing(t *testing.T) {
	bars := []domain.DailyBar{
		bar(100, 101, 95, 96),  // red
		bar(95, 103, 94, 102),  // green, engulfs prior body
	}
	names, _ := detectPatterns(bars)
	if !contains(names, "bullish_engulfing") {
		t.Errorf("expected bullish_engulfing in %v", names)
	}
}

func TestDetectPatternsScoreCappedAt18(t *testing.T) {
	bars := []domain.DailyBar{
		bar(100, 102, 90, 101),
		bar(100, 102, 90, 101),
		bar(100, 102, 90, 101),
		bar(100, 102, 90, 101),
		bar(100, 102, 90, 101),
	}
	_, score := detectPatterns(bars)
	if score > patternScoreCap {
		t.Errorf("score %v exceeds cap %v", score, patternScoreCap)
	}
}

func TestDetectPatternsEmptyInput(t *testing.T) {
	names, score := detectPatterns(nil)
	if names != nil || score != 0 {
		t.Errorf("expected zero value for empty input, got %v %v", names, score)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
