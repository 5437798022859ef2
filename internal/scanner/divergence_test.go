package scanner

import "testing"

func TestComputeDivergenceInsufficientHistory(t *testing.T) {
	tag, score := computeDivergence([]float64{1, 2, 3})
	if tag != DivergenceHold || score != 0 {
		t.Errorf("expected HOLD/0 for insufficient history, got %v/%v", tag, score)
	}
}

func TestComputeDivergenceBuyOnMildUptrend(t *testing.T) {
	closes := make([]float64, 25)
	base := 1000.0
	for i := range closes {
		closes[i] = base + float64(i)*2
	}
	tag, score := computeDivergence(closes)
	if score <= 0 {
		t.Errorf("expected positive score for rising series, got %v (%v)", score, tag)
	}
}
