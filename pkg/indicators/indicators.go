// Package indicators computes the technical indicators the pre-market
// and intraday scanners score candidates on. All functions are pure: they
// take a closing-price series (oldest first) and return the latest value,
// nil when there isn't enough history (EMA instead falls back to a plain
// mean).
package indicators

import "github.com/markcheno/go-talib"

func isNaN(f float64) bool { return f != f }

// RSI computes the latest Relative Strength Index over length periods
// (typically 14).
func RSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}
	out := talib.Rsi(closes, length)
	if len(out) == 0 || isNaN(out[len(out)-1]) {
		return nil
	}
	v := out[len(out)-1]
	return &v
}

// MACD computes the latest MACD line and signal line for the standard
// (12, 26, 9) parameterization.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

func MACD(closes []float64, fast, slow, signal int) *MACDResult {
	if len(closes) < slow+signal {
		return nil
	}
	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	if len(macd) == 0 || isNaN(macd[len(macd)-1]) {
		return nil
	}
	return &MACDResult{
		MACD:      macd[len(macd)-1],
		Signal:    sig[len(sig)-1],
		Histogram: hist[len(hist)-1],
	}
}

// BollingerBands holds the latest (upper, middle, lower) band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes Bollinger Bands (length, typically 20; stdDev
// multiplier, typically 2).
func Bollinger(closes []float64, length int, stdDev float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}
	upper, middle, lower := talib.BBands(closes, length, stdDev, stdDev, 0)
	if len(upper) == 0 || isNaN(upper[len(upper)-1]) {
		return nil
	}
	return &BollingerBands{
		Upper:  upper[len(upper)-1],
		Middle: middle[len(middle)-1],
		Lower:  lower[len(lower)-1],
	}
}

// SMA computes the latest Simple Moving Average over length periods.
func SMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}
	out := talib.Sma(closes, length)
	if len(out) == 0 || isNaN(out[len(out)-1]) {
		return nil
	}
	v := out[len(out)-1]
	return &v
}

// EMA computes the latest Exponential Moving Average over length
// periods, falling back to a plain mean when there isn't enough history
// for a proper EMA.
func EMA(closes []float64, length int) *float64 {
	if len(closes) == 0 {
		return nil
	}
	if len(closes) < length {
		m := mean(closes)
		return &m
	}
	out := talib.Ema(closes, length)
	if len(out) > 0 && !isNaN(out[len(out)-1]) {
		v := out[len(out)-1]
		return &v
	}
	m := mean(closes[len(closes)-length:])
	return &m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
