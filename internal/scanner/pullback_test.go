package scanner

import (
	"testing"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/symboldir"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDetectPullbackPatternOnSteadyUptrend(t *testing.T) {
	bars := risingBars(30, 50000)
	p := detectPullbackPattern(bars, 0.02)

	require.True(t, p.Midpoint.AboveMidpoint)
	require.True(t, p.Uptrend.Dominant)
	require.GreaterOrEqual(t, p.Confidence, 70.0)
	require.True(t, p.IsPullback)
}

func TestDetectPullbackPatternOnFlatNoise(t *testing.T) {
	bars := make([]domain.DailyBar, 10)
	for i := range bars {
		c := 10000.0
		bars[i] = domain.DailyBar{Open: c + 5, High: c + 10, Low: c - 10, Close: c - 5, Volume: 1000}
	}
	p := detectPullbackPattern(bars, 0.02)
	require.False(t, p.IsPullback)
}

func TestCalculatePullbackScoreIsBounded(t *testing.T) {
	bars := risingBars(30, 50000)
	p := detectPullbackPattern(bars, 0.02)
	score := calculatePullbackScore(p)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 100.0)
}

func TestPullbackScannerRunPreMarketScanSelectsQualifyingCandidates(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})
	broker := &stubBroker{bars: map[string][]domain.DailyBar{"005930": risingBars(30, 50000)}}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())

	ps := NewPullback(universe, broker, st, gw, zerolog.Nop())
	ok := ps.RunPreMarketScan(5, 0)

	require.True(t, ok)
	require.True(t, st.Contains("005930"))
	require.Contains(t, gw.subscribed, "005930")
}

func TestPullbackScannerRejectsTooShortHistory(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})
	broker := &stubBroker{bars: map[string][]domain.DailyBar{"005930": risingBars(5, 50000)}}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())

	ps := NewPullback(universe, broker, st, gw, zerolog.Nop())
	ok := ps.RunPreMarketScan(5, 0)

	require.False(t, ok)
}

func TestScannerDelegatesToAdvancedWhenConfigured(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})
	broker := &stubBroker{bars: map[string][]domain.DailyBar{"005930": risingBars(30, 50000)}}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())

	cfg := config.Performance{MaxPremarketSelectedStocks: 5, OpeningPatternScoreThreshold: 0}
	strategy := config.Strategy{UseAdvancedScanner: true}
	sc := New(universe, broker, st, gw, cfg, domain.PhaseSchedule{}, strategy, zerolog.Nop())
	ok := sc.RunPreMarketScan()

	require.True(t, ok)
	require.True(t, st.Contains("005930"))
}
