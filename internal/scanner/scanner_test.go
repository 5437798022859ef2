package scanner

import (
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/symboldir"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubBroker struct {
	bars      map[string][]domain.DailyBar
	overnight map[string]*domain.OvernightQuote
	ranks     map[string][]domain.BrokerRankEntry
}

func (b *stubBroker) ApprovalKey() (string, error) { return "", nil }
func (b *stubBroker) PlaceOrder(string, string, int64, float64) (*domain.BrokerOrderAck, error) {
	return nil, nil
}
func (b *stubBroker) CancelOrder(string, string, string, int64) (*domain.BrokerOrderAck, error) {
	return nil, nil
}
func (b *stubBroker) DailyOHLCV(code string, n int) ([]domain.DailyBar, error) {
	bars, ok := b.bars[code]
	if !ok {
		return nil, errors.New("no data")
	}
	return bars, nil
}
func (b *stubBroker) OvernightSnapshot(code string) (*domain.OvernightQuote, error) {
	q, ok := b.overnight[code]
	if !ok {
		return nil, errors.New("no quote")
	}
	return q, nil
}
func (b *stubBroker) RankDisparity(n int) ([]domain.BrokerRankEntry, error) {
	return b.ranks["disparity"], nil
}
func (b *stubBroker) RankFluctuation(n int) ([]domain.BrokerRankEntry, error) {
	return b.ranks["fluctuation"], nil
}
func (b *stubBroker) RankVolume(n int) ([]domain.BrokerRankEntry, error) {
	return b.ranks["volume"], nil
}
func (b *stubBroker) RankBulkTransaction(n int) ([]domain.BrokerRankEntry, error) {
	return b.ranks["bulk"], nil
}

type stubGateway struct{ subscribed []string }

func (g *stubGateway) Connect() bool { return true }
func (g *stubGateway) Subscribe(code string) error {
	g.subscribed = append(g.subscribed, code)
	return nil
}
func (g *stubGateway) Unsubscribe(string) error       { return nil }
func (g *stubGateway) On(string, domain.GatewayCallback) {}
func (g *stubGateway) IsHealthy() bool                { return true }
func (g *stubGateway) HasCapacity() bool              { return true }
func (g *stubGateway) SafeCleanup()                   {}

func risingBars(n int, start float64) []domain.DailyBar {
	out := make([]domain.DailyBar, n)
	t := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := start + float64(i)*3
		out[i] = domain.DailyBar{Date: t.AddDate(0, 0, i), Open: c - 1, High: c + 2, Low: c - 3, Close: c, Volume: int64(1000 + i*200)}
	}
	return out
}

func newTestUniverse(t *testing.T, stocks []symboldir.Stock) *symboldir.Directory {
	t.Helper()
	dir := t.TempDir() + "/universe.json"
	doc := `{"total_stocks":` + strconv.Itoa(len(stocks)) + `,"market_filter":"KOSPI","stocks":[`
	for i, s := range stocks {
		if i > 0 {
			doc += ","
		}
		doc += `{"code":"` + s.Code + `","name":"` + s.Name + `","market":"` + s.Market + `"}`
	}
	doc += "]}"
	require.NoError(t, os.WriteFile(dir, []byte(doc), 0644))
	d, err := symboldir.Load(dir, zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestRunPreMarketScanSelectsQualifyingCandidates(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})

	broker := &stubBroker{
		bars: map[string][]domain.DailyBar{"005930": risingBars(20, 70000)},
		overnight: map[string]*domain.OvernightQuote{
			"005930": {Code: "005930", Price: 71000, GapRate: 1.5, TradingValue: 10_000_000_000},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	cfg := config.Performance{MaxPremarketSelectedStocks: 5, OpeningPatternScoreThreshold: 0, MinTradingValue: 1_000_000_000}

	sc := New(universe, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())

	ok := sc.RunPreMarketScan()
	require.True(t, ok)
	require.True(t, st.Contains("005930"))
	require.Contains(t, gw.subscribed, "005930")
}

type stubRecorder struct {
	premarketCandidates []Candidate
	intradayCandidates  []Candidate
}

func (r *stubRecorder) SavePreMarket(scanDate, scanTime string, candidates []Candidate, refs map[string]domain.ReferenceData) error {
	r.premarketCandidates = append(r.premarketCandidates, candidates...)
	return nil
}

func (r *stubRecorder) SaveIntraday(scanDate, scanTime string, c Candidate, snap domain.Snapshot, reason string) error {
	r.intradayCandidates = append(r.intradayCandidates, c)
	return nil
}

func TestRunPreMarketScanPersistsThroughRecorder(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})

	broker := &stubBroker{
		bars: map[string][]domain.DailyBar{"005930": risingBars(20, 70000)},
		overnight: map[string]*domain.OvernightQuote{
			"005930": {Code: "005930", Price: 71000, GapRate: 1.5, TradingValue: 10_000_000_000},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	cfg := config.Performance{MaxPremarketSelectedStocks: 5, OpeningPatternScoreThreshold: 0, MinTradingValue: 1_000_000_000}

	sc := New(universe, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())
	rec := &stubRecorder{}
	sc.SetRecorder(rec)

	require.True(t, sc.RunPreMarketScan())
	require.Len(t, rec.premarketCandidates, 1)
	require.Equal(t, "005930", rec.premarketCandidates[0].Code)
}

func TestIntradayScanAdditionalStocksPersistsThroughRecorder(t *testing.T) {
	universe := newTestUniverse(t, nil)
	broker := &stubBroker{ranks: map[string][]domain.BrokerRankEntry{
		"volume": {{Code: "005930", Name: "Samsung Electronics"}},
	}}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	cfg := config.Performance{MaxIntradaySelectedStocks: 5}

	sc := New(universe, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())
	rec := &stubRecorder{}
	sc.SetRecorder(rec)

	candidates := sc.IntradayScanAdditionalStocks(5)
	require.NotEmpty(t, candidates)
	require.Len(t, rec.intradayCandidates, len(candidates))
}

func TestRunPreMarketScanRejectsTradingHalt(t *testing.T) {
	universe := newTestUniverse(t, []symboldir.Stock{{Code: "005930", Name: "Samsung Electronics", Market: "KOSPI"}})
	broker := &stubBroker{
		bars: map[string][]domain.DailyBar{"005930": risingBars(20, 70000)},
		overnight: map[string]*domain.OvernightQuote{
			"005930": {Code: "005930", TradingHalt: true, TradingValue: 10_000_000_000},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	cfg := config.Performance{MaxPremarketSelectedStocks: 5, MinTradingValue: 1_000_000_000}

	sc := New(universe, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())
	ok := sc.RunPreMarketScan()
	require.False(t, ok)
	require.False(t, st.Contains("005930"))
}
