package monitor

import (
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	buyCalls  []string
	sellCalls []string
	sellOK    bool
	buyOK     bool
}

func (e *stubExecutor) ExecuteBuy(code string, price float64, qty int64, currentPositions int) bool {
	e.buyCalls = append(e.buyCalls, code)
	return e.buyOK
}
func (e *stubExecutor) ExecuteSell(code string, price float64, reason string) bool {
	e.sellCalls = append(e.sellCalls, code)
	return e.sellOK
}
func (e *stubExecutor) UpdateTrailingStop(code string, currentPrice float64) {}

type stubRecovery struct{ swept int }

func (r *stubRecovery) Sweep() int { return r.swept }

type stubGateway struct{ subscribed []string }

func (g *stubGateway) Connect() bool            { return true }
func (g *stubGateway) Subscribe(code string) error {
	g.subscribed = append(g.subscribed, code)
	return nil
}
func (g *stubGateway) Unsubscribe(string) error          { return nil }
func (g *stubGateway) On(string, domain.GatewayCallback) {}
func (g *stubGateway) IsHealthy() bool                   { return true }
func (g *stubGateway) HasCapacity() bool                 { return true }
func (g *stubGateway) SafeCleanup()                      {}

func testSchedule() domain.PhaseSchedule {
	return domain.PhaseSchedule{
		OpenTime: "09:00", OpeningEnd: "09:15", LunchStart: "12:00", LunchEnd: "13:00",
		PreCloseStart: "15:00", ClosingStart: "15:20", CloseTime: "15:30",
	}
}

func testPerf() config.Performance {
	return config.Performance{
		NormalMonitorInterval: 10, FastMonitorInterval: 3,
		WebsocketSubscriptionBatchSize: 5,
		MaxIntradaySelectedStocks:      20,
		IntradayScanIntervalMinutes:    5,
		BuyScoreActiveThreshold:        20,
		MinMomentumActive:              0,
	}
}

func TestTickDispatchesSellForBoughtPosition(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", func(ti *domain.TradeInfo) {
		ti.BuyOrderTime = time.Now().Add(-time.Hour)
	})
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
		ti.StopLossPrice = 69000
	})
	st.UpdatePrice("005930", 68000, 1000, nil) // below stop-loss

	ex := &stubExecutor{sellOK: true}
	rec := &stubRecovery{}
	gw := &stubGateway{}

	mon := New(st, nil, ex, rec, gw, testSchedule(), testPerf(), config.Risk{}, config.Strategy{}, 0, zerolog.Nop())
	mon.Tick()

	require.Equal(t, []string{"005930"}, ex.sellCalls)
}

func TestTickDispatchesBuyForWatchingSymbol(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ApplyContractUpdate("005930", store.ContractUpdate{
		Price: 70000, TodayVolume: 5000, ContractVolume: 500, ContractStrength: 150,
		BuyRatio: 70, MarketPressure: domain.PressureBuy, TurnoverRate: 2.0,
	})

	ex := &stubExecutor{buyOK: true}
	rec := &stubRecovery{}
	gw := &stubGateway{}

	risk := config.Risk{BaseInvestmentAmount: 1_000_000, MaxPositionSize: 3_000_000, MaxPositions: 10}
	perf := testPerf()
	perf.BuyScoreActiveThreshold = 0 // force acceptance for this smoke test
	perf.MinMomentumActive = 0

	mon := New(st, nil, ex, rec, gw, testSchedule(), perf, risk, config.Strategy{}, 2_000_000, zerolog.Nop())
	mon.Tick()

	require.Equal(t, []string{"005930"}, ex.buyCalls)
}

func TestProcessPendingSubscriptionsBatches(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	gw := &stubGateway{}
	perf := testPerf()
	perf.WebsocketSubscriptionBatchSize = 2

	mon := New(st, nil, &stubExecutor{}, &stubRecovery{}, gw, testSchedule(), perf, config.Risk{}, config.Strategy{}, 0, zerolog.Nop())
	mon.QueueSubscription("005930")
	mon.QueueSubscription("000660")
	mon.QueueSubscription("035420")

	mon.processPendingSubscriptions()
	require.Len(t, gw.subscribed, 2)

	mon.processPendingSubscriptions()
	require.Len(t, gw.subscribed, 3)
}

func TestTestModePhaseForcesActiveOnWeekdayOutsideHours(t *testing.T) {
	mon := New(nil, nil, nil, nil, nil, testSchedule(), config.Performance{}, config.Risk{}, config.Strategy{TestMode: true}, 0, zerolog.Nop())

	monday3am := time.Date(2026, 7, 27, 3, 0, 0, 0, domain.KST)
	require.Equal(t, domain.PhaseActive, mon.testModePhase(monday3am))

	saturday := time.Date(2026, 7, 25, 11, 0, 0, 0, domain.KST)
	require.Equal(t, domain.PhaseClosed, mon.testModePhase(saturday))
}

func TestTestModePhaseDisabledKeepsRealPhase(t *testing.T) {
	mon := New(nil, nil, nil, nil, nil, testSchedule(), config.Performance{}, config.Risk{}, config.Strategy{}, 0, zerolog.Nop())

	monday3am := time.Date(2026, 7, 27, 3, 0, 0, 0, domain.KST)
	require.Equal(t, domain.PhaseClosed, mon.testModePhase(monday3am))
}

func TestEnforceDayTradingExitFlattensOpenPositionsPastCutoff(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", nil)
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
	})

	ex := &stubExecutor{sellOK: true}
	strategy := config.Strategy{NextDayForceSell: true, DayTradingExitTime: "00:00"}
	mon := New(st, nil, ex, &stubRecovery{}, &stubGateway{}, testSchedule(), testPerf(), config.Risk{}, strategy, 0, zerolog.Nop())

	mon.enforceDayTradingExit(time.Now().In(domain.KST))
	require.Equal(t, []string{"005930"}, ex.sellCalls)
}

func TestEnforceDayTradingExitNoopWhenDisabled(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", nil)
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
	})

	ex := &stubExecutor{sellOK: true}
	mon := New(st, nil, ex, &stubRecovery{}, &stubGateway{}, testSchedule(), testPerf(), config.Risk{}, config.Strategy{}, 0, zerolog.Nop())

	mon.enforceDayTradingExit(time.Now().In(domain.KST))
	require.Empty(t, ex.sellCalls)
}

func TestProcessSymbolsSkipsNewBuysPastDayTradingExitCutoff(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ApplyContractUpdate("005930", store.ContractUpdate{
		Price: 70000, TodayVolume: 5000, ContractVolume: 500, ContractStrength: 150,
		BuyRatio: 70, MarketPressure: domain.PressureBuy, TurnoverRate: 2.0,
	})

	ex := &stubExecutor{buyOK: true}
	risk := config.Risk{BaseInvestmentAmount: 1_000_000, MaxPositionSize: 3_000_000, MaxPositions: 10}
	perf := testPerf()
	perf.BuyScoreActiveThreshold = 0
	perf.MinMomentumActive = 0
	strategy := config.Strategy{TradingMode: "day", DayTradingExitTime: "00:00"}

	mon := New(st, nil, ex, &stubRecovery{}, &stubGateway{}, testSchedule(), perf, risk, strategy, 2_000_000, zerolog.Nop())
	mon.processSymbols(domain.PhaseActive)

	require.Empty(t, ex.buyCalls)
}

func TestTickIntervalSpeedsUpUnderHighVolatility(t *testing.T) {
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{YesterdayClose: 70000})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", nil)
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
	})
	st.UpdatePrice("005930", 75000, 1000, nil) // +7.1%, exceeds threshold

	perf := testPerf()
	perf.VolatilityThreshold = 5.0
	perf.HighVolatilityPositionRatio = 0.5

	mon := New(st, nil, &stubExecutor{}, &stubRecovery{}, &stubGateway{}, testSchedule(), perf, config.Risk{}, config.Strategy{}, 0, zerolog.Nop())
	interval := mon.tickInterval(domain.PhaseActive)
	require.Equal(t, time.Duration(perf.FastMonitorInterval)*time.Second, interval)
}
