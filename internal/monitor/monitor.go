// Package monitor implements the Realtime Monitor: the single-threaded
// cooperative decision loop that ties the Store, Analyzers, Executor,
// Recovery Manager, and Scanner together. Each tick walks phase →
// interval → pending subscriptions → per-symbol dispatch → recovery
// sweep → periodic intraday scan → status reporting, driven by a single
// goroutine's ticker loop rather than a pool of workers.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/analyzer"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/recovery"
	"github.com/aristath/sentinel/internal/scanner"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Executor is the capability the Monitor needs from the Order Executor.
type Executor interface {
	ExecuteBuy(code string, price float64, qty int64, currentPositions int) bool
	ExecuteSell(code string, price float64, reason string) bool
	UpdateTrailingStop(code string, currentPrice float64)
}

// Recoverer is the capability the Monitor needs from the Recovery
// Manager.
type Recoverer interface {
	Sweep() int
}

// Monitor is the Realtime Monitor orchestrator.
type Monitor struct {
	store    *store.Store
	scanner  *scanner.Scanner
	executor Executor
	recovery Recoverer
	gateway  domain.Gateway
	schedule domain.PhaseSchedule
	perf     config.Performance
	risk     config.Risk
	strategy config.Strategy
	log      zerolog.Logger

	mu                sync.Mutex
	pendingSubs       []string
	subRetries        map[string]int
	lastIntradayScan  time.Time
	lastStatusReport  time.Time
	dailySummaryDone  bool
	accountCash       float64
}

// New builds a Monitor. accountCash seeds the virtual cash ledger used
// for position sizing (the broker exposes no balance endpoint; see
// DESIGN.md).
func New(st *store.Store, sc *scanner.Scanner, ex Executor, rec Recoverer, gw domain.Gateway, schedule domain.PhaseSchedule, perf config.Performance, risk config.Risk, strategy config.Strategy, accountCash float64, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:       st,
		scanner:     sc,
		executor:    ex,
		recovery:    rec,
		gateway:     gw,
		schedule:    schedule,
		perf:        perf,
		risk:        risk,
		strategy:    strategy,
		accountCash: accountCash,
		subRetries:  make(map[string]int),
		log:         log.With().Str("component", "monitor").Logger(),
	}
}

const maxSubscriptionRetries = 3

// QueueSubscription enqueues code for a batched Gateway subscription on
// a future tick (called by runIntradayScan once the Scanner's candidates
// are added to the Store).
func (m *Monitor) QueueSubscription(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSubs = append(m.pendingSubs, code)
}

// Run drives the tick loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		interval := m.Tick()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Tick runs one full decision cycle and returns the interval to sleep
// before the next one.
func (m *Monitor) Tick() time.Duration {
	now := time.Now()
	phase := m.testModePhase(now.In(domain.KST))

	m.processPendingSubscriptions()
	m.processSymbols(phase)
	m.enforceDayTradingExit(now.In(domain.KST))

	if m.recovery != nil {
		if n := m.recovery.Sweep(); n > 0 {
			m.log.Info().Int("recovered", n).Msg("recovery manager restored stuck orders")
		}
	}

	m.maybeRunIntradayScan(now, phase)
	m.maybeReport(now)

	return m.tickInterval(phase)
}

// testModePhase derives the market phase, substituting the test-mode
// reading on weekdays (treat the whole weekday as PhaseActive,
// regardless of clock) when strategy.TestMode is set. Weekends remain
// closed either way.
func (m *Monitor) testModePhase(kst time.Time) domain.MarketPhase {
	phase := m.schedule.Phase(kst)
	if !m.strategy.TestMode {
		return phase
	}
	if kst.Weekday() == time.Saturday || kst.Weekday() == time.Sunday {
		return phase
	}
	if phase == domain.PhaseClosed {
		return domain.PhaseActive
	}
	return phase
}

// enforceDayTradingExit flattens every open BOUGHT position once the
// configured day-trading cutoff passes, when strategy.NextDayForceSell is
// set — day-trading mode never carries a position overnight.
func (m *Monitor) enforceDayTradingExit(kst time.Time) {
	if !m.strategy.NextDayForceSell || m.strategy.DayTradingExitTime == "" || m.executor == nil {
		return
	}
	if kst.Format("15:04") < m.strategy.DayTradingExitTime {
		return
	}

	for _, snap := range m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusBought, domain.StatusPartialBought}) {
		m.executor.ExecuteSell(snap.Code, snap.Price, "day_trading_exit")
	}
}

// processPendingSubscriptions drains up to one batch of queued
// subscription requests, retrying a failure up to maxSubscriptionRetries
// times before dropping it.
func (m *Monitor) processPendingSubscriptions() {
	batchSize := m.perf.WebsocketSubscriptionBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	m.mu.Lock()
	if len(m.pendingSubs) == 0 {
		m.mu.Unlock()
		return
	}
	n := batchSize
	if n > len(m.pendingSubs) {
		n = len(m.pendingSubs)
	}
	batch := append([]string(nil), m.pendingSubs[:n]...)
	m.pendingSubs = m.pendingSubs[n:]
	m.mu.Unlock()

	for _, code := range batch {
		if err := m.gateway.Subscribe(code); err != nil {
			m.mu.Lock()
			m.subRetries[code]++
			retries := m.subRetries[code]
			m.mu.Unlock()

			if retries < maxSubscriptionRetries {
				m.mu.Lock()
				m.pendingSubs = append(m.pendingSubs, code)
				m.mu.Unlock()
			} else {
				m.log.Warn().Str("code", code).Msg("dropping subscription after repeated failures")
				m.mu.Lock()
				delete(m.subRetries, code)
				m.mu.Unlock()
			}
			continue
		}
		m.mu.Lock()
		delete(m.subRetries, code)
		m.mu.Unlock()
	}
}

// processSymbols runs sell analysis on held positions and buy analysis
// on watched symbols, dispatching to the Executor on a positive verdict.
func (m *Monitor) processSymbols(phase domain.MarketPhase) {
	held := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusBought, domain.StatusPartialBought})
	openPositions := len(held)

	for _, snap := range held {
		if m.executor != nil {
			m.executor.UpdateTrailingStop(snap.Code, snap.Price)
		}

		holdingMinutes := 0.0
		if !snap.Trade.BuyOrderTime.IsZero() {
			holdingMinutes = time.Since(snap.Trade.BuyOrderTime).Minutes()
		}

		reason, should := analyzer.AnalyzeSell(snap, phase, m.perf, holdingMinutes)
		if !should {
			continue
		}
		if m.executor != nil {
			m.executor.ExecuteSell(snap.Code, snap.Price, reason)
		}
	}

	if m.pastDayTradingExit() {
		return
	}

	watching := m.store.ByStatus(domain.StatusWatching)
	stockValue := m.heldStockValue(held)

	for _, snap := range watching {
		verdict := analyzer.AnalyzeBuy(snap, phase, m.perf)
		if !verdict.Should {
			continue
		}

		m.mu.Lock()
		cash := m.accountCash
		m.mu.Unlock()

		qty := analyzer.PositionSize(snap.Price, stockValue, cash, openPositions, phase, m.risk)
		if qty <= 0 || m.executor == nil {
			continue
		}
		if m.executor.ExecuteBuy(snap.Code, snap.Price, qty, openPositions) {
			m.mu.Lock()
			m.accountCash -= snap.Price * float64(qty)
			m.mu.Unlock()
			openPositions++
		}
	}
}

// pastDayTradingExit reports whether the configured day-trading cutoff
// has passed, closing the window for new buy entries (a position opened
// after this point would have no time left to exit same-day).
func (m *Monitor) pastDayTradingExit() bool {
	if m.strategy.TradingMode != "day" || m.strategy.DayTradingExitTime == "" {
		return false
	}
	return time.Now().In(domain.KST).Format("15:04") >= m.strategy.DayTradingExitTime
}

func (m *Monitor) heldStockValue(held []domain.Snapshot) float64 {
	total := 0.0
	for _, snap := range held {
		total += snap.Price * float64(snap.BuyQuantity)
	}
	return total
}

// CreditCash adds proceeds back to the virtual cash ledger, called by
// wiring once the Notice Processor confirms a sell.
func (m *Monitor) CreditCash(amount float64) {
	m.mu.Lock()
	m.accountCash += amount
	m.mu.Unlock()
}

// tickInterval derives the next sleep duration: the configured base
// (fast/normal), scaled down when a high share of tracked positions show
// volatility at or above threshold.
func (m *Monitor) tickInterval(phase domain.MarketPhase) time.Duration {
	base := m.perf.NormalMonitorInterval
	if base <= 0 {
		base = 10
	}
	fast := m.perf.FastMonitorInterval
	if fast <= 0 {
		fast = 3
	}

	held := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusBought, domain.StatusPartialBought})
	if len(held) == 0 {
		return time.Duration(base) * time.Second
	}

	volatile := 0
	for _, snap := range held {
		if absFloat(snap.Realtime.PriceChangeRate) >= m.perf.VolatilityThreshold {
			volatile++
		}
	}

	ratio := float64(volatile) / float64(len(held))
	if ratio >= m.perf.HighVolatilityPositionRatio && m.perf.HighVolatilityPositionRatio > 0 {
		return time.Duration(fast) * time.Second
	}
	return time.Duration(base) * time.Second
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// maybeRunIntradayScan fires the intraday rescan every
// intraday_scan_interval_minutes, adding results to the Store up to
// global capacity and queueing their subscriptions.
func (m *Monitor) maybeRunIntradayScan(now time.Time, phase domain.MarketPhase) {
	if phase == domain.PhaseClosed {
		return
	}
	interval := time.Duration(m.perf.IntradayScanIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.mu.Lock()
	due := now.Sub(m.lastIntradayScan) >= interval
	if due {
		m.lastIntradayScan = now
	}
	m.mu.Unlock()
	if !due || m.scanner == nil {
		return
	}

	go m.runIntradayScan()
}

func (m *Monitor) runIntradayScan() {
	remaining := m.perf.MaxIntradaySelectedStocks - m.store.Len()
	if remaining <= 0 {
		return
	}

	candidates := m.scanner.IntradayScanAdditionalStocks(remaining)
	for _, c := range candidates {
		if !m.store.AddIntradayStock(c.Code, c.Name, 0, domain.ReferenceData{}) {
			continue
		}
		m.QueueSubscription(c.Code)
		m.log.Info().Str("code", c.Code).Float64("score", c.Score).Msg("intraday scan added symbol")
	}
}

// maybeReport emits a status report on a minute boundary and a daily
// summary once after 16:00 KST.
func (m *Monitor) maybeReport(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastStatusReport) >= time.Minute {
		m.lastStatusReport = now
		m.log.Info().
			Int("tracked", m.store.Len()).
			Int("bought", len(m.store.ByStatus(domain.StatusBought))).
			Msg("status report")
	}

	kst := now.In(domain.KST)
	if !m.dailySummaryDone && kst.Hour() >= 16 {
		m.dailySummaryDone = true
		m.log.Info().
			Int("bought_remaining", len(m.store.ByStatus(domain.StatusBought))).
			Msg("daily summary")
	}
}

// ResetDaily clears the once-per-day report latch, for the pre-market
// reset.
func (m *Monitor) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailySummaryDone = false
}
