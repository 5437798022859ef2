// Package recovery implements the Order Recovery Manager: on a periodic
// tick from the Monitor, it finds orders stuck in an ordered state past
// stuck_order_timeout_minutes, attempts a broker cancel, and restores
// the prior status regardless of whether the cancel itself succeeded
// (the fill may have already happened and simply not been delivered
// yet — the notice processor will correct the record when it arrives).
package recovery

import (
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Canceller is the Order Executor capability the Manager needs. Kept
// minimal, mirroring the notice package's decoupling, to avoid an
// import cycle with internal/executor.
type Canceller interface {
	CancelOrder(code, side string) bool
}

// Counters tracks cumulative recovery activity across the life of the
// process, exposed for the status report.
type Counters struct {
	TotalRecoveries   int64
	CancelSuccesses   int64
	CancelFailures    int64
}

// Manager is the Order Recovery Manager.
type Manager struct {
	store    *store.Store
	executor Canceller
	cfg      config.Performance
	bus      *events.Bus // optional; nil means no event emission
	log      zerolog.Logger

	mu       sync.Mutex
	counters Counters
}

// New builds a Manager. bus may be nil.
func New(st *store.Store, executor Canceller, cfg config.Performance, bus *events.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		store:    st,
		executor: executor,
		cfg:      cfg,
		bus:      bus,
		log:      log.With().Str("component", "recovery").Logger(),
	}
}

// timeout returns the configured stuck-order timeout, defaulting to 3
// minutes when unset.
func (m *Manager) timeout() time.Duration {
	minutes := m.cfg.StuckOrderTimeoutMinutes
	if minutes <= 0 {
		minutes = 3
	}
	return time.Duration(minutes) * time.Minute
}

// Sweep scans every tracked symbol for a stuck order and recovers it.
// Returns the number of symbols recovered this pass.
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.timeout())
	recovered := 0

	buySnaps := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusBuyOrdered, domain.StatusPartialBought})
	for _, snap := range buySnaps {
		if snap.Trade.BuyOrderTime.IsZero() || snap.Trade.BuyOrderTime.After(cutoff) {
			continue
		}
		m.recoverBuy(snap.Code, snap.Trade)
		recovered++
	}

	sellSnaps := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusSellOrdered, domain.StatusPartialSold})
	for _, snap := range sellSnaps {
		if snap.Trade.SellOrderTime.IsZero() || snap.Trade.SellOrderTime.After(cutoff) {
			continue
		}
		m.recoverSell(snap.Code, snap.Trade)
		recovered++
	}

	return recovered
}

// recoverBuy cancels a stuck buy order and restores the status the fill
// state actually supports: BOUGHT when some quantity already filled
// (ordered_qty rewritten down to the filled amount so no further fill is
// expected against it), WATCHING when nothing filled at all.
func (m *Manager) recoverBuy(code string, trade domain.TradeInfo) {
	ok := m.tryCancel(code, "buy")

	target := domain.StatusWatching
	if trade.FilledQty > 0 {
		target = domain.StatusBought
	}

	m.store.ChangeStatus(code, target, "recovered: stuck buy order", func(ti *domain.TradeInfo) {
		if trade.FilledQty > 0 {
			ti.OrderedQty = trade.FilledQty
			ti.RemainingQty = 0
		} else {
			ti.OrderedQty = 0
			ti.RemainingQty = 0
		}
		ti.BuyOrderID, ti.BuyOrgNo = "", ""
		ti.BuyOrderTime = time.Time{}
	})

	m.log.Warn().Str("code", code).Bool("cancel_ok", ok).Msg("recovered stuck buy order")
	m.recordRecovery(ok)
}

// recoverSell cancels a stuck sell order and restores BOUGHT — the
// position is still held regardless of partial fills, since a partial
// sell leaves buy_quantity intact until the notice processor applies
// the fill.
func (m *Manager) recoverSell(code string, trade domain.TradeInfo) {
	ok := m.tryCancel(code, "sell")

	m.store.ChangeStatus(code, domain.StatusBought, "recovered: stuck sell order", func(ti *domain.TradeInfo) {
		ti.OrderedQty = 0
		ti.RemainingQty = 0
		ti.FilledQty = 0
		ti.SellOrderID, ti.SellOrgNo = "", ""
		ti.SellOrderTime = time.Time{}
	})

	m.log.Warn().Str("code", code).Bool("cancel_ok", ok).Msg("recovered stuck sell order")
	m.recordRecovery(ok)
}

func (m *Manager) tryCancel(code, side string) bool {
	if m.executor == nil {
		return false
	}
	return m.executor.CancelOrder(code, side)
}

func (m *Manager) recordRecovery(cancelOK bool) {
	m.mu.Lock()
	m.counters.TotalRecoveries++
	if cancelOK {
		m.counters.CancelSuccesses++
	} else {
		m.counters.CancelFailures++
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(events.OrderRecovered, cancelOK)
	}
}

// Counters returns a copy of the cumulative recovery counters.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// ForceCancelAllPending is the emergency path: cancel every order
// currently in any ordered or partial state, irrespective of age.
func (m *Manager) ForceCancelAllPending() int {
	n := 0

	buySnaps := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusBuyOrdered, domain.StatusPartialBought})
	for _, snap := range buySnaps {
		m.recoverBuy(snap.Code, snap.Trade)
		n++
	}

	sellSnaps := m.store.ByStatusBatch([]domain.TradingStatus{domain.StatusSellOrdered, domain.StatusPartialSold})
	for _, snap := range sellSnaps {
		m.recoverSell(snap.Code, snap.Trade)
		n++
	}

	return n
}
