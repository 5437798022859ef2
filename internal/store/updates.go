package store

import (
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
)

// UpdatePrice applies a Gateway-driven tick: current price, today's
// volume/high/low, and derived metrics. Fails silently (false) on an
// unknown code, matching the rest of the Store's contract.
func (s *Store) UpdatePrice(code string, price float64, volume int64, changeRate *float64) bool {
	r, ok := s.get(code)
	if !ok {
		return false
	}

	r.refMu.RLock()
	ref := r.ref
	r.refMu.RUnlock()

	r.rtMu.Lock()
	r.rt.CurrentPrice = price
	if volume > 0 {
		r.rt.TodayVolume = volume
	}
	applyDerivedLocked(r, ref, price, changeRate)
	r.rtMu.Unlock()

	s.recomputeUnrealized(r, price)
	s.invalidate(code)
	return true
}

// ContractUpdate is the subset of an H0STCNT0 contract frame the Store
// cares about, beyond the plain price/volume UpdatePrice already
// covers: contract-level pressure, strength, and VI/halt flags.
type ContractUpdate struct {
	Price            float64
	TodayVolume      int64
	ContractVolume   int64
	ContractStrength float64
	BuyRatio         float64
	MarketPressure   domain.MarketPressure
	TurnoverRate     float64
	ViStandardPrice  float64
	TradingHalt      bool
	HourClsCode      string
	ChangeRate       *float64
}

// ApplyContractUpdate folds one H0STCNT0 frame into the realtime
// sub-store: the same price/derived-metric computation as UpdatePrice,
// plus the contract-strength/pressure/VI/halt fields update_price alone
// doesn't carry.
func (s *Store) ApplyContractUpdate(code string, u ContractUpdate) bool {
	r, ok := s.get(code)
	if !ok {
		return false
	}

	r.refMu.RLock()
	ref := r.ref
	r.refMu.RUnlock()

	r.rtMu.Lock()
	r.rt.CurrentPrice = u.Price
	if u.TodayVolume > 0 {
		r.rt.TodayVolume = u.TodayVolume
	}
	r.rt.ContractVolume = u.ContractVolume
	r.rt.ContractStrength = u.ContractStrength
	r.rt.BuyRatio = u.BuyRatio
	r.rt.MarketPressure = u.MarketPressure
	r.rt.VolumeTurnoverRate = u.TurnoverRate
	r.rt.ViStandardPrice = u.ViStandardPrice
	r.rt.TradingHalt = u.TradingHalt
	r.rt.HourClsCode = u.HourClsCode
	applyDerivedLocked(r, ref, u.Price, u.ChangeRate)
	r.rtMu.Unlock()

	s.recomputeUnrealized(r, u.Price)
	s.invalidate(code)
	return true
}

// applyDerivedLocked updates today's high/low and the derived metrics
// (price_change_rate, volume_spike_ratio, volatility). Caller must hold
// r.rtMu for writing.
func applyDerivedLocked(r *record, ref domain.ReferenceData, price float64, changeRate *float64) {
	if r.rt.TodayHigh == 0 || price > r.rt.TodayHigh {
		r.rt.TodayHigh = price
	}
	if r.rt.TodayLow == 0 || price < r.rt.TodayLow {
		r.rt.TodayLow = price
	}

	if changeRate != nil {
		r.rt.PriceChangeRate = *changeRate
	} else if ref.YesterdayClose > 0 {
		r.rt.PriceChangeRate = (price - ref.YesterdayClose) / ref.YesterdayClose * 100
	}
	if ref.AvgDailyVolume > 0 {
		r.rt.VolumeSpikeRatio = float64(r.rt.TodayVolume) / ref.AvgDailyVolume
	}
	if r.rt.TodayLow > 0 {
		r.rt.Volatility = (r.rt.TodayHigh - r.rt.TodayLow) / r.rt.TodayLow * 100
	}
	r.rt.LastUpdated = monotonicAfter(r.rt.LastUpdated)
}

// recomputeUnrealized refreshes unrealized P&L under the status lock, in
// the same critical section as the status read, per spec.
func (s *Store) recomputeUnrealized(r *record, price float64) {
	r.statusMu.Lock()
	if r.status == domain.StatusBought && r.trade.BuyPrice > 0 {
		r.trade.UnrealizedPnL = (price - r.trade.BuyPrice) * float64(r.trade.BuyQuantity)
		r.trade.UnrealizedPnLRate = (price - r.trade.BuyPrice) / r.trade.BuyPrice * 100
	}
	r.statusMu.Unlock()
}

// monotonicAfter returns a timestamp not before prev, satisfying the
// invariant that RealtimeData.LastUpdated is monotonically non-decreasing.
func monotonicAfter(prev time.Time) time.Time {
	now := time.Now()
	if now.Before(prev) {
		return prev
	}
	return now
}

// ApplyOrderbook updates the bid/ask depth arrays atomically.
func (s *Store) ApplyOrderbook(code string, bids, asks [5]domain.PriceLevel) bool {
	r, ok := s.get(code)
	if !ok {
		return false
	}

	r.rtMu.Lock()
	r.rt.Bids = bids
	r.rt.Asks = asks
	r.rt.LastUpdated = monotonicAfter(r.rt.LastUpdated)
	r.rtMu.Unlock()

	s.invalidate(code)
	return true
}

// ChangeStatus mutates status and trade_info under the status lock.
// updates is applied to the record's TradeInfo before the new status is
// committed, so a single call can carry both the transition and its
// accompanying fill/order data. reason is accepted for logging/audit but
// does not gate the transition itself; IsValidTransition does.
func (s *Store) ChangeStatus(code string, newStatus domain.TradingStatus, reason string, updates func(*domain.TradeInfo)) bool {
	r, ok := s.get(code)
	if !ok {
		return false
	}

	r.statusMu.Lock()
	if !domain.IsValidTransition(r.status, newStatus) {
		r.statusMu.Unlock()
		return false
	}

	if updates != nil {
		updates(&r.trade)
	}
	oldStatus := r.status
	r.status = newStatus
	r.statusMu.Unlock()

	s.invalidate(code)
	s.emit(events.StatusChanged, events.StatusChangedData{
		Code: code, Old: string(oldStatus), New: string(newStatus), Reason: reason,
	})
	return true
}

// Status returns the current status for code, and whether code is known.
func (s *Store) Status(code string) (domain.TradingStatus, bool) {
	r, ok := s.get(code)
	if !ok {
		return "", false
	}
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status, true
}
