package store

import (
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

// Snapshot returns a fully atomic copy of code's state, taken under locks
// in the fixed order reference → realtime → status, and serves it from
// the per-code cache when still fresh. Unknown code returns nil.
func (s *Store) Snapshot(code string) *domain.Snapshot {
	s.cacheMu.Lock()
	if entry, ok := s.cache[code]; ok && time.Now().Before(entry.expires) {
		snap := entry.snapshot
		s.cacheMu.Unlock()
		return &snap
	}
	s.cacheMu.Unlock()

	r, ok := s.get(code)
	if !ok {
		return nil
	}

	snap := s.buildSnapshot(code, r)

	s.cacheMu.Lock()
	s.cache[code] = cacheEntry{snapshot: snap, expires: time.Now().Add(s.cfg.CacheTTL)}
	s.cacheMu.Unlock()

	return &snap
}

// buildSnapshot acquires the three sub-store locks in fixed order
// (reference → realtime → status) and copies out an immutable view.
func (s *Store) buildSnapshot(code string, r *record) domain.Snapshot {
	r.refMu.RLock()
	ref := r.ref
	r.refMu.RUnlock()

	r.rtMu.RLock()
	rt := r.rt
	r.rtMu.RUnlock()

	r.statusMu.RLock()
	status := r.status
	trade := r.trade
	isIntraday := r.isIntradayAdded
	r.statusMu.RUnlock()

	viActive := rt.ViStandardPrice > 0

	return domain.Snapshot{
		Code: code,
		Name: r.name,

		Price: rt.CurrentPrice,
		Bids:  rt.Bids,
		Asks:  rt.Asks,

		TodayVolume:    rt.TodayVolume,
		TodayHigh:      rt.TodayHigh,
		TodayLow:       rt.TodayLow,
		ContractVolume: rt.ContractVolume,

		Status: status,

		BuyPrice:    trade.BuyPrice,
		BuyQuantity: trade.BuyQuantity,

		UnrealizedPnL:     trade.UnrealizedPnL,
		UnrealizedPnLRate: trade.UnrealizedPnLRate,

		TradingHalt:     rt.TradingHalt,
		ViActive:        viActive,
		IsIntradayAdded: isIntraday,

		LastUpdated: rt.LastUpdated,

		Reference: ref,
		Realtime:  rt,
		Trade:     trade,
	}
}

// ByStatus returns a Snapshot for every symbol currently in status s.
// Each record's status lock is taken once for the match and again while
// the snapshot is copied, and the snapshot cache is bypassed.
func (s *Store) ByStatus(status domain.TradingStatus) []domain.Snapshot {
	return s.ByStatusBatch([]domain.TradingStatus{status})
}

// ByStatusBatch returns a Snapshot for every symbol whose status is in
// statuses.
func (s *Store) ByStatusBatch(statuses []domain.TradingStatus) []domain.Snapshot {
	want := make(map[domain.TradingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	recs := make(map[string]*record, len(s.records))
	for code, r := range s.records {
		recs[code] = r
	}
	s.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(recs))
	for code, r := range recs {
		r.statusMu.RLock()
		match := want[r.status]
		r.statusMu.RUnlock()
		if !match {
			continue
		}
		out = append(out, s.buildSnapshot(code, r))
	}
	return out
}
