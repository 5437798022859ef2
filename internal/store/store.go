// Package store implements the Stock Store: the thread-safe per-symbol
// record of metadata, reference bars, realtime ticks, trading status, and
// trade info that mediates between the WebSocket Gateway and the decision
// loop. Three read-write locks (sync.RWMutex, not reentrant) guard the
// three sub-stores in the fixed
// order reference → realtime → status; a separate cache lock is never
// held while acquiring any of the three, so a cache miss can never
// deadlock against a concurrent status or price update.
package store

import (
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/rs/zerolog"
)

type record struct {
	name string

	refMu sync.RWMutex
	ref   domain.ReferenceData

	rtMu sync.RWMutex
	rt   domain.RealtimeData

	statusMu        sync.RWMutex
	status          domain.TradingStatus
	trade           domain.TradeInfo
	isIntradayAdded bool
}

// Config carries the capacity pools and cache TTL spec section 6 exposes
// under performance.*. Bus is optional; when set, the Store emits
// SymbolAdded/SymbolRemoved/StatusChanged for other components to
// observe without taking a direct dependency on the Store.
type Config struct {
	MaxPremarketSelected int
	MaxIntradaySelected  int
	CacheTTL             time.Duration
	Bus                  *events.Bus
}

// Store is the concurrent Stock Store.
type Store struct {
	cfg Config
	log zerolog.Logger

	mu      sync.RWMutex // guards the records map itself (add/remove)
	records map[string]*record

	premarketCount int
	intradayCount  int

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	snapshot domain.Snapshot
	expires  time.Time
}

// emit fans out to the configured event bus, a no-op when none was set.
func (s *Store) emit(evt events.EventType, data any) {
	if s.cfg.Bus != nil {
		s.cfg.Bus.Emit(evt, data)
	}
}

// New creates an empty Store.
func New(cfg Config, log zerolog.Logger) *Store {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Second
	}
	return &Store{
		cfg:     cfg,
		log:     log.With().Str("component", "store").Logger(),
		records: make(map[string]*record),
		cache:   make(map[string]cacheEntry),
	}
}

// AddSelectedStock registers code in the pre-market pool. Returns false if
// code is already tracked, or if the pool is at capacity.
func (s *Store) AddSelectedStock(code, name string, reference domain.ReferenceData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[code]; exists {
		return false
	}
	if s.premarketCount >= s.cfg.MaxPremarketSelected {
		return false
	}

	r := &record{name: name, ref: reference, status: domain.StatusWatching}
	s.records[code] = r
	s.premarketCount++
	s.emit(events.SymbolAdded, code)
	return true
}

// AddIntradayStock registers code in the separate intraday pool, tagging
// the record is_intraday_added=true.
func (s *Store) AddIntradayStock(code, name string, price float64, reference domain.ReferenceData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[code]; exists {
		return false
	}
	if s.intradayCount >= s.cfg.MaxIntradaySelected {
		return false
	}

	r := &record{name: name, ref: reference, status: domain.StatusWatching, isIntradayAdded: true}
	r.rt.CurrentPrice = price
	s.records[code] = r
	s.intradayCount++
	s.emit(events.SymbolAdded, code)
	return true
}

// RemoveSelectedStock clears code entirely: metadata, reference, realtime,
// status, trade info, and cache. Returns false for an unknown code.
func (s *Store) RemoveSelectedStock(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.records[code]
	if !exists {
		return false
	}
	if r.isIntradayAdded {
		s.intradayCount--
	} else {
		s.premarketCount--
	}
	delete(s.records, code)

	s.cacheMu.Lock()
	delete(s.cache, code)
	s.cacheMu.Unlock()
	s.emit(events.SymbolRemoved, code)
	return true
}

// get looks up a record without holding the map lock across callers'
// sub-lock acquisitions.
func (s *Store) get(code string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[code]
	return r, ok
}

func (s *Store) invalidate(code string) {
	s.cacheMu.Lock()
	delete(s.cache, code)
	s.cacheMu.Unlock()
}

// Reset clears every tracked symbol and the snapshot cache, for the daily
// pre-market reset that precedes a fresh run_pre_market_scan.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = make(map[string]*record)
	s.premarketCount = 0
	s.intradayCount = 0
	s.mu.Unlock()

	s.cacheMu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.cacheMu.Unlock()
}

// Contains reports whether code is currently tracked.
func (s *Store) Contains(code string) bool {
	_, ok := s.get(code)
	return ok
}

// Len returns the number of tracked symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Codes returns every tracked code.
func (s *Store) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for c := range s.records {
		out = append(out, c)
	}
	return out
}
