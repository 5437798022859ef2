// Package events provides a lightweight in-process pub/sub bus so
// components (Store, Executor, Notice Processor, Recovery Manager) can
// notify the orchestrator and each other without taking a direct
// dependency on one another.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventType names a kind of event this system emits.
type EventType string

const (
	// TradeExecuted fires when the Executor places an order or when the
	// Notice Processor records a fill.
	TradeExecuted EventType = "trade_executed"
	// StatusChanged fires whenever change_status succeeds.
	StatusChanged EventType = "status_changed"
	// SymbolAdded fires when the Scanner registers a new symbol in the Store.
	SymbolAdded EventType = "symbol_added"
	// SymbolRemoved fires when a symbol is removed from the Store.
	SymbolRemoved EventType = "symbol_removed"
	// EmergencyStop fires when the Executor latches the emergency-stop.
	EmergencyStop EventType = "emergency_stop"
	// GatewayReconnected fires after the Gateway completes a reconnect cycle.
	GatewayReconnected EventType = "gateway_reconnected"
	// OrderRecovered fires when the Recovery Manager restores a stuck order.
	OrderRecovered EventType = "order_recovered"
)

// TradeExecutedData is the payload for TradeExecuted.
type TradeExecutedData struct {
	Code     string
	Side     string // "buy" or "sell"
	Quantity int64
	Price    float64
	OrderID  string
	Reason   string
}

// StatusChangedData is the payload for StatusChanged.
type StatusChangedData struct {
	Code   string
	Old    string
	New    string
	Reason string
}

// Listener receives events emitted on the Bus. Implementations must
// return quickly; they run synchronously on the emitting goroutine.
type Listener func(evt EventType, data any)

// Bus is a simple synchronous event dispatcher. Listener registration
// and emission each take the mutex independently so that a listener
// calling back into Emit does not deadlock; the list of listeners is
// copied before invocation so a listener may safely register new
// listeners during dispatch.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType][]Listener
	log       zerolog.Logger
}

// NewBus creates an empty event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		listeners: make(map[EventType][]Listener),
		log:       log.With().Str("component", "events").Logger(),
	}
}

// On registers a listener for evt.
func (b *Bus) On(evt EventType, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[evt] = append(b.listeners[evt], l)
}

// Emit dispatches data to all listeners registered for evt. Listeners run
// synchronously on the caller's goroutine, in registration order; a
// listener panic is recovered and logged so one bad subscriber cannot
// take down the emitting component.
func (b *Bus) Emit(evt EventType, data any) {
	b.mu.RLock()
	ls := append([]Listener(nil), b.listeners[evt]...)
	b.mu.RUnlock()

	for _, l := range ls {
		b.invoke(evt, l, data)
	}
}

func (b *Bus) invoke(evt EventType, l Listener, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(evt)).
				Interface("panic", r).
				Msg("event listener panicked")
		}
	}()
	l(evt, data)
}
