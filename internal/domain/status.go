package domain

// transitions enumerates the allowed TradingStatus graph from spec section 3.
// Recovery/cancel transitions (BUY_ORDERED/PARTIAL_BOUGHT -> WATCHING,
// SELL_ORDERED/PARTIAL_SOLD -> BOUGHT) are included alongside the forward
// fill/sell path.
var transitions = map[TradingStatus]map[TradingStatus]bool{
	StatusWatching: {
		StatusBuyReady:   true,
		StatusBuyOrdered: true,
	},
	StatusBuyReady: {
		StatusBuyOrdered: true,
		StatusWatching:   true,
	},
	StatusBuyOrdered: {
		StatusPartialBought: true,
		StatusBought:        true,
		StatusWatching:      true, // cancel / timeout recovery
	},
	StatusPartialBought: {
		StatusBought:   true,
		StatusWatching: true, // cancel / timeout recovery
	},
	StatusBought: {
		StatusSellReady:   true,
		StatusSellOrdered: true,
	},
	StatusSellReady: {
		StatusSellOrdered: true,
		StatusBought:      true,
	},
	StatusSellOrdered: {
		StatusPartialSold: true,
		StatusSold:        true,
		StatusBought:      true, // cancel / timeout recovery
	},
	StatusPartialSold: {
		StatusSold:   true,
		StatusBought: true, // cancel / timeout recovery
	},
	StatusSold: {},
}

// IsValidTransition reports whether moving from `from` to `to` is legal
// under the state machine in spec section 3. A no-op transition
// (from == to) is always legal so repeated change_status calls with an
// unchanged status are idempotent.
func IsValidTransition(from, to TradingStatus) bool {
	if from == to {
		return true
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}
