// Package domain holds the core types of the day-trading engine: the
// per-symbol record (metadata, reference bars, realtime ticks, trading
// status, trade info) and the interfaces the trading pipeline depends on.
package domain

import "time"

// Symbol identifies a tradable security on the KOSPI/KOSDAQ universe.
// Code is a 6-digit numeric string fixed for the trading day.
type Symbol struct {
	Code string
	Name string
}

// ReferenceData is immutable after creation per symbol per day. It holds
// the prior-day bar and the indicators computed from the daily series at
// scan time.
type ReferenceData struct {
	YesterdayClose  float64
	YesterdayVolume int64
	YesterdayHigh   float64
	YesterdayLow    float64
	SMA20           float64
	RSI             float64
	MACD            float64
	MACDSignal      float64
	BBUpper         float64
	BBMiddle        float64
	BBLower         float64
	PatternScore    float64
	PatternNames    []string
	AvgDailyVolume  float64
	AvgTradingValue float64
}

// MarketPressure summarizes the dominant side of recent contracts.
type MarketPressure string

const (
	PressureBuy     MarketPressure = "BUY"
	PressureSell    MarketPressure = "SELL"
	PressureNeutral MarketPressure = "NEUTRAL"
)

// PriceLevel is one depth level of the order book.
type PriceLevel struct {
	Price    float64
	Quantity int64
}

// RealtimeData is mutated only by Gateway-driven writes. Derived fields
// (VolumeSpikeRatio, PriceChangeRate) are recomputed by the Store on every
// price update.
type RealtimeData struct {
	CurrentPrice       float64
	Bids               [5]PriceLevel
	Asks               [5]PriceLevel
	TodayVolume        int64
	TodayHigh          float64
	TodayLow           float64
	ContractVolume     int64
	ContractStrength   float64
	BuyRatio           float64
	MarketPressure     MarketPressure
	VolumeTurnoverRate float64
	ViStandardPrice    float64 // 0 unless VI active
	TradingHalt        bool
	HourClsCode        string
	LastUpdated        time.Time

	// Derived, recomputed on every update_price.
	VolumeSpikeRatio float64
	PriceChangeRate  float64
	Volatility       float64
}

// TradingStatus is the per-symbol state machine. See domain/status.go for
// the allowed-transition graph.
type TradingStatus string

const (
	StatusWatching      TradingStatus = "WATCHING"
	StatusBuyReady      TradingStatus = "BUY_READY"
	StatusBuyOrdered    TradingStatus = "BUY_ORDERED"
	StatusPartialBought TradingStatus = "PARTIAL_BOUGHT"
	StatusBought        TradingStatus = "BOUGHT"
	StatusSellReady     TradingStatus = "SELL_READY"
	StatusSellOrdered   TradingStatus = "SELL_ORDERED"
	StatusPartialSold   TradingStatus = "PARTIAL_SOLD"
	StatusSold          TradingStatus = "SOLD"
)

// TradeInfo tracks the buy/sell legs of a position: fills, targets, and
// the trailing-stop bookkeeping.
type TradeInfo struct {
	BuyPrice    float64 // weighted-avg fill
	BuyQuantity int64   // filled

	TargetPrice   float64
	StopLossPrice float64

	BuyOrderID   string
	BuyOrgNo     string
	BuyOrderTime time.Time

	SellOrderID   string
	SellOrgNo     string
	SellOrderTime time.Time

	OrderedQty    int64
	FilledQty     int64
	RemainingQty  int64
	AvgExecPrice  float64
	ExecutionTime time.Time

	RealizedPnL       float64
	RealizedPnLRate   float64
	UnrealizedPnL     float64
	UnrealizedPnLRate float64
	SellReason        string

	// Trailing-stop state.
	DynamicPeakPrice   float64
	DynamicTargetPrice float64
}

// MarketPhase is derived from KST wall clock.
type MarketPhase string

const (
	PhaseOpening MarketPhase = "opening"
	PhaseActive  MarketPhase = "active"
	PhaseLunch   MarketPhase = "lunch"
	PhasePreClose MarketPhase = "pre_close"
	PhaseClosing MarketPhase = "closing"
	PhaseClosed  MarketPhase = "closed"
)

// Snapshot is an atomic, immutable cross-section of a symbol's state,
// produced by the Store under the triple lock for use by the Monitor and
// Analyzers.
type Snapshot struct {
	Code string
	Name string

	Price float64
	Bids  [5]PriceLevel
	Asks  [5]PriceLevel

	TodayVolume    int64
	TodayHigh      float64
	TodayLow       float64
	ContractVolume int64

	Status TradingStatus

	BuyPrice    float64
	BuyQuantity int64

	UnrealizedPnL     float64
	UnrealizedPnLRate float64

	TradingHalt     bool
	ViActive        bool
	IsIntradayAdded bool

	LastUpdated time.Time

	Reference ReferenceData
	Realtime  RealtimeData
	Trade     TradeInfo
}
