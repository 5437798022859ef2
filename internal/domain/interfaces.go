package domain

import "time"

// BrokerOrderAck is the normalized acknowledgment returned by the broker
// for an order-cash or order-rvsecncl call.
type BrokerOrderAck struct {
	OrderID   string
	OrgNo     string
	OrderTime time.Time
	Accepted  bool
}

// BrokerRankEntry is one row of a broker rank endpoint (disparity,
// fluctuation, volume, bulk-transaction) used by the intraday scanner.
type BrokerRankEntry struct {
	Code  string
	Name  string
	Value float64
}

// DailyBar is one OHLCV bar used by the pre-market scanner's indicator
// calculations.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Broker is the REST surface the core consumes. Credential issuance,
// rate limiting, and transport details live entirely behind this
// interface (out of scope per spec section 1); the core only calls these
// methods.
type Broker interface {
	// ApprovalKey obtains a fresh WebSocket approval key.
	ApprovalKey() (string, error)

	// PlaceOrder submits a buy or sell order. side is "buy" or "sell".
	PlaceOrder(code string, side string, qty int64, price float64) (*BrokerOrderAck, error)

	// CancelOrder cancels the full remaining quantity of a prior order.
	CancelOrder(code, orderID, orgNo string, qty int64) (*BrokerOrderAck, error)

	// DailyOHLCV returns the last n daily bars for code, oldest first.
	DailyOHLCV(code string, n int) ([]DailyBar, error)

	// OvernightSnapshot returns the single-price overnight quote used by
	// the pre-open scorer (gap rate, trading halt, trading value).
	OvernightSnapshot(code string) (*OvernightQuote, error)

	// RankDisparity, RankFluctuation, RankVolume, RankBulkTransaction feed
	// the intraday scanner.
	RankDisparity(n int) ([]BrokerRankEntry, error)
	RankFluctuation(n int) ([]BrokerRankEntry, error)
	RankVolume(n int) ([]BrokerRankEntry, error)
	RankBulkTransaction(n int) ([]BrokerRankEntry, error)
}

// OvernightQuote is the pre-open single-price snapshot.
type OvernightQuote struct {
	Code          string
	Price         float64
	GapRate       float64
	TradingValue  float64
	TradingHalt   bool
}

// GatewayCallback receives a normalized field dict for one TR message.
type GatewayCallback func(fields map[string]any)

// Gateway is the WebSocket surface the core consumes: connect/reconnect,
// per-symbol subscribe/unsubscribe, and callback registration by TR id.
type Gateway interface {
	Connect() bool
	Subscribe(code string) error
	Unsubscribe(code string) error
	On(tr string, cb GatewayCallback)
	IsHealthy() bool
	HasCapacity() bool
	SafeCleanup()
}
