// Package config loads the typed, section-scoped parameters that drive
// the trading strategy, risk limits, market schedule, and performance
// tuning (spec section 6 "Configuration (INI-style sections)").
//
// Configuration loading order:
//  1. Load from .env file (if present)
//  2. Load from environment variables
//  3. A later Registry.Reload() call re-runs steps 1-2 and atomically
//     replaces the whole struct, per spec section 5's
//     "Config Registry: read-mostly, no runtime mutation; a reload
//     operation replaces the whole map atomically".
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Strategy holds trading_strategy section parameters.
type Strategy struct {
	TradingMode        string // "day" disables certain time-of-day target adjustments
	DayTradingExitTime string // HH:MM cutoff for day-trading auto-flatten
	TestMode           bool   // forces is_market_hours=true on weekdays
	NextDayForceSell   bool   // if true, SOLD all open BOUGHT at day end

	// UseAdvancedScanner switches the pre-market scan from the composite
	// RSI/MACD/Bollinger scorer to the pullback-pattern scorer; both
	// produce the same (code, score) selection contract.
	UseAdvancedScanner bool
}

// Risk holds risk_management section parameters.
type Risk struct {
	StopLossRate         float64
	TakeProfitRate       float64
	BaseInvestmentAmount float64
	PositionSizeRatio    float64
	UseAccountRatio      bool
	MaxPositions         int
	MaxDailyTrades       int
	MaxDailyLoss         float64
	MaxPositionSize      float64
	TrailingStopRatio    float64 // percent, e.g. 1.5 = 1.5%

	// CommissionRate is applied once at sell confirmation against the
	// combined buy+sell notional (see DESIGN.md, Open Question: commission
	// application point).
	CommissionRate float64
}

// Schedule holds market_schedule section parameters, consumed by
// domain.PhaseSchedule.
type Schedule struct {
	MarketOpenTime     string
	MarketCloseTime    string
	DayTradingExitTime string
	OpeningEnd         string
	LunchStart         string
	LunchEnd           string
	PreCloseStart      string
	ClosingStart       string
}

// Performance holds performance section parameters: cache, monitor
// cadence, websocket capacity, scan capacity, and the threshold knobs
// consumed by the Analyzers and Executor.
type Performance struct {
	CacheTTLSeconds     float64
	EnableCacheDebug    bool
	FastMonitorInterval int // seconds
	NormalMonitorInterval int // seconds

	WebsocketMaxConnections int
	ConnectionsPerStock     int
	SystemConnections       int

	MaxPremarketSelectedStocks int
	MaxIntradaySelectedStocks  int
	MaxTotalObservableStocks   int

	IntradayScanIntervalMinutes int

	// IntradayReincludeSold lets the intraday scanner re-select a symbol
	// already SOLD today, bypassing the normal "already managed"
	// exclusion (see DESIGN.md, Open Question: re-include cooldown bypass).
	IntradayReincludeSold bool

	StuckOrderTimeoutMinutes int
	WebsocketSubscriptionBatchSize int
	MaxConsecutiveErrors int

	MinTradingValue float64
	OpeningPatternScoreThreshold float64

	MinContractStrengthForBuy float64
	MinBuyRatioForBuy         float64
	MinBidAskRatioForBuy      float64
	MaxPriceChangeRateForBuy  float64
	MinLiquidityScoreForBuy   float64

	BuyScoreOpeningThreshold float64
	BuyScoreActiveThreshold  float64
	BuyScoreLunchThreshold   float64
	BuyScorePreCloseThreshold float64
	BuyScoreClosingThreshold float64

	MinMomentumOpening float64
	MinMomentumActive  float64
	MinMomentumLunch   float64
	MinMomentumPreClose float64
	MinMomentumClosing float64

	RapidDeclineFromBuyThreshold float64
	EmergencyStopLossRate        float64
	EmergencyVolatilityThreshold float64
	LimitUpProfitRate            float64
	LongHoldMinutes              int
	MinHoldingMinutesBeforeSell  int
	MaxHoldingDays               int

	HighVolatilityPositionRatio float64
	VolatilityThreshold         float64
}

// Config aggregates all section structs plus broker credentials.
type Config struct {
	Strategy    Strategy
	Risk        Risk
	Schedule    Schedule
	Performance Performance

	DataDir   string
	LogLevel  string
	Port      int
	DevMode   bool

	// AccountSeedCash seeds the Monitor's virtual cash ledger at
	// startup (the broker exposes no balance endpoint; see DESIGN.md).
	AccountSeedCash float64

	BrokerAPIKey    string
	BrokerAPISecret string
	BrokerHTSID     string
	BrokerAccountNo string
	BrokerBaseURL   string
	BrokerWSURL     string
}

// Load reads configuration from environment variables (.env + os.Getenv).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("TRADER_DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		AccountSeedCash: getEnvAsFloat("ACCOUNT_SEED_CASH", 10_000_000),

		BrokerAPIKey:    getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret: getEnv("BROKER_API_SECRET", ""),
		BrokerHTSID:     getEnv("BROKER_HTS_ID", ""),
		BrokerAccountNo: getEnv("BROKER_ACCOUNT_NO", ""),
		BrokerBaseURL:   getEnv("BROKER_BASE_URL", "https://openapi.koreainvestment.com:9443"),
		BrokerWSURL:     getEnv("BROKER_WS_URL", "ws://ops.koreainvestment.com:21000"),

		Strategy: Strategy{
			TradingMode:        getEnv("STRATEGY_TRADING_MODE", "day"),
			DayTradingExitTime: getEnv("STRATEGY_DAY_TRADING_EXIT_TIME", "15:10"),
			TestMode:           getEnvAsBool("STRATEGY_TEST_MODE", false),
			NextDayForceSell:   getEnvAsBool("STRATEGY_NEXT_DAY_FORCE_SELL", true),
			UseAdvancedScanner: getEnvAsBool("STRATEGY_USE_ADVANCED_SCANNER", false),
		},
		Risk: Risk{
			StopLossRate:         getEnvAsFloat("RISK_STOP_LOSS_RATE", -0.02),
			TakeProfitRate:       getEnvAsFloat("RISK_TAKE_PROFIT_RATE", 0.03),
			BaseInvestmentAmount: getEnvAsFloat("RISK_BASE_INVESTMENT_AMOUNT", 1_000_000),
			PositionSizeRatio:    getEnvAsFloat("RISK_POSITION_SIZE_RATIO", 0.1),
			UseAccountRatio:      getEnvAsBool("RISK_USE_ACCOUNT_RATIO", false),
			MaxPositions:         getEnvAsInt("RISK_MAX_POSITIONS", 10),
			MaxDailyTrades:       getEnvAsInt("RISK_MAX_DAILY_TRADES", 20),
			MaxDailyLoss:         getEnvAsFloat("RISK_MAX_DAILY_LOSS", -500_000),
			MaxPositionSize:      getEnvAsFloat("RISK_MAX_POSITION_SIZE", 3_000_000),
			TrailingStopRatio:    getEnvAsFloat("RISK_TRAILING_STOP_RATIO", 1.5),
			CommissionRate:       getEnvAsFloat("RISK_COMMISSION_RATE", 0.003),
		},
		Schedule: Schedule{
			MarketOpenTime:     getEnv("SCHEDULE_MARKET_OPEN_TIME", "09:00"),
			MarketCloseTime:    getEnv("SCHEDULE_MARKET_CLOSE_TIME", "15:30"),
			DayTradingExitTime: getEnv("SCHEDULE_DAY_TRADING_EXIT_TIME", "15:10"),
			OpeningEnd:         getEnv("SCHEDULE_OPENING_END", "09:15"),
			LunchStart:         getEnv("SCHEDULE_LUNCH_START", "11:50"),
			LunchEnd:           getEnv("SCHEDULE_LUNCH_END", "12:50"),
			PreCloseStart:      getEnv("SCHEDULE_PRE_CLOSE_START", "15:00"),
			ClosingStart:       getEnv("SCHEDULE_CLOSING_START", "15:20"),
		},
		Performance: Performance{
			CacheTTLSeconds:                getEnvAsFloat("PERF_CACHE_TTL_SECONDS", 2.0),
			EnableCacheDebug:               getEnvAsBool("PERF_ENABLE_CACHE_DEBUG", false),
			FastMonitorInterval:            getEnvAsInt("PERF_FAST_MONITORING_INTERVAL", 3),
			NormalMonitorInterval:          getEnvAsInt("PERF_NORMAL_MONITORING_INTERVAL", 10),
			WebsocketMaxConnections:        getEnvAsInt("PERF_WEBSOCKET_MAX_CONNECTIONS", 41),
			ConnectionsPerStock:            getEnvAsInt("PERF_CONNECTIONS_PER_STOCK", 2),
			SystemConnections:              getEnvAsInt("PERF_SYSTEM_CONNECTIONS", 3),
			MaxPremarketSelectedStocks:     getEnvAsInt("PERF_MAX_PREMARKET_SELECTED_STOCKS", 15),
			MaxIntradaySelectedStocks:      getEnvAsInt("PERF_MAX_INTRADAY_SELECTED_STOCKS", 4),
			MaxTotalObservableStocks:       getEnvAsInt("PERF_MAX_TOTAL_OBSERVABLE_STOCKS", 19),
			IntradayScanIntervalMinutes:    getEnvAsInt("PERF_INTRADAY_SCAN_INTERVAL_MINUTES", 15),
			IntradayReincludeSold:          getEnvAsBool("PERF_INTRADAY_REINCLUDE_SOLD", true),
			StuckOrderTimeoutMinutes:       getEnvAsInt("PERF_STUCK_ORDER_TIMEOUT_MINUTES", 3),
			WebsocketSubscriptionBatchSize: getEnvAsInt("PERF_WEBSOCKET_SUBSCRIPTION_BATCH_SIZE", 5),
			MaxConsecutiveErrors:           getEnvAsInt("PERF_MAX_CONSECUTIVE_ERRORS", 5),
			MinTradingValue:                getEnvAsFloat("PERF_MIN_TRADING_VALUE", 3_000_000_000),
			OpeningPatternScoreThreshold:   getEnvAsFloat("PERF_OPENING_PATTERN_SCORE_THRESHOLD", 55),
			MinContractStrengthForBuy:      getEnvAsFloat("PERF_MIN_CONTRACT_STRENGTH_FOR_BUY", 100),
			MinBuyRatioForBuy:              getEnvAsFloat("PERF_MIN_BUY_RATIO_FOR_BUY", 45),
			MinBidAskRatioForBuy:           getEnvAsFloat("PERF_MIN_BID_ASK_RATIO_FOR_BUY", 0.8),
			MaxPriceChangeRateForBuy:       getEnvAsFloat("PERF_MAX_PRICE_CHANGE_RATE_FOR_BUY", 8.0),
			MinLiquidityScoreForBuy:        getEnvAsFloat("PERF_MIN_LIQUIDITY_SCORE_FOR_BUY", 3.0),
			BuyScoreOpeningThreshold:       getEnvAsFloat("PERF_BUY_SCORE_OPENING_THRESHOLD", 65),
			BuyScoreActiveThreshold:        getEnvAsFloat("PERF_BUY_SCORE_ACTIVE_THRESHOLD", 60),
			BuyScoreLunchThreshold:         getEnvAsFloat("PERF_BUY_SCORE_LUNCH_THRESHOLD", 70),
			BuyScorePreCloseThreshold:      getEnvAsFloat("PERF_BUY_SCORE_PRE_CLOSE_THRESHOLD", 80),
			BuyScoreClosingThreshold:       getEnvAsFloat("PERF_BUY_SCORE_CLOSING_THRESHOLD", 100),
			MinMomentumOpening:             getEnvAsFloat("PERF_MIN_MOMENTUM_OPENING", 10),
			MinMomentumActive:              getEnvAsFloat("PERF_MIN_MOMENTUM_ACTIVE", 8),
			MinMomentumLunch:               getEnvAsFloat("PERF_MIN_MOMENTUM_LUNCH", 15),
			MinMomentumPreClose:            getEnvAsFloat("PERF_MIN_MOMENTUM_PRE_CLOSE", 20),
			MinMomentumClosing:             getEnvAsFloat("PERF_MIN_MOMENTUM_CLOSING", 100),
			RapidDeclineFromBuyThreshold:   getEnvAsFloat("PERF_RAPID_DECLINE_FROM_BUY_THRESHOLD", -3.0),
			EmergencyStopLossRate:          getEnvAsFloat("PERF_EMERGENCY_STOP_LOSS_RATE", -5.0),
			EmergencyVolatilityThreshold:   getEnvAsFloat("PERF_EMERGENCY_VOLATILITY_THRESHOLD", 8.0),
			LimitUpProfitRate:              getEnvAsFloat("PERF_LIMIT_UP_PROFIT_RATE", 29.0),
			LongHoldMinutes:                getEnvAsInt("PERF_LONG_HOLD_MINUTES", 120),
			MinHoldingMinutesBeforeSell:    getEnvAsInt("PERF_MIN_HOLDING_MINUTES_BEFORE_SELL", 2),
			MaxHoldingDays:                 getEnvAsInt("PERF_MAX_HOLDING_DAYS", 1),
			HighVolatilityPositionRatio:    getEnvAsFloat("PERF_HIGH_VOLATILITY_POSITION_RATIO", 0.3),
			VolatilityThreshold:            getEnvAsFloat("PERF_VOLATILITY_THRESHOLD", 3.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants across sections that Load alone can't catch
// (e.g. an env var set to garbage falling back silently to its default
// would otherwise hide a misconfiguration).
func (c *Config) Validate() error {
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk_management.max_positions must be positive, got %d", c.Risk.MaxPositions)
	}
	if c.Performance.WebsocketMaxConnections <= c.Performance.SystemConnections {
		return fmt.Errorf("performance.websocket_max_connections (%d) must exceed system_connections (%d)",
			c.Performance.WebsocketMaxConnections, c.Performance.SystemConnections)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
