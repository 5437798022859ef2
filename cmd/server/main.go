// Package main is the entry point for the Sentinel day-trading engine.
// It wires the broker REST client, the realtime WebSocket Gateway, the
// Stock Store, Market Scanner, Order Executor, Recovery Manager, and
// Execution Notice Processor together behind the Realtime Monitor, then
// runs the Monitor's tick loop and a background Scheduler for
// end-of-day housekeeping until it receives a shutdown signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/database/repo"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/executor"
	"github.com/aristath/sentinel/internal/gateway"
	"github.com/aristath/sentinel/internal/monitor"
	"github.com/aristath/sentinel/internal/notice"
	"github.com/aristath/sentinel/internal/recovery"
	"github.com/aristath/sentinel/internal/scanner"
	"github.com/aristath/sentinel/internal/scheduler"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/symboldir"
	"github.com/aristath/sentinel/pkg/logger"
)

// Gateway TR ids the engine subscribes callbacks to. The gateway package
// keeps its own copies unexported; these are the same wire constants,
// needed here only to register handlers via Gateway.On.
const (
	trContract  = "H0STCNT0"
	trQuote     = "H0STASP0"
	trExecution = "H0STCNI0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	registry := config.NewRegistry(cfg)

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting sentinel trading engine")

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "trading.db"),
		Profile: database.ProfileStandard,
		Name:    "trading",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open trading database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate trading database")
	}

	universe, err := symboldir.Load(filepath.Join(cfg.DataDir, "universe.json"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load symbol universe")
	}

	bus := events.NewBus(log)
	bus.On(events.EmergencyStop, func(evt events.EventType, data any) {
		log.Warn().Msg("emergency stop latched, halting new buys")
	})

	brokerClient := broker.New(cfg.BrokerAPIKey, cfg.BrokerAPISecret, cfg.BrokerAccountNo, cfg.BrokerBaseURL, log)
	defer brokerClient.Close()

	gw := gateway.New(gateway.Config{
		URL:                 cfg.BrokerWSURL,
		HTSID:               cfg.BrokerHTSID,
		WebsocketMaxConns:   cfg.Performance.WebsocketMaxConnections,
		ConnectionsPerStock: cfg.Performance.ConnectionsPerStock,
		SystemConnections:   cfg.Performance.SystemConnections,
		Bus:                 bus,
	}, brokerClient, log)

	st := store.New(store.Config{
		MaxPremarketSelected: cfg.Performance.MaxPremarketSelectedStocks,
		MaxIntradaySelected:  cfg.Performance.MaxIntradaySelectedStocks,
		CacheTTL:             time.Duration(cfg.Performance.CacheTTLSeconds * float64(time.Second)),
		Bus:                  bus,
	}, log)

	schedule := domain.PhaseSchedule{
		OpenTime:      cfg.Schedule.MarketOpenTime,
		OpeningEnd:    cfg.Schedule.OpeningEnd,
		LunchStart:    cfg.Schedule.LunchStart,
		LunchEnd:      cfg.Schedule.LunchEnd,
		PreCloseStart: cfg.Schedule.PreCloseStart,
		ClosingStart:  cfg.Schedule.ClosingStart,
		CloseTime:     cfg.Schedule.MarketCloseTime,
	}

	orderRepo := repo.NewOrderRepository(db.Conn(), log)
	summaryRepo := repo.NewSummaryRepository(db.Conn(), log)
	scanRepo := repo.NewScanRepository(db.Conn(), log)
	metricsRepo := repo.NewMetricsRepository(db.Conn(), log)

	sc := scanner.New(universe, brokerClient, st, gw, cfg.Performance, schedule, cfg.Strategy, log)
	sc.SetRecorder(scanRepo)
	ex := executor.New(st, brokerClient, gw, cfg.Risk, bus, log)
	rec := recovery.New(st, ex, cfg.Performance, bus, log)
	noticeProc := notice.New(st, gw, ex, cfg.Risk, log)

	gw.On(trContract, func(fields map[string]any) { applyContract(st, fields) })
	gw.On(trQuote, func(fields map[string]any) { applyOrderbook(st, fields) })
	gw.On(trExecution, noticeProc.Handle)

	mon := monitor.New(st, sc, ex, rec, gw, schedule, cfg.Performance, cfg.Risk, cfg.Strategy, cfg.AccountSeedCash, log)

	sched := scheduler.New(log)
	if err := sched.AddJob("0 */5 * * * *", scheduler.NewCheckDatabaseJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule database health check")
	}
	if err := sched.AddJob("0 35 15 * * *", scheduler.NewDailySummaryJob(st, orderRepo, summaryRepo, metricsRepo, ex, log)); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule daily summary rollup")
	}

	if !gw.Connect() {
		log.Fatal().Msg("failed to connect to realtime gateway")
	}
	defer gw.SafeCleanup()

	if !sc.RunPreMarketScan() {
		log.Warn().Msg("pre-market scan selected no candidates")
	}

	sched.Start()
	defer sched.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := registry.Reload(); err != nil {
				log.Error().Err(err).Msg("config reload failed, keeping previous settings")
				continue
			}
			log.Info().Msg("configuration reloaded (new settings apply to the next component restart)")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("engine running")
	mon.Run(ctx)

	log.Info().Msg("shutdown signal received, stopping engine")
}

// applyContract converts one normalized H0STCNT0 field dict, as produced
// by the gateway's contract-frame parser, into a store.ContractUpdate
// and folds it into the Store.
func applyContract(st *store.Store, fields map[string]any) {
	code, _ := fields["stock_code"].(string)
	if code == "" {
		return
	}

	changeRate := floatField(fields, "change_rate")

	st.ApplyContractUpdate(code, store.ContractUpdate{
		Price:            floatField(fields, "current_price"),
		TodayVolume:      intField(fields, "acc_volume"),
		ContractVolume:   intField(fields, "contract_volume"),
		ContractStrength: floatField(fields, "contract_strength"),
		BuyRatio:         floatField(fields, "buy_ratio"),
		MarketPressure:   derivePressure(fields),
		TurnoverRate:     floatField(fields, "volume_turnover_rate"),
		ViStandardPrice:  floatField(fields, "vi_standard_price"),
		TradingHalt:      boolField(fields, "trading_halt"),
		HourClsCode:      stringField(fields, "hour_cls_code"),
		ChangeRate:       &changeRate,
	})
}

// derivePressure classifies the dominant side of recent contracts from
// the buy/sell contract counts an H0STCNT0 frame carries.
func derivePressure(fields map[string]any) domain.MarketPressure {
	buy := intField(fields, "buy_contract_count")
	sell := intField(fields, "sell_contract_count")
	switch {
	case buy > sell:
		return domain.PressureBuy
	case sell > buy:
		return domain.PressureSell
	default:
		return domain.PressureNeutral
	}
}

// applyOrderbook converts one normalized H0STASP0 field dict into the
// Store's fixed 5-level bid/ask arrays.
func applyOrderbook(st *store.Store, fields map[string]any) {
	code, _ := fields["stock_code"].(string)
	if code == "" {
		return
	}

	askPrices, _ := fields["ask_prices"].([]float64)
	bidPrices, _ := fields["bid_prices"].([]float64)
	askSizes, _ := fields["ask_sizes"].([]int64)
	bidSizes, _ := fields["bid_sizes"].([]int64)

	var bids, asks [5]domain.PriceLevel
	for i := 0; i < 5 && i < len(askPrices) && i < len(askSizes); i++ {
		asks[i] = domain.PriceLevel{Price: askPrices[i], Quantity: askSizes[i]}
	}
	for i := 0; i < 5 && i < len(bidPrices) && i < len(bidSizes); i++ {
		bids[i] = domain.PriceLevel{Price: bidPrices[i], Quantity: bidSizes[i]}
	}

	st.ApplyOrderbook(code, bids, asks)
}

func floatField(fields map[string]any, key string) float64 {
	v, _ := fields[key].(float64)
	return v
}

func intField(fields map[string]any, key string) int64 {
	v, _ := fields[key].(int64)
	return v
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}
