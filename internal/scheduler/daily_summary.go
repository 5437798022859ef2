package scheduler

import (
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database/repo"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// TradeStats is the capability the daily summary job needs from the
// Order Executor to fill out the metrics_daily rollup. Declared here
// rather than imported from executor to keep scheduler decoupled from it;
// *executor.Executor satisfies this structurally.
type TradeStats interface {
	MaxDrawdown() float64
}

// DailySummaryJob rolls up the day's scans and fills into one
// daily_summaries row, run once after market close. Grounded on the
// teacher's SyncCycleJob's role as the orchestrator tying several
// services' state into one persisted record
// (trader-go/internal/scheduler/sync_cycle.go), reshaped from a 5-minute
// multi-service sync into a once-daily single-table rollup.
type DailySummaryJob struct {
	st      *store.Store
	orders  *repo.OrderRepository
	summary *repo.SummaryRepository
	metrics *repo.MetricsRepository
	stats   TradeStats
	log     zerolog.Logger
}

// NewDailySummaryJob builds a DailySummaryJob. metrics and stats are
// optional (nil-safe): without them the job still upserts daily_summaries
// but skips the metrics_daily rollup.
func NewDailySummaryJob(st *store.Store, orders *repo.OrderRepository, summary *repo.SummaryRepository, metrics *repo.MetricsRepository, stats TradeStats, log zerolog.Logger) *DailySummaryJob {
	return &DailySummaryJob{st: st, orders: orders, summary: summary, metrics: metrics, stats: stats, log: log.With().Str("job", "daily_summary").Logger()}
}

// Name implements Job.
func (j *DailySummaryJob) Name() string { return "daily_summary" }

// Run implements Job.
func (j *DailySummaryJob) Run() error {
	if j.st == nil || j.orders == nil || j.summary == nil {
		j.log.Warn().Msg("dependencies not initialized, skipping daily summary")
		return nil
	}

	tradeDate := time.Now().In(domain.KST).Format("2006-01-02")

	totalPnL, wins, losses, err := j.orders.DailyPnL(tradeDate)
	if err != nil {
		return fmt.Errorf("failed to aggregate daily pnl: %w", err)
	}
	executed, err := j.orders.CountFilledToday(tradeDate)
	if err != nil {
		return fmt.Errorf("failed to count filled orders: %w", err)
	}

	scannedIntraday := 0
	for _, snap := range j.st.ByStatusBatch([]domain.TradingStatus{
		domain.StatusWatching, domain.StatusBuyOrdered, domain.StatusPartialBought,
		domain.StatusBought, domain.StatusSellOrdered, domain.StatusPartialSold, domain.StatusSold,
	}) {
		if snap.IsIntradayAdded {
			scannedIntraday++
		}
	}

	err = j.summary.Upsert(repo.DailySummary{
		TradeDate:        tradeDate,
		ScannedPremarket: j.st.Len() - scannedIntraday,
		ScannedIntraday:  scannedIntraday,
		ExecutedOrders:   executed,
		TotalPnL:         totalPnL,
		WinCount:         wins,
		LossCount:        losses,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}

	j.recordMetrics(tradeDate, wins, losses, totalPnL)

	j.log.Info().Str("trade_date", tradeDate).Float64("total_pnl", totalPnL).Msg("daily summary rolled up")
	return nil
}

// recordMetrics upserts the metrics_daily rollup, if both a metrics
// repository and a stats source are attached.
func (j *DailySummaryJob) recordMetrics(tradeDate string, wins, losses int, totalPnL float64) {
	if j.metrics == nil || j.stats == nil {
		return
	}
	trades := wins + losses
	winRate := 0.0
	if trades > 0 {
		winRate = float64(wins) / float64(trades)
	}
	err := j.metrics.Upsert(repo.DailyMetrics{
		TradeDate:   tradeDate,
		Trades:      trades,
		WinRate:     winRate,
		TotalPnL:    totalPnL,
		MaxDrawdown: j.stats.MaxDrawdown(),
	})
	if err != nil {
		j.log.Warn().Err(err).Msg("failed to upsert daily metrics")
	}
}
