package repo

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// SummaryRepository persists the once-daily rollup of a trading day.
type SummaryRepository struct {
	Base
}

// NewSummaryRepository builds a SummaryRepository.
func NewSummaryRepository(db *sql.DB, log zerolog.Logger) *SummaryRepository {
	return &SummaryRepository{Base: NewBase(db, "summary", log)}
}

// DailySummary is one daily_summaries row.
type DailySummary struct {
	TradeDate          string
	ScannedPremarket   int
	ScannedIntraday    int
	TotalOrders        int
	ExecutedOrders     int
	TotalPnL           float64
	WinCount           int
	LossCount          int
	WinRate            float64
	TotalInvestment    float64
	MaxPositionCount   int
	AvgHoldingMinutes  float64
}

// Upsert writes or replaces the summary row for s.TradeDate.
func (r *SummaryRepository) Upsert(s DailySummary) error {
	if s.WinCount+s.LossCount > 0 {
		s.WinRate = float64(s.WinCount) / float64(s.WinCount+s.LossCount) * 100
	}

	_, err := r.DB().Exec(`
		INSERT INTO daily_summaries
		(trade_date, scanned_premarket, scanned_intraday, total_orders, executed_orders,
		 total_pnl, win_count, loss_count, win_rate, total_investment,
		 max_position_count, avg_holding_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_date) DO UPDATE SET
			scanned_premarket = excluded.scanned_premarket,
			scanned_intraday = excluded.scanned_intraday,
			total_orders = excluded.total_orders,
			executed_orders = excluded.executed_orders,
			total_pnl = excluded.total_pnl,
			win_count = excluded.win_count,
			loss_count = excluded.loss_count,
			win_rate = excluded.win_rate,
			total_investment = excluded.total_investment,
			max_position_count = excluded.max_position_count,
			avg_holding_minutes = excluded.avg_holding_minutes
	`,
		s.TradeDate, s.ScannedPremarket, s.ScannedIntraday, s.TotalOrders, s.ExecutedOrders,
		s.TotalPnL, s.WinCount, s.LossCount, s.WinRate, s.TotalInvestment,
		s.MaxPositionCount, s.AvgHoldingMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily summary for %s: %w", s.TradeDate, err)
	}

	r.log.Info().Str("trade_date", s.TradeDate).Float64("total_pnl", s.TotalPnL).Msg("daily summary recorded")
	return nil
}

// Get returns the summary for tradeDate, or nil if none was recorded.
func (r *SummaryRepository) Get(tradeDate string) (*DailySummary, error) {
	var s DailySummary
	err := r.DB().QueryRow(`
		SELECT trade_date, scanned_premarket, scanned_intraday, total_orders, executed_orders,
		       total_pnl, win_count, loss_count, win_rate, total_investment,
		       max_position_count, avg_holding_minutes
		FROM daily_summaries WHERE trade_date = ?
	`, tradeDate).Scan(
		&s.TradeDate, &s.ScannedPremarket, &s.ScannedIntraday, &s.TotalOrders, &s.ExecutedOrders,
		&s.TotalPnL, &s.WinCount, &s.LossCount, &s.WinRate, &s.TotalInvestment,
		&s.MaxPositionCount, &s.AvgHoldingMinutes,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary for %s: %w", tradeDate, err)
	}
	return &s, nil
}
