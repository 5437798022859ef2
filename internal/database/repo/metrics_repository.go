package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// MetricsRepository persists the per-day tuning metrics used to evaluate
// strategy parameter changes across trading days.
type MetricsRepository struct {
	Base
}

// NewMetricsRepository builds a MetricsRepository.
func NewMetricsRepository(db *sql.DB, log zerolog.Logger) *MetricsRepository {
	return &MetricsRepository{Base: NewBase(db, "metrics", log)}
}

// DailyMetrics is one metrics_daily row: the day's outcome plus the
// strategy parameters (config.Risk/config.Performance, serialized) that
// produced it.
type DailyMetrics struct {
	TradeDate   string
	Trades      int
	WinRate     float64
	TotalPnL    float64
	AvgPnL      float64
	MaxDrawdown float64
	Params      map[string]any
}

// Upsert writes or replaces the metrics row for m.TradeDate.
func (r *MetricsRepository) Upsert(m DailyMetrics) error {
	if m.Trades > 0 {
		m.AvgPnL = m.TotalPnL / float64(m.Trades)
	}
	params, err := json.Marshal(m.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics params for %s: %w", m.TradeDate, err)
	}

	_, err = r.DB().Exec(`
		INSERT INTO metrics_daily
		(trade_date, trades, win_rate, total_pnl, avg_pnl, max_drawdown, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_date) DO UPDATE SET
			trades = excluded.trades,
			win_rate = excluded.win_rate,
			total_pnl = excluded.total_pnl,
			avg_pnl = excluded.avg_pnl,
			max_drawdown = excluded.max_drawdown,
			params_json = excluded.params_json
	`, m.TradeDate, m.Trades, m.WinRate, m.TotalPnL, m.AvgPnL, m.MaxDrawdown, string(params))
	if err != nil {
		return fmt.Errorf("failed to upsert daily metrics for %s: %w", m.TradeDate, err)
	}
	return nil
}

// Range returns metrics rows between startDate and endDate inclusive,
// ordered oldest first, used by offline parameter-tuning passes.
func (r *MetricsRepository) Range(startDate, endDate string) ([]DailyMetrics, error) {
	rows, err := r.DB().Query(`
		SELECT trade_date, trades, win_rate, total_pnl, avg_pnl, max_drawdown, params_json
		FROM metrics_daily WHERE trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC
	`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics range: %w", err)
	}
	defer rows.Close()

	var out []DailyMetrics
	for rows.Next() {
		var m DailyMetrics
		var paramsJSON sql.NullString
		if err := rows.Scan(&m.TradeDate, &m.Trades, &m.WinRate, &m.TotalPnL, &m.AvgPnL, &m.MaxDrawdown, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		if paramsJSON.Valid && paramsJSON.String != "" {
			_ = json.Unmarshal([]byte(paramsJSON.String), &m.Params)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics range: %w", err)
	}
	return out, nil
}
