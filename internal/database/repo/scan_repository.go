package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/scanner"
	"github.com/rs/zerolog"
)

// ScanRepository records pre-market and intraday scan results, one row per
// selected symbol per scan.
type ScanRepository struct {
	Base
}

// NewScanRepository builds a ScanRepository.
func NewScanRepository(db *sql.DB, log zerolog.Logger) *ScanRepository {
	return &ScanRepository{Base: NewBase(db, "scan", log)}
}

// SavePreMarket persists the top-N pre-market candidates for scanDate,
// one row per symbol, alongside the reference bar/indicator snapshot that
// produced its score.
func (r *ScanRepository) SavePreMarket(scanDate, scanTime string, candidates []scanner.Candidate, refs map[string]domain.ReferenceData) error {
	tx, err := r.DB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin pre-market scan insert: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO pre_market_scans
		(scan_date, scan_time, stock_code, stock_name, selection_score,
		 selection_criteria, pattern_score, pattern_names, rsi, macd,
		 sma_20, yesterday_close, yesterday_volume, market_cap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare pre-market scan insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		ref := refs[c.Code]
		criteria, _ := json.Marshal(c.Reasons)
		patternNames, _ := json.Marshal(ref.PatternNames)

		if _, err := stmt.Exec(
			scanDate, scanTime, c.Code, c.Name, c.Score,
			string(criteria), ref.PatternScore, string(patternNames),
			ref.RSI, ref.MACD, ref.SMA20,
			ref.YesterdayClose, nullInt64(ref.YesterdayVolume), nil,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert pre-market scan row for %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pre-market scan insert: %w", err)
	}

	r.log.Info().Str("scan_date", scanDate).Int("count", len(candidates)).Msg("pre-market scan recorded")
	return nil
}

// SaveIntraday persists one intraday re-scan addition, including the
// realtime snapshot fields the original pre-market columns don't carry
// (current price, volume spike, contract strength, buy ratio).
func (r *ScanRepository) SaveIntraday(scanDate, scanTime string, c scanner.Candidate, snap domain.Snapshot, reason string) error {
	criteria, _ := json.Marshal(c.Reasons)

	_, err := r.DB().Exec(`
		INSERT INTO intraday_scans
		(scan_date, scan_time, stock_code, stock_name, selection_score,
		 selection_criteria, scan_reason, current_price, volume_spike_ratio,
		 price_change_rate, contract_strength, buy_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		scanDate, scanTime, c.Code, c.Name, c.Score,
		string(criteria), reason, snap.Price,
		snap.Realtime.VolumeSpikeRatio, snap.Realtime.PriceChangeRate,
		snap.Realtime.ContractStrength, snap.Realtime.BuyRatio,
	)
	if err != nil {
		return fmt.Errorf("failed to insert intraday scan row for %s: %w", c.Code, err)
	}

	r.log.Info().Str("code", c.Code).Float64("score", c.Score).Msg("intraday scan recorded")
	return nil
}

// PreMarketScanRow is one persisted pre-market scan record.
type PreMarketScanRow struct {
	StockCode       string
	StockName       string
	SelectionScore  float64
	ScanDate        string
	ScanTime        string
	PatternScore    float64
	RSI             float64
	MACD            float64
	SMA20           float64
	YesterdayClose  float64
	YesterdayVolume int64
}

// PreMarketByDate returns every pre-market scan row for scanDate, highest
// score first.
func (r *ScanRepository) PreMarketByDate(scanDate string) ([]PreMarketScanRow, error) {
	rows, err := r.DB().Query(`
		SELECT stock_code, stock_name, selection_score, scan_date, scan_time,
		       pattern_score, rsi, macd, sma_20, yesterday_close, yesterday_volume
		FROM pre_market_scans
		WHERE scan_date = ?
		ORDER BY selection_score DESC
	`, scanDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query pre-market scans: %w", err)
	}
	defer rows.Close()

	var out []PreMarketScanRow
	for rows.Next() {
		var row PreMarketScanRow
		var patternScore, rsi, macd, sma20, yClose sql.NullFloat64
		var yVolume sql.NullInt64
		if err := rows.Scan(
			&row.StockCode, &row.StockName, &row.SelectionScore, &row.ScanDate, &row.ScanTime,
			&patternScore, &rsi, &macd, &sma20, &yClose, &yVolume,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pre-market scan row: %w", err)
		}
		row.PatternScore, row.RSI, row.MACD, row.SMA20, row.YesterdayClose = patternScore.Float64, rsi.Float64, macd.Float64, sma20.Float64, yClose.Float64
		row.YesterdayVolume = yVolume.Int64
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pre-market scans: %w", err)
	}
	return out, nil
}
