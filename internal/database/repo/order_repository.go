package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// OrderRepository persists the buy/sell order lifecycle: the order as
// submitted, and (via the Update* methods) its eventual fill.
type OrderRepository struct {
	Base
}

// NewOrderRepository builds an OrderRepository.
func NewOrderRepository(db *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{Base: NewBase(db, "order", log)}
}

// BuyOrderRecord is one row of the buy_orders table as submitted to the
// broker, before any fill is known.
type BuyOrderRecord struct {
	OrderDate         string
	OrderTime         string
	StockCode         string
	StockName         string
	OrderID           string
	OrderOrgNo        string
	OrderPrice        float64
	Quantity          int64
	TargetPrice       float64
	StopLossPrice     float64
	SelectionSource   string
	SelectionCriteria []string
	MarketPhase       string
}

// InsertBuyOrder records a submitted buy order and returns its row id.
func (r *OrderRepository) InsertBuyOrder(rec BuyOrderRecord) (int64, error) {
	criteria, _ := json.Marshal(rec.SelectionCriteria)

	res, err := r.DB().Exec(`
		INSERT INTO buy_orders
		(order_date, order_time, stock_code, stock_name, order_id, order_orgno,
		 order_status, order_price, quantity, target_price, stop_loss_price,
		 selection_source, selection_criteria, market_phase)
		VALUES (?, ?, ?, ?, ?, ?, 'SUBMITTED', ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.OrderDate, rec.OrderTime, rec.StockCode, rec.StockName, rec.OrderID, nullString(rec.OrderOrgNo),
		rec.OrderPrice, rec.Quantity, nullFloat64(rec.TargetPrice), nullFloat64(rec.StopLossPrice),
		nullString(rec.SelectionSource), string(criteria), nullString(rec.MarketPhase),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert buy order for %s: %w", rec.StockCode, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read buy order id for %s: %w", rec.StockCode, err)
	}

	r.log.Info().Str("code", rec.StockCode).Str("order_id", rec.OrderID).Msg("buy order recorded")
	return id, nil
}

// FillBuyOrder updates a previously inserted buy order with its execution
// outcome, identified by broker order_id.
func (r *OrderRepository) FillBuyOrder(orderID string, status string, executionTime string, executionPrice float64, filledQty int64) error {
	res, err := r.DB().Exec(`
		UPDATE buy_orders
		SET order_status = ?, execution_time = ?, execution_price = ?,
		    filled_quantity = ?, total_amount = ?
		WHERE order_id = ?
	`, status, executionTime, executionPrice, filledQty, executionPrice*float64(filledQty), orderID)
	if err != nil {
		return fmt.Errorf("failed to update buy order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected updating buy order %s: %w", orderID, err)
	}
	if n == 0 {
		return fmt.Errorf("no buy order found for order_id %s", orderID)
	}
	return nil
}

// SellOrderRecord is one row of the sell_orders table as submitted.
type SellOrderRecord struct {
	OrderDate   string
	OrderTime   string
	StockCode   string
	StockName   string
	OrderID     string
	OrderOrgNo  string
	OrderPrice  float64
	Quantity    int64
	SellReason  string
	MarketPhase string
}

// InsertSellOrder records a submitted sell order and returns its row id.
func (r *OrderRepository) InsertSellOrder(rec SellOrderRecord) (int64, error) {
	res, err := r.DB().Exec(`
		INSERT INTO sell_orders
		(order_date, order_time, stock_code, stock_name, order_id, order_orgno,
		 order_status, order_price, quantity, sell_reason, market_phase)
		VALUES (?, ?, ?, ?, ?, ?, 'SUBMITTED', ?, ?, ?, ?)
	`,
		rec.OrderDate, rec.OrderTime, rec.StockCode, rec.StockName, rec.OrderID, nullString(rec.OrderOrgNo),
		rec.OrderPrice, rec.Quantity, nullString(rec.SellReason), nullString(rec.MarketPhase),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sell order for %s: %w", rec.StockCode, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sell order id for %s: %w", rec.StockCode, err)
	}

	r.log.Info().Str("code", rec.StockCode).Str("order_id", rec.OrderID).Msg("sell order recorded")
	return id, nil
}

// FillSellOrder updates a previously inserted sell order with its
// execution outcome and realized P&L, identified by broker order_id.
func (r *OrderRepository) FillSellOrder(orderID string, status string, executionTime string, executionPrice float64, filledQty int64, realizedPnL, realizedPnLRate, holdingMinutes float64) error {
	res, err := r.DB().Exec(`
		UPDATE sell_orders
		SET order_status = ?, execution_time = ?, execution_price = ?,
		    filled_quantity = ?, total_amount = ?, realized_pnl = ?,
		    realized_pnl_rate = ?, holding_minutes = ?
		WHERE order_id = ?
	`, status, executionTime, executionPrice, filledQty, executionPrice*float64(filledQty),
		realizedPnL, realizedPnLRate, holdingMinutes, orderID)
	if err != nil {
		return fmt.Errorf("failed to update sell order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected updating sell order %s: %w", orderID, err)
	}
	if n == 0 {
		return fmt.Errorf("no sell order found for order_id %s", orderID)
	}
	return nil
}

// DailyPnL aggregates realized P&L across every filled sell order for
// tradeDate, used to build the daily summary.
func (r *OrderRepository) DailyPnL(tradeDate string) (totalPnL float64, wins, losses int, err error) {
	rows, err := r.DB().Query(`
		SELECT realized_pnl FROM sell_orders
		WHERE order_date = ? AND order_status = 'FILLED' AND realized_pnl IS NOT NULL
	`, tradeDate)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to query daily pnl: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to scan daily pnl row: %w", err)
		}
		totalPnL += pnl
		if pnl > 0 {
			wins++
		} else if pnl < 0 {
			losses++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, 0, fmt.Errorf("error iterating daily pnl: %w", err)
	}
	return totalPnL, wins, losses, nil
}

// CountFilledToday returns how many buy orders reached FILLED for
// tradeDate, used as the daily summary's executed-orders count.
func (r *OrderRepository) CountFilledToday(tradeDate string) (int, error) {
	var n int
	err := r.DB().QueryRow(`
		SELECT COUNT(*) FROM buy_orders WHERE order_date = ? AND order_status = 'FILLED'
	`, tradeDate).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to count filled buy orders: %w", err)
	}
	return n, nil
}
