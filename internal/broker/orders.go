package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

const (
	trIDOrderCashBuy  = "TTTC0802U"
	trIDOrderCashSell = "TTTC0801U"
	trIDOrderCancel   = "TTTC0803U"
)

// splitAccount splits "12345678-01" into its CANO and product-code parts.
// When accountNo carries no dash, the whole value is used as CANO and "01"
// is assumed for the product code.
func splitAccount(accountNo string) (cano, prdtCd string) {
	if idx := strings.IndexByte(accountNo, '-'); idx >= 0 {
		return accountNo[:idx], accountNo[idx+1:]
	}
	return accountNo, "01"
}

type orderResponse struct {
	RtCd    string `json:"rt_cd"`
	MsgCd   string `json:"msg_cd"`
	Msg1    string `json:"msg1"`
	Output struct {
		OrderNo   string `json:"ODNO"`
		OrderTime string `json:"ORD_TMD"`
		OrgNo     string `json:"KRX_FWDG_ORD_ORGNO"`
	} `json:"output"`
}

// PlaceOrder submits a market-linked limit order. price of 0 signals a
// best-price order; the upstream API uses order_dvsn "01" for that case
// and "00" (specified price) otherwise.
func (c *Client) PlaceOrder(code string, side string, qty int64, price float64) (*domain.BrokerOrderAck, error) {
	cano, prdtCd := splitAccount(c.accountNo)

	orderDvsn := "00"
	priceStr := strconv.FormatFloat(price, 'f', 0, 64)
	if price <= 0 {
		orderDvsn = "01"
		priceStr = "0"
	}

	trID := trIDOrderCashBuy
	if side == "sell" {
		trID = trIDOrderCashSell
	}

	raw, err := c.call("POST", "/uapi/domestic-stock/v1/trading/order-cash", trID, nil, map[string]string{
		"CANO":         cano,
		"ACNT_PRDT_CD": prdtCd,
		"PDNO":         code,
		"ORD_DVSN":     orderDvsn,
		"ORD_QTY":      strconv.FormatInt(qty, 10),
		"ORD_UNPR":     priceStr,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("broker: place %s order for %s: %w", side, code, err)
	}

	var res orderResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("broker: parse order response: %w", err)
	}
	accepted := res.RtCd == "0" || res.RtCd == "00" || (res.RtCd == "" && res.MsgCd == "") || res.Output.OrderNo != ""
	if !accepted {
		return &domain.BrokerOrderAck{Accepted: false}, fmt.Errorf("broker: order rejected: %s %s", res.MsgCd, res.Msg1)
	}

	return &domain.BrokerOrderAck{
		OrderID:   res.Output.OrderNo,
		OrgNo:     res.Output.OrgNo,
		OrderTime: parseOrderTime(res.Output.OrderTime),
		Accepted:  true,
	}, nil
}

// CancelOrder cancels the full remaining quantity of orderID.
func (c *Client) CancelOrder(code, orderID, orgNo string, qty int64) (*domain.BrokerOrderAck, error) {
	cano, prdtCd := splitAccount(c.accountNo)

	raw, err := c.call("POST", "/uapi/domestic-stock/v1/trading/order-rvsecncl", trIDOrderCancel, nil, map[string]string{
		"CANO":             cano,
		"ACNT_PRDT_CD":     prdtCd,
		"KRX_FWDG_ORD_ORGNO": orgNo,
		"ORGN_ODNO":        orderID,
		"ORD_DVSN":         "00",
		"RVSE_CNCL_DVSN_CD": "02", // cancel (01 would be a modify)
		"ORD_QTY":          strconv.FormatInt(qty, 10),
		"ORD_UNPR":         "0",
		"QTY_ALL_ORD_YN":   "Y",
	}, true)
	if err != nil {
		return nil, fmt.Errorf("broker: cancel order %s for %s: %w", orderID, code, err)
	}

	var res orderResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("broker: parse cancel response: %w", err)
	}
	if res.RtCd != "0" {
		return &domain.BrokerOrderAck{Accepted: false}, fmt.Errorf("broker: cancel rejected: %s %s", res.MsgCd, res.Msg1)
	}

	return &domain.BrokerOrderAck{
		OrderID:   res.Output.OrderNo,
		OrgNo:     res.Output.OrgNo,
		OrderTime: parseOrderTime(res.Output.OrderTime),
		Accepted:  true,
	}, nil
}

func parseOrderTime(hhmmss string) time.Time {
	if len(hhmmss) != 6 {
		return time.Now()
	}
	now := time.Now()
	t, err := time.ParseInLocation("150405", hhmmss, now.Location())
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
}
