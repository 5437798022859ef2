package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aristath/sentinel/internal/domain"
	"nhooyr.io/websocket"
)

// systemMessage is the JSON envelope for PINGPONG echoes and subscription
// acknowledgments (which may carry the AES key/IV for execution notices).
type systemMessage struct {
	Header struct {
		TrID string `json:"tr_id"`
	} `json:"header"`
	Body struct {
		OutputSubscribe *struct {
			Key string `json:"key"`
			IV  string `json:"iv"`
		} `json:"output"`
	} `json:"body"`
}

// handleMessage routes one inbound WebSocket frame: JSON system messages
// (PINGPONG, subscribe acks) or pipe-delimited real-time data frames.
func (g *Gateway) handleMessage(raw []byte) {
	s := string(raw)
	if len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		g.handleSystemMessage(raw)
		return
	}
	g.handleDataFrame(s)
}

func (g *Gateway) handleSystemMessage(raw []byte) {
	var msg systemMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.log.Warn().Err(err).Msg("failed to parse system message")
		return
	}

	if msg.Header.TrID == "PINGPONG" {
		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
				g.log.Warn().Err(err).Msg("failed to echo PINGPONG")
			}
		}
		return
	}

	if msg.Body.OutputSubscribe != nil {
		key, err := normalizeKey(msg.Body.OutputSubscribe.Key)
		if err != nil {
			g.log.Error().Err(err).Msg("invalid AES key in subscribe ack")
			return
		}
		iv, err := normalizeKey(msg.Body.OutputSubscribe.IV)
		if err != nil {
			g.log.Error().Err(err).Msg("invalid AES IV in subscribe ack")
			return
		}
		g.mu.Lock()
		g.aesKey = key
		g.aesIV = iv
		g.mu.Unlock()
	}
}

// handleDataFrame parses "flag|tr_id|count|payload" and dispatches to the
// registered callback for tr_id. flag="1" marks the payload as base64
// AES-CBC ciphertext under the session key.
func (g *Gateway) handleDataFrame(s string) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		g.log.Debug().Str("frame", truncate(s, 200)).Msg("unexpected data frame shape, skipping")
		return
	}
	flag, trID, _, payload := parts[0], parts[1], parts[2], parts[3]

	if flag == "1" {
		g.mu.RLock()
		key, iv := g.aesKey, g.aesIV
		g.mu.RUnlock()
		if key == nil || iv == nil {
			g.log.Warn().Str("tr_id", trID).Msg("encrypted frame arrived before AES key, skipping")
			return
		}
		decrypted, err := decryptNotice(payload, key, iv)
		if err != nil {
			g.log.Error().Err(err).Str("tr_id", trID).Msg("failed to decrypt frame")
			return
		}
		payload = decrypted
	}

	var fields map[string]any
	var err error
	switch trID {
	case trContract:
		fields, err = parseContract(payload)
	case trQuote:
		fields, err = parseQuote(payload)
	case trExecutionReal, trExecutionDemo:
		fields, err = parseExecutionNotice(payload)
	default:
		return
	}
	if err != nil {
		g.log.Error().Err(err).Str("tr_id", trID).Msg("failed to parse frame payload")
		return
	}

	g.dispatch(trID, fields)
}

func (g *Gateway) dispatch(tr string, fields map[string]any) {
	g.callbacksMu.RLock()
	cbs := append([]domain.GatewayCallback(nil), g.callbacks[tr]...)
	g.callbacksMu.RUnlock()

	for _, cb := range cbs {
		cb(fields)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// parseContract parses an H0STCNT0 payload: 46 ^-separated fields. Field
// positions per the protocol's (0-indexed) layout.
func parseContract(payload string) (map[string]any, error) {
	f := strings.Split(payload, "^")
	if len(f) < 46 {
		return nil, errFieldCount("H0STCNT0", 46, len(f))
	}

	hourCls := f[43]
	opCode := f[34]
	viActive := hourCls == "51" || hourCls == "52" || opCode == "30" || opCode == "31"
	viPrice := parseFloat(f[45])
	if !viActive {
		viPrice = 0
	}

	return map[string]any{
		"stock_code":              f[0],
		"current_price":           parseFloat(f[2]),
		"change_sign":             f[3],
		"change_amount":           parseFloat(f[4]),
		"change_rate":             parseFloat(f[5]),
		"weighted_avg_price":      parseFloat(f[6]),
		"open":                    parseFloat(f[7]),
		"high":                    parseFloat(f[8]),
		"low":                     parseFloat(f[9]),
		"best_ask":                parseFloat(f[10]),
		"best_bid":                parseFloat(f[11]),
		"contract_volume":         parseInt(f[12]),
		"acc_volume":              parseInt(f[13]),
		"sell_contract_count":     parseInt(f[15]),
		"buy_contract_count":      parseInt(f[16]),
		"net_contract_count":      parseInt(f[17]),
		"contract_strength":       parseFloat(f[18]),
		"total_ask_qty":           parseInt(f[38]), // 총매도호가잔량: the aggregate field, not per-level ask_qty1 (f[19])
		"total_bid_qty":           parseInt(f[39]), // 총매수호가잔량
		"buy_ratio":               parseFloat(f[22]),
		"prev_volume_ratio":       parseFloat(f[23]),
		"market_operation_code":   opCode,
		"trading_halt":            f[35] == "Y",
		"volume_turnover_rate":    parseFloat(f[40]),
		"prev_same_time_volume":   parseFloat(f[41]),
		"prev_same_time_rate":     parseFloat(f[42]),
		"hour_cls_code":           hourCls,
		"vi_active":               viActive,
		"vi_standard_price":       viPrice,
	}, nil
}

// parseQuote parses an H0STASP0 payload: the 10-depth bid/ask prices and
// sizes. Field layout mirrors the broker's quote-frame convention: code,
// time, hour class code, then 10 ask prices (fields 3-12), 10 bid prices
// (13-22), 10 ask sizes (23-32), 10 bid sizes (33-42).
func parseQuote(payload string) (map[string]any, error) {
	f := strings.Split(payload, "^")
	if len(f) < 42 {
		return nil, errFieldCount("H0STASP0", 42, len(f))
	}

	askPrices := make([]float64, 5)
	bidPrices := make([]float64, 5)
	askSizes := make([]int64, 5)
	bidSizes := make([]int64, 5)
	for i := 0; i < 5; i++ {
		askPrices[i] = parseFloat(f[3+i])
		bidPrices[i] = parseFloat(f[13+i])
		askSizes[i] = parseInt(f[23+i])
		bidSizes[i] = parseInt(f[33+i])
	}

	return map[string]any{
		"stock_code": f[0],
		"ask_prices": askPrices,
		"bid_prices": bidPrices,
		"ask_sizes":  askSizes,
		"bid_sizes":  bidSizes,
	}, nil
}

// parseExecutionNotice parses a decrypted H0STCNI0/H0STCNI9 payload:
// ≥23 ^-separated fields.
func parseExecutionNotice(payload string) (map[string]any, error) {
	f := strings.Split(payload, "^")
	if len(f) < 23 {
		return nil, errFieldCount("H0STCNI0", 23, len(f))
	}

	return map[string]any{
		"stock_code":    f[8],
		"order_no":      f[2],
		"branch_no":     f[15],
		"sell_buy_dvsn": f[4],
		"exec_yn":       f[13],
		"exec_time":     f[11],
		"ord_qty":       parseInt(f[16]),
		"ord_price":     parseFloat(f[17]),
		"exec_qty":      parseInt(f[9]),
		"exec_price":    parseFloat(f[10]),
	}, nil
}

func errFieldCount(tr string, want, got int) error {
	return &fieldCountError{tr: tr, want: want, got: got}
}

type fieldCountError struct {
	tr       string
	want, got int
}

func (e *fieldCountError) Error() string {
	return "gateway: " + e.tr + " expected >= " + strconv.Itoa(e.want) + " fields, got " + strconv.Itoa(e.got)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
