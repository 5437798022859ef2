package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

const (
	trIDDailyChart = "FHKST03010100"
	trIDOvernight  = "FHKST01010100"
)

type dailyChartResponse struct {
	Output2 []struct {
		Date   string `json:"stck_bsop_date"`
		Open   string `json:"stck_oprc"`
		High   string `json:"stck_hgpr"`
		Low    string `json:"stck_lwpr"`
		Close  string `json:"stck_clpr"`
		Volume string `json:"acml_vol"`
	} `json:"output2"`
}

// DailyOHLCV returns the last n daily bars for code, oldest first.
func (c *Client) DailyOHLCV(code string, n int) ([]domain.DailyBar, error) {
	to := time.Now().Format("20060102")
	from := time.Now().AddDate(0, 0, -n*3).Format("20060102")

	raw, err := c.call("GET", "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice", trIDDailyChart, map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         code,
		"FID_INPUT_DATE_1":       from,
		"FID_INPUT_DATE_2":       to,
		"FID_PERIOD_DIV_CODE":    "D",
		"FID_ORG_ADJ_PRC":        "0",
	}, nil, true)
	if err != nil {
		return nil, fmt.Errorf("broker: daily ohlcv for %s: %w", code, err)
	}

	var res dailyChartResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("broker: parse daily ohlcv response: %w", err)
	}

	bars := make([]domain.DailyBar, 0, len(res.Output2))
	for _, row := range res.Output2 {
		date, err := time.Parse("20060102", row.Date)
		if err != nil {
			continue
		}
		bars = append(bars, domain.DailyBar{
			Date:   date,
			Open:   parseFloat(row.Open),
			High:   parseFloat(row.High),
			Low:    parseFloat(row.Low),
			Close:  parseFloat(row.Close),
			Volume: int64(parseFloat(row.Volume)),
		})
	}

	// Output2 is newest-first; reverse to oldest-first per contract.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

type overnightResponse struct {
	Output struct {
		Price       string `json:"stck_prpr"`
		PrevClose   string `json:"stck_sdpr"`
		TradingValue string `json:"acml_tr_pbmn"`
		TradingHalt string `json:"temp_stop_yn"`
	} `json:"output"`
}

// OvernightSnapshot returns the single-price overnight quote used by the
// pre-open scorer: gap rate against the previous close, cumulative trading
// value, and whether the symbol carries a trading halt.
func (c *Client) OvernightSnapshot(code string) (*domain.OvernightQuote, error) {
	raw, err := c.call("GET", "/uapi/domestic-stock/v1/quotations/inquire-price", trIDOvernight, map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         code,
	}, nil, true)
	if err != nil {
		return nil, fmt.Errorf("broker: overnight snapshot for %s: %w", code, err)
	}

	var res overnightResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("broker: parse overnight snapshot: %w", err)
	}

	price := parseFloat(res.Output.Price)
	prevClose := parseFloat(res.Output.PrevClose)
	gapRate := 0.0
	if prevClose > 0 {
		gapRate = (price - prevClose) / prevClose * 100
	}

	return &domain.OvernightQuote{
		Code:         code,
		Price:        price,
		GapRate:      gapRate,
		TradingValue: parseFloat(res.Output.TradingValue),
		TradingHalt:  res.Output.TradingHalt == "Y",
	}, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
