package broker

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/sentinel/internal/domain"
)

const (
	trIDRankDisparity   = "FHPST01780000"
	trIDRankFluctuation = "FHPST01700000"
	trIDRankVolume      = "FHPST01710000"
	trIDRankBulkTrade   = "FHPST01720000"
)

type rankResponse struct {
	Output []struct {
		Code  string `json:"mksc_shrn_iscd"`
		Name  string `json:"hts_kor_isnm"`
		Value string `json:"value"`
	} `json:"output"`
}

func (c *Client) rank(path, trID string, extra map[string]string, n int) ([]domain.BrokerRankEntry, error) {
	query := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_COND_SCR_DIV_CODE":  "20170",
		"FID_INPUT_ISCD":         "0000",
		"FID_DIV_CLS_CODE":       "0",
		"FID_TRGT_CLS_CODE":      "0",
		"FID_TRGT_EXLS_CLS_CODE": "0",
		"FID_VOL_CNT":            "",
	}
	for k, v := range extra {
		query[k] = v
	}

	raw, err := c.call("GET", path, trID, query, nil, true)
	if err != nil {
		return nil, fmt.Errorf("broker: rank %s: %w", path, err)
	}

	var res rankResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("broker: parse rank response: %w", err)
	}

	entries := make([]domain.BrokerRankEntry, 0, len(res.Output))
	for _, row := range res.Output {
		entries = append(entries, domain.BrokerRankEntry{
			Code:  row.Code,
			Name:  row.Name,
			Value: parseFloat(row.Value),
		})
		if len(entries) >= n {
			break
		}
	}
	return entries, nil
}

// RankDisparity returns the top n symbols by oversold disparity (moving
// average deviation), used by the intraday scanner's oversold signal.
func (c *Client) RankDisparity(n int) ([]domain.BrokerRankEntry, error) {
	return c.rank("/uapi/domestic-stock/v1/ranking/disparity", trIDRankDisparity, map[string]string{"FID_HOUR_CLS_CODE": "20", "FID_RANK_SORT_CLS_CODE": "0"}, n)
}

// RankFluctuation returns the top n symbols by intraday price fluctuation.
func (c *Client) RankFluctuation(n int) ([]domain.BrokerRankEntry, error) {
	return c.rank("/uapi/domestic-stock/v1/ranking/fluctuation", trIDRankFluctuation, map[string]string{"FID_RANK_SORT_CLS_CODE": "0", "FID_PRC_CLS_CODE": "0"}, n)
}

// RankVolume returns the top n symbols by volume turnover rate.
func (c *Client) RankVolume(n int) ([]domain.BrokerRankEntry, error) {
	return c.rank("/uapi/domestic-stock/v1/ranking/volume-rank", trIDRankVolume, map[string]string{"FID_BLNG_CLS_CODE": "3"}, n)
}

// RankBulkTransaction returns the top n symbols by buy-side contract
// intensity (bulk transaction count), used as a proxy for institutional
// accumulation.
func (c *Client) RankBulkTransaction(n int) ([]domain.BrokerRankEntry, error) {
	return c.rank("/uapi/domestic-stock/v1/ranking/bulk-trans-num", trIDRankBulkTrade, map[string]string{"FID_RANK_SORT_CLS_CODE": "0"}, n)
}
