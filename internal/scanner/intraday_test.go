package scanner

import (
	"testing"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestIntradayScanAdditionalStocksCombinesRanks(t *testing.T) {
	broker := &stubBroker{
		ranks: map[string][]domain.BrokerRankEntry{
			"disparity":   {{Code: "005930", Name: "Samsung Electronics", Value: 0.9}},
			"fluctuation": {{Code: "005930", Name: "Samsung Electronics", Value: 5.2}, {Code: "000660", Name: "SK Hynix", Value: 3.1}},
			"volume":      {{Code: "000660", Name: "SK Hynix", Value: 2.0}},
			"bulk":        {},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	cfg := config.Performance{}

	sc := New(nil, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())
	candidates := sc.IntradayScanAdditionalStocks(10)

	require.NotEmpty(t, candidates)
	codes := map[string]bool{}
	for _, c := range candidates {
		codes[c.Code] = true
	}
	require.True(t, codes["005930"])
	require.True(t, codes["000660"])
}

func TestIntradayScanExcludesAlreadyManagedUnlessSold(t *testing.T) {
	broker := &stubBroker{
		ranks: map[string][]domain.BrokerRankEntry{
			"disparity":   {{Code: "005930", Name: "Samsung Electronics", Value: 0.9}},
			"fluctuation": {},
			"volume":      {},
			"bulk":        {},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})

	cfg := config.Performance{IntradayReincludeSold: false}
	sc := New(nil, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())

	candidates := sc.IntradayScanAdditionalStocks(10)
	for _, c := range candidates {
		require.NotEqual(t, "005930", c.Code, "already-managed WATCHING symbol should be excluded")
	}
}

func TestIntradayScanReincludesSoldWhenConfigured(t *testing.T) {
	broker := &stubBroker{
		ranks: map[string][]domain.BrokerRankEntry{
			"disparity":   {{Code: "005930", Name: "Samsung Electronics", Value: 0.9}},
			"fluctuation": {},
			"volume":      {},
			"bulk":        {},
		},
	}
	gw := &stubGateway{}
	st := store.New(store.Config{MaxPremarketSelected: 5}, zerolog.Nop())
	st.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	st.ChangeStatus("005930", domain.StatusBuyOrdered, "", nil)
	st.ChangeStatus("005930", domain.StatusBought, "", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 1000
		ti.BuyQuantity = 1
	})
	st.ChangeStatus("005930", domain.StatusSellOrdered, "", nil)
	st.ChangeStatus("005930", domain.StatusSold, "", nil)

	cfg := config.Performance{IntradayReincludeSold: true}
	sc := New(nil, broker, st, gw, cfg, domain.PhaseSchedule{}, config.Strategy{}, zerolog.Nop())

	candidates := sc.IntradayScanAdditionalStocks(10)
	found := false
	for _, c := range candidates {
		if c.Code == "005930" {
			found = true
		}
	}
	require.True(t, found, "expected SOLD symbol to be reincluded when configured")
}
