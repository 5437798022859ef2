package store

import (
	"sync"
	"testing"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

func newTestStore() *Store {
	return New(Config{MaxPremarketSelected: 2, MaxIntradaySelected: 1, CacheTTL: 10 * time.Millisecond}, zerolog.Nop())
}

func TestAddSelectedStockRejectsDuplicateAndOverCapacity(t *testing.T) {
	s := newTestStore()

	if !s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{}) {
		t.Fatal("expected first add to succeed")
	}
	if s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{}) {
		t.Error("expected duplicate add to fail")
	}

	if !s.AddSelectedStock("000660", "SK Hynix", domain.ReferenceData{}) {
		t.Fatal("expected second add to succeed")
	}
	if s.AddSelectedStock("005380", "Hyundai Motor", domain.ReferenceData{}) {
		t.Error("expected add beyond capacity to fail")
	}
}

func TestAddIntradayStockUsesSeparateCapacityPool(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	s.AddSelectedStock("000660", "SK Hynix", domain.ReferenceData{})

	if !s.AddIntradayStock("005380", "Hyundai Motor", 200000, domain.ReferenceData{}) {
		t.Fatal("expected intraday add to succeed despite premarket pool being full")
	}
	if s.AddIntradayStock("035720", "Kakao", 50000, domain.ReferenceData{}) {
		t.Error("expected second intraday add to fail: pool size is 1")
	}
}

func TestRemoveSelectedStockClearsState(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	s.UpdatePrice("005930", 71000, 1000, nil)

	if !s.RemoveSelectedStock("005930") {
		t.Fatal("expected remove to succeed")
	}
	if s.Snapshot("005930") != nil {
		t.Error("expected snapshot of removed symbol to be nil")
	}
	if s.RemoveSelectedStock("005930") {
		t.Error("expected second remove to fail")
	}
}

func TestUpdatePriceUnknownCodeFailsSilently(t *testing.T) {
	s := newTestStore()
	if s.UpdatePrice("999999", 100, 0, nil) {
		t.Error("expected update on unknown code to return false")
	}
}

func TestUpdatePriceComputesDerivedMetrics(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{
		YesterdayClose: 70000,
		AvgDailyVolume: 1000,
	})

	s.UpdatePrice("005930", 71400, 2000, nil)

	snap := s.Snapshot("005930")
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	wantChangeRate := (71400.0 - 70000.0) / 70000.0 * 100
	if diff := snap.Realtime.PriceChangeRate - wantChangeRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("PriceChangeRate = %v, want %v", snap.Realtime.PriceChangeRate, wantChangeRate)
	}
	if snap.Realtime.VolumeSpikeRatio != 2.0 {
		t.Errorf("VolumeSpikeRatio = %v, want 2.0", snap.Realtime.VolumeSpikeRatio)
	}
}

func TestUpdatePriceRecomputesUnrealizedPnLWhenBought(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})

	if !s.ChangeStatus("005930", domain.StatusBuyOrdered, "buy submitted", nil) {
		t.Fatal("expected WATCHING -> BUY_ORDERED")
	}
	if !s.ChangeStatus("005930", domain.StatusBought, "fully filled", func(ti *domain.TradeInfo) {
		ti.BuyPrice = 70000
		ti.BuyQuantity = 10
	}) {
		t.Fatal("expected BUY_ORDERED -> BOUGHT")
	}

	s.UpdatePrice("005930", 71000, 100, nil)

	snap := s.Snapshot("005930")
	if snap.UnrealizedPnL != 10000 {
		t.Errorf("UnrealizedPnL = %v, want 10000", snap.UnrealizedPnL)
	}
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})

	if s.ChangeStatus("005930", domain.StatusBought, "skip ahead", nil) {
		t.Error("expected WATCHING -> BOUGHT to be rejected")
	}
}

func TestChangeStatusUnknownCodeFails(t *testing.T) {
	s := newTestStore()
	if s.ChangeStatus("999999", domain.StatusWatching, "", nil) {
		t.Error("expected change_status on unknown code to fail")
	}
}

func TestByStatusBatchReturnsMatchingSnapshots(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	s.AddSelectedStock("000660", "SK Hynix", domain.ReferenceData{})
	s.ChangeStatus("005930", domain.StatusBuyOrdered, "", nil)

	watching := s.ByStatusBatch([]domain.TradingStatus{domain.StatusWatching})
	if len(watching) != 1 || watching[0].Code != "000660" {
		t.Errorf("expected exactly 000660 in WATCHING, got %+v", watching)
	}

	both := s.ByStatusBatch([]domain.TradingStatus{domain.StatusWatching, domain.StatusBuyOrdered})
	if len(both) != 2 {
		t.Errorf("expected both symbols, got %d", len(both))
	}
}

func TestSnapshotCacheServesStaleReadWithinTTL(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{})
	s.UpdatePrice("005930", 70000, 0, nil)

	first := s.Snapshot("005930")
	// Mutate the underlying record directly without invalidating the cache
	// to prove Snapshot served the cached copy, not a fresh read.
	r, _ := s.get("005930")
	r.rtMu.Lock()
	r.rt.CurrentPrice = 99999
	r.rtMu.Unlock()

	second := s.Snapshot("005930")
	if second.Price != first.Price {
		t.Errorf("expected cached snapshot within TTL, got fresh price %v", second.Price)
	}

	time.Sleep(15 * time.Millisecond)
	third := s.Snapshot("005930")
	if third.Price != 99999 {
		t.Errorf("expected fresh snapshot after TTL expiry, got %v", third.Price)
	}
}

func TestConcurrentUpdateAndSnapshotDoesNotRace(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{YesterdayClose: 70000})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.UpdatePrice("005930", float64(70000+i), int64(i), nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Snapshot("005930")
		}
	}()

	wg.Wait()
}

func TestApplyContractUpdateSetsPressureAndDerivedMetrics(t *testing.T) {
	s := newTestStore()
	s.AddSelectedStock("005930", "Samsung Electronics", domain.ReferenceData{
		YesterdayClose: 70000,
		AvgDailyVolume: 1000,
	})

	s.ApplyContractUpdate("005930", ContractUpdate{
		Price:            71400,
		TodayVolume:      2000,
		ContractVolume:   150,
		ContractStrength: 132.5,
		BuyRatio:         0.62,
		MarketPressure:   domain.PressureBuy,
		TurnoverRate:     3.1,
		TradingHalt:      false,
		HourClsCode:      "20",
	})

	snap := s.Snapshot("005930")
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.Realtime.MarketPressure != domain.PressureBuy {
		t.Errorf("MarketPressure = %v, want BUY", snap.Realtime.MarketPressure)
	}
	if snap.Realtime.ContractStrength != 132.5 {
		t.Errorf("ContractStrength = %v, want 132.5", snap.Realtime.ContractStrength)
	}
	if snap.Realtime.VolumeSpikeRatio != 2.0 {
		t.Errorf("VolumeSpikeRatio = %v, want 2.0", snap.Realtime.VolumeSpikeRatio)
	}
}

func TestApplyContractUpdateUnknownCodeFailsSilently(t *testing.T) {
	s := newTestStore()
	if s.ApplyContractUpdate("999999", ContractUpdate{Price: 100}) {
		t.Error("expected update on unknown code to return false")
	}
}
