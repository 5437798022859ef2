package scanner

import (
	"sort"
	"strings"

	"github.com/aristath/sentinel/internal/domain"
)

// IntradayScanAdditionalStocks produces up to maxStocks new candidates
// from the broker's rank endpoints, combined with an orderbook
// micro-analysis for symbols already in the Store and a time-of-day
// weight. The Monitor decides actual inclusion; this only proposes.
func (s *Scanner) IntradayScanAdditionalStocks(maxStocks int) []Candidate {
	scores := make(map[string]*intradayScore)

	s.foldRank(scores, "disparity", 0.25)
	s.foldRank(scores, "fluctuation", 0.30)
	s.foldRank(scores, "volume", 0.25)
	s.foldRank(scores, "bulk", 0.20)

	phaseWeight := s.timeOfDayWeight()

	out := make([]Candidate, 0, len(scores))
	for code, sc := range scores {
		if !s.eligibleForIntraday(code) {
			continue
		}

		total := sc.weighted * phaseWeight
		reasons := sc.reasons

		if snap := s.store.Snapshot(code); snap != nil {
			obScore, obReason := orderbookMicroScore(snap)
			total += obScore
			if obReason != "" {
				reasons = append(reasons, obReason)
			}
		}

		if total <= 0 {
			continue
		}
		out = append(out, Candidate{Code: code, Name: sc.name, Score: total, Reasons: reasons})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if maxStocks > 0 && len(out) > maxStocks {
		out = out[:maxStocks]
	}

	s.recordIntraday(out)
	return out
}

// recordIntraday persists each proposed intraday candidate through the
// recorder, if attached, using whatever realtime snapshot the Store
// already has for it (zero-value if none yet).
func (s *Scanner) recordIntraday(candidates []Candidate) {
	if s.recorder == nil {
		return
	}
	kst := now().In(domain.KST)
	scanDate, scanTime := kst.Format("2006-01-02"), kst.Format("15:04:05")
	for _, c := range candidates {
		var snap domain.Snapshot
		if live := s.store.Snapshot(c.Code); live != nil {
			snap = *live
		}
		reason := strings.Join(c.Reasons, ",")
		if err := s.recorder.SaveIntraday(scanDate, scanTime, c, snap, reason); err != nil {
			s.log.Warn().Str("code", c.Code).Err(err).Msg("failed to persist intraday scan")
		}
	}
}

type intradayScore struct {
	name     string
	weighted float64
	reasons  []string
}

// foldRank pulls one broker rank endpoint and folds its entries into the
// running per-code weighted score.
func (s *Scanner) foldRank(scores map[string]*intradayScore, kind string, weight float64) {
	var entries []domain.BrokerRankEntry
	var err error
	var reason string

	switch kind {
	case "disparity":
		entries, err = s.broker.RankDisparity(30)
		reason = "oversold_disparity"
	case "fluctuation":
		entries, err = s.broker.RankFluctuation(30)
		reason = "rising_fluctuation"
	case "volume":
		entries, err = s.broker.RankVolume(30)
		reason = "volume_turnover"
	case "bulk":
		entries, err = s.broker.RankBulkTransaction(30)
		reason = "buy_side_bulk_contracts"
	}
	if err != nil {
		s.log.Warn().Str("rank", kind).Err(err).Msg("intraday rank fetch failed")
		return
	}

	n := len(entries)
	for i, e := range entries {
		// Rank position contributes a linearly decaying share of 20 points,
		// scaled by this endpoint's weight.
		positional := (1 - float64(i)/float64(n)) * 20 * weight
		sc, ok := scores[e.Code]
		if !ok {
			sc = &intradayScore{name: e.Name}
			scores[e.Code] = sc
		}
		sc.weighted += positional
		sc.reasons = append(sc.reasons, reason)
	}
}

// eligibleForIntraday excludes symbols already tracked in the Store,
// unless the symbol is SOLD and the configured reinclude bypass is set
// (see DESIGN.md, Open Question: re-include cooldown bypass).
func (s *Scanner) eligibleForIntraday(code string) bool {
	status, tracked := s.store.Status(code)
	if !tracked {
		return true
	}
	if status == domain.StatusSold && s.cfg.IntradayReincludeSold {
		return true
	}
	return false
}

// orderbookMicroScore scores bid/ask skew and spread tightness for a
// symbol that already has realtime data in the Store (0-10).
func orderbookMicroScore(snap *domain.Snapshot) (float64, string) {
	bestBid := snap.Bids[0]
	bestAsk := snap.Asks[0]
	if bestBid.Price <= 0 || bestAsk.Price <= 0 || bestBid.Quantity == 0 || bestAsk.Quantity == 0 {
		return 0, ""
	}

	ratio := float64(bestBid.Quantity) / float64(bestAsk.Quantity)
	spread := (bestAsk.Price - bestBid.Price) / bestBid.Price * 100

	var score float64
	var reason string
	if ratio >= 1.5 {
		score += 6
		reason = "bid_heavy_book"
	}
	if spread > 0 && spread <= 0.3 {
		score += 4
		if reason == "" {
			reason = "tight_spread"
		}
	}
	return score, reason
}

// timeOfDayWeight derates intraday candidates late in the session, when a
// new position has little time to develop.
func (s *Scanner) timeOfDayWeight() float64 {
	phase := s.schedule.Phase(now())
	switch phase {
	case domain.PhaseOpening, domain.PhaseActive:
		return 1.0
	case domain.PhaseLunch:
		return 0.8
	case domain.PhasePreClose:
		return 0.4
	default:
		return 0.2
	}
}
