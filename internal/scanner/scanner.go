// Package scanner implements the Market Scanner: a pre-open ranking of
// the trading universe by a composite score, and an intraday re-scan
// driven by broker rank endpoints. The candle-pattern and divergence
// helpers feed a composite score the same way other scoring packages in
// this module combine several weighted sub-scores into one number.
package scanner

import (
	"sort"
	"time"

	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/symboldir"
	"github.com/aristath/sentinel/pkg/indicators"
	"github.com/rs/zerolog"
)

// Candidate is one scored symbol, with the reasons that contributed to
// its score (used both for logging and for the persisted scan record).
type Candidate struct {
	Code    string
	Name    string
	Score   float64
	Reasons []string
}

// ScanRecorder persists scan results. Declared here rather than imported
// from the repo package so this package never depends on the database
// layer; repo.ScanRepository satisfies this structurally.
type ScanRecorder interface {
	SavePreMarket(scanDate, scanTime string, candidates []Candidate, refs map[string]domain.ReferenceData) error
	SaveIntraday(scanDate, scanTime string, c Candidate, snap domain.Snapshot, reason string) error
}

// Scanner holds the dependencies the pre-market and intraday scans need:
// the static universe, the broker's historical/rank endpoints, the Store
// to register results into, and the scoring configuration. When
// useAdvanced is set, RunPreMarketScan delegates to the pullback-pattern
// variant instead of the composite RSI/MACD/Bollinger scorer, keeping the
// (code, score) selection contract Monitor drives either way behind one
// type.
type Scanner struct {
	universe *symboldir.Directory
	broker   domain.Broker
	store    *store.Store
	gateway  domain.Gateway
	cfg      config.Performance
	schedule domain.PhaseSchedule
	log      zerolog.Logger

	useAdvanced bool
	advanced    *PullbackScanner
	recorder    ScanRecorder
}

// New builds a Scanner. strategy.UseAdvancedScanner selects the
// pullback-pattern pre-market scorer over the default composite one.
func New(universe *symboldir.Directory, broker domain.Broker, st *store.Store, gw domain.Gateway, cfg config.Performance, schedule domain.PhaseSchedule, strategy config.Strategy, log zerolog.Logger) *Scanner {
	return &Scanner{
		universe:    universe,
		broker:      broker,
		store:       st,
		gateway:     gw,
		cfg:         cfg,
		schedule:    schedule,
		log:         log.With().Str("component", "scanner").Logger(),
		useAdvanced: strategy.UseAdvancedScanner,
		advanced:    NewPullback(universe, broker, st, gw, log),
	}
}

// SetRecorder attaches the scan-persistence sink. Nil-safe: with no
// recorder set, scans run exactly as before.
func (s *Scanner) SetRecorder(r ScanRecorder) {
	s.recorder = r
	if s.advanced != nil {
		s.advanced.SetRecorder(r)
	}
}

// RunPreMarketScan clears the Store, scores the entire universe, keeps
// the top MaxPremarketSelectedStocks passing the qualifying threshold,
// registers them into the Store, and requests Gateway subscriptions.
// Returns false if nothing qualified.
func (s *Scanner) RunPreMarketScan() bool {
	if s.useAdvanced {
		return s.advanced.RunPreMarketScan(s.cfg.MaxPremarketSelectedStocks, s.cfg.OpeningPatternScoreThreshold)
	}

	s.store.Reset()

	candidates := make([]scoredCandidate, 0, s.universe.Len())
	for _, code := range s.universe.Codes() {
		sc, ok := s.scorePreOpen(code)
		if !ok {
			continue
		}
		candidates = append(candidates, sc)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	limit := s.cfg.MaxPremarketSelectedStocks
	if limit <= 0 {
		limit = len(candidates)
	}

	selected := 0
	saved := make([]Candidate, 0, limit)
	refs := make(map[string]domain.ReferenceData, limit)
	for _, c := range candidates {
		if selected >= limit {
			break
		}
		if c.score < s.cfg.OpeningPatternScoreThreshold {
			break // sorted descending: nothing further qualifies
		}
		name, _ := s.universe.Name(c.code)
		if !s.store.AddSelectedStock(c.code, name, c.reference) {
			continue
		}
		if err := s.gateway.Subscribe(c.code); err != nil {
			s.log.Warn().Str("code", c.code).Err(err).Msg("subscribe failed after pre-market selection")
		}
		saved = append(saved, Candidate{Code: c.code, Name: name, Score: c.score, Reasons: c.reasons})
		refs[c.code] = c.reference
		selected++
	}

	s.recordPreMarket(saved, refs)

	s.log.Info().Int("universe", s.universe.Len()).Int("selected", selected).Msg("pre-market scan complete")
	return selected > 0
}

// recordPreMarket persists the scan through the recorder, if attached.
func (s *Scanner) recordPreMarket(candidates []Candidate, refs map[string]domain.ReferenceData) {
	if s.recorder == nil || len(candidates) == 0 {
		return
	}
	kst := now().In(domain.KST)
	if err := s.recorder.SavePreMarket(kst.Format("2006-01-02"), kst.Format("15:04:05"), candidates, refs); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist pre-market scan")
	}
}

type scoredCandidate struct {
	code      string
	score     float64
	reasons   []string
	reference domain.ReferenceData
}

// scorePreOpen fetches daily OHLCV and an overnight snapshot for code and
// computes the composite pre-open score described in spec section 4.3.
func (s *Scanner) scorePreOpen(code string) (scoredCandidate, bool) {
	bars, err := s.broker.DailyOHLCV(code, 20)
	if err != nil || len(bars) < 10 {
		return scoredCandidate{}, false
	}

	overnight, err := s.broker.OvernightSnapshot(code)
	if err != nil {
		return scoredCandidate{}, false
	}
	if overnight.TradingHalt {
		return scoredCandidate{}, false
	}
	if overnight.TradingValue < s.cfg.MinTradingValue {
		return scoredCandidate{}, false
	}

	closes := make([]float64, len(bars))
	var volSum float64
	for i, b := range bars {
		closes[i] = b.Close
		volSum += float64(b.Volume)
	}
	avgVolume := volSum / float64(len(bars))

	recentAvg, prevAvg := splitVolumeWindows(bars)
	volumeRatio := 1.0
	if prevAvg > 0 {
		volumeRatio = recentAvg / prevAvg
	}

	rsi := indicators.RSI(closes, 14)
	macd := indicators.MACD(closes, 12, 26, 9)
	bb := indicators.Bollinger(closes, 20, 2)

	patternNames, patternScore := detectPatterns(bars)
	divergenceTag, divergenceScore := computeDivergence(closes)

	var reasons []string
	var composite float64

	// Volume momentum (0-20).
	switch {
	case volumeRatio >= 2.0:
		composite += 20
		reasons = append(reasons, "volume_surge")
	case volumeRatio >= 1.3:
		composite += 12
		reasons = append(reasons, "volume_rising")
	case volumeRatio >= 1.0:
		composite += 6
	}

	// RSI positioning (0-15): prefer recovering from oversold, penalize
	// already-overbought.
	if rsi != nil {
		switch {
		case *rsi >= 30 && *rsi <= 55:
			composite += 15
			reasons = append(reasons, "rsi_recovering")
		case *rsi > 55 && *rsi <= 70:
			composite += 8
		case *rsi > 70:
			composite += 2
		}
	}

	// MACD trend (0-12).
	if macd != nil && macd.MACD > macd.Signal {
		composite += 12
		reasons = append(reasons, "macd_bullish_cross")
	}

	// Bollinger position (0-10): trading 20-60% of the way up the band,
	// with room to the upper band.
	if bb != nil && bb.Upper > bb.Lower {
		pos := (closes[len(closes)-1] - bb.Lower) / (bb.Upper - bb.Lower)
		if pos >= 0.2 && pos <= 0.6 {
			composite += 10
			reasons = append(reasons, "bollinger_room_to_run")
		}
	}

	// Candle patterns (0-18, already capped).
	composite += patternScore
	reasons = append(reasons, patternNames...)

	// Divergence (0-25).
	composite += divergenceScore
	reasons = append(reasons, string(divergenceTag))

	// Overnight gap (bonus/penalty).
	switch {
	case overnight.GapRate > 0 && overnight.GapRate <= 3:
		composite += 8
		reasons = append(reasons, "healthy_gap_up")
	case overnight.GapRate > 5:
		composite -= 5
		reasons = append(reasons, "gap_too_hot")
	case overnight.GapRate < -3:
		composite -= 8
		reasons = append(reasons, "gap_down")
	}

	if composite > 100 {
		composite = 100
	}
	if composite < 0 {
		composite = 0
	}

	ref := domain.ReferenceData{
		YesterdayClose:  bars[len(bars)-1].Close,
		YesterdayVolume: bars[len(bars)-1].Volume,
		YesterdayHigh:   bars[len(bars)-1].High,
		YesterdayLow:    bars[len(bars)-1].Low,
		AvgDailyVolume:  avgVolume,
		AvgTradingValue: overnight.TradingValue,
		PatternScore:    patternScore,
		PatternNames:    patternNames,
	}
	if rsi != nil {
		ref.RSI = *rsi
	}
	if macd != nil {
		ref.MACD = macd.MACD
		ref.MACDSignal = macd.Signal
	}
	sma20 := indicators.SMA(closes, 20)
	if sma20 != nil {
		ref.SMA20 = *sma20
	}
	if bb != nil {
		ref.BBUpper, ref.BBMiddle, ref.BBLower = bb.Upper, bb.Middle, bb.Lower
	}

	return scoredCandidate{code: code, score: composite, reasons: reasons, reference: ref}, true
}

// splitVolumeWindows returns the average volume of the most recent 5 bars
// and the 5 bars before that, for the recent/prev volume ratio.
func splitVolumeWindows(bars []domain.DailyBar) (recent, prev float64) {
	n := len(bars)
	recentWindow := bars[max0(n-5, 0):n]
	prevStart := max0(n-10, 0)
	prevEnd := max0(n-5, 0)
	prevWindow := bars[prevStart:prevEnd]

	recent = avgVolume(recentWindow)
	prev = avgVolume(prevWindow)
	return recent, prev
}

func avgVolume(bars []domain.DailyBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	return sum / float64(len(bars))
}

func max0(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// now exists so tests can't accidentally depend on wall-clock determinism
// in scoring; time-of-day weighting lives in intraday.go where it matters.
var now = time.Now
