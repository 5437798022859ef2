package scanner

import (
	"sort"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/symboldir"
	"github.com/aristath/sentinel/pkg/indicators"
	"github.com/rs/zerolog"
)

// PullbackScanner is the advanced pre-market scanner variant: a replacement
// for the composite RSI/MACD/Bollinger scorer in scanner.go that instead
// scores each candidate on a pullback ("눌림목") read of its recent daily
// bars — does the midpoint of today's range hold as support, is volume
// surging into that hold, and has the recent candle sequence been
// upward-dominant. It satisfies the same (code, score) output contract as
// the pre-market scanner, so either can feed RunPreMarketScan's selection
// and subscription logic.
type PullbackScanner struct {
	universe *symboldir.Directory
	broker   domain.Broker
	store    *store.Store
	gateway  domain.Gateway
	log      zerolog.Logger
	recorder ScanRecorder
}

// SetRecorder attaches the scan-persistence sink.
func (s *PullbackScanner) SetRecorder(r ScanRecorder) {
	s.recorder = r
}

// NewPullback builds a PullbackScanner.
func NewPullback(universe *symboldir.Directory, broker domain.Broker, st *store.Store, gw domain.Gateway, log zerolog.Logger) *PullbackScanner {
	return &PullbackScanner{
		universe: universe,
		broker:   broker,
		store:    st,
		gateway:  gw,
		log:      log.With().Str("component", "pullback_scanner").Logger(),
	}
}

// pullbackBarsWanted is enough history to cover both the 200-day high
// envelope and the pullback pattern's own lookback windows.
const pullbackBarsWanted = 200

// midpointSupport reports whether today's close sits above the midpoint of
// today's high/low range, and how often that's held over the last 5 bars.
type midpointSupport struct {
	CurrentMidpoint float64
	AboveMidpoint   bool
	MidpointRatio   float64
	SupportStrength float64
}

func calculateMidpointSupport(bars []domain.DailyBar) midpointSupport {
	if len(bars) == 0 {
		return midpointSupport{}
	}
	today := bars[len(bars)-1]
	midpoint := (today.High + today.Low) / 2

	checkDays := 5
	if checkDays > len(bars) {
		checkDays = len(bars)
	}
	window := bars[len(bars)-checkDays:]
	supportCount := 0
	for _, b := range window {
		if b.Close > (b.High+b.Low)/2 {
			supportCount++
		}
	}

	ratio := 0.0
	if midpoint > 0 {
		ratio = today.Close / midpoint
	}
	return midpointSupport{
		CurrentMidpoint: midpoint,
		AboveMidpoint:   today.Close > midpoint,
		MidpointRatio:   ratio,
		SupportStrength: float64(supportCount) / float64(checkDays),
	}
}

// volumeMomentum reports today's volume against the trailing 5-day average
// and the 3-day volume trend.
type volumeMomentum struct {
	VolumeRatio   float64
	VolumeSurge   bool
	MomentumTrend string // "increasing", "decreasing", "volatile_up", "neutral"
}

func analyzeVolumeMomentum(bars []domain.DailyBar, surgeMultiplier float64) volumeMomentum {
	n := len(bars)
	if n == 0 {
		return volumeMomentum{MomentumTrend: "neutral"}
	}
	today := float64(bars[n-1].Volume)

	avgWindow := 5
	if avgWindow > n-1 {
		avgWindow = n - 1
	}
	avg := today
	if avgWindow > 0 {
		sum := 0.0
		for _, b := range bars[n-1-avgWindow : n-1] {
			sum += float64(b.Volume)
		}
		avg = sum / float64(avgWindow)
	}

	ratio := 0.0
	if avg > 0 {
		ratio = today / avg
	}

	trend := "neutral"
	if n >= 3 {
		d0, d1, d2 := float64(bars[n-1].Volume), float64(bars[n-2].Volume), float64(bars[n-3].Volume)
		switch {
		case d0 > d1 && d1 > d2:
			trend = "increasing"
		case d0 < d1 && d1 < d2:
			trend = "decreasing"
		case d0 > d2:
			trend = "volatile_up"
		}
	}

	return volumeMomentum{
		VolumeRatio:   ratio,
		VolumeSurge:   ratio >= surgeMultiplier,
		MomentumTrend: trend,
	}
}

// uptrendDominance reports whether green candles have dominated both in
// count and in average body size over the lookback window.
type uptrendDominance struct {
	Dominant     bool
	UpCandleRate float64
	BodyRatio    float64 // avg green body / avg red body; 100 if no red bars
}

func checkUptrendDominance(bars []domain.DailyBar, lookback int) uptrendDominance {
	n := len(bars)
	if n < lookback {
		return uptrendDominance{}
	}
	window := bars[n-lookback:]

	upCount := 0
	var upBodySum, downBodySum float64
	var downCount int
	for _, b := range window {
		body := abs(b.Close - b.Open)
		if b.Close > b.Open {
			upCount++
			upBodySum += body
		} else {
			downCount++
			downBodySum += body
		}
	}

	upRate := float64(upCount) / float64(lookback)
	avgUp := 0.0
	if upCount > 0 {
		avgUp = upBodySum / float64(upCount)
	}
	bodyRatio := 0.0
	switch {
	case downCount > 0:
		bodyRatio = avgUp / (downBodySum / float64(downCount))
	case avgUp > 0:
		bodyRatio = 100 // stand-in for "no red candles to compare against"
	}

	return uptrendDominance{
		Dominant:     upRate >= 0.6 && bodyRatio >= 1.2,
		UpCandleRate: upRate,
		BodyRatio:    bodyRatio,
	}
}

// pullbackPattern is the combined read feeding the composite score.
type pullbackPattern struct {
	IsPullback      bool
	Confidence      float64 // 0-100, sum of matched condition weights
	PullbackFromHigh float64
	Midpoint        midpointSupport
	Volume          volumeMomentum
	Uptrend         uptrendDominance
}

// detectPullbackPattern grounds its condition weights and confidence
// threshold on the same five-condition checklist the original pullback
// detector scores: midpoint support, a volume surge, uptrend-dominant
// candles, a mild retracement from the recent high, and a strong (≥60%)
// midpoint support streak.
func detectPullbackPattern(bars []domain.DailyBar, pullbackThreshold float64) pullbackPattern {
	n := len(bars)
	if n == 0 {
		return pullbackPattern{}
	}

	mid := calculateMidpointSupport(bars)
	vol := analyzeVolumeMomentum(bars, 3.0)
	up := checkUptrendDominance(bars, 5)

	recentWindow := 5
	if recentWindow > n {
		recentWindow = n
	}
	recent := bars[n-recentWindow:]
	recentHigh := recent[0].High
	for _, b := range recent {
		if b.High > recentHigh {
			recentHigh = b.High
		}
	}
	pullbackFromHigh := 0.0
	if recentHigh > 0 {
		pullbackFromHigh = (recentHigh - bars[n-1].Close) / recentHigh
	}

	confidence := 0.0
	if mid.AboveMidpoint {
		confidence += 30
	}
	if vol.VolumeSurge {
		confidence += 25
	}
	if up.Dominant {
		confidence += 20
	}
	if pullbackFromHigh > 0 && pullbackFromHigh <= pullbackThreshold {
		confidence += 15
	}
	if mid.SupportStrength >= 0.6 {
		confidence += 10
	}

	return pullbackPattern{
		IsPullback:       confidence >= 70,
		Confidence:       confidence,
		PullbackFromHigh: pullbackFromHigh,
		Midpoint:         mid,
		Volume:           vol,
		Uptrend:          up,
	}
}

// calculatePullbackScore blends the raw confidence with weighted
// sub-scores for volume, midpoint support, and uptrend strength, the same
// 0.4/0.6 confidence/weighted-score split the original scorer uses.
func calculatePullbackScore(p pullbackPattern) float64 {
	volumeScore := p.Volume.VolumeRatio * 20
	if volumeScore > 100 {
		volumeScore = 100
	}
	midpointScore := p.Midpoint.SupportStrength * 100
	uptrendScore := p.Uptrend.UpCandleRate*50 + min(50, p.Uptrend.BodyRatio*25)

	weighted := volumeScore*0.3 + midpointScore*0.3 + uptrendScore*0.4
	final := p.Confidence*0.4 + weighted*0.6

	if final > 100 {
		final = 100
	}
	if final < 0 {
		final = 0
	}
	return final
}

// envelopeBand is a simple SMA-centered envelope, (10, 10): a 10-day
// moving average widened 10% on each side.
type envelopeBand struct {
	Upper, Middle, Lower float64
}

func envelope(closes []float64, length int, widthPct float64) *envelopeBand {
	sma := indicators.SMA(closes, length)
	if sma == nil {
		return nil
	}
	return &envelopeBand{
		Upper:  *sma * (1 + widthPct),
		Middle: *sma,
		Lower:  *sma * (1 - widthPct),
	}
}

func high200(bars []domain.DailyBar) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}
	window := bars
	if n > pullbackBarsWanted {
		window = bars[n-pullbackBarsWanted:]
	}
	h := window[0].High
	for _, b := range window {
		if b.High > h {
			h = b.High
		}
	}
	return h
}

// scorePullback computes the advanced-scanner composite for one code:
// volume-Bollinger position, the (10,10) envelope against the 200-day
// high, and the pullback pattern confidence.
func (s *PullbackScanner) scorePullback(code string) (scoredCandidate, bool) {
	bars, err := s.broker.DailyOHLCV(code, pullbackBarsWanted)
	if err != nil || len(bars) < 20 {
		return scoredCandidate{}, false
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	pattern := detectPullbackPattern(bars, 0.02)
	if !pattern.IsPullback {
		return scoredCandidate{}, false
	}

	composite := calculatePullbackScore(pattern)
	reasons := []string{"pullback_pattern"}

	if volBB := indicators.Bollinger(volumes, 20, 2); volBB != nil {
		if volumes[len(volumes)-1] >= volBB.Upper {
			composite += 5
			reasons = append(reasons, "volume_bollinger_breakout")
		}
	}

	high := high200(bars)
	if env := envelope(closes, 10, 0.10); env != nil && high > 0 {
		near52wHigh := closes[len(closes)-1] >= high*0.85
		withinEnvelope := closes[len(closes)-1] <= env.Upper
		if near52wHigh && withinEnvelope {
			composite += 5
			reasons = append(reasons, "envelope_room_near_high")
		}
	}

	if composite > 100 {
		composite = 100
	}

	ref := domain.ReferenceData{
		YesterdayClose:  bars[len(bars)-1].Close,
		YesterdayVolume: bars[len(bars)-1].Volume,
		YesterdayHigh:   bars[len(bars)-1].High,
		YesterdayLow:    bars[len(bars)-1].Low,
	}

	return scoredCandidate{code: code, score: composite, reasons: reasons, reference: ref}, true
}

// RunPreMarketScan runs the pullback-pattern variant of the pre-market
// scan: same Store/Gateway side effects as Scanner.RunPreMarketScan, a
// different scoring function underneath.
func (s *PullbackScanner) RunPreMarketScan(maxSelected int, minScore float64) bool {
	s.store.Reset()

	candidates := make([]scoredCandidate, 0, s.universe.Len())
	for _, code := range s.universe.Codes() {
		sc, ok := s.scorePullback(code)
		if !ok {
			continue
		}
		candidates = append(candidates, sc)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	limit := maxSelected
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
		if c.score < minScore {
			break
		}
		name, _ := s.universe.Name(c.code)
		if !s.store.AddSelectedStock(c.code, name, c.reference) {
			continue
		}
		if err := s.gateway.Subscribe(c.code); err != nil {
			s.log.Warn().Str("code", c.code).Err(err).Msg("subscribe failed after pullback selection")
		}
		saved = append(saved, Candidate{Code: c.code, Name: name, Score: c.score, Reasons: c.reasons})
		refs[c.code] = c.reference
		selected++
	}

	if s.recorder != nil && len(saved) > 0 {
		kst := now().In(domain.KST)
		if err := s.recorder.SavePreMarket(kst.Format("2006-01-02"), kst.Format("15:04:05"), saved, refs); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist pullback pre-market scan")
		}
	}

	s.log.Info().Int("universe", s.universe.Len()).Int("selected", selected).Msg("pullback pre-market scan complete")
	return selected > 0
}
