package domain

import "time"

// KST is the market's operating timezone. Loaded once at package init;
// falls back to a fixed +9h offset if the tzdata database is unavailable
// (common in minimal container images).
var KST = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

// PhaseSchedule holds the wall-clock boundaries (in KST, HH:MM) used to
// derive MarketPhase. Populated from config.Schedule.
type PhaseSchedule struct {
	OpenTime       string // market open, e.g. "09:00"
	OpeningEnd     string // end of the "opening" phase, e.g. "09:15"
	LunchStart     string
	LunchEnd       string
	PreCloseStart  string
	ClosingStart   string
	CloseTime      string // market close, e.g. "15:30"
}

// Phase derives the MarketPhase for t (must carry a KST-equivalent wall
// clock; callers should pass t.In(domain.KST)).
func (s PhaseSchedule) Phase(t time.Time) MarketPhase {
	t = t.In(KST)
	hm := t.Format("15:04")

	switch {
	case hm < s.OpenTime:
		return PhaseClosed
	case hm < s.OpeningEnd:
		return PhaseOpening
	case hm >= s.LunchStart && hm < s.LunchEnd:
		return PhaseLunch
	case hm >= s.ClosingStart && hm < s.CloseTime:
		return PhaseClosing
	case hm >= s.PreCloseStart && hm < s.ClosingStart:
		return PhasePreClose
	case hm >= s.CloseTime:
		return PhaseClosed
	default:
		return PhaseActive
	}
}

// IsViActive reports whether a VI (Volatility Interruption) is currently
// signaled, per spec section 4.2: hour_cls_code in {51,52} or
// market_operation_code in {30,31}.
func IsViActive(hourClsCode string, marketOperationCode string) bool {
	switch hourClsCode {
	case "51", "52":
		return true
	}
	switch marketOperationCode {
	case "30", "31":
		return true
	}
	return false
}
