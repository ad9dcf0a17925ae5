package attendance

import (
	"fmt"
	"math"
	"time"
)

// SessionHours returns the worked hours between the two endpoints, clamped
// to zero and rounded to two decimals. Missing endpoints yield 0.
func SessionHours(in, out *time.Time) float64 {
	if in == nil || out == nil {
		return 0
	}
	h := out.Sub(*in).Hours()
	if h < 0 {
		return 0
	}
	return math.Round(h*100) / 100
}

// LunchGap returns the break between morning time-out and afternoon
// time-in. ok is false unless both endpoints are present.
func LunchGap(morningOut, afternoonIn *time.Time) (time.Duration, bool) {
	if morningOut == nil || afternoonIn == nil {
		return 0, false
	}
	gap := afternoonIn.Sub(*morningOut)
	if gap < 0 {
		gap = 0
	}
	return gap, true
}

// FormatGap renders a duration as "1h 30m", "1h" or "45m".
func FormatGap(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// TotalHours is the worked-hours total for the record. The stored Hours
// field wins when present; otherwise the discrete segment sums are added
// up. The lunch gap is never part of the total, it simply falls between
// the morning and afternoon segments.
func (r *Record) TotalHours() float64 {
	if r.Hours != nil {
		return *r.Hours
	}
	if _, ok := r.Sessions().(Legacy); ok {
		return SessionHours(r.ClockIn, r.ClockOut)
	}
	total := SessionHours(r.MorningIn, r.MorningOut) +
		SessionHours(r.AfternoonIn, r.AfternoonOut) +
		SessionHours(r.OvertimeIn, r.OvertimeOut)
	return math.Round(total*100) / 100
}
