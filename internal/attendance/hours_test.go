package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) *time.Time {
	t := time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
	return &t
}

func TestSessionHours(t *testing.T) {
	tests := []struct {
		name string
		in   *time.Time
		out  *time.Time
		want float64
	}{
		{name: "both missing", want: 0},
		{name: "no out", in: at(8, 0), want: 0},
		{name: "no in", out: at(12, 0), want: 0},
		{name: "four hours", in: at(8, 0), out: at(12, 0), want: 4},
		{name: "rounded to two decimals", in: at(8, 0), out: at(12, 10), want: 4.17},
		{name: "out before in clamps to zero", in: at(12, 0), out: at(8, 0), want: 0},
		{name: "zero length", in: at(8, 0), out: at(8, 0), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionHours(tt.in, tt.out))
		})
	}
}

func TestTotalHoursPrefersStoredHours(t *testing.T) {
	stored := 9.5
	rec := Record{
		MorningIn:  at(8, 0),
		MorningOut: at(12, 0),
		Hours:      &stored,
	}
	assert.Equal(t, stored, rec.TotalHours())
}

func TestTotalHoursSegmented(t *testing.T) {
	rec := Record{
		MorningIn:    at(8, 0),
		MorningOut:   at(12, 0),
		AfternoonIn:  at(13, 0),
		AfternoonOut: at(17, 0),
	}
	// The hour gap between 12:00 and 13:00 is not part of any segment,
	// so it never gets subtracted from the total.
	assert.Equal(t, 8.0, rec.TotalHours())

	gap, ok := LunchGap(rec.MorningOut, rec.AfternoonIn)
	assert.True(t, ok)
	assert.Equal(t, "1h", FormatGap(gap))

	rec.OvertimeIn = at(17, 30)
	rec.OvertimeOut = at(19, 0)
	assert.Equal(t, 9.5, rec.TotalHours())
}

func TestTotalHoursLegacy(t *testing.T) {
	rec := Record{ClockIn: at(8, 0), ClockOut: at(17, 0)}
	assert.Equal(t, 9.0, rec.TotalHours())
}

func TestTotalHoursOpenSegmentContributesNothing(t *testing.T) {
	rec := Record{
		MorningIn:   at(8, 0),
		MorningOut:  at(12, 0),
		AfternoonIn: at(13, 0),
	}
	assert.Equal(t, 4.0, rec.TotalHours())
}

func TestLunchGap(t *testing.T) {
	gap, ok := LunchGap(at(12, 0), at(13, 30))
	assert.True(t, ok)
	assert.Equal(t, 90*time.Minute, gap)

	_, ok = LunchGap(at(12, 0), nil)
	assert.False(t, ok)

	_, ok = LunchGap(nil, at(13, 0))
	assert.False(t, ok)

	gap, ok = LunchGap(at(13, 0), at(12, 0))
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), gap)
}

func TestFormatGap(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Minute, "1h 30m"},
		{time.Hour, "1h"},
		{45 * time.Minute, "45m"},
		{0, "0m"},
		{61 * time.Second, "1m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatGap(tt.d), "FormatGap(%v)", tt.d)
	}
}
