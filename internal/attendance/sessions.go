package attendance

import "time"

// Action is the next clock operation a record allows.
type Action struct {
	Segment   Segment   `json:"segment"`
	Direction Direction `json:"direction"`
}

// Span is a time-in/time-out pair; either endpoint may be missing.
type Span struct {
	In  *time.Time
	Out *time.Time
}

// Open reports whether the span has a time-in without a time-out.
func (s Span) Open() bool { return s.In != nil && s.Out == nil }

// Sessions is the closed set of timestamp shapes a record can have.
// Modeling the two shapes as variants keeps NextAction a total function
// instead of a chain of nil checks over optional fields.
type Sessions interface {
	// NextAction returns the next allowed clock action, or ok=false when
	// the day is complete.
	NextAction() (Action, bool)
	// OpenSegment returns the currently open segment, if any.
	OpenSegment() (Segment, bool)
}

// Segmented is the current shape: independent morning, afternoon and
// overtime sessions.
type Segmented struct {
	Morning   Span
	Afternoon Span
	Overtime  Span
}

func (s Segmented) NextAction() (Action, bool) {
	// An open segment is always closed before any new one opens, even on
	// imported records with out-of-order gaps.
	if seg, ok := s.OpenSegment(); ok {
		return Action{Segment: seg, Direction: DirectionOut}, true
	}
	order := []struct {
		seg  Segment
		span Span
	}{
		{SegmentMorning, s.Morning},
		{SegmentAfternoon, s.Afternoon},
		{SegmentOvertime, s.Overtime},
	}
	for _, entry := range order {
		if entry.span.In == nil {
			return Action{Segment: entry.seg, Direction: DirectionIn}, true
		}
		if entry.span.Out == nil {
			return Action{Segment: entry.seg, Direction: DirectionOut}, true
		}
	}
	return Action{}, false
}

func (s Segmented) OpenSegment() (Segment, bool) {
	switch {
	case s.Morning.Open():
		return SegmentMorning, true
	case s.Afternoon.Open():
		return SegmentAfternoon, true
	case s.Overtime.Open():
		return SegmentOvertime, true
	}
	return "", false
}

// Legacy is the backward-compatible shape: one clock-in/clock-out pair
// covering the whole day.
type Legacy struct {
	Span
}

func (l Legacy) NextAction() (Action, bool) {
	if l.In == nil {
		return Action{Segment: SegmentLegacy, Direction: DirectionIn}, true
	}
	if l.Out == nil {
		return Action{Segment: SegmentLegacy, Direction: DirectionOut}, true
	}
	return Action{}, false
}

func (l Legacy) OpenSegment() (Segment, bool) {
	if l.Open() {
		return SegmentLegacy, true
	}
	return "", false
}

// Sessions classifies the record into one of the two variants. A record
// counts as legacy only when it carries the single pair and no segment
// timestamps at all; a fresh record is segmented.
func (r *Record) Sessions() Sessions {
	segmented := r.MorningIn != nil || r.MorningOut != nil ||
		r.AfternoonIn != nil || r.AfternoonOut != nil ||
		r.OvertimeIn != nil || r.OvertimeOut != nil
	if !segmented && (r.ClockIn != nil || r.ClockOut != nil) {
		return Legacy{Span{In: r.ClockIn, Out: r.ClockOut}}
	}
	return Segmented{
		Morning:   Span{In: r.MorningIn, Out: r.MorningOut},
		Afternoon: Span{In: r.AfternoonIn, Out: r.AfternoonOut},
		Overtime:  Span{In: r.OvertimeIn, Out: r.OvertimeOut},
	}
}
