package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrOpenSession means a clock-in was attempted while a segment is
	// already open for the day.
	ErrOpenSession = errors.New("segment already clocked in")
	// ErrNoOpenSession means a clock-out was attempted with no open segment.
	ErrNoOpenSession = errors.New("no open segment to clock out")
	// ErrDayComplete means every segment of the day already has both endpoints.
	ErrDayComplete = errors.New("all segments recorded for this day")
)

// Schedule holds the expected segment windows used to classify remarks.
// Times are "HH:MM" in the record's local day.
type Schedule struct {
	MorningStart   string
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string
	Grace          time.Duration
}

// at anchors an "HH:MM" wall-clock string onto the given day.
func (s Schedule) at(day time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule time %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}

func (s Schedule) classifyIn(seg Segment, at time.Time) Remarks {
	var anchor string
	switch seg {
	case SegmentAfternoon:
		anchor = s.AfternoonStart
	case SegmentOvertime:
		return RemarksNormal
	default: // morning and legacy share the day start
		anchor = s.MorningStart
	}
	expected, err := s.at(at, anchor)
	if err != nil {
		return RemarksNormal
	}
	switch {
	case at.After(expected.Add(s.Grace)):
		return RemarksLate
	case at.Before(expected.Add(-s.Grace)):
		return RemarksEarly
	default:
		return RemarksNormal
	}
}

func (s Schedule) classifyOut(seg Segment, at time.Time) Remarks {
	var anchor string
	switch seg {
	case SegmentMorning:
		anchor = s.MorningEnd
	case SegmentOvertime:
		return RemarksOvertime
	default: // afternoon and legacy share the day end
		anchor = s.AfternoonEnd
	}
	expected, err := s.at(at, anchor)
	if err != nil {
		return RemarksNormal
	}
	switch {
	case at.Before(expected.Add(-s.Grace)):
		return RemarksEarlyDeparture
	case at.After(expected.Add(s.Grace)):
		return RemarksOvertime
	default:
		return RemarksNormal
	}
}

// Filter narrows record listings.
type Filter struct {
	StudentID      string
	PracticumID    string
	From           *time.Time
	To             *time.Time
	ApprovalStatus ApprovalStatus
	Limit          int
	Offset         int
}

// Store is the persistence surface the service needs.
type Store interface {
	GetDayRecord(ctx context.Context, studentID, practicumID string, date time.Time) (*Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	SaveClock(ctx context.Context, rec Record, evt TimeEvent) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, f Filter) ([]Record, error)
	SetApproval(ctx context.Context, id string, status ApprovalStatus, approvedBy string, notes *string) (Record, error)
}

// ClockRequest carries a clock action with its capture metadata.
type ClockRequest struct {
	StudentID   string
	PracticumID string
	At          time.Time // zero means now

	Latitude      *float64
	Longitude     *float64
	Address       *string
	LocationType  LocationType
	DeviceType    string
	DeviceUnit    string
	MACAddress    string
	ExactLocation *string
	PhotoURL      *string
}

// Service owns the clock-in/out semantics over day records.
type Service struct {
	store    Store
	schedule Schedule
	now      func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, schedule Schedule) *Service {
	return &Service{store: store, schedule: schedule, now: time.Now}
}

// ClockIn records the next time-in for the student's day. The segment is
// derived from the record, never chosen by the caller: at most one segment
// may be open per day, and a clock-in while one is open is rejected.
func (s *Service) ClockIn(ctx context.Context, req ClockRequest) (Record, TimeEvent, error) {
	if req.StudentID == "" || req.PracticumID == "" {
		return Record{}, TimeEvent{}, errors.New("student and practicum required")
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	rec, err := s.dayRecord(ctx, req.StudentID, req.PracticumID, at)
	if err != nil {
		return Record{}, TimeEvent{}, err
	}

	action, ok := rec.Sessions().NextAction()
	if !ok {
		return Record{}, TimeEvent{}, ErrDayComplete
	}
	if action.Direction != DirectionIn {
		return Record{}, TimeEvent{}, fmt.Errorf("%w: %s", ErrOpenSession, action.Segment)
	}

	rec.setTime(action.Segment, DirectionIn, at)
	evt := newEvent(rec.ID, action, at, req, s.schedule.classifyIn(action.Segment, at))

	saved, err := s.store.SaveClock(ctx, rec, evt)
	if err != nil {
		return Record{}, TimeEvent{}, err
	}
	return saved, evt, nil
}

// ClockOut closes the currently open segment and recomputes the stored
// hours total from the discrete segments.
func (s *Service) ClockOut(ctx context.Context, req ClockRequest) (Record, TimeEvent, error) {
	if req.StudentID == "" || req.PracticumID == "" {
		return Record{}, TimeEvent{}, errors.New("student and practicum required")
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	rec, err := s.dayRecord(ctx, req.StudentID, req.PracticumID, at)
	if err != nil {
		return Record{}, TimeEvent{}, err
	}

	action, ok := rec.Sessions().NextAction()
	if !ok {
		return Record{}, TimeEvent{}, ErrDayComplete
	}
	if action.Direction != DirectionOut {
		return Record{}, TimeEvent{}, ErrNoOpenSession
	}

	opened := rec.timeFor(action.Segment, DirectionIn)
	if opened != nil && at.Before(*opened) {
		return Record{}, TimeEvent{}, errors.New("clock-out cannot precede clock-in")
	}

	rec.setTime(action.Segment, DirectionOut, at)
	hours := workedHours(rec)
	rec.Hours = &hours
	evt := newEvent(rec.ID, action, at, req, s.schedule.classifyOut(action.Segment, at))

	saved, err := s.store.SaveClock(ctx, rec, evt)
	if err != nil {
		return Record{}, TimeEvent{}, err
	}
	return saved, evt, nil
}

// Today returns the student's day record for the given moment (nil when
// none exists yet) together with the next allowed action.
func (s *Service) Today(ctx context.Context, studentID, practicumID string) (*Record, *Action, error) {
	rec, err := s.store.GetDayRecord(ctx, studentID, practicumID, dayOf(s.now()))
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		first := Action{Segment: SegmentMorning, Direction: DirectionIn}
		return nil, &first, nil
	}
	action, ok := rec.Sessions().NextAction()
	if !ok {
		return rec, nil, nil
	}
	return rec, &action, nil
}

// Get returns a single record by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.GetRecord(ctx, id)
}

// List returns records matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.ListRecords(ctx, f)
}

// SetApproval records a coordinator's review decision.
func (s *Service) SetApproval(ctx context.Context, id string, status ApprovalStatus, approvedBy string, notes *string) (Record, error) {
	if status != ApprovalApproved && status != ApprovalDeclined {
		return Record{}, errors.New("approval status must be Approved or Declined")
	}
	if approvedBy == "" {
		return Record{}, errors.New("approver required")
	}
	return s.store.SetApproval(ctx, id, status, approvedBy, notes)
}

func (s *Service) dayRecord(ctx context.Context, studentID, practicumID string, at time.Time) (Record, error) {
	date := dayOf(at)
	rec, err := s.store.GetDayRecord(ctx, studentID, practicumID, date)
	if err != nil {
		return Record{}, err
	}
	if rec != nil {
		return *rec, nil
	}
	fresh := Record{
		StudentID:      studentID,
		PracticumID:    practicumID,
		Date:           date,
		Day:            at.Weekday().String(),
		ApprovalStatus: ApprovalPending,
	}
	return s.store.CreateRecord(ctx, fresh)
}

func newEvent(recordID string, action Action, at time.Time, req ClockRequest, remarks Remarks) TimeEvent {
	evt := TimeEvent{
		ID:            uuid.NewString(),
		RecordID:      recordID,
		Segment:       action.Segment,
		Direction:     action.Direction,
		At:            at,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Address:       req.Address,
		LocationType:  req.LocationType,
		DeviceType:    req.DeviceType,
		DeviceUnit:    req.DeviceUnit,
		MACAddress:    req.MACAddress,
		Remarks:       remarks,
		ExactLocation: req.ExactLocation,
		PhotoURL:      req.PhotoURL,
	}
	if req.PhotoURL != nil {
		evt.PhotoStatus = PhotoPending
	}
	return evt
}

// workedHours sums the discrete worked segments; the lunch gap is not
// part of any segment, so nothing is subtracted twice.
func workedHours(rec Record) float64 {
	if _, ok := rec.Sessions().(Legacy); ok {
		return SessionHours(rec.ClockIn, rec.ClockOut)
	}
	total := SessionHours(rec.MorningIn, rec.MorningOut) +
		SessionHours(rec.AfternoonIn, rec.AfternoonOut) +
		SessionHours(rec.OvertimeIn, rec.OvertimeOut)
	return math.Round(total*100) / 100
}

func dayOf(at time.Time) time.Time {
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
}
