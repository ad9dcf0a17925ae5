package attendance

import "time"

// Segment identifies which part of the work day a time event belongs to.
type Segment string

const (
	SegmentMorning   Segment = "morning"
	SegmentAfternoon Segment = "afternoon"
	SegmentOvertime  Segment = "overtime"
	// SegmentLegacy marks events on records that predate segmented tracking
	// and carry a single clock-in/clock-out pair.
	SegmentLegacy Segment = "legacy"
)

// Direction is the clock direction of a time event.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// LocationType classifies where the student clocked relative to the
// practicum site.
type LocationType string

const (
	LocationInside  LocationType = "Inside"
	LocationInField LocationType = "In-field"
	LocationOutside LocationType = "Outside"
)

// Remarks classifies a time event against the expected schedule.
type Remarks string

const (
	RemarksNormal         Remarks = "Normal"
	RemarksLate           Remarks = "Late"
	RemarksEarly          Remarks = "Early"
	RemarksEarlyDeparture Remarks = "Early Departure"
	RemarksOvertime       Remarks = "Overtime"
)

// ApprovalStatus is the coordinator review state of a day record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalDeclined ApprovalStatus = "Declined"
)

// PhotoStatus tracks the asynchronous face-presence check on a selfie.
type PhotoStatus string

const (
	PhotoPending    PhotoStatus = "pending"
	PhotoVerified   PhotoStatus = "verified"
	PhotoUnverified PhotoStatus = "unverified"
	PhotoFailed     PhotoStatus = "failed"
)

// Record is one student's attendance for one calendar day of a practicum.
// Segment timestamps are denormalized onto the record for querying; the
// capture metadata of each clock action lives on its TimeEvent.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	PracticumID string    `json:"practicumId"`
	Date        time.Time `json:"date"`
	Day         string    `json:"day"`

	MorningIn    *time.Time `json:"morningTimeIn,omitempty"`
	MorningOut   *time.Time `json:"morningTimeOut,omitempty"`
	AfternoonIn  *time.Time `json:"afternoonTimeIn,omitempty"`
	AfternoonOut *time.Time `json:"afternoonTimeOut,omitempty"`
	OvertimeIn   *time.Time `json:"overtimeTimeIn,omitempty"`
	OvertimeOut  *time.Time `json:"overtimeTimeOut,omitempty"`

	// Legacy single-pair fields kept for records created before
	// segmented tracking.
	ClockIn  *time.Time `json:"clockIn,omitempty"`
	ClockOut *time.Time `json:"clockOut,omitempty"`

	// Hours is the authoritative worked-hours total when present.
	Hours *float64 `json:"hours,omitempty"`

	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	ApprovedBy     *string        `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time     `json:"approvedAt,omitempty"`
	ApprovalNotes  *string        `json:"approvalNotes,omitempty"`

	Events []TimeEvent `json:"events,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TimeEvent is a single clock action with its capture metadata.
type TimeEvent struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Segment   Segment   `json:"segment"`
	Direction Direction `json:"direction"`
	At        time.Time `json:"at"`

	Latitude      *float64     `json:"latitude,omitempty"`
	Longitude     *float64     `json:"longitude,omitempty"`
	Address       *string      `json:"address,omitempty"`
	LocationType  LocationType `json:"locationType,omitempty"`
	DeviceType    string       `json:"deviceType,omitempty"`
	DeviceUnit    string       `json:"deviceUnit,omitempty"`
	MACAddress    string       `json:"macAddress,omitempty"`
	Remarks       Remarks      `json:"remarks,omitempty"`
	ExactLocation *string      `json:"exactLocation,omitempty"`
	PhotoURL      *string      `json:"photo,omitempty"`
	PhotoStatus   PhotoStatus  `json:"photoStatus,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// timeFor returns the record's stored timestamp for a segment/direction pair.
func (r *Record) timeFor(seg Segment, dir Direction) *time.Time {
	switch {
	case seg == SegmentMorning && dir == DirectionIn:
		return r.MorningIn
	case seg == SegmentMorning && dir == DirectionOut:
		return r.MorningOut
	case seg == SegmentAfternoon && dir == DirectionIn:
		return r.AfternoonIn
	case seg == SegmentAfternoon && dir == DirectionOut:
		return r.AfternoonOut
	case seg == SegmentOvertime && dir == DirectionIn:
		return r.OvertimeIn
	case seg == SegmentOvertime && dir == DirectionOut:
		return r.OvertimeOut
	case seg == SegmentLegacy && dir == DirectionIn:
		return r.ClockIn
	case seg == SegmentLegacy && dir == DirectionOut:
		return r.ClockOut
	}
	return nil
}

// setTime writes the timestamp for a segment/direction pair.
func (r *Record) setTime(seg Segment, dir Direction, at time.Time) {
	t := at
	switch {
	case seg == SegmentMorning && dir == DirectionIn:
		r.MorningIn = &t
	case seg == SegmentMorning && dir == DirectionOut:
		r.MorningOut = &t
	case seg == SegmentAfternoon && dir == DirectionIn:
		r.AfternoonIn = &t
	case seg == SegmentAfternoon && dir == DirectionOut:
		r.AfternoonOut = &t
	case seg == SegmentOvertime && dir == DirectionIn:
		r.OvertimeIn = &t
	case seg == SegmentOvertime && dir == DirectionOut:
		r.OvertimeOut = &t
	case seg == SegmentLegacy && dir == DirectionIn:
		r.ClockIn = &t
	case seg == SegmentLegacy && dir == DirectionOut:
		r.ClockOut = &t
	}
}
