package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, practicum_id, date, day,
	morning_in, morning_out, afternoon_in, afternoon_out, overtime_in, overtime_out,
	clock_in, clock_out, hours,
	approval_status, approved_by, approved_at, approval_notes,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.PracticumID, &rec.Date, &rec.Day,
		&rec.MorningIn, &rec.MorningOut, &rec.AfternoonIn, &rec.AfternoonOut,
		&rec.OvertimeIn, &rec.OvertimeOut,
		&rec.ClockIn, &rec.ClockOut, &rec.Hours,
		&rec.ApprovalStatus, &rec.ApprovedBy, &rec.ApprovedAt, &rec.ApprovalNotes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// GetDayRecord returns the student's record for the given calendar day, or
// nil when none exists yet.
func (r *Repository) GetDayRecord(ctx context.Context, studentID, practicumID string, date time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND practicum_id = $2 AND date = $3
	`, studentID, practicumID, date)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadEvents(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateRecord inserts a fresh day record.
func (r *Repository) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ApprovalStatus == "" {
		rec.ApprovalStatus = ApprovalPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, practicum_id, date, day, approval_status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, rec.ID, rec.StudentID, rec.PracticumID, rec.Date, rec.Day, rec.ApprovalStatus)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SaveClock writes the mutated record columns and the new time event in
// one transaction.
func (r *Repository) SaveClock(ctx context.Context, rec Record, evt TimeEvent) (Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE attendance_records SET
			morning_in = $2, morning_out = $3,
			afternoon_in = $4, afternoon_out = $5,
			overtime_in = $6, overtime_out = $7,
			clock_in = $8, clock_out = $9,
			hours = $10, updated_at = NOW()
		WHERE id = $1
	`, rec.ID,
		rec.MorningIn, rec.MorningOut,
		rec.AfternoonIn, rec.AfternoonOut,
		rec.OvertimeIn, rec.OvertimeOut,
		rec.ClockIn, rec.ClockOut,
		rec.Hours)
	if err != nil {
		return Record{}, err
	}

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance_events (
			id, record_id, segment, direction, occurred_at,
			latitude, longitude, address, location_type,
			device_type, device_unit, mac_address,
			remarks, exact_location, photo_url, photo_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, evt.ID, rec.ID, evt.Segment, evt.Direction, evt.At,
		evt.Latitude, evt.Longitude, evt.Address, nullable(string(evt.LocationType)),
		nullable(evt.DeviceType), nullable(evt.DeviceUnit), nullable(evt.MACAddress),
		nullable(string(evt.Remarks)), evt.ExactLocation, evt.PhotoURL, nullable(string(evt.PhotoStatus)))
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return r.GetRecord(ctx, rec.ID)
}

// GetRecord returns a single record with its events.
func (r *Repository) GetRecord(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records WHERE id = $1
	`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, err
	}
	if err := r.loadEvents(ctx, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListRecords returns records matching the filter, newest first. Events
// are not loaded for listings.
func (r *Repository) ListRecords(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.PracticumID != "" {
		args = append(args, f.PracticumID)
		clauses = append(clauses, fmt.Sprintf("practicum_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	if f.ApprovalStatus != "" {
		args = append(args, f.ApprovalStatus)
		clauses = append(clauses, fmt.Sprintf("approval_status = $%d", len(args)))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// SetApproval stores the coordinator decision.
func (r *Repository) SetApproval(ctx context.Context, id string, status ApprovalStatus, approvedBy string, notes *string) (Record, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET approval_status = $2, approved_by = $3, approved_at = NOW(),
			approval_notes = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, approvedBy, notes)
	if err != nil {
		return Record{}, err
	}
	return r.GetRecord(ctx, id)
}

// GetEvent returns a single time event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (TimeEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, record_id, segment, direction, occurred_at,
			latitude, longitude, address, location_type,
			device_type, device_unit, mac_address,
			remarks, exact_location, photo_url, photo_status, created_at
		FROM attendance_events WHERE id = $1
	`, id)
	return scanEvent(row)
}

// SetEventPhotoStatus records the outcome of the asynchronous face check.
func (r *Repository) SetEventPhotoStatus(ctx context.Context, id string, status PhotoStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_events SET photo_status = $2 WHERE id = $1
	`, id, status)
	return err
}

func (r *Repository) loadEvents(ctx context.Context, rec *Record) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record_id, segment, direction, occurred_at,
			latitude, longitude, address, location_type,
			device_type, device_unit, mac_address,
			remarks, exact_location, photo_url, photo_status, created_at
		FROM attendance_events
		WHERE record_id = $1
		ORDER BY occurred_at ASC
	`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return err
		}
		rec.Events = append(rec.Events, evt)
	}
	return rows.Err()
}

func scanEvent(row rowScanner) (TimeEvent, error) {
	var evt TimeEvent
	var locationType, deviceType, deviceUnit, macAddress, remarks, photoStatus sql.NullString
	err := row.Scan(
		&evt.ID, &evt.RecordID, &evt.Segment, &evt.Direction, &evt.At,
		&evt.Latitude, &evt.Longitude, &evt.Address, &locationType,
		&deviceType, &deviceUnit, &macAddress,
		&remarks, &evt.ExactLocation, &evt.PhotoURL, &photoStatus,
		&evt.CreatedAt,
	)
	if err != nil {
		return TimeEvent{}, err
	}
	evt.LocationType = LocationType(locationType.String)
	evt.DeviceType = deviceType.String
	evt.DeviceUnit = deviceUnit.String
	evt.MACAddress = macAddress.String
	evt.Remarks = Remarks(remarks.String)
	evt.PhotoStatus = PhotoStatus(photoStatus.String)
	return evt, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
