package practicum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrArchived means a mutation was attempted on an archived practicum.
var ErrArchived = errors.New("practicum is archived")

// Repository persists practicums in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const columns = `p.id, p.student_id, p.student_email, p.coordinator_id,
	p.company, p.position, p.required_hours, p.status,
	COALESCE(h.total, 0), p.archived_at, p.created_at, p.updated_at`

// hoursJoin rolls completed hours up from the attendance records so
// listings do not need a second query per practicum.
const hoursJoin = `LEFT JOIN (
		SELECT practicum_id, SUM(hours) AS total
		FROM attendance_records
		WHERE hours IS NOT NULL
		GROUP BY practicum_id
	) h ON h.practicum_id = p.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (Practicum, error) {
	var p Practicum
	var position sql.NullString
	err := row.Scan(
		&p.ID, &p.StudentID, &p.StudentEmail, &p.CoordinatorID,
		&p.Company, &position, &p.RequiredHours, &p.Status,
		&p.CompletedHours, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Position = position.String
	return p, err
}

// Create inserts a practicum.
func (r *Repository) Create(ctx context.Context, p Practicum) (Practicum, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO practicums (id, student_id, student_email, coordinator_id, company, position, required_hours, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at
	`, p.ID, p.StudentID, p.StudentEmail, p.CoordinatorID, p.Company, nullable(p.Position), p.RequiredHours, p.Status)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return Practicum{}, err
	}
	return p, nil
}

// Get returns a practicum by id, archived or not.
func (r *Repository) Get(ctx context.Context, id string) (Practicum, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+` FROM practicums p `+hoursJoin+` WHERE p.id = $1
	`, id)
	return scan(row)
}

// GetByStudent returns the student's unarchived practicum, or nil.
func (r *Repository) GetByStudent(ctx context.Context, studentID string) (*Practicum, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+` FROM practicums p `+hoursJoin+`
		WHERE p.student_id = $1 AND p.archived_at IS NULL
		ORDER BY p.created_at DESC LIMIT 1
	`, studentID)
	p, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// List returns practicums, excluding archived ones unless asked.
func (r *Repository) List(ctx context.Context, coordinatorID string, includeArchived bool, limit, offset int) ([]Practicum, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + columns + ` FROM practicums p ` + hoursJoin
	args := []any{}
	clauses := []string{}
	if coordinatorID != "" {
		args = append(args, coordinatorID)
		clauses = append(clauses, fmt.Sprintf("p.coordinator_id = $%d", len(args)))
	}
	if !includeArchived {
		clauses = append(clauses, "p.archived_at IS NULL")
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Practicum
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Update rewrites the mutable fields of an unarchived practicum.
func (r *Repository) Update(ctx context.Context, p Practicum) (Practicum, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE practicums SET
			company = $2, position = $3, required_hours = $4, status = $5,
			updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`, p.ID, p.Company, nullable(p.Position), p.RequiredHours, p.Status)
	if err != nil {
		return Practicum{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, p.ID); err == nil {
			return Practicum{}, ErrArchived
		}
		return Practicum{}, sql.ErrNoRows
	}
	return r.Get(ctx, p.ID)
}

// Archive soft-deletes a practicum. Archiving twice is a no-op.
func (r *Repository) Archive(ctx context.Context, id string) (Practicum, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE practicums SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`, id)
	if err != nil {
		return Practicum{}, err
	}
	return r.Get(ctx, id)
}

// Restore brings an archived practicum back.
func (r *Repository) Restore(ctx context.Context, id string) (Practicum, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE practicums SET archived_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return Practicum{}, err
	}
	return r.Get(ctx, id)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
