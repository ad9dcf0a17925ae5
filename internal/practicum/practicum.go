package practicum

import "time"

// Status of a practicum engagement.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusDropped   Status = "Dropped"
)

// Practicum is a student's internship engagement with a host company.
// Archived practicums are hidden from listings but never hard-deleted;
// Restore brings them back.
type Practicum struct {
	ID            string  `json:"id"`
	StudentID     string  `json:"studentId"`
	StudentEmail  string  `json:"studentEmail"`
	CoordinatorID string  `json:"coordinatorId"`
	Company       string  `json:"company"`
	Position      string  `json:"position,omitempty"`
	RequiredHours float64 `json:"requiredHours"`
	Status        Status  `json:"status"`

	CompletedHours float64 `json:"completedHours"`

	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Archived reports whether the practicum is currently archived.
func (p *Practicum) Archived() bool { return p.ArchivedAt != nil }
