package tickets

import (
	"errors"
	"time"
)

// Ticket statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusComplete  = "complete"
)

var (
	// ErrTicketNotFound is returned when no ticket matches within the
	// caller's company scope.
	ErrTicketNotFound = errors.New("job ticket not found")

	// ErrInvalidStatus is returned for an unknown status value or a
	// disallowed transition.
	ErrInvalidStatus = errors.New("invalid ticket status")
)

// Ticket is a job ticket. Location and WorkDescription are stored
// encrypted and hold plaintext only in memory.
type Ticket struct {
	ID              int64     `json:"id"`
	CompanyID       int64     `json:"-"`
	UserID          *int64    `json:"user_id,omitempty"`
	TicketNumber    string    `json:"ticket_number"`
	JobNumber       *string   `json:"job_number,omitempty"`
	CustomerName    *string   `json:"customer_name,omitempty"`
	Location        *string   `json:"location,omitempty"`
	WorkDescription *string   `json:"work_description,omitempty"`
	WorkType        *string   `json:"work_type,omitempty"`
	Equipment       *string   `json:"equipment,omitempty"`
	WorkStartTime   *string   `json:"work_start_time,omitempty"`
	WorkEndTime     *string   `json:"work_end_time,omitempty"`
	WorkTotalHours  *float64  `json:"work_total_hours,omitempty"`
	DriveStartTime  *string   `json:"drive_start_time,omitempty"`
	DriveEndTime    *string   `json:"drive_end_time,omitempty"`
	DriveTotalHours *float64  `json:"drive_total_hours,omitempty"`
	TravelType      *string   `json:"travel_type,omitempty"`
	PartsUsed       *string   `json:"parts_used,omitempty"`
	SubmittedBy     *string   `json:"submitted_by,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// validStatus reports whether s is a known ticket status.
func validStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusComplete:
		return true
	}
	return false
}
