package invoices

import (
	"errors"
	"time"
)

// Invoice statuses.
const (
	StatusDraft = "draft"
	StatusSent  = "sent"
	StatusPaid  = "paid"
)

var (
	// ErrInvoiceNotFound is returned when no invoice matches within the
	// caller's company scope.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrTicketNotFound is returned when the referenced job ticket does
	// not exist in the caller's company.
	ErrTicketNotFound = errors.New("job ticket not found")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid invoice status")

	// ErrInvalidAmount is returned when the amount is empty or not a
	// decimal string.
	ErrInvalidAmount = errors.New("amount must be a decimal string")
)

// LineItem is one billed line. The whole slice is serialized to JSON and
// stored encrypted.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	Total       string  `json:"total"`
}

// Invoice links a job ticket to billing data. Amount and LineItems are
// stored encrypted and hold plaintext only in memory. Amount is a decimal
// string; money never rides on floats.
type Invoice struct {
	ID          int64      `json:"id"`
	CompanyID   int64      `json:"-"`
	UserID      int64      `json:"user_id"`
	JobTicketID int64      `json:"job_ticket_id"`
	Amount      string     `json:"amount"`
	LineItems   []LineItem `json:"line_items,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func validStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid:
		return true
	}
	return false
}
