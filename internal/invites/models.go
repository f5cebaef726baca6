package invites

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an invite record. Pending is the only
// non-terminal state; expiry is evaluated lazily against the wall clock.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DeliveryMethod records how the invite link was sent. Informational only.
type DeliveryMethod string

const (
	DeliveryEmail DeliveryMethod = "email"
	DeliverySMS   DeliveryMethod = "sms"
)

func (d DeliveryMethod) IsValid() bool {
	return d == DeliveryEmail || d == DeliverySMS
}

var (
	// ErrInviteNotFound is returned when no record matches the token claims
	ErrInviteNotFound = errors.New("invite not found")

	// ErrInviteGone is returned when the record exists but is no longer
	// redeemable. Wrapped with the specific reason (used/cancelled/expired).
	ErrInviteGone = errors.New("invite is no longer valid")

	// ErrEmailConflict is returned when a user account already exists for
	// the invitee email
	ErrEmailConflict = errors.New("user with this email already exists")

	// ErrPendingInviteExists is returned when a live pending invite already
	// exists for the same (email, company) pair
	ErrPendingInviteExists = errors.New("pending invite already exists for this email")

	// ErrInviteNotPending is returned when cancelling an invite that has
	// already reached a terminal state
	ErrInviteNotPending = errors.New("invite is not pending")
)

// goneErr wraps ErrInviteGone with the sub-reason users see.
func goneErr(reason string) error {
	return fmt.Errorf("%w: %s", ErrInviteGone, reason)
}

// Invite is a tech onboarding invite record. The signed token is derivable
// and never persisted; this row enforces single use.
type Invite struct {
	InviteID       uuid.UUID      `db:"invite_id" json:"invite_id"`
	TechName       string         `db:"tech_name" json:"tech_name"`
	Email          string         `db:"email" json:"email"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	CompanyID      uuid.UUID      `db:"company_id" json:"company_id"`
	Status         Status         `db:"status" json:"status"`
	DeliveryMethod DeliveryMethod `db:"delivery_method" json:"delivery_method"`
	CreatedBy      int64          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at" json:"expires_at"`
	UsedAt         *time.Time     `db:"used_at" json:"used_at,omitempty"`
}

// IsExpired reports whether the invite's window has elapsed, regardless of
// its stored status.
func (i *Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsValid is the single source of truth for redeemability: pending status
// and inside the expiry window. A row still flagged pending but past its
// expiry is invalid for every reader.
func (i *Invite) IsValid(now time.Time) bool {
	return i.Status == StatusPending && !i.IsExpired(now)
}

// GoneReason names why an invite can no longer be redeemed, for the
// user-facing 410 message. Only meaningful when IsValid is false.
func (i *Invite) GoneReason(now time.Time) string {
	switch {
	case i.Status == StatusAccepted:
		return "already used"
	case i.Status == StatusCancelled:
		return "cancelled"
	default:
		return "expired"
	}
}
