package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Event actions. Category groups actions for filtering and reporting.
const (
	EventUserLogin       = "user.login"
	EventLoginFailed     = "auth.login_failed"
	EventManagerSignup   = "company.manager_signup"
	EventUserCreated     = "user.created"
	EventUserDeactivated = "user.deactivated"
	EventInviteCreated   = "invite.created"
	EventInviteCancelled = "invite.cancelled"
	EventInviteRedeemed  = "invite.redeemed"
	EventTicketCreated   = "job_ticket.created"
	EventTicketUpdated   = "job_ticket.updated"
	EventInvoiceCreated  = "invoice.created"
	EventInvoiceUpdated  = "invoice.updated"
)

const (
	CategorySecurity   = "security"
	CategoryUser       = "user"
	CategoryCompany    = "company"
	CategoryTechnician = "technician"
	CategoryTicket     = "job_ticket"
	CategoryInvoice    = "invoice"
)

// Entry represents an audit log row.
type Entry struct {
	ID          int64                  `db:"id" json:"id"`
	UserID      *int64                 `db:"user_id" json:"user_id,omitempty"`
	CompanyID   *uuid.UUID             `db:"company_id" json:"company_id,omitempty"`
	Action      string                 `db:"action" json:"action"`
	Category    string                 `db:"category" json:"category"`
	Description *string                `db:"description" json:"description,omitempty"`
	Details     map[string]interface{} `db:"details" json:"details"`
	TargetID    *string                `db:"target_id" json:"target_id,omitempty"`
	TargetType  *string                `db:"target_type" json:"target_type,omitempty"`
	IPAddress   *string                `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// Writer provides methods to write audit log entries. Failures are logged
// and never escalate to the caller; the audited operation is the source of
// truth, not its audit record.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	UserID     *int64
	CompanyID  *uuid.UUID
	Action     string
	Category   string
	TargetID   string
	TargetType string
	IPAddress  string
	Meta       map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (user_id, company_id, action, category, details, target_id, target_type, ip_address)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
	`

	_, err := w.pool.Exec(ctx, query,
		params.UserID,
		params.CompanyID,
		params.Action,
		params.Category,
		metaJSON,
		params.TargetID,
		params.TargetType,
		params.IPAddress,
	)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return
	}

	log.Info().
		Str("action", params.Action).
		Interface("user_id", params.UserID).
		Interface("company_id", params.CompanyID).
		Msg("Audit event logged")
}

func (w *Writer) LogUserLogin(ctx context.Context, userID int64, companyID *uuid.UUID, email, ip string) {
	w.Log(ctx, LogParams{
		UserID:    &userID,
		CompanyID: companyID,
		Action:    EventUserLogin,
		Category:  CategorySecurity,
		IPAddress: ip,
		Meta:      map[string]interface{}{"email": email},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) {
	w.Log(ctx, LogParams{
		Action:    EventLoginFailed,
		Category:  CategorySecurity,
		IPAddress: ip,
		Meta:      map[string]interface{}{"email": email},
	})
}

func (w *Writer) LogManagerSignup(ctx context.Context, userID int64, companyID uuid.UUID, companyName string) {
	w.Log(ctx, LogParams{
		UserID:     &userID,
		CompanyID:  &companyID,
		Action:     EventManagerSignup,
		Category:   CategoryCompany,
		TargetID:   companyID.String(),
		TargetType: "company",
		Meta:       map[string]interface{}{"company_name": companyName},
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, actorID int64, companyID, inviteID uuid.UUID, email string) {
	w.Log(ctx, LogParams{
		UserID:     &actorID,
		CompanyID:  &companyID,
		Action:     EventInviteCreated,
		Category:   CategoryTechnician,
		TargetID:   inviteID.String(),
		TargetType: "tech_invite",
		Meta:       map[string]interface{}{"email": email},
	})
}

func (w *Writer) LogInviteCancelled(ctx context.Context, actorID int64, companyID, inviteID uuid.UUID) {
	w.Log(ctx, LogParams{
		UserID:     &actorID,
		CompanyID:  &companyID,
		Action:     EventInviteCancelled,
		Category:   CategoryTechnician,
		TargetID:   inviteID.String(),
		TargetType: "tech_invite",
	})
}

func (w *Writer) LogInviteRedeemed(ctx context.Context, newUserID int64, companyID, inviteID uuid.UUID, email string) {
	w.Log(ctx, LogParams{
		UserID:     &newUserID,
		CompanyID:  &companyID,
		Action:     EventInviteRedeemed,
		Category:   CategoryTechnician,
		TargetID:   inviteID.String(),
		TargetType: "tech_invite",
		Meta:       map[string]interface{}{"email": email},
	})
}

func (w *Writer) LogTicketCreated(ctx context.Context, actorID int64, companyID uuid.UUID, ticketID int64, ticketNumber string) {
	w.Log(ctx, LogParams{
		UserID:     &actorID,
		CompanyID:  &companyID,
		Action:     EventTicketCreated,
		Category:   CategoryTicket,
		TargetID:   strconv.FormatInt(ticketID, 10),
		TargetType: "job_ticket",
		Meta:       map[string]interface{}{"ticket_number": ticketNumber},
	})
}

func (w *Writer) LogInvoiceCreated(ctx context.Context, actorID int64, companyID uuid.UUID, invoiceID, jobTicketID int64) {
	w.Log(ctx, LogParams{
		UserID:     &actorID,
		CompanyID:  &companyID,
		Action:     EventInvoiceCreated,
		Category:   CategoryInvoice,
		TargetID:   strconv.FormatInt(invoiceID, 10),
		TargetType: "invoice",
		Meta:       map[string]interface{}{"job_ticket_id": jobTicketID},
	})
}
