package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brennanwesley/jobticketinvoice/internal/fieldcrypt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service owns invoices. Amount and line items are encrypted before they
// reach the database and decrypted on the way out.
type Service struct {
	pool  *pgxpool.Pool
	codec *fieldcrypt.Codec
}

func NewService(pool *pgxpool.Pool, codec *fieldcrypt.Codec) *Service {
	return &Service{pool: pool, codec: codec}
}

// normalizeAmount validates a decimal money string.
func normalizeAmount(amount string) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", ErrInvalidAmount
	}
	if _, err := strconv.ParseFloat(amount, 64); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return amount, nil
}

func (s *Service) sealLineItems(items []LineItem) (*string, error) {
	if items == nil {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal line items: %w", err)
	}
	sealed, err := s.codec.EncryptString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt line items: %w", err)
	}
	return &sealed, nil
}

// invoiceRow is the storage shape; ciphertext columns stay as strings
// until decryptInvoice unpacks them.
type invoiceRow struct {
	inv       Invoice
	amount    string
	lineItems *string
}

func (r *invoiceRow) scanDest() []any {
	return []any{
		&r.inv.ID, &r.inv.CompanyID, &r.inv.UserID, &r.inv.JobTicketID,
		&r.amount, &r.lineItems, &r.inv.Status, &r.inv.CreatedAt, &r.inv.UpdatedAt,
	}
}

const invoiceColumns = `id, company_id, user_id, job_ticket_id, amount, line_items, status, created_at, updated_at`

func (s *Service) decryptInvoice(row *invoiceRow) (*Invoice, error) {
	amount, err := s.codec.DecryptString(row.amount)
	if err != nil {
		return nil, fmt.Errorf("invoice %d amount: %w", row.inv.ID, err)
	}
	row.inv.Amount = amount

	if row.lineItems != nil {
		raw, err := s.codec.DecryptString(*row.lineItems)
		if err != nil {
			return nil, fmt.Errorf("invoice %d line items: %w", row.inv.ID, err)
		}
		if err := json.Unmarshal([]byte(raw), &row.inv.LineItems); err != nil {
			return nil, fmt.Errorf("invoice %d line items: %w", row.inv.ID, err)
		}
	}
	return &row.inv, nil
}

// CreateParams are the inputs for a new draft invoice.
type CreateParams struct {
	CompanyID   int64
	UserID      int64
	JobTicketID int64
	Amount      string
	LineItems   []LineItem
}

// Create inserts a draft invoice after confirming the job ticket belongs
// to the same company.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Invoice, error) {
	amount, err := normalizeAmount(params.Amount)
	if err != nil {
		return nil, err
	}

	encAmount, err := s.codec.EncryptString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt amount: %w", err)
	}
	encItems, err := s.sealLineItems(params.LineItems)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM job_tickets WHERE id = $1 AND company_id = $2)
	`, params.JobTicketID, params.CompanyID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check job ticket: %w", err)
	}
	if !exists {
		return nil, ErrTicketNotFound
	}

	var row invoiceRow
	err = s.pool.QueryRow(ctx, `
		INSERT INTO invoices (company_id, user_id, job_ticket_id, amount, line_items)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+invoiceColumns+`
	`, params.CompanyID, params.UserID, params.JobTicketID, encAmount, encItems).Scan(row.scanDest()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	return s.decryptInvoice(&row)
}

// Get returns a single invoice within the company scope.
func (s *Service) Get(ctx context.Context, companyID, invoiceID int64) (*Invoice, error) {
	var row invoiceRow
	err := s.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND company_id = $2
	`, invoiceID, companyID).Scan(row.scanDest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return s.decryptInvoice(&row)
}

// List returns a company's invoices, newest first, optionally filtered
// by status or job ticket.
func (s *Service) List(ctx context.Context, companyID int64, status string, jobTicketID *int64, limit, offset int) ([]Invoice, error) {
	if status != "" && !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE company_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3::bigint IS NULL OR job_ticket_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, companyID, status, jobTicketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var row invoiceRow
		if err := rows.Scan(row.scanDest()...); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv, err := s.decryptInvoice(&row)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// UpdateParams are the mutable invoice fields. Nil leaves a field
// unchanged.
type UpdateParams struct {
	Amount    *string
	LineItems []LineItem
	Status    *string
}

// Update patches an invoice and returns the updated row.
func (s *Service) Update(ctx context.Context, companyID, invoiceID int64, params UpdateParams) (*Invoice, error) {
	if params.Status != nil && !validStatus(*params.Status) {
		return nil, ErrInvalidStatus
	}

	var encAmount *string
	if params.Amount != nil {
		amount, err := normalizeAmount(*params.Amount)
		if err != nil {
			return nil, err
		}
		sealed, err := s.codec.EncryptString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt amount: %w", err)
		}
		encAmount = &sealed
	}
	encItems, err := s.sealLineItems(params.LineItems)
	if err != nil {
		return nil, err
	}

	var row invoiceRow
	err = s.pool.QueryRow(ctx, `
		UPDATE invoices
		SET amount = COALESCE($3, amount),
		    line_items = COALESCE($4, line_items),
		    status = COALESCE($5, status),
		    updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING `+invoiceColumns+`
	`, invoiceID, companyID, encAmount, encItems, params.Status).Scan(row.scanDest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	return s.decryptInvoice(&row)
}
