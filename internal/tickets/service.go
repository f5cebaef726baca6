package tickets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/brennanwesley/jobticketinvoice/internal/fieldcrypt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ticketNumberAlphabet avoids ambiguous characters so numbers survive
// being read over the phone.
const ticketNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const ticketNumberLen = 8

// Service owns job tickets. Location and work description are encrypted
// before they reach the database and decrypted on the way out.
type Service struct {
	pool  *pgxpool.Pool
	codec *fieldcrypt.Codec
}

func NewService(pool *pgxpool.Pool, codec *fieldcrypt.Codec) *Service {
	return &Service{pool: pool, codec: codec}
}

func newTicketNumber() (string, error) {
	buf := make([]byte, ticketNumberLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ticket number: %w", err)
	}
	for i, b := range buf {
		buf[i] = ticketNumberAlphabet[int(b)%len(ticketNumberAlphabet)]
	}
	return string(buf), nil
}

// CreateParams are the inputs for a new draft ticket.
type CreateParams struct {
	CompanyID       int64
	UserID          int64
	JobNumber       *string
	CustomerName    *string
	Location        *string
	WorkDescription *string
	WorkType        *string
	Equipment       *string
	WorkStartTime   *string
	WorkEndTime     *string
	WorkTotalHours  *float64
	DriveStartTime  *string
	DriveEndTime    *string
	DriveTotalHours *float64
	TravelType      *string
	PartsUsed       *string
	SubmittedBy     *string
}

// Create inserts a draft ticket, retrying the generated ticket number on
// a collision.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Ticket, error) {
	encLocation, err := s.codec.Encrypt(params.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt location: %w", err)
	}
	encDescription, err := s.codec.Encrypt(params.WorkDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt work description: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		number, err := newTicketNumber()
		if err != nil {
			return nil, err
		}

		var t Ticket
		err = s.pool.QueryRow(ctx, `
			INSERT INTO job_tickets (
				company_id, user_id, ticket_number, job_number, customer_name,
				location, work_description, work_type, equipment,
				work_start_time, work_end_time, work_total_hours,
				drive_start_time, drive_end_time, drive_total_hours,
				travel_type, parts_used, submitted_by
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING `+ticketColumns+`
		`, params.CompanyID, params.UserID, number, params.JobNumber, params.CustomerName,
			encLocation, encDescription, params.WorkType, params.Equipment,
			params.WorkStartTime, params.WorkEndTime, params.WorkTotalHours,
			params.DriveStartTime, params.DriveEndTime, params.DriveTotalHours,
			params.TravelType, params.PartsUsed, params.SubmittedBy,
		).Scan(t.scanDest()...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}

		if err := s.decryptTicket(&t); err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, errors.New("failed to allocate a unique ticket number")
}

const ticketColumns = `id, company_id, user_id, ticket_number, job_number, customer_name,
		location, work_description, work_type, equipment,
		work_start_time, work_end_time, work_total_hours,
		drive_start_time, drive_end_time, drive_total_hours,
		travel_type, parts_used, submitted_by, status, created_at, updated_at`

func (t *Ticket) scanDest() []any {
	return []any{
		&t.ID, &t.CompanyID, &t.UserID, &t.TicketNumber, &t.JobNumber, &t.CustomerName,
		&t.Location, &t.WorkDescription, &t.WorkType, &t.Equipment,
		&t.WorkStartTime, &t.WorkEndTime, &t.WorkTotalHours,
		&t.DriveStartTime, &t.DriveEndTime, &t.DriveTotalHours,
		&t.TravelType, &t.PartsUsed, &t.SubmittedBy, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	}
}

func (s *Service) decryptTicket(t *Ticket) error {
	location, err := s.codec.Decrypt(t.Location)
	if err != nil {
		return fmt.Errorf("ticket %d location: %w", t.ID, err)
	}
	description, err := s.codec.Decrypt(t.WorkDescription)
	if err != nil {
		return fmt.Errorf("ticket %d work description: %w", t.ID, err)
	}
	t.Location = location
	t.WorkDescription = description
	return nil
}

// Get returns a single ticket within the company scope.
func (s *Service) Get(ctx context.Context, companyID, ticketID int64) (*Ticket, error) {
	var t Ticket
	err := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM job_tickets
		WHERE id = $1 AND company_id = $2
	`, ticketID, companyID).Scan(t.scanDest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if err := s.decryptTicket(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListFilter narrows a ticket listing. UserID restricts to a single
// author, which is how technicians see only their own tickets.
type ListFilter struct {
	Status string
	UserID *int64
	Limit  int
	Offset int
}

// List returns a company's tickets, newest first.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Ticket, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM job_tickets
		WHERE company_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3::bigint IS NULL OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, companyID, filter.Status, filter.UserID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(t.scanDest()...); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if err := s.decryptTicket(&t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// UpdateParams are the mutable ticket fields. Nil leaves a field
// unchanged; Status, when set, must be a known value.
type UpdateParams struct {
	JobNumber       *string
	CustomerName    *string
	Location        *string
	WorkDescription *string
	WorkType        *string
	Equipment       *string
	WorkStartTime   *string
	WorkEndTime     *string
	WorkTotalHours  *float64
	DriveStartTime  *string
	DriveEndTime    *string
	DriveTotalHours *float64
	TravelType      *string
	PartsUsed       *string
	SubmittedBy     *string
	Status          *string
}

// Update patches a ticket and returns the updated row.
func (s *Service) Update(ctx context.Context, companyID, ticketID int64, params UpdateParams) (*Ticket, error) {
	if params.Status != nil && !validStatus(*params.Status) {
		return nil, ErrInvalidStatus
	}

	encLocation, err := s.codec.Encrypt(params.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt location: %w", err)
	}
	encDescription, err := s.codec.Encrypt(params.WorkDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt work description: %w", err)
	}

	var t Ticket
	err = s.pool.QueryRow(ctx, `
		UPDATE job_tickets
		SET job_number = COALESCE($3, job_number),
		    customer_name = COALESCE($4, customer_name),
		    location = COALESCE($5, location),
		    work_description = COALESCE($6, work_description),
		    work_type = COALESCE($7, work_type),
		    equipment = COALESCE($8, equipment),
		    work_start_time = COALESCE($9, work_start_time),
		    work_end_time = COALESCE($10, work_end_time),
		    work_total_hours = COALESCE($11, work_total_hours),
		    drive_start_time = COALESCE($12, drive_start_time),
		    drive_end_time = COALESCE($13, drive_end_time),
		    drive_total_hours = COALESCE($14, drive_total_hours),
		    travel_type = COALESCE($15, travel_type),
		    parts_used = COALESCE($16, parts_used),
		    submitted_by = COALESCE($17, submitted_by),
		    status = COALESCE($18, status),
		    updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING `+ticketColumns+`
	`, ticketID, companyID,
		params.JobNumber, params.CustomerName, encLocation, encDescription,
		params.WorkType, params.Equipment,
		params.WorkStartTime, params.WorkEndTime, params.WorkTotalHours,
		params.DriveStartTime, params.DriveEndTime, params.DriveTotalHours,
		params.TravelType, params.PartsUsed, params.SubmittedBy, params.Status,
	).Scan(t.scanDest()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	if err := s.decryptTicket(&t); err != nil {
		return nil, err
	}
	return &t, nil
}
