package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// ListFilter narrows an audit log listing. CompanyID nil means unscoped
// (admin only); Action and Category empty mean no filter.
type ListFilter struct {
	CompanyID *uuid.UUID
	Action    string
	Category  string
	Limit     int
	Offset    int
}

type ListItem struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	Category   string         `json:"category"`
	CompanyID  *uuid.UUID     `json:"company_id,omitempty"`
	UserID     *int64         `json:"user_id,omitempty"`
	UserEmail  string         `json:"user_email,omitempty"`
	TargetID   *string        `json:"target_id,omitempty"`
	TargetType *string        `json:"target_type,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StatsItem is a per-category event count.
type StatsItem struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func (r *Reader) List(ctx context.Context, filter ListFilter) ([]ListItem, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
		  al.id,
		  al.action,
		  al.category,
		  al.company_id,
		  al.user_id,
		  u.email,
		  al.target_id,
		  al.target_type,
		  al.details,
		  al.created_at
		FROM audit_log al
		LEFT JOIN users u ON u.id = al.user_id
		WHERE ($1::uuid IS NULL OR al.company_id = $1)
		  AND ($2 = '' OR al.action = $2)
		  AND ($3 = '' OR al.category = $3)
		ORDER BY al.created_at DESC
		LIMIT $4 OFFSET $5
	`, filter.CompanyID, filter.Action, filter.Category, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []ListItem
	for rows.Next() {
		var item ListItem
		var userEmail *string
		var detailsRaw []byte

		if err := rows.Scan(
			&item.ID,
			&item.Action,
			&item.Category,
			&item.CompanyID,
			&item.UserID,
			&userEmail,
			&item.TargetID,
			&item.TargetType,
			&detailsRaw,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		if userEmail != nil {
			item.UserEmail = *userEmail
		}

		item.Details = map[string]any{}
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &item.Details)
		}

		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return out, nil
}

// Stats returns event counts grouped by category for a company (or all
// companies when companyID is nil).
func (r *Reader) Stats(ctx context.Context, companyID *uuid.UUID) ([]StatsItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM audit_log
		WHERE ($1::uuid IS NULL OR company_id = $1)
		GROUP BY category
		ORDER BY category
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit stats: %w", err)
	}
	defer rows.Close()

	var out []StatsItem
	for rows.Next() {
		var item StatsItem
		if err := rows.Scan(&item.Category, &item.Count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats rows: %w", err)
	}

	return out, nil
}
