package app

import (
	"net/http"
	"strconv"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// scopeCompanyID resolves the company scope for an audit query. Managers
// are pinned to their own company; admins default to unscoped and may
// narrow with ?company_id=.
func scopeCompanyID(r *http.Request, user *auth.User) (*uuid.UUID, bool) {
	if !user.IsAdmin() {
		return user.CompanyUUID, true
	}

	raw := r.URL.Query().Get("company_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// HandleListLogs handles GET /api/v1/audit/logs
func HandleListLogs(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := auth.GetUser(ctx)

		companyID, ok := scopeCompanyID(r, user)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		reader := audit.NewReader(pool)
		entries, err := reader.List(ctx, audit.ListFilter{
			CompanyID: companyID,
			Action:    r.URL.Query().Get("action"),
			Category:  r.URL.Query().Get("category"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit logs")
			apperrors.WriteInternalError(w, r, "Failed to retrieve audit logs")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"logs": entries,
		})
	}
}

// HandleStats handles GET /api/v1/audit/stats
func HandleStats(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := auth.GetUser(ctx)

		companyID, ok := scopeCompanyID(r, user)
		if !ok {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		reader := audit.NewReader(pool)
		stats, err := reader.Stats(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load audit stats")
			apperrors.WriteInternalError(w, r, "Failed to retrieve audit stats")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"stats": stats,
		})
	}
}
