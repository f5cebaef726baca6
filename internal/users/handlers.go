package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/brennanwesley/jobticketinvoice/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// requireCompany resolves the acting user's internal company id. User
// management always runs inside a single tenant.
func requireCompany(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user := auth.GetUser(r.Context())
	if user.CompanyID == nil {
		apperrors.WriteForbidden(w, r, "User must be associated with a company")
		return nil, 0, false
	}
	return user, *user.CompanyID, true
}

// HandleList handles GET /api/v1/users
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		users, err := service.List(r.Context(), companyID, limit, offset)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list users")
			apperrors.WriteInternalError(w, r, "Failed to retrieve users")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"users": users,
		})
	}
}

type CreateTechRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleCreateTech handles POST /api/v1/users/tech
// The new account must change its password on first login.
func HandleCreateTech(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		var req CreateTechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Name is required")
			return
		}

		user, err := service.CreateTech(ctx, CreateTechParams{
			Email:     req.Email,
			Name:      req.Name,
			Password:  req.Password,
			CompanyID: companyID,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrEmailConflict):
				apperrors.WriteConflict(w, r, err.Error())
			case errors.Is(err, validation.ErrEmailRequired),
				errors.Is(err, validation.ErrEmailTooLong),
				errors.Is(err, validation.ErrEmailInvalid),
				errors.Is(err, validation.ErrPasswordTooShort):
				apperrors.WriteBadRequest(w, r, err.Error())
			default:
				log.Error().Err(err).Msg("Failed to create tech user")
				apperrors.WriteInternalError(w, r, "Failed to create user")
			}
			return
		}

		auditor.Log(ctx, audit.LogParams{
			UserID:     &actor.ID,
			CompanyID:  actor.CompanyUUID,
			Action:     audit.EventUserCreated,
			Category:   audit.CategoryUser,
			TargetID:   strconv.FormatInt(user.ID, 10),
			TargetType: "user",
			Meta:       map[string]interface{}{"email": user.Email, "created_by": "manager"},
		})

		apperrors.WriteSuccess(w, r, http.StatusCreated, user)
	}
}

// HandleDeactivate handles DELETE /api/v1/users/{user_id}
func HandleDeactivate(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}
		if userID == actor.ID {
			apperrors.WriteBadRequest(w, r, "Cannot deactivate your own account")
			return
		}

		if err := service.Deactivate(ctx, companyID, userID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				apperrors.WriteNotFound(w, r, "User not found")
				return
			}
			log.Error().Err(err).Msg("Failed to deactivate user")
			apperrors.WriteInternalError(w, r, "Failed to deactivate user")
			return
		}

		auditor.Log(ctx, audit.LogParams{
			UserID:     &actor.ID,
			CompanyID:  actor.CompanyUUID,
			Action:     audit.EventUserDeactivated,
			Category:   audit.CategoryUser,
			TargetID:   strconv.FormatInt(userID, 10),
			TargetType: "user",
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deactivated": true,
		})
	}
}
