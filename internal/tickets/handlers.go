package tickets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/brennanwesley/jobticketinvoice/internal/apperrors"
	"github.com/brennanwesley/jobticketinvoice/internal/audit"
	"github.com/brennanwesley/jobticketinvoice/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func requireCompany(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user := auth.GetUser(r.Context())
	if user.CompanyID == nil {
		apperrors.WriteForbidden(w, r, "User must be associated with a company")
		return nil, 0, false
	}
	return user, *user.CompanyID, true
}

type TicketRequest struct {
	JobNumber       *string  `json:"job_number,omitempty"`
	CustomerName    *string  `json:"customer_name,omitempty"`
	Location        *string  `json:"location,omitempty"`
	WorkDescription *string  `json:"work_description,omitempty"`
	WorkType        *string  `json:"work_type,omitempty"`
	Equipment       *string  `json:"equipment,omitempty"`
	WorkStartTime   *string  `json:"work_start_time,omitempty"`
	WorkEndTime     *string  `json:"work_end_time,omitempty"`
	WorkTotalHours  *float64 `json:"work_total_hours,omitempty"`
	DriveStartTime  *string  `json:"drive_start_time,omitempty"`
	DriveEndTime    *string  `json:"drive_end_time,omitempty"`
	DriveTotalHours *float64 `json:"drive_total_hours,omitempty"`
	TravelType      *string  `json:"travel_type,omitempty"`
	PartsUsed       *string  `json:"parts_used,omitempty"`
	SubmittedBy     *string  `json:"submitted_by,omitempty"`
	Status          *string  `json:"status,omitempty"`
}

// HandleCreate handles POST /api/v1/job-tickets
func HandleCreate(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		var req TicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		ticket, err := service.Create(ctx, CreateParams{
			CompanyID:       companyID,
			UserID:          user.ID,
			JobNumber:       req.JobNumber,
			CustomerName:    req.CustomerName,
			Location:        req.Location,
			WorkDescription: req.WorkDescription,
			WorkType:        req.WorkType,
			Equipment:       req.Equipment,
			WorkStartTime:   req.WorkStartTime,
			WorkEndTime:     req.WorkEndTime,
			WorkTotalHours:  req.WorkTotalHours,
			DriveStartTime:  req.DriveStartTime,
			DriveEndTime:    req.DriveEndTime,
			DriveTotalHours: req.DriveTotalHours,
			TravelType:      req.TravelType,
			PartsUsed:       req.PartsUsed,
			SubmittedBy:     req.SubmittedBy,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create job ticket")
			apperrors.WriteInternalError(w, r, "Failed to create job ticket")
			return
		}

		auditor.LogTicketCreated(ctx, user.ID, *user.CompanyUUID, ticket.ID, ticket.TicketNumber)

		apperrors.WriteSuccess(w, r, http.StatusCreated, ticket)
	}
}

// HandleGet handles GET /api/v1/job-tickets/{ticket_id}
func HandleGet(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticket_id"), 10, 64)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid ticket ID")
			return
		}

		ticket, err := service.Get(r.Context(), companyID, ticketID)
		if err != nil {
			if errors.Is(err, ErrTicketNotFound) {
				apperrors.WriteNotFound(w, r, "Job ticket not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get job ticket")
			apperrors.WriteInternalError(w, r, "Failed to retrieve job ticket")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, ticket)
	}
}

// HandleList handles GET /api/v1/job-tickets
// Technicians see only their own tickets; managers see the company's.
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		filter := ListFilter{
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		}
		if user.Role == auth.RoleTech {
			filter.UserID = &user.ID
		}

		tickets, err := service.List(r.Context(), companyID, filter)
		if err != nil {
			if errors.Is(err, ErrInvalidStatus) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Msg("Failed to list job tickets")
			apperrors.WriteInternalError(w, r, "Failed to retrieve job tickets")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"tickets": tickets,
		})
	}
}

// HandleUpdate handles PATCH /api/v1/job-tickets/{ticket_id}
func HandleUpdate(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, companyID, ok := requireCompany(w, r)
		if !ok {
			return
		}

		ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticket_id"), 10, 64)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid ticket ID")
			return
		}

		var req TicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		ticket, err := service.Update(ctx, companyID, ticketID, UpdateParams{
			JobNumber:       req.JobNumber,
			CustomerName:    req.CustomerName,
			Location:        req.Location,
			WorkDescription: req.WorkDescription,
			WorkType:        req.WorkType,
			Equipment:       req.Equipment,
			WorkStartTime:   req.WorkStartTime,
			WorkEndTime:     req.WorkEndTime,
			WorkTotalHours:  req.WorkTotalHours,
			DriveStartTime:  req.DriveStartTime,
			DriveEndTime:    req.DriveEndTime,
			DriveTotalHours: req.DriveTotalHours,
			TravelType:      req.TravelType,
			PartsUsed:       req.PartsUsed,
			SubmittedBy:     req.SubmittedBy,
			Status:          req.Status,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrTicketNotFound):
				apperrors.WriteNotFound(w, r, "Job ticket not found")
			case errors.Is(err, ErrInvalidStatus):
				apperrors.WriteBadRequest(w, r, err.Error())
			default:
				log.Error().Err(err).Msg("Failed to update job ticket")
				apperrors.WriteInternalError(w, r, "Failed to update job ticket")
			}
			return
		}

		auditor.Log(ctx, audit.LogParams{
			UserID:     &user.ID,
			CompanyID:  user.CompanyUUID,
			Action:     audit.EventTicketUpdated,
			Category:   audit.CategoryTicket,
			TargetID:   strconv.FormatInt(ticket.ID, 10),
			TargetType: "job_ticket",
		})

		apperrors.WriteSuccess(w, r, http.StatusOK, ticket)
	}
}
