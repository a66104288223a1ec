package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sunshinecowhides/gallery-backend/api/middleware"
	"github.com/sunshinecowhides/gallery-backend/api/responses"
	"github.com/sunshinecowhides/gallery-backend/api/validators"
	adminsvc "github.com/sunshinecowhides/gallery-backend/internal/admin"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

const (
	defaultDiscrepancyLimit = 50
	maxDiscrepancyLimit     = 500
)

type discrepancyService interface {
	ListOpen(ctx context.Context, limit int) ([]models.Discrepancy, error)
	ListBySeverity(ctx context.Context, severity enums.DiscrepancySeverity, limit int) ([]models.Discrepancy, error)
	Acknowledge(ctx context.Context, id uuid.UUID, by string) error
}

type overrideService interface {
	Override(ctx context.Context, input adminsvc.OverrideInput) error
	ReleaseClaim(ctx context.Context, photoNumber, subject, reason string) error
}

type discrepancyResponse struct {
	ID          uuid.UUID  `json:"id"`
	PhotoNumber string     `json:"photoNumber"`
	Kind        string     `json:"kind"`
	Severity    string     `json:"severity"`
	Detail      string     `json:"detail"`
	CreatedAt   time.Time  `json:"createdAt"`
	AckedAt     *time.Time `json:"acknowledgedAt,omitempty"`
	AckedBy     *string    `json:"acknowledgedBy,omitempty"`
}

func toDiscrepancyResponse(row models.Discrepancy) discrepancyResponse {
	return discrepancyResponse{
		ID:          row.ID,
		PhotoNumber: row.PhotoNumber,
		Kind:        string(row.Kind),
		Severity:    string(row.Severity),
		Detail:      row.Detail,
		CreatedAt:   row.CreatedAt,
		AckedAt:     row.AcknowledgedAt,
		AckedBy:     row.AcknowledgedBy,
	}
}

// AdminDiscrepancyList returns the open review queue, critical findings first,
// optionally filtered to one severity.
func AdminDiscrepancyList(svc discrepancyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporter service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultDiscrepancyLimit, 1, maxDiscrepancyLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var rows []models.Discrepancy
		if raw := validators.SanitizeString(r.URL.Query().Get("severity"), 32); raw != "" {
			severity, err := enums.ParseDiscrepancySeverity(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid severity"))
				return
			}
			rows, err = svc.ListBySeverity(r.Context(), severity, limit)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		} else {
			rows, err = svc.ListOpen(r.Context(), limit)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result := make([]discrepancyResponse, 0, len(rows))
		for _, row := range rows {
			result = append(result, toDiscrepancyResponse(row))
		}

		responses.WriteSuccess(w, map[string]any{"discrepancies": result})
	}
}

// AdminDiscrepancyAck marks a finding as reviewed. Acknowledging never touches
// photo records or claims.
func AdminDiscrepancyAck(svc discrepancyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporter service unavailable"))
			return
		}

		subject := middleware.AdminSubjectFromContext(r.Context())
		if subject == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "discrepancyId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discrepancy id"))
			return
		}

		if err := svc.Acknowledge(r.Context(), id, subject); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "acknowledged"})
	}
}

type overrideRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required,max=512"`
}

// AdminOverride forces a photo into a catalog status under the calling
// admin's subject.
func AdminOverride(svc overrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		subject := middleware.AdminSubjectFromContext(r.Context())
		if subject == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		photoNumber := validators.SanitizeString(chi.URLParam(r, "photoNumber"), 64)
		if photoNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "photo number required"))
			return
		}

		var payload overrideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseCatalogStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid catalog status"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, photoNumber)
		}

		err = svc.Override(ctx, adminsvc.OverrideInput{
			PhotoNumber:  photoNumber,
			ForcedStatus: status,
			Subject:      subject,
			Reason:       payload.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "applied"})
	}
}

type releaseClaimRequest struct {
	Reason string `json:"reason" validate:"required,max=512"`
}

// AdminReleaseClaim force-releases whatever claim is holding a photo and
// re-projects its availability.
func AdminReleaseClaim(svc overrideService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		subject := middleware.AdminSubjectFromContext(r.Context())
		if subject == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		photoNumber := validators.SanitizeString(chi.URLParam(r, "photoNumber"), 64)
		if photoNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "photo number required"))
			return
		}

		var payload releaseClaimRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, photoNumber)
		}

		if err := svc.ReleaseClaim(ctx, photoNumber, subject, payload.Reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}
