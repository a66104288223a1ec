package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sunshinecowhides/gallery-backend/api/middleware"
	"github.com/sunshinecowhides/gallery-backend/api/responses"
	"github.com/sunshinecowhides/gallery-backend/api/validators"
	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type claimLedger interface {
	Claim(ctx context.Context, photoNumber, holderID string, kind enums.ClaimKind, ttl time.Duration) (*models.ReservationClaim, error)
	Release(ctx context.Context, photoNumber, holderID string) error
	Extend(ctx context.Context, photoNumber, holderID string, ttl time.Duration) (*models.ReservationClaim, error)
	HolderClaims(ctx context.Context, holderID string) ([]models.ReservationClaim, error)
}

type reprojector interface {
	Apply(ctx context.Context, photoNumber string) (availability.Outcome, error)
}

type claimResponse struct {
	PhotoNumber string    `json:"photoNumber"`
	HolderID    string    `json:"holderId"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	ClaimedAt   time.Time `json:"claimedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func toClaimResponse(claim models.ReservationClaim) claimResponse {
	return claimResponse{
		PhotoNumber: claim.PhotoNumber,
		HolderID:    claim.HolderID,
		Kind:        string(claim.Kind),
		Status:      string(claim.Status),
		ClaimedAt:   claim.ClaimedAt,
		ExpiresAt:   claim.ExpiresAt,
	}
}

type createClaimRequest struct {
	PhotoNumber string `json:"photo_number" validate:"required,max=64"`
	TTLSeconds  *int   `json:"ttl_seconds,omitempty" validate:"omitempty,min=0"`
}

// ClaimCreate places a hold on one photo for the calling holder. The projector
// runs right after so the gallery stops showing the photo; if that projection
// fails the claim still stands and the next sweep heals the listing.
func ClaimCreate(ledger claimLedger, project reprojector, claimsCfg config.ClaimsConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation ledger unavailable"))
			return
		}

		holderID := middleware.HolderIDFromContext(r.Context())
		if holderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "holder context missing"))
			return
		}

		var payload createClaimRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ttl := claimsCfg.DefaultTTL
		if payload.TTLSeconds != nil {
			ttl = time.Duration(*payload.TTLSeconds) * time.Second
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, payload.PhotoNumber)
		}

		claim, err := ledger.Claim(ctx, payload.PhotoNumber, holderID, enums.ClaimKindCart, ttl)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reproject(ctx, project, logg, claim.PhotoNumber)

		responses.WriteSuccessStatus(w, http.StatusCreated, toClaimResponse(*claim))
	}
}

// ClaimRelease drops the holder's claim on a photo. Releasing a photo that is
// not claimed is a no-op.
func ClaimRelease(ledger claimLedger, project reprojector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation ledger unavailable"))
			return
		}

		holderID := middleware.HolderIDFromContext(r.Context())
		photoNumber := validators.SanitizeString(chi.URLParam(r, "photoNumber"), 64)
		if photoNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "photo number required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, photoNumber)
		}

		if err := ledger.Release(ctx, photoNumber, holderID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reproject(ctx, project, logg, photoNumber)

		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

type extendClaimRequest struct {
	TTLSeconds int `json:"ttl_seconds" validate:"required,min=1"`
}

// ClaimExtend pushes out the expiry of an active claim.
func ClaimExtend(ledger claimLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation ledger unavailable"))
			return
		}

		holderID := middleware.HolderIDFromContext(r.Context())
		photoNumber := validators.SanitizeString(chi.URLParam(r, "photoNumber"), 64)
		if photoNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "photo number required"))
			return
		}

		var payload extendClaimRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, photoNumber)
		}

		claim, err := ledger.Extend(ctx, photoNumber, holderID, time.Duration(payload.TTLSeconds)*time.Second)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, toClaimResponse(*claim))
	}
}

// ClaimList returns the holder's active claims.
func ClaimList(ledger claimLedger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation ledger unavailable"))
			return
		}

		holderID := middleware.HolderIDFromContext(r.Context())
		claims, err := ledger.HolderClaims(r.Context(), holderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := make([]claimResponse, 0, len(claims))
		for _, claim := range claims {
			result = append(result, toClaimResponse(claim))
		}

		responses.WriteSuccess(w, map[string]any{"claims": result})
	}
}

func reproject(ctx context.Context, project reprojector, logg *logger.Logger, photoNumber string) {
	if project == nil {
		return
	}
	if _, err := project.Apply(ctx, photoNumber); err != nil && logg != nil {
		logg.Warn(ctx, "availability projection failed: "+err.Error())
	}
}
