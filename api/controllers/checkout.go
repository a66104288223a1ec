package controllers

import (
	"context"
	"net/http"

	"github.com/sunshinecowhides/gallery-backend/api/middleware"
	"github.com/sunshinecowhides/gallery-backend/api/responses"
	"github.com/sunshinecowhides/gallery-backend/api/validators"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type saleConfirmer interface {
	ConfirmSale(ctx context.Context, photoNumber, holderID string) (*models.ReservationClaim, error)
}

type checkoutRequest struct {
	PhotoNumbers []string `json:"photo_numbers" validate:"required,min=1,max=50,dive,required,max=64"`
}

// CheckoutConfirm finalizes the sale of every photo the holder has claimed.
// Photos are confirmed one at a time; a failure stops the batch and reports
// which photos already went through, since sold is terminal.
func CheckoutConfirm(svc saleConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		holderID := middleware.HolderIDFromContext(r.Context())
		if holderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "holder context missing"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmed := make([]string, 0, len(payload.PhotoNumbers))
		for _, photoNumber := range payload.PhotoNumbers {
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithPhotoNumber(ctx, photoNumber)
			}
			if _, err := svc.ConfirmSale(ctx, photoNumber, holderID); err != nil {
				typed := pkgerrors.As(err)
				if typed == nil {
					typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm sale")
				}
				responses.WriteError(ctx, logg, w, typed.WithDetails(map[string]any{
					"failed_photo": photoNumber,
					"confirmed":    confirmed,
				}))
				return
			}
			confirmed = append(confirmed, photoNumber)
		}

		responses.WriteSuccess(w, map[string]any{"confirmed": confirmed})
	}
}
