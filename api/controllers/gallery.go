package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sunshinecowhides/gallery-backend/api/responses"
	"github.com/sunshinecowhides/gallery-backend/api/validators"
	"github.com/sunshinecowhides/gallery-backend/internal/catalog"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

const (
	defaultGalleryLimit = 100
	maxGalleryLimit     = 500
)

type galleryService interface {
	ListAvailable(ctx context.Context, category string, limit int) ([]catalog.PhotoListing, error)
	GetPhoto(ctx context.Context, photoNumber string) (*catalog.PhotoDetail, error)
}

// GalleryList serves the storefront gallery: available photos only, with
// signed image URLs.
func GalleryList(svc galleryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultGalleryLimit, 1, maxGalleryLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category := validators.SanitizeString(r.URL.Query().Get("category"), 64)

		listings, err := svc.ListAvailable(r.Context(), category, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"photos": listings})
	}
}

// GalleryPhoto serves one photo with its live availability.
func GalleryPhoto(svc galleryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		photoNumber := validators.SanitizeString(chi.URLParam(r, "photoNumber"), 64)
		if photoNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "photo number required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhotoNumber(ctx, photoNumber)
		}

		detail, err := svc.GetPhoto(ctx, photoNumber)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}
