package middleware

import (
	"net/http"
	"strings"

	"github.com/sunshinecowhides/gallery-backend/api/responses"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

const holderIDHeader = "X-Holder-Id"

const maxHolderIDLength = 128

// HolderContext requires the storefront's opaque cart identifier on every
// claim operation. The platform never interprets it; equality is the only
// operation performed on it.
func HolderContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			holderID := strings.TrimSpace(r.Header.Get(holderIDHeader))
			if holderID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing holder id header"))
				return
			}
			if len(holderID) > maxHolderIDLength {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "holder id too long"))
				return
			}

			ctx := WithHolderID(r.Context(), holderID)
			if logg != nil {
				ctx = logg.WithHolderID(ctx, holderID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
