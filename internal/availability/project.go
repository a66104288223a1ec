package availability

import (
	"fmt"

	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

// Project maps the three inputs that decide visibility to a catalog status.
// Precedence: a legacy sale always wins, an active claim holds the photo,
// and anything not confirmed sellable (no stored image, or a legacy state
// other than in_stock) stays off the gallery.
func Project(legacy enums.LegacyStatus, hasActiveClaim, hasStorage bool) (enums.CatalogStatus, error) {
	switch legacy {
	case enums.LegacyStatusSold:
		return enums.CatalogStatusSold, nil
	case enums.LegacyStatusInStock:
		if hasActiveClaim {
			return enums.CatalogStatusReserved, nil
		}
		if !hasStorage {
			return enums.CatalogStatusInactive, nil
		}
		return enums.CatalogStatusAvailable, nil
	case enums.LegacyStatusInTransit, enums.LegacyStatusStandby,
		enums.LegacyStatusReservedExternal, enums.LegacyStatusUnknown:
		if hasActiveClaim {
			return enums.CatalogStatusReserved, nil
		}
		return enums.CatalogStatusInactive, nil
	default:
		// A new legacy state must be mapped explicitly before it can ship.
		return "", pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("unmapped legacy status %q", legacy))
	}
}
