package payloads

import (
	"time"

	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
)

// PhotoStatusChangedEvent is emitted whenever the availability projector
// persists a different catalog status. Downstream gallery caches key their
// invalidation off it.
type PhotoStatusChangedEvent struct {
	PhotoNumber string              `json:"photoNumber"`
	Category    string              `json:"category,omitempty"`
	OldStatus   enums.CatalogStatus `json:"oldStatus"`
	NewStatus   enums.CatalogStatus `json:"newStatus"`
	ChangedAt   time.Time           `json:"changedAt"`
}

// PhotoSoldEvent is emitted when a claim is promoted to a sale.
type PhotoSoldEvent struct {
	PhotoNumber string    `json:"photoNumber"`
	HolderID    string    `json:"holderId"`
	SoldAt      time.Time `json:"soldAt"`
}

// PhotoOverrideAppliedEvent records a supervised manual catalog override.
type PhotoOverrideAppliedEvent struct {
	PhotoNumber  string              `json:"photoNumber"`
	ForcedStatus enums.CatalogStatus `json:"forcedStatus"`
	Subject      string              `json:"subject"`
	Reason       string              `json:"reason,omitempty"`
	AppliedAt    time.Time           `json:"appliedAt"`
}
