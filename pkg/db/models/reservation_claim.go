package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
)

// ReservationClaim is a temporary hold on one photo by one cart or selection.
// A partial unique index on (photo_number) WHERE status = 'active' makes the
// insert the single conditional write that prevents double claims.
type ReservationClaim struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	PhotoNumber string            `gorm:"column:photo_number;not null;index"`
	HolderID    string            `gorm:"column:holder_id;not null"`
	Kind        enums.ClaimKind   `gorm:"column:kind;type:claim_kind;not null;default:cart"`
	Status      enums.ClaimStatus `gorm:"column:status;type:claim_status;not null;default:active"`
	ClaimedAt   time.Time         `gorm:"column:claimed_at;not null"`
	ExpiresAt   time.Time         `gorm:"column:expires_at;not null"`
	ReleasedAt  *time.Time        `gorm:"column:released_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table to the migration schema.
func (ReservationClaim) TableName() string { return "reservation_claims" }

// ActiveAt reports whether the claim still holds the photo at the given time.
func (c ReservationClaim) ActiveAt(now time.Time) bool {
	return c.Status == enums.ClaimStatusActive && c.ExpiresAt.After(now)
}
