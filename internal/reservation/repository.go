package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/pkg/db"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

// Repository owns persistence for reservation claims. The partial unique
// index on (photo_number) WHERE status = 'active' backs every Insert; the
// repository never checks-then-writes.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Insert writes a new claim row. A unique violation on the active-claim index
// means another holder already has the photo.
func (r *Repository) Insert(ctx context.Context, claim *models.ReservationClaim) error {
	err := r.db.WithContext(ctx).Create(claim).Error
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "photo already claimed")
	}
	return err
}

// ActiveClaim returns the live claim for the photo at the given instant.
func (r *Repository) ActiveClaim(ctx context.Context, photoNumber string, now time.Time) (*models.ReservationClaim, error) {
	var claim models.ReservationClaim
	err := r.db.WithContext(ctx).
		Where("photo_number = ? AND status = ? AND expires_at > ?", photoNumber, enums.ClaimStatusActive, now).
		First(&claim).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active claim")
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ActiveClaimByHolder returns the live claim held by the given holder.
func (r *Repository) ActiveClaimByHolder(ctx context.Context, photoNumber, holderID string, now time.Time) (*models.ReservationClaim, error) {
	var claim models.ReservationClaim
	err := r.db.WithContext(ctx).
		Where("photo_number = ? AND holder_id = ? AND status = ? AND expires_at > ?",
			photoNumber, holderID, enums.ClaimStatusActive, now).
		First(&claim).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active claim for holder")
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ActiveExists reports whether any live claim holds the photo.
func (r *Repository) ActiveExists(ctx context.Context, photoNumber string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationClaim{}).
		Where("photo_number = ? AND status = ? AND expires_at > ?", photoNumber, enums.ClaimStatusActive, now).
		Count(&count).
		Error
	return count > 0, err
}

// ListByHolder returns every live claim held by the holder.
func (r *Repository) ListByHolder(ctx context.Context, holderID string, now time.Time) ([]models.ReservationClaim, error) {
	var rows []models.ReservationClaim
	err := r.db.WithContext(ctx).
		Where("holder_id = ? AND status = ? AND expires_at > ?", holderID, enums.ClaimStatusActive, now).
		Order("claimed_at ASC").
		Find(&rows).
		Error
	return rows, err
}

// ExpireStale flips any lapsed active claim on the photo to expired. Run
// inside the claim transaction so a fresh insert never trips over a corpse.
func (r *Repository) ExpireStale(ctx context.Context, photoNumber string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReservationClaim{}).
		Where("photo_number = ? AND status = ? AND expires_at <= ?", photoNumber, enums.ClaimStatusActive, now).
		Update("status", enums.ClaimStatusExpired).
		Error
}

// Transition moves one claim to a terminal status, guarded on it still being
// active. Zero rows affected means a concurrent transition won.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to enums.ClaimStatus, now time.Time) error {
	updates := map[string]any{"status": to}
	if to == enums.ClaimStatusReleased {
		updates["released_at"] = now
	}
	res := r.db.WithContext(ctx).
		Model(&models.ReservationClaim{}).
		Where("id = ? AND status = ?", id, enums.ClaimStatusActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "claim is no longer active")
	}
	return nil
}

// ExtendExpiry pushes the expiry of a still-active claim.
func (r *Repository) ExtendExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ReservationClaim{}).
		Where("id = ? AND status = ?", id, enums.ClaimStatusActive).
		Update("expires_at", expiresAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "claim is no longer active")
	}
	return nil
}

// LapsedClaims returns active claims past their expiry, oldest first.
func (r *Repository) LapsedClaims(ctx context.Context, now time.Time, limit int) ([]models.ReservationClaim, error) {
	qb := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.ClaimStatusActive, now).
		Order("expires_at ASC")
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	var rows []models.ReservationClaim
	err := qb.Find(&rows).Error
	return rows, err
}
