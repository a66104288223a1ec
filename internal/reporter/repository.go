package reporter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/pkg/db"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

// Repository owns persistence for reconciliation discrepancies. A partial
// unique index on (photo_number, kind) WHERE acknowledged_at IS NULL dedupes
// repeat findings across reconcile cycles.
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

// RecordFinding files a discrepancy. Filing the same open (photo, kind) pair
// again is a no-op; the first report stays in the queue until acknowledged.
func (r *Repository) RecordFinding(ctx context.Context, kind enums.DiscrepancyKind, severity enums.DiscrepancySeverity, photoNumber, detail string) error {
	finding := &models.Discrepancy{
		ID:          uuid.New(),
		PhotoNumber: photoNumber,
		Kind:        kind,
		Severity:    severity,
		Detail:      detail,
	}
	err := r.db.WithContext(ctx).Create(finding).Error
	if db.IsUniqueViolation(err, "") {
		return nil
	}
	return err
}

// ListBySeverity returns unacknowledged findings of the given severity,
// oldest first.
func (r *Repository) ListBySeverity(ctx context.Context, severity enums.DiscrepancySeverity, limit int) ([]models.Discrepancy, error) {
	qb := r.db.WithContext(ctx).
		Where("severity = ? AND acknowledged_at IS NULL", severity).
		Order("created_at ASC")
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	var rows []models.Discrepancy
	err := qb.Find(&rows).Error
	return rows, err
}

// ListOpen returns every unacknowledged finding, critical first.
func (r *Repository) ListOpen(ctx context.Context, limit int) ([]models.Discrepancy, error) {
	qb := r.db.WithContext(ctx).
		Where("acknowledged_at IS NULL").
		Order("CASE severity WHEN 'critical' THEN 0 WHEN 'autofix' THEN 1 ELSE 2 END, created_at ASC")
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	var rows []models.Discrepancy
	err := qb.Find(&rows).Error
	return rows, err
}

// Acknowledge removes the finding from the active queue. The underlying
// records and claims are untouched; corrective action flows through the
// reconcile engine or a supervised override, never through here.
func (r *Repository) Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Discrepancy{}).
		Where("id = ? AND acknowledged_at IS NULL", id).
		Updates(map[string]any{
			"acknowledged_at": at,
			"acknowledged_by": by,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.Discrepancy{}).
			Where("id = ?", id).
			Count(&count).
			Error; err != nil {
			return err
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "discrepancy not found")
		}
		// Already acknowledged; repeat acks are an expected race.
	}
	return nil
}
