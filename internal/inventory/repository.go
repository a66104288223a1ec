package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

// Repository owns persistence for photo records. Photo numbers come from the
// physical inventory and act as the natural key everywhere.
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

// Get loads a single photo record by photo number.
func (r *Repository) Get(ctx context.Context, photoNumber string) (*models.PhotoRecord, error) {
	var record models.PhotoRecord
	err := r.db.WithContext(ctx).First(&record, "photo_number = ?", photoNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "photo not found")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert inserts the record or refreshes its descriptive columns. Status
// columns are deliberately excluded: legacy status belongs to the reconcile
// engine and catalog status to the availability projector.
func (r *Repository) Upsert(ctx context.Context, record *models.PhotoRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "photo_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"storage_key", "category", "price", "updated_at",
			}),
		}).
		Create(record).
		Error
}

// CreateIfAbsent inserts the record only when the photo number is new. The
// reconcile engine uses it for discovery so a concurrent writer is never
// clobbered.
func (r *Repository) CreateIfAbsent(ctx context.Context, record *models.PhotoRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "photo_number"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetLegacyStatus records the latest truth observed from the stock system.
func (r *Repository) SetLegacyStatus(ctx context.Context, photoNumber string, status enums.LegacyStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PhotoRecord{}).
		Where("photo_number = ?", photoNumber).
		Update("legacy_status", status).
		Error
}

// SetCatalogStatus moves the catalog projection with an optimistic version
// check. A zero rows-affected result means another writer got there first.
// Publishing is additionally gated: available is rejected unless legacy stock,
// a stored image and the absence of a live claim all hold at write time, so no
// caller can force a phantom listing.
func (r *Repository) SetCatalogStatus(ctx context.Context, photoNumber string, status enums.CatalogStatus, expectedVersion int64) error {
	if status == enums.CatalogStatusAvailable {
		if err := r.guardAvailable(ctx, photoNumber); err != nil {
			return err
		}
	}
	res := r.db.WithContext(ctx).
		Model(&models.PhotoRecord{}).
		Where("photo_number = ? AND version = ?", photoNumber, expectedVersion).
		Updates(map[string]any{
			"catalog_status": status,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "photo record changed concurrently")
	}
	return nil
}

// guardAvailable enforces the visibility rule behind the available state.
// Runs against the repository's own handle, so inside a transaction it sees
// the caller's uncommitted claim transitions.
func (r *Repository) guardAvailable(ctx context.Context, photoNumber string) error {
	record, err := r.Get(ctx, photoNumber)
	if err != nil {
		return err
	}
	if record.LegacyStatus != enums.LegacyStatusInStock {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot publish photo: legacy status is %s", record.LegacyStatus))
	}
	if !record.HasStorage() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot publish photo: no stored image")
	}
	var live int64
	err = r.db.WithContext(ctx).
		Model(&models.ReservationClaim{}).
		Where("photo_number = ? AND status = ? AND expires_at > ?",
			photoNumber, enums.ClaimStatusActive, time.Now()).
		Count(&live).
		Error
	if err != nil {
		return err
	}
	if live > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot publish photo: a live claim holds it")
	}
	return nil
}

// MarkReconciled stamps the record after a reconcile pass touched it.
func (r *Repository) MarkReconciled(ctx context.Context, photoNumber string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PhotoRecord{}).
		Where("photo_number = ?", photoNumber).
		Update("last_reconciled_at", at).
		Error
}

// ListByCatalogStatus returns records in the given catalog state, optionally
// narrowed to a category, ordered by photo number for stable gallery pages.
func (r *Repository) ListByCatalogStatus(ctx context.Context, status enums.CatalogStatus, category string, limit int) ([]models.PhotoRecord, error) {
	qb := r.db.WithContext(ctx).
		Where("catalog_status = ?", status).
		Order("photo_number ASC")
	if category != "" {
		qb = qb.Where("category = ?", category)
	}
	if limit > 0 {
		qb = qb.Limit(limit)
	}
	var rows []models.PhotoRecord
	err := qb.Find(&rows).Error
	return rows, err
}

// ListBatch pages through every record in photo-number order. Pass the last
// photo number of the previous batch as the cursor; an empty cursor starts
// from the beginning.
func (r *Repository) ListBatch(ctx context.Context, afterPhotoNumber string, limit int) ([]models.PhotoRecord, error) {
	qb := r.db.WithContext(ctx).Order("photo_number ASC").Limit(limit)
	if afterPhotoNumber != "" {
		qb = qb.Where("photo_number > ?", afterPhotoNumber)
	}
	var rows []models.PhotoRecord
	err := qb.Find(&rows).Error
	return rows, err
}

// ListMissingStorage returns photo numbers that have no storage key at all.
func (r *Repository) ListMissingStorage(ctx context.Context) ([]string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.PhotoRecord{}).
		Where("storage_key IS NULL OR storage_key = ''").
		Order("photo_number ASC").
		Pluck("photo_number", &numbers).
		Error
	return numbers, err
}

// AllStorageKeys returns the storage key of every record that has one, keyed
// by photo number. The orphan scan diffs this against the bucket listing.
func (r *Repository) AllStorageKeys(ctx context.Context) (map[string]string, error) {
	type row struct {
		PhotoNumber string
		StorageKey  string
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.PhotoRecord{}).
		Select("photo_number", "storage_key").
		Where("storage_key IS NOT NULL AND storage_key <> ''").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(rows))
	for _, r := range rows {
		keys[r.PhotoNumber] = r.StorageKey
	}
	return keys, nil
}
