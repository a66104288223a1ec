package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
)

// PhotoRecord is the canonical row for one physical photograph. The legacy
// status column is owned by the reconciliation engine, the catalog status by
// the availability projector; nothing else writes either field.
type PhotoRecord struct {
	PhotoNumber      string              `gorm:"column:photo_number;primaryKey"`
	LegacyStatus     enums.LegacyStatus  `gorm:"column:legacy_status;type:legacy_status;not null"`
	CatalogStatus    enums.CatalogStatus `gorm:"column:catalog_status;type:catalog_status;not null;default:inactive"`
	StorageKey       *string             `gorm:"column:storage_key"`
	Category         string              `gorm:"column:category"`
	Price            decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Version          int64               `gorm:"column:version;not null;default:0"`
	LastReconciledAt *time.Time          `gorm:"column:last_reconciled_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table to the migration schema.
func (PhotoRecord) TableName() string { return "photo_records" }

// HasStorage reports whether the record references a stored object.
func (p PhotoRecord) HasStorage() bool {
	return p.StorageKey != nil && *p.StorageKey != ""
}
