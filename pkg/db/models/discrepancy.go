package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
)

// Discrepancy records a legacy/local disagreement or storage orphan that the
// reconciliation engine refused to auto-heal. Acknowledging one only removes
// it from the review queue; it never mutates photo records or claims.
type Discrepancy struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PhotoNumber    string                    `gorm:"column:photo_number;not null;index"`
	Kind           enums.DiscrepancyKind     `gorm:"column:kind;type:discrepancy_kind;not null"`
	Severity       enums.DiscrepancySeverity `gorm:"column:severity;type:discrepancy_severity;not null"`
	Detail         string                    `gorm:"column:detail;not null"`
	AcknowledgedAt *time.Time                `gorm:"column:acknowledged_at"`
	AcknowledgedBy *string                   `gorm:"column:acknowledged_by"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table to the migration schema.
func (Discrepancy) TableName() string { return "discrepancies" }
