package reporter

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

type stubLister struct {
	objects []s3.ObjectInfo
	err     error
}

func (s stubLister) ListKeys(context.Context, string) ([]s3.ObjectInfo, error) {
	return s.objects, s.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reporter_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PhotoRecord{}, &models.Discrepancy{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(`CREATE UNIQUE INDEX ux_discrepancies_open_photo_kind
		ON discrepancies (photo_number, kind) WHERE acknowledged_at IS NULL`).Error
	if err != nil {
		t.Fatalf("create partial index: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, lister objectLister) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), inventory.NewRepository(db), lister, "photos/", nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedPhoto(t *testing.T, db *gorm.DB, photoNumber string, storageKey *string) {
	t.Helper()
	record := &models.PhotoRecord{
		PhotoNumber:   photoNumber,
		LegacyStatus:  enums.LegacyStatusInStock,
		CatalogStatus: enums.CatalogStatusInactive,
		StorageKey:    storageKey,
		Category:      "exotic",
		Price:         decimal.NewFromInt(159),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed photo: %v", err)
	}
}

func key(s string) *string { return &s }

func TestRecordFindingDedupesOpenFindings(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.RecordFinding(ctx, enums.DiscrepancyKindClaimConflict, enums.DiscrepancySeverityCritical, "601", "cde reports sold")
		if err != nil {
			t.Fatalf("record finding %d: %v", i, err)
		}
	}

	rows, err := repo.ListBySeverity(ctx, enums.DiscrepancySeverityCritical, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one open finding, got %d", len(rows))
	}
}

func TestAcknowledge(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, stubLister{})
	ctx := context.Background()

	repo := NewRepository(db)
	if err := repo.RecordFinding(ctx, enums.DiscrepancyKindPhantomAvailable, enums.DiscrepancySeverityCritical, "602", "catalog available, cde in transit"); err != nil {
		t.Fatalf("record: %v", err)
	}
	rows, err := svc.ListBySeverity(ctx, enums.DiscrepancySeverityCritical, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one finding: %v %v", rows, err)
	}

	if err := svc.Acknowledge(ctx, rows[0].ID, "ops@sunshine"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	// Repeat acks are an expected race.
	if err := svc.Acknowledge(ctx, rows[0].ID, "ops@sunshine"); err != nil {
		t.Fatalf("repeat acknowledge: %v", err)
	}

	rows, err = svc.ListBySeverity(ctx, enums.DiscrepancySeverityCritical, 0)
	if err != nil {
		t.Fatalf("list after ack: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty queue, got %d", len(rows))
	}

	err = svc.Acknowledge(ctx, uuid.New(), "ops@sunshine")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	// Acknowledging clears the queue entry only; a fresh report may reopen it.
	if err := repo.RecordFinding(ctx, enums.DiscrepancyKindPhantomAvailable, enums.DiscrepancySeverityCritical, "602", "still phantom"); err != nil {
		t.Fatalf("reopen finding: %v", err)
	}
	rows, _ = svc.ListBySeverity(ctx, enums.DiscrepancySeverityCritical, 0)
	if len(rows) != 1 {
		t.Fatalf("expected reopened finding, got %d", len(rows))
	}
}

func TestScanOrphansBothDirections(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	lister := stubLister{objects: []s3.ObjectInfo{
		{Key: "photos/701.jpg", SizeBytes: 120_000},
		{Key: "photos/stray.jpg", SizeBytes: 98_000},
	}}
	svc := newTestService(t, db, lister)
	ctx := context.Background()

	seedPhoto(t, db, "701", key("photos/701.jpg")) // healthy
	seedPhoto(t, db, "702", key("photos/702.jpg")) // key points at nothing
	seedPhoto(t, db, "703", nil)                   // no key at all

	result, err := svc.ScanOrphans(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.MissingObjects != 2 || result.UnknownObjects != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rows, err := svc.ListBySeverity(ctx, enums.DiscrepancySeverityWarning, 0)
	if err != nil {
		t.Fatalf("list warnings: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(rows))
	}

	byPhoto := make(map[string]enums.DiscrepancyKind)
	for _, row := range rows {
		byPhoto[row.PhotoNumber] = row.Kind
	}
	if byPhoto["702"] != enums.DiscrepancyKindMissingObject {
		t.Fatalf("702: %v", byPhoto)
	}
	if byPhoto["703"] != enums.DiscrepancyKindMissingObject {
		t.Fatalf("703: %v", byPhoto)
	}
	if byPhoto["stray"] != enums.DiscrepancyKindUnknownObject {
		t.Fatalf("stray: %v", byPhoto)
	}

	// Second pass finds the same orphans but files nothing new.
	if _, err := svc.ScanOrphans(ctx); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	rows, _ = svc.ListBySeverity(ctx, enums.DiscrepancySeverityWarning, 0)
	if len(rows) != 3 {
		t.Fatalf("expected scan to be idempotent, got %d warnings", len(rows))
	}
}
