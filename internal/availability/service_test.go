package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubClaims struct {
	active bool
	err    error
}

func (s stubClaims) ActiveExists(context.Context, *gorm.DB, string, time.Time) (bool, error) {
	return s.active, s.err
}

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (c *captureEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type captureCache struct {
	calls []string
}

func (c *captureCache) InvalidateGalleryCache(_ context.Context, _, photoNumber string) error {
	c.calls = append(c.calls, photoNumber)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:availability_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PhotoRecord{}, &models.ReservationClaim{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(`CREATE UNIQUE INDEX ux_reservation_claims_active_photo
		ON reservation_claims (photo_number) WHERE status = 'active'`).Error
	if err != nil {
		t.Fatalf("create partial index: %v", err)
	}
	return db
}

func seedPhoto(t *testing.T, db *gorm.DB, legacy enums.LegacyStatus, catalog enums.CatalogStatus) string {
	t.Helper()
	photoNumber := uuid.NewString()[:8]
	key := "photos/" + photoNumber + ".jpg"
	record := &models.PhotoRecord{
		PhotoNumber:   photoNumber,
		LegacyStatus:  legacy,
		CatalogStatus: catalog,
		StorageKey:    &key,
		Category:      "tricolor",
		Price:         decimal.NewFromInt(299),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed photo: %v", err)
	}
	return photoNumber
}

func newTestService(t *testing.T, db *gorm.DB, claims claimReader, emitter eventEmitter, cache cacheInvalidator) *Service {
	t.Helper()
	svc, err := NewService(inventory.NewRepository(db), claims, gormTxRunner{db: db}, emitter, cache, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestApplyPersistsNewStatusAndEmits(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	emitter := &captureEmitter{}
	cache := &captureCache{}
	svc := newTestService(t, db, stubClaims{}, emitter, cache)

	photoNumber := seedPhoto(t, db, enums.LegacyStatusInStock, enums.CatalogStatusInactive)

	outcome, err := svc.Apply(context.Background(), photoNumber)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !outcome.Changed || outcome.NewStatus != enums.CatalogStatusAvailable {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	var record models.PhotoRecord
	if err := db.First(&record, "photo_number = ?", photoNumber).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.CatalogStatus != enums.CatalogStatusAvailable || record.Version != 1 {
		t.Fatalf("unexpected record: status=%s version=%d", record.CatalogStatus, record.Version)
	}

	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventPhotoStatusChanged || event.AggregateID != photoNumber {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(cache.calls) != 1 || cache.calls[0] != photoNumber {
		t.Fatalf("expected cache invalidation, got %v", cache.calls)
	}
}

func TestApplyNoChangeIsSilent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	emitter := &captureEmitter{}
	cache := &captureCache{}
	svc := newTestService(t, db, stubClaims{}, emitter, cache)

	photoNumber := seedPhoto(t, db, enums.LegacyStatusInStock, enums.CatalogStatusAvailable)

	outcome, err := svc.Apply(context.Background(), photoNumber)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Changed {
		t.Fatalf("expected no change, got %+v", outcome)
	}

	var record models.PhotoRecord
	if err := db.First(&record, "photo_number = ?", photoNumber).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Version != 0 {
		t.Fatalf("no-op apply must not bump version, got %d", record.Version)
	}
	if len(emitter.events) != 0 || len(cache.calls) != 0 {
		t.Fatalf("expected no side effects: events=%d cache=%v", len(emitter.events), cache.calls)
	}
}

func TestApplyActiveClaimReserves(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	emitter := &captureEmitter{}
	svc := newTestService(t, db, stubClaims{active: true}, emitter, &captureCache{})

	photoNumber := seedPhoto(t, db, enums.LegacyStatusInStock, enums.CatalogStatusAvailable)

	outcome, err := svc.Apply(context.Background(), photoNumber)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.NewStatus != enums.CatalogStatusReserved {
		t.Fatalf("expected reserved, got %s", outcome.NewStatus)
	}
}

func TestApplyClaimReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	runner := gormTxRunner{db: db}
	ledger, err := reservation.NewLedger(reservation.NewRepository(db), runner, config.ClaimsConfig{MaxTTL: 4 * time.Hour}, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	emitter := &captureEmitter{}
	svc, err := NewService(inventory.NewRepository(db), ledger, runner, emitter, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	photoNumber := seedPhoto(t, db, enums.LegacyStatusInStock, enums.CatalogStatusAvailable)

	if _, err := ledger.Claim(ctx, photoNumber, "cart-rt", enums.ClaimKindCart, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
	outcome, err := svc.Apply(ctx, photoNumber)
	if err != nil {
		t.Fatalf("apply after claim: %v", err)
	}
	if !outcome.Changed || outcome.NewStatus != enums.CatalogStatusReserved {
		t.Fatalf("unexpected outcome after claim: %+v", outcome)
	}

	if err := ledger.Release(ctx, photoNumber, "cart-rt"); err != nil {
		t.Fatalf("release: %v", err)
	}
	outcome, err = svc.Apply(ctx, photoNumber)
	if err != nil {
		t.Fatalf("apply after release: %v", err)
	}
	if !outcome.Changed || outcome.NewStatus != enums.CatalogStatusAvailable {
		t.Fatalf("unexpected outcome after release: %+v", outcome)
	}

	// The record lands exactly where it started, two versions later.
	var record models.PhotoRecord
	if err := db.First(&record, "photo_number = ?", photoNumber).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.CatalogStatus != enums.CatalogStatusAvailable {
		t.Fatalf("expected available restored, got %s", record.CatalogStatus)
	}
	if record.Version != 2 {
		t.Fatalf("expected two projection writes, got version %d", record.Version)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected two status-change events, got %d", len(emitter.events))
	}
}

func TestApplyRollsBackOnEmitFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, stubClaims{}, failingEmitter{}, &captureCache{})

	photoNumber := seedPhoto(t, db, enums.LegacyStatusInStock, enums.CatalogStatusInactive)

	if _, err := svc.Apply(context.Background(), photoNumber); err == nil {
		t.Fatal("expected apply to fail")
	}

	var record models.PhotoRecord
	if err := db.First(&record, "photo_number = ?", photoNumber).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.CatalogStatus != enums.CatalogStatusInactive || record.Version != 0 {
		t.Fatalf("expected rollback, got status=%s version=%d", record.CatalogStatus, record.Version)
	}
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return context.DeadlineExceeded
}
