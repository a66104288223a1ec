package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (c *captureEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type fakeSaleRecorder struct {
	calls []string
	err   error
}

func (f *fakeSaleRecorder) RecordSale(_ context.Context, photoNumber, _ string) error {
	f.calls = append(f.calls, photoNumber)
	return f.err
}

type harness struct {
	db      *gorm.DB
	svc     *Service
	ledger  *reservation.Ledger
	events  *captureEmitter
	cdeSale *fakeSaleRecorder
	records *inventory.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
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

	runner := gormTxRunner{db: db}
	records := inventory.NewRepository(db)
	ledger, err := reservation.NewLedger(reservation.NewRepository(db), runner, config.ClaimsConfig{MaxTTL: 4 * time.Hour}, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	events := &captureEmitter{}
	project, err := availability.NewService(records, ledger, runner, events, nil, nil)
	if err != nil {
		t.Fatalf("new projector: %v", err)
	}
	cdeSale := &fakeSaleRecorder{}
	svc, err := NewService(ledger, records, project, runner, events, cdeSale, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &harness{db: db, svc: svc, ledger: ledger, events: events, cdeSale: cdeSale, records: records}
}

func (h *harness) seedClaimedPhoto(t *testing.T, photoNumber, holderID string) {
	t.Helper()
	key := "photos/" + photoNumber + ".jpg"
	record := &models.PhotoRecord{
		PhotoNumber:   photoNumber,
		LegacyStatus:  enums.LegacyStatusInStock,
		CatalogStatus: enums.CatalogStatusAvailable,
		StorageKey:    &key,
		Category:      "speckled",
		Price:         decimal.NewFromInt(279),
	}
	if err := h.db.Create(record).Error; err != nil {
		t.Fatalf("seed photo: %v", err)
	}
	if _, err := h.ledger.Claim(context.Background(), photoNumber, holderID, enums.ClaimKindCart, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}
}

func TestConfirmSale(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.seedClaimedPhoto(t, "901", "cart-a")

	claim, err := h.svc.ConfirmSale(ctx, "901", "cart-a")
	if err != nil {
		t.Fatalf("confirm sale: %v", err)
	}
	if claim.Status != enums.ClaimStatusPromoted {
		t.Fatalf("expected promoted claim, got %s", claim.Status)
	}

	record, err := h.records.Get(ctx, "901")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.CatalogStatus != enums.CatalogStatusSold || record.LegacyStatus != enums.LegacyStatusSold {
		t.Fatalf("unexpected record: catalog=%s legacy=%s", record.CatalogStatus, record.LegacyStatus)
	}

	var types []enums.OutboxEventType
	for _, event := range h.events.events {
		types = append(types, event.EventType)
	}
	if len(types) != 2 || types[0] != enums.EventPhotoStatusChanged || types[1] != enums.EventPhotoSold {
		t.Fatalf("unexpected events: %v", types)
	}

	if len(h.cdeSale.calls) != 1 || h.cdeSale.calls[0] != "901" {
		t.Fatalf("expected cde write-back, got %v", h.cdeSale.calls)
	}
}

func TestConfirmSaleWrongHolder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.seedClaimedPhoto(t, "902", "cart-a")

	_, err := h.svc.ConfirmSale(ctx, "902", "cart-b")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	// Nothing moved.
	record, gerr := h.records.Get(ctx, "902")
	if gerr != nil {
		t.Fatalf("get record: %v", gerr)
	}
	if record.CatalogStatus != enums.CatalogStatusAvailable {
		t.Fatalf("record mutated on failed sale: %s", record.CatalogStatus)
	}
	if len(h.cdeSale.calls) != 0 {
		t.Fatalf("cde write-back on failed sale: %v", h.cdeSale.calls)
	}
}

func TestConfirmSaleSurvivesLegacyWriteBackFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.seedClaimedPhoto(t, "903", "cart-a")
	h.cdeSale.err = errors.New("cde timeout")

	if _, err := h.svc.ConfirmSale(ctx, "903", "cart-a"); err != nil {
		t.Fatalf("confirm sale must not fail on write-back: %v", err)
	}

	record, err := h.records.Get(ctx, "903")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.CatalogStatus != enums.CatalogStatusSold {
		t.Fatalf("expected sold, got %s", record.CatalogStatus)
	}
}
