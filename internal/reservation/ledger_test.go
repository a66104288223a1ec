package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:claims_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PhotoRecord{}, &models.ReservationClaim{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// AutoMigrate cannot express the partial index the migrations create.
	err = db.Exec(`CREATE UNIQUE INDEX ux_reservation_claims_active_photo
		ON reservation_claims (photo_number) WHERE status = 'active'`).Error
	if err != nil {
		t.Fatalf("create partial index: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T, db *gorm.DB) *Ledger {
	t.Helper()
	cfg := config.ClaimsConfig{
		DefaultTTL: 30 * time.Minute,
		MaxTTL:     4 * time.Hour,
	}
	ledger, err := NewLedger(NewRepository(db), gormTxRunner{db: db}, cfg, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

func seedPhoto(t *testing.T, db *gorm.DB, photoNumber string, catalog enums.CatalogStatus) {
	t.Helper()
	key := "photos/" + photoNumber + ".jpg"
	record := &models.PhotoRecord{
		PhotoNumber:   photoNumber,
		LegacyStatus:  enums.LegacyStatusInStock,
		CatalogStatus: catalog,
		StorageKey:    &key,
		Category:      "brindle",
		Price:         decimal.NewFromInt(189),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed photo: %v", err)
	}
}

func TestClaimAndRelease(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "501", enums.CatalogStatusAvailable)

	claim, err := ledger.Claim(ctx, "501", "cart-a", enums.ClaimKindCart, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claim.Status != enums.ClaimStatusActive {
		t.Fatalf("expected active claim, got %s", claim.Status)
	}

	if _, err := ledger.Claim(ctx, "501", "cart-b", enums.ClaimKindCart, 30*time.Minute); err == nil {
		t.Fatal("expected second claim to fail")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := ledger.Release(ctx, "501", "cart-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Releasing again is an expected race, not an error.
	if err := ledger.Release(ctx, "501", "cart-a"); err != nil {
		t.Fatalf("repeat release: %v", err)
	}

	if _, err := ledger.Claim(ctx, "501", "cart-b", enums.ClaimKindCart, 30*time.Minute); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestClaimRejectsUnavailablePhoto(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "502", enums.CatalogStatusSold)

	_, err := ledger.Claim(ctx, "502", "cart-a", enums.ClaimKindCart, time.Minute)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	// Overrides bypass the availability gate.
	if _, err := ledger.Claim(ctx, "502", "admin:carla", enums.ClaimKindOverride, time.Minute); err != nil {
		t.Fatalf("override claim: %v", err)
	}
}

func TestClaimUnknownPhoto(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, newTestDB(t))
	_, err := ledger.Claim(context.Background(), "999", "cart-a", enums.ClaimKindCart, time.Minute)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClaimExpiresStaleClaimFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "503", enums.CatalogStatusAvailable)

	// Zero TTL: the claim lapses the instant it is written.
	stale, err := ledger.Claim(ctx, "503", "cart-a", enums.ClaimKindCart, 0)
	if err != nil {
		t.Fatalf("stale claim: %v", err)
	}

	fresh, err := ledger.Claim(ctx, "503", "cart-b", enums.ClaimKindCart, 30*time.Minute)
	if err != nil {
		t.Fatalf("fresh claim over stale: %v", err)
	}
	if fresh.HolderID != "cart-b" {
		t.Fatalf("unexpected holder: %s", fresh.HolderID)
	}

	var swept models.ReservationClaim
	if err := db.First(&swept, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("load stale claim: %v", err)
	}
	if swept.Status != enums.ClaimStatusExpired {
		t.Fatalf("expected stale claim expired, got %s", swept.Status)
	}
}

func TestExtend(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "504", enums.CatalogStatusAvailable)

	claim, err := ledger.Claim(ctx, "504", "cart-a", enums.ClaimKindCart, 10*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	extended, err := ledger.Extend(ctx, "504", "cart-a", time.Hour)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !extended.ExpiresAt.After(claim.ExpiresAt) {
		t.Fatalf("expiry did not move: %v -> %v", claim.ExpiresAt, extended.ExpiresAt)
	}

	_, err = ledger.Extend(ctx, "504", "cart-b", time.Hour)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for wrong holder, got %v", err)
	}
}

func TestExtendClampsToMaxTTL(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "505", enums.CatalogStatusAvailable)

	if _, err := ledger.Claim(ctx, "505", "cart-a", enums.ClaimKindCart, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	before := time.Now()
	extended, err := ledger.Extend(ctx, "505", "cart-a", 24*time.Hour)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if extended.ExpiresAt.After(before.Add(4*time.Hour + time.Minute)) {
		t.Fatalf("expiry exceeds max ttl: %v", extended.ExpiresAt)
	}
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "506", enums.CatalogStatusAvailable)
	seedPhoto(t, db, "507", enums.CatalogStatusAvailable)
	seedPhoto(t, db, "508", enums.CatalogStatusAvailable)

	if _, err := ledger.Claim(ctx, "506", "cart-a", enums.ClaimKindCart, 0); err != nil {
		t.Fatalf("claim 506: %v", err)
	}
	if _, err := ledger.Claim(ctx, "507", "cart-b", enums.ClaimKindCart, 0); err != nil {
		t.Fatalf("claim 507: %v", err)
	}
	if _, err := ledger.Claim(ctx, "508", "cart-c", enums.ClaimKindCart, time.Hour); err != nil {
		t.Fatalf("claim 508: %v", err)
	}

	swept, err := ledger.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(swept) != 2 {
		t.Fatalf("expected 2 swept photos, got %v", swept)
	}

	// Sweeping again finds nothing.
	swept, err = ledger.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(swept) != 0 {
		t.Fatalf("expected idempotent sweep, got %v", swept)
	}

	live, err := ledger.ActiveClaim(ctx, "508")
	if err != nil {
		t.Fatalf("active claim: %v", err)
	}
	if live.HolderID != "cart-c" {
		t.Fatalf("live claim lost: %+v", live)
	}
}

func TestPromoteTx(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "509", enums.CatalogStatusAvailable)

	if _, err := ledger.Claim(ctx, "509", "cart-a", enums.ClaimKindCart, time.Hour); err != nil {
		t.Fatalf("claim: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		claim, err := ledger.PromoteTx(ctx, tx, "509", "cart-a")
		if err != nil {
			return err
		}
		if claim.Status != enums.ClaimStatusPromoted {
			t.Fatalf("expected promoted, got %s", claim.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	// Promoted is terminal; a fresh hold on a sold photo must not appear.
	if _, err := ledger.ActiveClaim(ctx, "509"); err == nil {
		t.Fatal("expected no active claim after promotion")
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Serialize connections; the unique index is still the referee.
	sqlDB.SetMaxOpenConns(1)

	ledger := newTestLedger(t, db)
	ctx := context.Background()
	seedPhoto(t, db, "510", enums.CatalogStatusAvailable)

	const holders = 50
	var wg sync.WaitGroup
	results := make(chan error, holders)

	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := ledger.Claim(ctx, "510", "cart-"+uuid.NewString(), enums.ClaimKindCart, time.Hour)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			// Losers race an already-claimed photo, so the only acceptable
			// outcome is the claim-conflict code.
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeConflict {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicts++
		}
	}
	if wins != 1 || conflicts != holders-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", holders-1, wins, conflicts)
	}
}
