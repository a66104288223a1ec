package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger manages the claim lifecycle: none → active → promoted, released or
// expired. Double claims are impossible by construction; the insert rides on
// the active-claim unique index rather than a read-then-write.
type Ledger struct {
	repo     *Repository
	dbClient txRunner
	cfg      config.ClaimsConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewLedger constructs the reservation ledger.
func NewLedger(repo *Repository, dbClient txRunner, cfg config.ClaimsConfig, logg *logger.Logger) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &Ledger{
		repo:     repo,
		dbClient: dbClient,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Claim places a hold on the photo for the holder. A zero TTL creates a claim
// that is already lapsed, which some flows use to pre-stage a sweep. Returns
// CodeConflict when another holder has the photo.
func (l *Ledger) Claim(ctx context.Context, photoNumber, holderID string, kind enums.ClaimKind, ttl time.Duration) (*models.ReservationClaim, error) {
	if photoNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo number is required")
	}
	if holderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holder id is required")
	}
	if ttl < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ttl cannot be negative")
	}
	if l.cfg.MaxTTL > 0 && ttl > l.cfg.MaxTTL {
		ttl = l.cfg.MaxTTL
	}

	now := l.now()
	claim := &models.ReservationClaim{
		ID:          uuid.New(),
		PhotoNumber: photoNumber,
		HolderID:    holderID,
		Kind:        kind,
		Status:      enums.ClaimStatusActive,
		ClaimedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	err := l.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		// A lapsed claim nobody swept yet must not block a fresh hold.
		if err := repo.ExpireStale(ctx, photoNumber, now); err != nil {
			return err
		}

		var record models.PhotoRecord
		if err := tx.First(&record, "photo_number = ?", photoNumber).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "photo not found")
			}
			return err
		}
		if kind != enums.ClaimKindOverride {
			switch record.CatalogStatus {
			case enums.CatalogStatusSold, enums.CatalogStatusInactive:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "photo is not available")
			}
		}

		return repo.Insert(ctx, claim)
	})
	if err != nil {
		return nil, err
	}

	if l.logg != nil {
		logCtx := l.logg.WithHolderID(l.logg.WithPhotoNumber(ctx, photoNumber), holderID)
		l.logg.Info(logCtx, "claim placed")
	}
	return claim, nil
}

// Release drops the holder's claim. Releasing a claim that is already gone is
// an expected race in cart abandonment, so absence is a silent no-op.
func (l *Ledger) Release(ctx context.Context, photoNumber, holderID string) error {
	now := l.now()
	return l.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		claim, err := repo.ActiveClaimByHolder(ctx, photoNumber, holderID, now)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return repo.Transition(ctx, claim.ID, enums.ClaimStatusReleased, now)
	})
}

// Extend pushes the expiry of the holder's live claim out to now + ttl.
func (l *Ledger) Extend(ctx context.Context, photoNumber, holderID string, ttl time.Duration) (*models.ReservationClaim, error) {
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ttl must be positive")
	}
	if l.cfg.MaxTTL > 0 && ttl > l.cfg.MaxTTL {
		ttl = l.cfg.MaxTTL
	}

	now := l.now()
	var claim *models.ReservationClaim
	err := l.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		found, err := repo.ActiveClaimByHolder(ctx, photoNumber, holderID, now)
		if err != nil {
			return err
		}
		expiresAt := now.Add(ttl)
		if err := repo.ExtendExpiry(ctx, found.ID, expiresAt); err != nil {
			return err
		}
		found.ExpiresAt = expiresAt
		claim = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// PromoteTx flips the holder's active claim to promoted inside the caller's
// checkout transaction. Promoted is terminal; the photo is sold.
func (l *Ledger) PromoteTx(ctx context.Context, tx *gorm.DB, photoNumber, holderID string) (*models.ReservationClaim, error) {
	now := l.now()
	repo := l.repo.WithTx(tx)
	claim, err := repo.ActiveClaimByHolder(ctx, photoNumber, holderID, now)
	if err != nil {
		return nil, err
	}
	if err := repo.Transition(ctx, claim.ID, enums.ClaimStatusPromoted, now); err != nil {
		return nil, err
	}
	claim.Status = enums.ClaimStatusPromoted
	return claim, nil
}

// SweepExpired expires every lapsed active claim and returns the affected
// photo numbers so the caller can re-project them. Safe to run from several
// worker instances at once; each row transition is guarded on still-active.
func (l *Ledger) SweepExpired(ctx context.Context) ([]string, error) {
	now := l.now()
	var photoNumbers []string
	err := l.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		lapsed, err := repo.LapsedClaims(ctx, now, 0)
		if err != nil {
			return err
		}
		for _, claim := range lapsed {
			err := repo.Transition(ctx, claim.ID, enums.ClaimStatusExpired, now)
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue // another sweeper got it first
			}
			if err != nil {
				return err
			}
			photoNumbers = append(photoNumbers, claim.PhotoNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.logg != nil && len(photoNumbers) > 0 {
		l.logg.Info(l.logg.WithField(ctx, "swept", len(photoNumbers)), "expired claims swept")
	}
	return photoNumbers, nil
}

// ActiveExists reports whether any live claim holds the photo. Pass the
// surrounding transaction when calling from inside one.
func (l *Ledger) ActiveExists(ctx context.Context, tx *gorm.DB, photoNumber string, now time.Time) (bool, error) {
	repo := l.repo
	if tx != nil {
		repo = l.repo.WithTx(tx)
	}
	return repo.ActiveExists(ctx, photoNumber, now)
}

// ActiveClaim returns the live claim on a photo, if any.
func (l *Ledger) ActiveClaim(ctx context.Context, photoNumber string) (*models.ReservationClaim, error) {
	return l.repo.ActiveClaim(ctx, photoNumber, l.now())
}

// HolderClaims lists the live claims a holder currently has.
func (l *Ledger) HolderClaims(ctx context.Context, holderID string) ([]models.ReservationClaim, error) {
	return l.repo.ListByHolder(ctx, holderID, l.now())
}
