package checkout

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type saleRecorder interface {
	RecordSale(ctx context.Context, photoNumber, buyerRef string) error
}

// Service turns an active claim into a confirmed sale. The local transition
// is atomic; telling CDE about the sale is best effort and retried by the
// storefront caller, never blocking the buyer's confirmation.
type Service struct {
	ledger   *reservation.Ledger
	records  *inventory.Repository
	project  *availability.Service
	dbClient txRunner
	events   eventEmitter
	legacy   saleRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the checkout service.
func NewService(ledger *reservation.Ledger, records *inventory.Repository, project *availability.Service, dbClient txRunner, events eventEmitter, legacy saleRecorder, logg *logger.Logger) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("reservation ledger required")
	}
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if project == nil {
		return nil, fmt.Errorf("availability service required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &Service{
		ledger:   ledger,
		records:  records,
		project:  project,
		dbClient: dbClient,
		events:   events,
		legacy:   legacy,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// ConfirmSale promotes the holder's claim and moves the photo to sold in one
// transaction, then emits photo.sold and pushes the sale to CDE best effort.
// Returns CodeNotFound when the holder has no live claim on the photo.
func (s *Service) ConfirmSale(ctx context.Context, photoNumber, holderID string) (*models.ReservationClaim, error) {
	var (
		claim   *models.ReservationClaim
		outcome availability.Outcome
	)
	soldAt := s.now()

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		promoted, err := s.ledger.PromoteTx(ctx, tx, photoNumber, holderID)
		if err != nil {
			return err
		}
		claim = promoted

		// The sale is local truth the moment the claim promotes; CDE hears
		// about it right after commit.
		if err := s.records.WithTx(tx).SetLegacyStatus(ctx, photoNumber, enums.LegacyStatusSold); err != nil {
			return err
		}

		outcome, err = s.project.ApplyTx(ctx, tx, photoNumber)
		if err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPhotoSold,
			AggregateType: enums.AggregatePhoto,
			AggregateID:   photoNumber,
			Data: payloads.PhotoSoldEvent{
				PhotoNumber: photoNumber,
				HolderID:    holderID,
				SoldAt:      soldAt.UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if outcome.Changed {
		s.project.Invalidate(ctx, photoNumber)
	}

	if s.legacy != nil {
		if err := s.legacy.RecordSale(ctx, photoNumber, holderID); err != nil && s.logg != nil {
			logCtx := s.logg.WithHolderID(s.logg.WithPhotoNumber(ctx, photoNumber), holderID)
			s.logg.Warn(logCtx, "cde sale write-back failed, caller should retry: "+err.Error())
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithHolderID(s.logg.WithPhotoNumber(ctx, photoNumber), holderID)
		s.logg.Info(logCtx, "sale confirmed")
	}
	return claim, nil
}
