package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
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

// OverrideInput describes a supervised manual catalog override.
type OverrideInput struct {
	PhotoNumber  string
	ForcedStatus enums.CatalogStatus
	Subject      string
	Reason       string
}

// Service handles the supervised override path. Forcing a catalog status is
// never a silent field edit: any live claim is released on the record, a
// forced reservation is written as an override claim, and the whole action
// lands in the outbox under the admin's subject.
type Service struct {
	records  *inventory.Repository
	claims   *reservation.Repository
	project  *availability.Service
	dbClient txRunner
	events   eventEmitter
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the admin override service.
func NewService(records *inventory.Repository, claims *reservation.Repository, project *availability.Service, dbClient txRunner, events eventEmitter, logg *logger.Logger) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if claims == nil {
		return nil, fmt.Errorf("reservation repository required")
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
		records:  records,
		claims:   claims,
		project:  project,
		dbClient: dbClient,
		events:   events,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Override forces the photo into the requested catalog status.
func (s *Service) Override(ctx context.Context, input OverrideInput) error {
	if input.PhotoNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "photo number is required")
	}
	if input.Subject == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "admin subject is required")
	}
	if !input.ForcedStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid catalog status %q", input.ForcedStatus))
	}

	now := s.now()
	holder := "admin:" + input.Subject

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		records := s.records.WithTx(tx)
		claims := s.claims.WithTx(tx)

		record, err := records.Get(ctx, input.PhotoNumber)
		if err != nil {
			return err
		}

		// Audited unclaim: whoever held the photo loses it to the override.
		live, err := claims.ActiveClaim(ctx, input.PhotoNumber, now)
		if typed := pkgerrors.As(err); err != nil && (typed == nil || typed.Code() != pkgerrors.CodeNotFound) {
			return err
		}
		if live != nil {
			if err := claims.Transition(ctx, live.ID, enums.ClaimStatusReleased, now); err != nil {
				return err
			}
		}

		// Audited claim: a forced reservation is held by the admin, expiring
		// like any other claim rather than lingering forever.
		if input.ForcedStatus == enums.CatalogStatusReserved {
			if err := claims.Insert(ctx, &models.ReservationClaim{
				ID:          uuid.New(),
				PhotoNumber: input.PhotoNumber,
				HolderID:    holder,
				Kind:        enums.ClaimKindOverride,
				Status:      enums.ClaimStatusActive,
				ClaimedAt:   now,
				ExpiresAt:   now.Add(4 * time.Hour),
			}); err != nil {
				return err
			}
		}

		if record.CatalogStatus != input.ForcedStatus {
			if err := records.SetCatalogStatus(ctx, input.PhotoNumber, input.ForcedStatus, record.Version); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPhotoOverrideApplied,
			AggregateType: enums.AggregatePhoto,
			AggregateID:   input.PhotoNumber,
			Actor:         &outbox.ActorRef{Subject: input.Subject, Kind: "admin"},
			Data: payloads.PhotoOverrideAppliedEvent{
				PhotoNumber:  input.PhotoNumber,
				ForcedStatus: input.ForcedStatus,
				Subject:      input.Subject,
				Reason:       input.Reason,
				AppliedAt:    now.UTC(),
			},
		})
	})
	if err != nil {
		return err
	}

	s.project.Invalidate(ctx, input.PhotoNumber)

	if s.logg != nil {
		logCtx := s.logg.WithAdminSubject(s.logg.WithPhotoNumber(ctx, input.PhotoNumber), input.Subject)
		s.logg.Info(logCtx, "catalog override applied")
	}
	return nil
}

// ReleaseClaim force-releases whatever claim holds the photo, as an audited
// admin action. Absence is a no-op.
func (s *Service) ReleaseClaim(ctx context.Context, photoNumber, subject, reason string) error {
	if subject == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "admin subject is required")
	}
	now := s.now()

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		claims := s.claims.WithTx(tx)
		live, err := claims.ActiveClaim(ctx, photoNumber, now)
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := claims.Transition(ctx, live.ID, enums.ClaimStatusReleased, now); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPhotoOverrideApplied,
			AggregateType: enums.AggregateClaim,
			AggregateID:   photoNumber,
			Actor:         &outbox.ActorRef{Subject: subject, Kind: "admin"},
			Data: payloads.PhotoOverrideAppliedEvent{
				PhotoNumber:  photoNumber,
				ForcedStatus: "",
				Subject:      subject,
				Reason:       reason,
				AppliedAt:    now.UTC(),
			},
		})
	})
	if err != nil {
		return err
	}

	// Re-derive the projection now that the hold is gone.
	if _, err := s.project.Apply(ctx, photoNumber); err != nil {
		return err
	}
	return nil
}
