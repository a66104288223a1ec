package availability

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type claimReader interface {
	ActiveExists(ctx context.Context, tx *gorm.DB, photoNumber string, now time.Time) (bool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cacheInvalidator interface {
	InvalidateGalleryCache(ctx context.Context, category, photoNumber string) error
}

// Outcome reports what a projection pass did to one photo.
type Outcome struct {
	PhotoNumber string
	Category    string
	OldStatus   enums.CatalogStatus
	NewStatus   enums.CatalogStatus
	Changed     bool
}

// Service recomputes and persists catalog statuses. It is the only writer of
// the catalog_status column.
type Service struct {
	records  *inventory.Repository
	claims   claimReader
	dbClient txRunner
	events   eventEmitter
	cache    cacheInvalidator
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the availability projector.
func NewService(records *inventory.Repository, claims claimReader, dbClient txRunner, events eventEmitter, cache cacheInvalidator, logg *logger.Logger) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if claims == nil {
		return nil, fmt.Errorf("claim reader required")
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
		dbClient: dbClient,
		events:   events,
		cache:    cache,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Apply recomputes the catalog status for one photo in its own transaction
// and invalidates the gallery cache when the status moved.
func (s *Service) Apply(ctx context.Context, photoNumber string) (Outcome, error) {
	var outcome Outcome
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		outcome, terr = s.ApplyTx(ctx, tx, photoNumber)
		return terr
	})
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Changed {
		s.invalidate(ctx, photoNumber)
	}
	return outcome, nil
}

// ApplyTx recomputes the catalog status inside the caller's transaction. The
// caller is responsible for cache invalidation after commit.
func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, photoNumber string) (Outcome, error) {
	records := s.records.WithTx(tx)

	record, err := records.Get(ctx, photoNumber)
	if err != nil {
		return Outcome{}, err
	}

	hasClaim, err := s.claims.ActiveExists(ctx, tx, photoNumber, s.now())
	if err != nil {
		return Outcome{}, err
	}

	next, err := Project(record.LegacyStatus, hasClaim, record.HasStorage())
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		PhotoNumber: photoNumber,
		Category:    record.Category,
		OldStatus:   record.CatalogStatus,
		NewStatus:   next,
		Changed:     next != record.CatalogStatus,
	}
	if !outcome.Changed {
		return outcome, nil
	}

	if err := records.SetCatalogStatus(ctx, photoNumber, next, record.Version); err != nil {
		return Outcome{}, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPhotoStatusChanged,
		AggregateType: enums.AggregatePhoto,
		AggregateID:   photoNumber,
		Data: payloads.PhotoStatusChangedEvent{
			PhotoNumber: photoNumber,
			Category:    record.Category,
			OldStatus:   record.CatalogStatus,
			NewStatus:   next,
			ChangedAt:   s.now().UTC(),
		},
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return Outcome{}, err
	}

	return outcome, nil
}

// Invalidate drops cached gallery listings for the photo. Safe to call after
// an external commit; failures are logged and swallowed.
func (s *Service) Invalidate(ctx context.Context, photoNumber string) {
	s.invalidate(ctx, photoNumber)
}

func (s *Service) invalidate(ctx context.Context, photoNumber string) {
	if s.cache == nil {
		return
	}
	record, err := s.records.Get(ctx, photoNumber)
	category := ""
	if err == nil {
		category = record.Category
	}
	if err := s.cache.InvalidateGalleryCache(ctx, category, photoNumber); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithPhotoNumber(ctx, photoNumber), "gallery cache invalidation failed: "+err.Error())
	}
}
