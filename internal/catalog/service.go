package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type urlResolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

type listingCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GalleryListingKey(category string) string
}

// PhotoListing is one gallery entry as the storefront renders it.
type PhotoListing struct {
	PhotoNumber string              `json:"photoNumber"`
	Category    string              `json:"category"`
	Price       decimal.Decimal     `json:"price"`
	Status      enums.CatalogStatus `json:"status"`
	ImageURL    string              `json:"imageUrl,omitempty"`
}

// PhotoDetail is a single photo with its live availability.
type PhotoDetail struct {
	PhotoListing
	LastReconciledAt *time.Time `json:"lastReconciledAt,omitempty"`
}

const listingCacheTTL = 2 * time.Minute

// Service serves the storefront's read path. It only ever reads catalog
// status; every mutation goes through the ledger or the reconcile engine.
type Service struct {
	records *inventory.Repository
	store   urlResolver
	cache   listingCache
	logg    *logger.Logger
}

// NewService constructs the catalog read service.
func NewService(records *inventory.Repository, store urlResolver, cache listingCache, logg *logger.Logger) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("url resolver required")
	}
	return &Service{records: records, store: store, cache: cache, logg: logg}, nil
}

// ListAvailable returns the sellable gallery for a category, cached briefly
// in Redis. Cache misses and cache errors both fall through to the database.
func (s *Service) ListAvailable(ctx context.Context, category string, limit int) ([]PhotoListing, error) {
	if s.cache != nil {
		key := s.cache.GalleryListingKey(category)
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var listings []PhotoListing
			if err := json.Unmarshal([]byte(cached), &listings); err == nil {
				return listings, nil
			}
		}
	}

	rows, err := s.records.ListByCatalogStatus(ctx, enums.CatalogStatusAvailable, category, limit)
	if err != nil {
		return nil, err
	}

	listings := make([]PhotoListing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, s.toListing(ctx, row))
	}

	if s.cache != nil {
		key := s.cache.GalleryListingKey(category)
		if payload, err := json.Marshal(listings); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), listingCacheTTL); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "gallery cache write failed: "+err.Error())
			}
		}
	}
	return listings, nil
}

// GetPhoto returns one photo with a freshly signed image URL.
func (s *Service) GetPhoto(ctx context.Context, photoNumber string) (*PhotoDetail, error) {
	record, err := s.records.Get(ctx, photoNumber)
	if err != nil {
		return nil, err
	}
	detail := &PhotoDetail{
		PhotoListing:     s.toListing(ctx, *record),
		LastReconciledAt: record.LastReconciledAt,
	}
	return detail, nil
}

func (s *Service) toListing(ctx context.Context, record models.PhotoRecord) PhotoListing {
	listing := PhotoListing{
		PhotoNumber: record.PhotoNumber,
		Category:    record.Category,
		Price:       record.Price,
		Status:      record.CatalogStatus,
	}
	if record.HasStorage() {
		url, err := s.store.Resolve(ctx, *record.StorageKey)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithPhotoNumber(ctx, record.PhotoNumber), "image url resolve failed: "+err.Error())
			}
		} else {
			listing.ImageURL = url
		}
	}
	return listing
}
