package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

type objectLister interface {
	ListKeys(ctx context.Context, prefix string) ([]s3.ObjectInfo, error)
}

// OrphanScanResult summarizes one pass over records versus stored objects.
type OrphanScanResult struct {
	MissingObjects int
	UnknownObjects int
}

// Service surfaces discrepancies and storage-orphan findings for human
// review. It is read-only with respect to photo records and claims.
type Service struct {
	findings *Repository
	records  *inventory.Repository
	store    objectLister
	prefix   string
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the conflict/orphan reporter.
func NewService(findings *Repository, records *inventory.Repository, store objectLister, prefix string, logg *logger.Logger) (*Service, error) {
	if findings == nil {
		return nil, fmt.Errorf("discrepancy repository required")
	}
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &Service{
		findings: findings,
		records:  records,
		store:    store,
		prefix:   prefix,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// ListBySeverity returns the open findings of one severity, oldest first.
func (s *Service) ListBySeverity(ctx context.Context, severity enums.DiscrepancySeverity, limit int) ([]models.Discrepancy, error) {
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid severity %q", severity)
	}
	return s.findings.ListBySeverity(ctx, severity, limit)
}

// ListOpen returns every open finding, critical first.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]models.Discrepancy, error) {
	return s.findings.ListOpen(ctx, limit)
}

// Acknowledge clears the finding from the review queue.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, by string) error {
	return s.findings.Acknowledge(ctx, id, by, s.now())
}

// ScanOrphans diffs photo records against the object store in both
// directions. Records pointing at nothing and objects pointed at by nothing
// are filed as warnings; nothing is ever deleted.
func (s *Service) ScanOrphans(ctx context.Context) (OrphanScanResult, error) {
	var result OrphanScanResult
	if s.store == nil {
		return result, fmt.Errorf("object store not configured")
	}

	recordKeys, err := s.records.AllStorageKeys(ctx)
	if err != nil {
		return result, err
	}

	objects, err := s.store.ListKeys(ctx, s.prefix)
	if err != nil {
		return result, err
	}
	stored := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		stored[obj.Key] = struct{}{}
	}

	for photoNumber, key := range recordKeys {
		if _, ok := stored[key]; ok {
			continue
		}
		result.MissingObjects++
		detail := fmt.Sprintf("storage key %q has no object in the bucket", key)
		if err := s.findings.RecordFinding(ctx, enums.DiscrepancyKindMissingObject, enums.DiscrepancySeverityWarning, photoNumber, detail); err != nil {
			return result, err
		}
	}

	// Records with no key at all can never resolve; same bucket of findings.
	keyless, err := s.records.ListMissingStorage(ctx)
	if err != nil {
		return result, err
	}
	for _, photoNumber := range keyless {
		result.MissingObjects++
		if err := s.findings.RecordFinding(ctx, enums.DiscrepancyKindMissingObject, enums.DiscrepancySeverityWarning, photoNumber, "record has no storage key"); err != nil {
			return result, err
		}
	}

	known := make(map[string]struct{}, len(recordKeys))
	for _, key := range recordKeys {
		known[key] = struct{}{}
	}
	for _, obj := range objects {
		if _, ok := known[obj.Key]; ok {
			continue
		}
		result.UnknownObjects++
		detail := fmt.Sprintf("object %q (%d bytes) has no photo record", obj.Key, obj.SizeBytes)
		if err := s.findings.RecordFinding(ctx, enums.DiscrepancyKindUnknownObject, enums.DiscrepancySeverityWarning, s3.PhotoNumberFromKey(obj.Key), detail); err != nil {
			return result, err
		}
	}

	if s.logg != nil {
		fields := map[string]any{
			"missing_objects": result.MissingObjects,
			"unknown_objects": result.UnknownObjects,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "orphan scan complete")
	}
	return result, nil
}
