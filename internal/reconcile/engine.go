package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/pkg/cde"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

type legacyReader interface {
	FetchStatuses(ctx context.Context, photoNumbers []string) (map[string]cde.Row, error)
	FetchAll(ctx context.Context) ([]cde.Row, error)
}

type claimLookup interface {
	ActiveClaim(ctx context.Context, photoNumber string) (*models.ReservationClaim, error)
}

type projector interface {
	Apply(ctx context.Context, photoNumber string) (availability.Outcome, error)
}

type findingRecorder interface {
	RecordFinding(ctx context.Context, kind enums.DiscrepancyKind, severity enums.DiscrepancySeverity, photoNumber, detail string) error
}

type objectLister interface {
	ListKeys(ctx context.Context, prefix string) ([]s3.ObjectInfo, error)
}

// Summary reports what one reconcile pass did.
type Summary struct {
	Scanned       int
	Updated       int
	Created       int
	Bound         int
	Discrepancies int
	Skipped       int
}

// Engine periodically diffs CDE truth against local records and claims. CDE
// is authoritative for legacy status; local claims are authoritative for
// reservation state; neither side ever overwrites the other's domain.
type Engine struct {
	records  *inventory.Repository
	legacy   legacyReader
	claims   claimLookup
	project  projector
	findings findingRecorder
	store    objectLister
	prefix   string
	cfg      config.ReconcileConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewEngine constructs the reconciliation engine.
func NewEngine(records *inventory.Repository, legacy legacyReader, claims claimLookup, project projector, findings findingRecorder, store objectLister, prefix string, cfg config.ReconcileConfig, logg *logger.Logger) (*Engine, error) {
	if records == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if legacy == nil {
		return nil, fmt.Errorf("legacy reader required")
	}
	if claims == nil {
		return nil, fmt.Errorf("claim lookup required")
	}
	if project == nil {
		return nil, fmt.Errorf("projector required")
	}
	if findings == nil {
		return nil, fmt.Errorf("finding recorder required")
	}
	if store == nil {
		return nil, fmt.Errorf("object lister required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Engine{
		records:  records,
		legacy:   legacy,
		claims:   claims,
		project:  project,
		findings: findings,
		store:    store,
		prefix:   prefix,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Run executes one full reconcile pass: scan every local record against CDE,
// then pick up photos CDE knows about that the catalog does not. Connectivity
// failures skip the affected photos and surface in the returned error without
// touching their stored legacy status.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		errs    error
	)

	seen := make(map[string]struct{})
	cursor := ""
	for {
		batch, err := e.records.ListBatch(ctx, cursor, e.cfg.BatchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}
		cursor = batch[len(batch)-1].PhotoNumber

		numbers := make([]string, 0, len(batch))
		for _, record := range batch {
			numbers = append(numbers, record.PhotoNumber)
			seen[record.PhotoNumber] = struct{}{}
		}

		rows, err := e.legacy.FetchStatuses(ctx, numbers)
		if err != nil {
			// Transient CDE outage: keep prior legacy statuses, retry next cycle.
			summary.Skipped += len(batch)
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cde fetch failed"))
			if e.logg != nil {
				e.logg.Warn(ctx, "cde fetch failed, skipping batch: "+err.Error())
			}
			continue
		}

		for _, record := range batch {
			if err := e.reconcileOne(ctx, record, rows, &summary); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	if err := e.discover(ctx, seen, &summary); err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := e.bindStorage(ctx, &summary); err != nil {
		errs = multierr.Append(errs, err)
	}

	if e.logg != nil {
		fields := map[string]any{
			"scanned":       summary.Scanned,
			"updated":       summary.Updated,
			"created":       summary.Created,
			"bound":         summary.Bound,
			"discrepancies": summary.Discrepancies,
			"skipped":       summary.Skipped,
		}
		e.logg.Info(e.logg.WithFields(ctx, fields), "reconcile pass complete")
	}
	return summary, errs
}

func (e *Engine) reconcileOne(ctx context.Context, record models.PhotoRecord, rows map[string]cde.Row, summary *Summary) error {
	summary.Scanned++
	photoNumber := record.PhotoNumber

	row, known := rows[photoNumber]
	observed := enums.LegacyStatusUnknown
	if known {
		observed = row.Status
	}

	claim, err := e.claims.ActiveClaim(ctx, photoNumber)
	if typed := pkgerrors.As(err); err != nil && (typed == nil || typed.Code() != pkgerrors.CodeNotFound) {
		return err
	}

	// CDE closed the photo out while a local hold we don't recognize is live.
	// Flag it; never clear a claim the system doesn't understand.
	if claim != nil && observed == enums.LegacyStatusSold {
		if row.HolderRef == nil || *row.HolderRef != claim.HolderID {
			detail := fmt.Sprintf("cde reports %s while holder %q has an active claim", row.RawStatus, claim.HolderID)
			if err := e.findings.RecordFinding(ctx, enums.DiscrepancyKindClaimConflict, enums.DiscrepancySeverityCritical, photoNumber, detail); err != nil {
				return err
			}
			summary.Discrepancies++
		}
	}

	if record.CatalogStatus == enums.CatalogStatusAvailable && observed != enums.LegacyStatusInStock {
		detail := fmt.Sprintf("catalog shows available while cde reports %q", row.RawStatus)
		if err := e.findings.RecordFinding(ctx, enums.DiscrepancyKindPhantomAvailable, enums.DiscrepancySeverityCritical, photoNumber, detail); err != nil {
			return err
		}
		summary.Discrepancies++
	}

	if observed != record.LegacyStatus {
		if err := e.records.SetLegacyStatus(ctx, photoNumber, observed); err != nil {
			return err
		}
		if _, err := e.project.Apply(ctx, photoNumber); err != nil {
			return err
		}
		summary.Updated++
	}

	return e.records.MarkReconciled(ctx, photoNumber, e.now())
}

// discover creates local records for photos CDE stocks that the catalog has
// never seen. New photos start inactive pending a storage check; unknown
// stock is never defaulted to available.
func (e *Engine) discover(ctx context.Context, seen map[string]struct{}, summary *Summary) error {
	rows, err := e.legacy.FetchAll(ctx)
	if err != nil {
		if e.logg != nil {
			e.logg.Warn(ctx, "cde discovery fetch failed: "+err.Error())
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cde discovery failed")
	}

	for _, row := range rows {
		if row.PhotoNumber == "" {
			continue
		}
		if _, ok := seen[row.PhotoNumber]; ok {
			continue
		}
		if row.Status != enums.LegacyStatusInStock {
			continue
		}
		created, err := e.records.CreateIfAbsent(ctx, &models.PhotoRecord{
			PhotoNumber:   row.PhotoNumber,
			LegacyStatus:  row.Status,
			CatalogStatus: enums.CatalogStatusInactive,
		})
		if err != nil {
			return err
		}
		if created {
			summary.Created++
			if e.logg != nil {
				e.logg.Info(e.logg.WithPhotoNumber(ctx, row.PhotoNumber), "discovered new photo from cde")
			}
		}
	}
	return nil
}

// bindStorage attaches bucket objects to records that have no storage key,
// then reprojects them so a discovered photo whose image is already uploaded
// can reach the gallery. A listing failure is transient like a CDE outage:
// keyless records simply wait for the next pass.
func (e *Engine) bindStorage(ctx context.Context, summary *Summary) error {
	keyless, err := e.records.ListMissingStorage(ctx)
	if err != nil {
		return err
	}
	if len(keyless) == 0 {
		return nil
	}

	objects, err := e.store.ListKeys(ctx, e.prefix)
	if err != nil {
		if e.logg != nil {
			e.logg.Warn(ctx, "storage listing failed, keeping records keyless: "+err.Error())
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage listing failed")
	}
	byNumber := make(map[string]string, len(objects))
	for _, obj := range objects {
		byNumber[s3.PhotoNumberFromKey(obj.Key)] = obj.Key
	}

	for _, photoNumber := range keyless {
		key, ok := byNumber[photoNumber]
		if !ok {
			continue
		}
		record, err := e.records.Get(ctx, photoNumber)
		if err != nil {
			return err
		}
		record.StorageKey = &key
		if err := e.records.Upsert(ctx, record); err != nil {
			return err
		}
		if _, err := e.project.Apply(ctx, photoNumber); err != nil {
			return err
		}
		summary.Bound++
		if e.logg != nil {
			e.logg.Info(e.logg.WithPhotoNumber(ctx, photoNumber), "bound stored image to photo record")
		}
	}
	return nil
}
