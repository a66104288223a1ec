package cron

import (
	"context"
	"fmt"

	"github.com/sunshinecowhides/gallery-backend/internal/reporter"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type orphanScanner interface {
	ScanOrphans(ctx context.Context) (reporter.OrphanScanResult, error)
}

// OrphanScanJobParams configure the storage orphan scan job.
type OrphanScanJobParams struct {
	Logger   *logger.Logger
	Reporter orphanScanner
}

// NewOrphanScanJob diffs photo records against the bucket on a schedule.
func NewOrphanScanJob(params OrphanScanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reporter == nil {
		return nil, fmt.Errorf("reporter required")
	}
	return &orphanScanJob{logg: params.Logger, reporter: params.Reporter}, nil
}

type orphanScanJob struct {
	logg     *logger.Logger
	reporter orphanScanner
}

func (j *orphanScanJob) Name() string { return "orphan-scan" }

func (j *orphanScanJob) Run(ctx context.Context) error {
	result, err := j.reporter.ScanOrphans(ctx)
	if err != nil {
		return fmt.Errorf("orphan scan: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"missing_objects": result.MissingObjects,
		"unknown_objects": result.UnknownObjects,
	})
	j.logg.Info(logCtx, "orphan scan finished")
	return nil
}
