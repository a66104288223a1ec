package cron

import (
	"context"
	"fmt"

	"github.com/sunshinecowhides/gallery-backend/internal/reconcile"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type reconcileRunner interface {
	Run(ctx context.Context) (reconcile.Summary, error)
}

// ReconcileJobParams configure the legacy-diff job.
type ReconcileJobParams struct {
	Logger *logger.Logger
	Engine reconcileRunner
}

// NewReconcileJob wraps one reconcile engine pass as a cron job.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	return &reconcileJob{logg: params.Logger, engine: params.Engine}, nil
}

type reconcileJob struct {
	logg   *logger.Logger
	engine reconcileRunner
}

func (j *reconcileJob) Name() string { return "legacy-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	summary, err := j.engine.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":       summary.Scanned,
		"updated":       summary.Updated,
		"created":       summary.Created,
		"bound":         summary.Bound,
		"discrepancies": summary.Discrepancies,
		"skipped":       summary.Skipped,
	})
	if err != nil {
		// Partial passes are normal during CDE outages; the summary still
		// reflects whatever got through.
		j.logg.Warn(logCtx, "reconcile pass finished with errors")
		return err
	}
	j.logg.Info(logCtx, "reconcile pass finished")
	return nil
}
