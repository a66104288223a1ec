package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

type claimSweeper interface {
	SweepExpired(ctx context.Context) ([]string, error)
}

type sweepProjector interface {
	Apply(ctx context.Context, photoNumber string) (availability.Outcome, error)
}

// ClaimSweepJobParams configure the expired-claim sweep job.
type ClaimSweepJobParams struct {
	Logger    *logger.Logger
	Ledger    claimSweeper
	Projector sweepProjector
}

// NewClaimSweepJob expires lapsed claims and re-projects the photos they
// were holding so they return to the gallery.
func NewClaimSweepJob(params ClaimSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Projector == nil {
		return nil, fmt.Errorf("projector required")
	}
	return &claimSweepJob{logg: params.Logger, ledger: params.Ledger, project: params.Projector}, nil
}

type claimSweepJob struct {
	logg    *logger.Logger
	ledger  claimSweeper
	project sweepProjector
}

func (j *claimSweepJob) Name() string { return "claim-sweep" }

func (j *claimSweepJob) Run(ctx context.Context) error {
	photoNumbers, err := j.ledger.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired claims: %w", err)
	}

	var errs error
	reprojected := 0
	for _, photoNumber := range photoNumbers {
		if _, err := j.project.Apply(ctx, photoNumber); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("re-project %s: %w", photoNumber, err))
			continue
		}
		reprojected++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"swept":       len(photoNumbers),
		"reprojected": reprojected,
	})
	j.logg.Info(logCtx, "claim sweep finished")
	return errs
}
