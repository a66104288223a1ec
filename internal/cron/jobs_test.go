package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/reconcile"
	"github.com/sunshinecowhides/gallery-backend/internal/reporter"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

type fakeEngine struct {
	summary reconcile.Summary
	err     error
	runs    int
}

func (f *fakeEngine) Run(context.Context) (reconcile.Summary, error) {
	f.runs++
	return f.summary, f.err
}

func TestReconcileJob(t *testing.T) {
	engine := &fakeEngine{summary: reconcile.Summary{Scanned: 12, Updated: 3}}
	job, err := NewReconcileJob(ReconcileJobParams{Logger: testLogger(), Engine: engine})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if engine.runs != 1 {
		t.Fatalf("expected one engine run, got %d", engine.runs)
	}

	engine.err = errors.New("cde down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

type fakeSweeper struct {
	photos []string
	err    error
}

func (f *fakeSweeper) SweepExpired(context.Context) ([]string, error) {
	return f.photos, f.err
}

type fakeProjector struct {
	applied []string
	failOn  string
}

func (f *fakeProjector) Apply(_ context.Context, photoNumber string) (availability.Outcome, error) {
	if photoNumber == f.failOn {
		return availability.Outcome{}, errors.New("projection failed")
	}
	f.applied = append(f.applied, photoNumber)
	return availability.Outcome{PhotoNumber: photoNumber, Changed: true}, nil
}

func TestClaimSweepJobReprojectsSweptPhotos(t *testing.T) {
	project := &fakeProjector{}
	job, err := NewClaimSweepJob(ClaimSweepJobParams{
		Logger:    testLogger(),
		Ledger:    &fakeSweeper{photos: []string{"101", "102"}},
		Projector: project,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(project.applied) != 2 {
		t.Fatalf("expected 2 re-projections, got %v", project.applied)
	}
}

func TestClaimSweepJobContinuesPastProjectionFailure(t *testing.T) {
	project := &fakeProjector{failOn: "101"}
	job, err := NewClaimSweepJob(ClaimSweepJobParams{
		Logger:    testLogger(),
		Ledger:    &fakeSweeper{photos: []string{"101", "102"}},
		Projector: project,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(project.applied) != 1 || project.applied[0] != "102" {
		t.Fatalf("expected remaining photo re-projected, got %v", project.applied)
	}
}

type fakeScanner struct {
	result reporter.OrphanScanResult
	err    error
}

func (f *fakeScanner) ScanOrphans(context.Context) (reporter.OrphanScanResult, error) {
	return f.result, f.err
}

func TestOrphanScanJob(t *testing.T) {
	job, err := NewOrphanScanJob(OrphanScanJobParams{
		Logger:   testLogger(),
		Reporter: &fakeScanner{result: reporter.OrphanScanResult{MissingObjects: 1}},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, _ = NewOrphanScanJob(OrphanScanJobParams{
		Logger:   testLogger(),
		Reporter: &fakeScanner{err: errors.New("bucket unreachable")},
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}

type fakeRetentionRepo struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 4, nil
}

func TestOutboxRetentionJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), Repository: repo})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	expected := now.Add(-outboxRetentionDays * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected one call, got %d", repo.called)
	}

	repo.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
