package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leca/vehicle-gallery/internal/gallery"
)

// Reconciler is the part of the gallery manager the scheduler drives.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (*gallery.Report, error)
}

// Scheduler runs periodic gallery reconciliation.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	repair     bool
	timeout    time.Duration
	log        *slog.Logger
}

// NewScheduler builds a scheduler for the given cron expression (with seconds).
// An empty schedule leaves the scheduler idle.
func NewScheduler(reconciler Reconciler, schedule string, repair bool, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		schedule:   schedule,
		repair:     repair,
		timeout:    10 * time.Minute,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if s.schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.reconcile); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("reconcile job scheduled", "schedule", s.schedule, "repair", s.repair)
	return nil
}

// Stop halts the schedule and waits for a running job until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("reconcile job still running at shutdown")
	}
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.reconciler.Reconcile(ctx, s.repair)
	if err != nil {
		s.log.Error("scheduled reconcile failed", "error", err)
		return
	}
	s.log.Info("scheduled reconcile finished",
		"vehicles", report.VehiclesScanned,
		"issues", len(report.Issues),
		"took", report.FinishedAt.Sub(report.StartedAt))
}
