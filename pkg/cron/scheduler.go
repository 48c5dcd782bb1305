// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-ledger/internal/domain/learning"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// MatcherRebuilder rebuilds a matching index from the current learning
// state. The resolution engine, fuzzy matcher and phonetic matcher all
// satisfy this through small adapters in the binary.
type MatcherRebuilder interface {
	Rebuild(vendors []ledger.Vendor, patterns []ledger.LearnedPattern)
}

// SuspenseRetrier re-runs the cascade over suspense bookings, picking up
// whatever the matchers learned since the original import.
type SuspenseRetrier interface {
	RetrySuspense(ctx context.Context) (int, error)
}

// Scheduler manages background maintenance jobs using robfig/cron.
type Scheduler struct {
	cron       *cron.Cron
	store      *learning.Store
	rebuilders []MatcherRebuilder
	retrier    SuspenseRetrier
	logger     *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(store *learning.Store, rebuilders []MatcherRebuilder, retrier SuspenseRetrier, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:       c,
		store:      store,
		rebuilders: rebuilders,
		retrier:    retrier,
		logger:     logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Matcher rebuild: nightly at 2:00 AM, after the day's confirmations.
	if _, err := s.cron.AddFunc("0 2 * * *", s.rebuildMatchers); err != nil {
		return err
	}

	// Suspense retry: nightly at 3:00 AM, against the fresh matchers.
	if s.retrier != nil {
		if _, err := s.cron.AddFunc("0 3 * * *", s.retrySuspense); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers both maintenance jobs (for testing/admin).
func (s *Scheduler) RunNow() {
	go func() {
		s.rebuildMatchers()
		if s.retrier != nil {
			s.retrySuspense()
		}
	}()
}

// rebuildMatchers snapshots the learning store and rebuilds every matcher.
func (s *Scheduler) rebuildMatchers() {
	start := time.Now()
	vendors, patterns := s.store.Snapshot()

	for _, r := range s.rebuilders {
		r.Rebuild(vendors, patterns)
	}

	s.logger.Info("matchers rebuilt",
		slog.Int("vendors", len(vendors)),
		slog.Int("patterns", len(patterns)),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// retrySuspense re-resolves suspense bookings.
func (s *Scheduler) retrySuspense() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	resolved, err := s.retrier.RetrySuspense(ctx)
	if err != nil {
		s.logger.Error("suspense retry failed", slog.Any("error", err))
		return
	}
	s.logger.Info("suspense retry completed", slog.Int("resolved", resolved))
}
