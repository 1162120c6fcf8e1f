package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nflstats/ingestion/internal/syncer"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Syncer runs one sync pass over a release tag
type Syncer interface {
	Sync(ctx context.Context, tag string, years []int) (*syncer.Report, error)
}

// Config configures the scheduler
type Config struct {
	// Cron is a standard five-field cron expression
	Cron        string
	Tags        []string
	Years       []int
	InitialSync bool
}

// Scheduler refreshes release data on a cron schedule. Runs never overlap:
// a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	cfg    Config
	syncer Syncer
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config, s Syncer) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		syncer: s,
		cron:   cron.New(),
	}
}

// Start schedules the nightly refresh and, when configured, starts an
// initial run in the background
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.Cron, func() {
		log.Info().Msg("Running nightly refresh...")
		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Nightly refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.Cron).
		Strs("tags", s.cfg.Tags).
		Msg("Nightly refresh scheduled")

	if s.cfg.InitialSync {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Initial sync failed")
			}
		}()
	}

	return nil
}

// Stop stops scheduling and waits for a run in progress to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	<-s.cron.Stop().Done()
	s.wg.Wait()

	log.Info().Msg("Scheduler stopped")
}

// RunOnce syncs every configured tag in order. A tag that fails is logged
// and the remaining tags still run; the first error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("Previous sync still running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	var firstErr error
	for _, tag := range s.cfg.Tags {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report, err := s.syncer.Sync(ctx, tag, s.cfg.Years)
		if err != nil {
			log.Error().Err(err).Str("tag", tag).Msg("Sync failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("sync %s: %w", tag, err)
			}
			continue
		}
		for _, a := range report.Assets {
			if a.Outcome == syncer.OutcomeFailed {
				log.Warn().Err(a.Err).Str("tag", tag).Str("asset", a.Asset.Name).Msg("Asset failed")
			}
		}
	}

	log.Info().
		Int("tags", len(s.cfg.Tags)).
		Dur("duration", time.Since(start)).
		Msg("Refresh complete")

	return firstErr
}
