// Package workers runs the periodic background jobs: a scheduled drain of
// the sync queue and a scheduled exchange-rate refresh.
package workers

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/rates"
	"jaudi-finance-backend/internal/syncer"
)

type Scheduler struct {
	cron  *cron.Cron
	sync  *syncer.Synchronizer
	rates *rates.Service
	log   zerolog.Logger
}

func NewScheduler(sync *syncer.Synchronizer, rateSvc *rates.Service, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		sync:  sync,
		rates: rateSvc,
		log:   log,
	}
}

// Start registers the jobs and kicks off the cron loop. Jobs no-op quietly
// when offline; the drain's own guards handle that.
func (s *Scheduler) Start(ctx context.Context, syncSchedule, rateSchedule string) error {
	if _, err := s.cron.AddFunc(syncSchedule, func() {
		if err := s.sync.SyncPendingItems(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled sync failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(rateSchedule, func() {
		if _, err := s.rates.CurrentRates(ctx); err != nil {
			s.log.Error().Err(err).Msg("scheduled rate refresh failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("sync", syncSchedule).Str("rates", rateSchedule).Msg("background jobs scheduled")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
