package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ticketone/sync/internal/log"
)

// Sweeper evicts cache entries that have outlived their cache time.
type Sweeper interface {
	Sweep(now time.Time) int
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	now      func() time.Time
	log      zerolog.Logger
}

// NewScheduler runs sweeper on schedule, a cron spec with seconds or a
// descriptor such as "@every 1m".
func NewScheduler(sweeper Sweeper, schedule string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sweeper:  sweeper,
		schedule: schedule,
		now:      time.Now,
		log:      log.Component(logger, "jobs"),
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil || s.schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("schedule cache sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
	case <-timeout.Done():
		s.log.Warn().Msg("cache sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	if evicted := s.sweeper.Sweep(s.now()); evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Msg("cache sweep")
	}
}
