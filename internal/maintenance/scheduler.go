// Package maintenance runs the periodic housekeeping jobs of the API.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/internal/middleware"
	"github.com/rootedapp/portal/pkg/logger"
)

// rate limiter entries idle longer than this are dropped on cleanup.
const limiterMaxIdle = 30 * time.Minute

// Scheduler owns the cron runner for background cleanup.
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger
}

// New creates an empty scheduler.
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("maintenance")
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// AddBlacklistCleanup prunes expired entries from the token blacklist on the
// given interval.
func (s *Scheduler) AddBlacklistCleanup(blacklist *identity.TokenBlacklist, every time.Duration) error {
	_, err := s.cron.AddFunc(spec(every), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := blacklist.Cleanup(ctx); err != nil {
			s.log.WithError(err).Warn("token blacklist cleanup failed")
		}
	})
	return err
}

// AddLimiterCleanup drops idle per-client limiter state on the given interval.
func (s *Scheduler) AddLimiterCleanup(every time.Duration, limiters ...*middleware.RateLimiter) error {
	_, err := s.cron.AddFunc(spec(every), func() {
		removed := 0
		for _, rl := range limiters {
			removed += rl.Cleanup(limiterMaxIdle)
		}
		if removed > 0 {
			s.log.WithFields(map[string]interface{}{"removed": removed}).Debug("pruned idle rate limiters")
		}
	})
	return err
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func spec(every time.Duration) string {
	if every < time.Second {
		every = time.Second
	}
	return fmt.Sprintf("@every %s", every)
}
