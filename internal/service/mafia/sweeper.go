package mafia

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// A game where nobody acts or votes cycles night and day forever; the
// sweeper cancels anything older than the configured age.
const (
	DefaultMaxSessionAge = 2 * time.Hour
	DefaultSweepSpec     = "@every 1m"
)

func (svc *Service) startSweeper() error {
	c := cron.New()
	if _, err := c.AddFunc(svc.sweepSpec, func() {
		if n := svc.Sweep(svc.clock.Now()); n > 0 {
			svc.logger.Info("expired games cancelled", zap.Int("count", n))
		}
		svc.logger.Debug("sweep finished", zap.Int("active", svc.registry.Len()))
	}); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", svc.sweepSpec, err)
	}
	c.Start()
	svc.cron = c
	return nil
}

// Sweep cancels every game created more than the maximum session age before
// now and returns how many it cancelled.
func (svc *Service) Sweep(now time.Time) int {
	cancelled := 0
	for _, s := range svc.registry.List() {
		s.mu.Lock()
		if s.closed || now.Sub(s.createdAt) <= svc.maxAge {
			s.mu.Unlock()
			continue
		}
		svc.discard(s, game.ReasonExpired)
		cancelled++
		svc.release(s)
	}
	return cancelled
}
