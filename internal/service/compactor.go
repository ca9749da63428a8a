package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Compactor periodically merges the stored tracker snapshots of each config
// so that combining them stays cheap.
type Compactor struct {
	trackers  *TrackerService
	interval  time.Duration
	threshold int
}

// NewCompactor creates a Compactor that runs every interval and compacts
// configs with more than threshold snapshots.
func NewCompactor(trackers *TrackerService, interval time.Duration, threshold int) *Compactor {
	return &Compactor{trackers: trackers, interval: interval, threshold: threshold}
}

// Start runs until ctx is cancelled.
func (c *Compactor) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", c.interval).Int("threshold", c.threshold).Msg("Tracker compactor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Tracker compactor stopped")
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce compacts every config that is over the threshold.
func (c *Compactor) RunOnce(ctx context.Context) {
	cfgs, err := c.trackers.store.Configs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tracker configs")
		return
	}
	for _, cfg := range cfgs {
		if _, err := c.trackers.Compact(ctx, cfg, c.threshold); err != nil {
			log.Error().Err(err).Str("config", cfg.String()).Msg("Tracker compaction failed")
		}
	}
}
