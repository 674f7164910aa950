package notifications

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Janitor periodically purges records older than the retention window.
type Janitor struct {
	store    *Store
	days     int
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor creates a Janitor. Run is a no-op when days is zero.
func NewJanitor(store *Store, days int, interval time.Duration, logger zerolog.Logger) *Janitor {
	return &Janitor{
		store:    store,
		days:     days,
		interval: interval,
		logger:   logger.With().Str("component", "janitor").Logger(),
	}
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if j.days <= 0 || j.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.purge(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.store.PurgeOlderThan(ctx, j.days)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error().Err(err).Int("days", j.days).Msg("retention purge failed")
		}
		return
	}
	if n > 0 {
		j.logger.Info().Int64("removed", n).Int("days", j.days).Msg("purged old notification records")
	}
}
