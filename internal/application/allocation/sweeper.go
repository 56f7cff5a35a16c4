package allocation

import (
	"context"
	"time"

	"herdshare-backend/internal/application/offerings"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBatch    = 200
)

// Sweeper periodically releases lapsed reservations and moves offerings through their
// lifecycle window.
type Sweeper struct {
	Engine    *Engine
	Offerings *offerings.Service
	Interval  time.Duration
	BatchSize int
}

type SweepResult struct {
	Released  int   `json:"released"`
	Activated int64 `json:"activated"`
	Closed    int64 `json:"closed"`
}

// RunOnce performs a single sweep. Errors from one step do not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	var r SweepResult
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	if s.Offerings != nil {
		n, err := s.Offerings.ActivateDue(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweeper: activate due offerings failed")
		}
		r.Activated = n
		n, err = s.Offerings.CloseDue(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweeper: close due offerings failed")
		}
		r.Closed = n
	}

	for {
		released, err := s.Engine.ReleaseExpired(ctx, batch)
		r.Released += released
		if err != nil {
			log.Error().Err(err).Msg("sweeper: release expired orders failed")
			break
		}
		// A short batch means the backlog is drained. Failed releases stay pending and
		// would otherwise be picked up again in a loop.
		if released < batch {
			break
		}
	}

	if r.Released > 0 || r.Activated > 0 || r.Closed > 0 {
		log.Info().Int("released", r.Released).Int64("activated", r.Activated).Int64("closed", r.Closed).Msg("sweeper: pass complete")
	}
	return r
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("sweeper: started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper: stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
