package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically removes expired sessions. Missing a run only delays
// cleanup; Get rejects expired sessions on its own.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *logrus.Entry
}

func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logrus.WithField("component", "sweeper"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithField("interval", s.interval).Info("Session sweeper started")
	defer s.logger.Info("Session sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			s.SweepOnce(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	removed, err := s.store.SweepExpired(ctx, s.store.now())

	entry := s.logger.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Error("Session sweep failed")
		return removed, err
	}
	if removed > 0 {
		entry.Info("Expired sessions removed")
	} else {
		entry.Debug("No expired sessions")
	}
	return removed, nil
}
