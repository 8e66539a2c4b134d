package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs Store.Sweep on a fixed interval. It is started once from
// main and stopped with the process; it never runs detached from the
// lifecycle context.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; the loop exits
// when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				evicted, err := s.store.Sweep(ctx)
				if err != nil {
					s.logger.Error("session sweep failed", "error", err)
					continue
				}
				if evicted > 0 {
					s.logger.Info("swept expired sessions", "evicted", evicted)
				}
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.done)
}
