package reveal

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/store"
)

var ErrTimeout = errors.New("timed out waiting for role reveal")

const (
	DefaultAttempts = 100
	DefaultInterval = 100 * time.Millisecond
)

// Gate blocks role readers until the storyteller reveals roles. Every poll
// takes the store only long enough to read the flag, so the call that flips
// it is never starved by a waiter.
type Gate struct {
	store    *store.Store
	attempts int
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(s *store.Store, attempts int, interval time.Duration) *Gate {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Gate{store: s, attempts: attempts, interval: interval, sleep: sleepCtx}
}

func (g *Gate) Wait(ctx context.Context) error {
	return g.WaitFor(ctx, g.attempts, g.interval)
}

// WaitFor checks the flag up to maxAttempts times, sleeping interval after
// each miss, and fails with ErrTimeout when every check missed.
func (g *Gate) WaitFor(ctx context.Context, maxAttempts int, interval time.Duration) error {
	for i := 0; i < maxAttempts; i++ {
		revealed, err := store.View(ctx, g.store, func(game *engine.Game) (bool, error) {
			return game.ShouldRevealRoles, nil
		})
		if err != nil {
			return err
		}
		if revealed {
			return nil
		}
		if err := g.sleep(ctx, interval); err != nil {
			return err
		}
	}
	return ErrTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
