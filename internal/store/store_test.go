package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

func newGame(t *testing.T, roles ...string) *engine.Game {
	t.Helper()
	r, err := script.NewRegistry()
	require.NoError(t, err)
	s, err := r.Script("trouble_brewing")
	require.NoError(t, err)
	g, err := engine.NewGame(s, 0, engine.WithPicker(func(int) int { return 0 }))
	require.NoError(t, err)
	if len(roles) > 0 {
		_, err = g.IncludeRoles(roles)
		require.NoError(t, err)
	}
	return g
}

func newStore(t *testing.T, g *engine.Game) *Store {
	t.Helper()
	s := New(context.Background(), g, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no snapshot within %v, but got version %d", within, s.Version)
	case <-time.After(within):
	}
}

func TestUpdate_CommitsAndBroadcasts(t *testing.T) {
	s := newStore(t, newGame(t, "Imp", "Chef"))
	ctx := context.Background()

	out := make(chan Snapshot, 4)
	require.NoError(t, s.Subscribe(ctx, "c1", out))

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	assert.Empty(t, first.Game.Players)

	p, err := Update(ctx, s, func(g *engine.Game) (engine.Player, error) {
		return g.AssignRole("Alice", "Imp")
	})
	require.NoError(t, err)
	assert.Equal(t, "Imp", p.Character.Name)

	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	require.Len(t, next.Game.Players, 1)
	assert.Empty(t, first.Game.Players, "earlier snapshot must not change")
}

func TestUpdate_FailureLeavesNoPartialState(t *testing.T) {
	s := newStore(t, newGame(t, "Imp", "Chef"))
	ctx := context.Background()

	out := make(chan Snapshot, 4)
	require.NoError(t, s.Subscribe(ctx, "c1", out))
	recvSnapshot(t, out, 100*time.Millisecond)

	_, err := Update(ctx, s, func(g *engine.Game) (struct{}, error) {
		if _, err := g.AssignRole("Alice", "Imp"); err != nil {
			return struct{}{}, err
		}
		_, err := g.AssignRole("Alice", "Chef")
		return struct{}{}, err
	})
	require.ErrorIs(t, err, engine.ErrConflict)
	recvNoSnapshot(t, out, 50*time.Millisecond)

	n, err := View(ctx, s, func(g *engine.Game) (int, error) { return len(g.Players), nil })
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpdate_PanicIsContained(t *testing.T) {
	s := newStore(t, newGame(t))
	ctx := context.Background()

	_, err := Update(ctx, s, func(g *engine.Game) (int, error) {
		g.SetVisibility(true)
		panic("boom")
	})
	require.Error(t, err)

	revealed, err := View(ctx, s, func(g *engine.Game) (bool, error) { return g.ShouldRevealRoles, nil })
	require.NoError(t, err)
	assert.False(t, revealed)
}

func TestReplace_ReturnsOldSession(t *testing.T) {
	first := newGame(t, "Imp")
	s := newStore(t, first)
	ctx := context.Background()

	second := newGame(t)
	old, err := s.Replace(ctx, second)
	require.NoError(t, err)
	assert.Same(t, first, old)

	n, err := View(ctx, s, func(g *engine.Game) (int, error) { return len(g.IncludedRoles), nil })
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpdate_Linearized(t *testing.T) {
	s := newStore(t, newGame(t))
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Update(ctx, s, func(g *engine.Game) (int, error) {
				g.PlayerCount++
				return g.PlayerCount, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := View(ctx, s, func(g *engine.Game) (int, error) { return g.PlayerCount, nil })
	require.NoError(t, err)
	assert.Equal(t, writers, n)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	s := newStore(t, newGame(t))
	ctx := context.Background()

	out := make(chan Snapshot, 1)
	require.NoError(t, s.Subscribe(ctx, "slow", out))

	for i := 0; i < 2; i++ {
		_, err := Update(ctx, s, func(g *engine.Game) (bool, error) {
			g.SetVisibility(!g.ShouldRevealRoles)
			return g.ShouldRevealRoles, nil
		})
		require.NoError(t, err)
	}

	recvSnapshot(t, out, 100*time.Millisecond)
	_, ok := <-out
	assert.False(t, ok, "outbox should be closed after overflow")
}

func TestUnsubscribeClosesOutbox(t *testing.T) {
	s := newStore(t, newGame(t))
	ctx := context.Background()

	out := make(chan Snapshot, 2)
	require.NoError(t, s.Subscribe(ctx, "c1", out))
	recvSnapshot(t, out, 100*time.Millisecond)
	require.NoError(t, s.Unsubscribe(ctx, "c1"))

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed")
	}
}

func TestClosedStore(t *testing.T) {
	s := New(context.Background(), newGame(t), zap.NewNop())
	s.Close()

	_, err := View(context.Background(), s, func(g *engine.Game) (int, error) { return 0, nil })
	assert.True(t, errors.Is(err, ErrClosed))
}

// blockLoop parks the store loop inside a View until the returned func is
// called.
func blockLoop(t *testing.T, s *Store) func() {
	t.Helper()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = View(context.Background(), s, func(g *engine.Game) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	return unblock
}

func TestAcquireHonoursContext(t *testing.T) {
	s := newStore(t, newGame(t))
	unblock := blockLoop(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	errCh := make(chan error, 1)
	go func() {
		_, err := View(ctx, s, func(g *engine.Game) (int, error) {
			ran = true
			return 0, nil
		})
		errCh <- err
	}()

	<-ctx.Done()
	unblock()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("view never returned")
	}
	assert.False(t, ran, "expired operation must not run")
}

func TestUpdate_ExpiredWhileQueuedDoesNotCommit(t *testing.T) {
	s := newStore(t, newGame(t, "Imp"))
	unblock := blockLoop(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		_, err := Update(ctx, s, func(g *engine.Game) (engine.Player, error) {
			return g.AssignRole("Alice", "Imp")
		})
		errCh <- err
	}()

	<-ctx.Done()
	unblock()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("update never returned")
	}

	n, err := View(context.Background(), s, func(g *engine.Game) (int, error) { return len(g.Players), nil })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdate_ReportsOutcomeOnceAccepted(t *testing.T) {
	s := newStore(t, newGame(t, "Imp"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p, err := Update(ctx, s, func(g *engine.Game) (engine.Player, error) {
		<-ctx.Done()
		return g.AssignRole("Alice", "Imp")
	})
	require.NoError(t, err, "a running operation reports what it committed")
	assert.Equal(t, "Alice", p.Name)

	n, err := View(context.Background(), s, func(g *engine.Game) (int, error) { return len(g.Players), nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplace_ExpiredWhileQueuedIsSkipped(t *testing.T) {
	orig := newGame(t)
	s := newStore(t, orig)
	unblock := blockLoop(t, s)

	next := newGame(t, "Chef")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Replace(ctx, next)
		errCh <- err
	}()

	<-ctx.Done()
	unblock()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("replace never returned")
	}

	same, err := View(context.Background(), s, func(g *engine.Game) (bool, error) { return g == orig, nil })
	require.NoError(t, err)
	assert.True(t, same)
}
