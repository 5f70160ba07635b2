package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/engine"
)

var ErrClosed = errors.New("session store closed")

type Msg interface{ isStoreMsg() }

// exec runs fn against the session. Mutating operations run on a clone that
// only replaces the live session when fn returns nil. fn is skipped if ctx
// ended while the message was queued.
type exec struct {
	ctx    context.Context
	fn     func(*engine.Game) error
	mutate bool
	reply  chan error
}

func (exec) isStoreMsg() {}

type replace struct {
	ctx   context.Context
	game  *engine.Game
	reply chan replaced
}

type replaced struct {
	old *engine.Game
	err error
}

func (replace) isStoreMsg() {}

type Subscribe struct {
	ClientID string
	Outbox   chan Snapshot // receives every committed session
}

func (Subscribe) isStoreMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isStoreMsg() {}

// Snapshot carries a committed session. Committed sessions are never mutated
// again, so readers may share the pointer but must not write through it.
type Snapshot struct {
	Version int
	Game    *engine.Game
}

// Store owns the session aggregate. A single goroutine runs every operation,
// which makes each one exclusive and linearizes all mutations.
//
// Operations must not call back into the store: the loop is busy running the
// caller and the nested request would never be served.
type Store struct {
	inbox   chan Msg
	game    *engine.Game
	version int
	clients map[string]chan Snapshot
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, initial *engine.Game, log *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(parent)

	s := &Store{
		inbox:   make(chan Msg, 64),
		game:    initial,
		clients: make(map[string]chan Snapshot),
		log:     log.Named("store"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case exec:
				msg.reply <- s.run(msg)

			case replace:
				if err := msg.ctx.Err(); err != nil {
					msg.reply <- replaced{err: err}
					continue
				}
				old := s.game
				s.game = msg.game
				s.commit()
				msg.reply <- replaced{old: old}

			case Subscribe:
				s.clients[msg.ClientID] = msg.Outbox
				s.send(msg.ClientID, msg.Outbox, Snapshot{Version: s.version, Game: s.game})

			case Unsubscribe:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}
			}
		}
	}
}

func (s *Store) run(msg exec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session operation panicked", zap.Any("panic", r))
			err = fmt.Errorf("session operation panicked: %v", r)
		}
	}()

	if err := msg.ctx.Err(); err != nil {
		return err
	}
	if !msg.mutate {
		return msg.fn(s.game)
	}

	next := s.game.Clone()
	if err := msg.fn(next); err != nil {
		return err
	}
	s.game = next
	s.commit()
	return nil
}

func (s *Store) commit() {
	s.version++
	snap := Snapshot{Version: s.version, Game: s.game}
	for id, ch := range s.clients {
		s.send(id, ch, snap)
	}
}

func (s *Store) send(id string, ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
	default:
		// Subscriber is slow/full - drop it.
		s.log.Warn("dropping slow subscriber", zap.String("client_id", id))
		close(ch)
		delete(s.clients, id)
	}
}

func (s *Store) shutdown() {
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
}

// Close stops the loop and waits for it to exit.
func (s *Store) Close() {
	s.cancel()
	<-s.done
}

func (s *Store) submit(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// do waits on ctx only until the loop accepts the message. From then on the
// caller gets the operation's real outcome.
func (s *Store) do(ctx context.Context, mutate bool, fn func(*engine.Game) error) error {
	reply := make(chan error, 1)
	if err := s.submit(ctx, exec{ctx: ctx, fn: fn, mutate: mutate, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

// Update runs fn with exclusive access to a working copy of the session.
// The copy becomes the session only if fn succeeds, so a failed operation
// leaves no partial state behind.
func Update[T any](ctx context.Context, s *Store, fn func(*engine.Game) (T, error)) (T, error) {
	var out T
	err := s.do(ctx, true, func(g *engine.Game) error {
		v, err := fn(g)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// View runs fn with exclusive access to the live session. fn must not mutate
// it.
func View[T any](ctx context.Context, s *Store, fn func(*engine.Game) (T, error)) (T, error) {
	var out T
	err := s.do(ctx, false, func(g *engine.Game) error {
		v, err := fn(g)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Replace swaps in a whole new session and returns the one it displaced.
func (s *Store) Replace(ctx context.Context, g *engine.Game) (*engine.Game, error) {
	reply := make(chan replaced, 1)
	if err := s.submit(ctx, replace{ctx: ctx, game: g, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.old, r.err
	case <-s.done:
		return nil, ErrClosed
	}
}

func (s *Store) Subscribe(ctx context.Context, clientID string, outbox chan Snapshot) error {
	return s.submit(ctx, Subscribe{ClientID: clientID, Outbox: outbox})
}

func (s *Store) Unsubscribe(ctx context.Context, clientID string) error {
	return s.submit(ctx, Unsubscribe{ClientID: clientID})
}
