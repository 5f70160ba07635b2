package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/sound"
)

var ErrOutOfRange = errors.New("timer seconds out of range")

const (
	DefaultMaxSeconds   = 3600
	DefaultStartSeconds = 5 * 60
	TickInterval        = time.Second
)

// Syncer receives the countdown once per running tick. Implementations must
// not block: PushValue is called with the timer lock held.
type Syncer interface {
	PushValue(seconds int)
}

type nopSyncer struct{}

func (nopSyncer) PushValue(int) {}

type State struct {
	IsRunning bool
	Seconds   int
}

// Service is the countdown shown to the table. It has its own lock and never
// touches the session store.
type Service struct {
	mu      sync.Mutex
	seconds int
	running bool

	maxSeconds     int
	defaultSeconds int
	display        Syncer
	cue            sound.Player
	log            *zap.Logger
}

type Option func(*Service)

func WithDisplay(d Syncer) Option {
	return func(s *Service) {
		if d != nil {
			s.display = d
		}
	}
}

func WithCue(p sound.Player) Option {
	return func(s *Service) {
		if p != nil {
			s.cue = p
		}
	}
}

func WithLimits(maxSeconds, defaultSeconds int) Option {
	return func(s *Service) {
		if maxSeconds > 0 {
			s.maxSeconds = maxSeconds
		}
		if defaultSeconds > 0 {
			s.defaultSeconds = defaultSeconds
		}
	}
}

func New(log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		maxSeconds:     DefaultMaxSeconds,
		defaultSeconds: DefaultStartSeconds,
		display:        nopSyncer{},
		cue:            sound.Nop{},
		log:            log.Named("timer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks once per second until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.safeTick()
		}
	}
}

func (s *Service) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("timer tick panicked", zap.Any("panic", r))
		}
	}()
	s.Tick()
}

// Tick advances a running countdown by one second. Reaching zero stops the
// timer and plays the time's-up cue once.
func (s *Service) Tick() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.push(s.seconds)
	if s.seconds > 0 {
		s.seconds--
	}
	expired := s.seconds == 0
	if expired {
		s.running = false
	}
	s.mu.Unlock()

	if expired {
		s.log.Info("time's up")
		s.cue.Play(sound.Timer)
	}
}

func (s *Service) push(v int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("display push panicked", zap.Any("panic", r))
		}
	}()
	s.display.PushValue(v)
}

func (s *Service) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// SetSeconds clamps negative values to zero.
func (s *Service) SetSeconds(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSecondsLocked(n)
}

func (s *Service) setSecondsLocked(n int) {
	if n < 0 {
		n = 0
	}
	s.seconds = n
	s.push(n)
}

// AddSeconds shifts the countdown by delta. The result stays within
// [0, maxSeconds], the same bounds Start enforces.
func (s *Service) AddSeconds(delta int) error {
	if delta > s.maxSeconds || delta < -s.maxSeconds {
		return fmt.Errorf("%w: %d exceeds %d", ErrOutOfRange, delta, s.maxSeconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSecondsLocked(min(s.seconds+delta, s.maxSeconds))
	return nil
}

// Start runs the countdown, first setting it to *seconds when given. A
// countdown already at zero restarts from the default.
func (s *Service) Start(seconds *int) error {
	if seconds != nil && (*seconds < 0 || *seconds > s.maxSeconds) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, *seconds, s.maxSeconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case seconds != nil:
		s.setSecondsLocked(*seconds)
	case s.seconds == 0:
		s.setSecondsLocked(s.defaultSeconds)
	}
	s.running = true
	return nil
}

func (s *Service) Stop() {
	s.SetRunning(false)
}

func (s *Service) Seconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seconds
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) Fetch() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{IsRunning: s.running, Seconds: s.seconds}
}
