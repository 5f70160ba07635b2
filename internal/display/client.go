package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinRetryDelay = time.Second
	MaxRetryDelay = 30 * time.Second

	callTimeout = 5 * time.Second
)

type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Remote is the blocking control protocol of the display. Only the client's
// worker calls it, so implementations need not be safe for concurrent use.
type Remote interface {
	Connect(ctx context.Context) error
	// ResetScene rebuilds the countdown scene from scratch. runID is unique
	// per connection and is used to name the remote resources.
	ResetScene(ctx context.Context, runID string) error
	SetText(ctx context.Context, text string) error
	CanvasWidth(ctx context.Context) (float64, error)
	SetElementPosition(ctx context.Context, x float64) error
	Close() error
}

type stopper interface{ Stop() bool }

func realAfter(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }

// Client mirrors the countdown onto the display. All remote I/O happens on
// the goroutine running Run; callers only hand it work and never wait.
type Client struct {
	remote   Remote
	log      *zap.Logger
	after    func(d time.Duration, f func()) stopper
	newRunID func() string

	connectCh chan struct{}
	pushCh    chan int

	mu         sync.Mutex
	state      ConnState
	runID      string
	retryDelay time.Duration
	reconnect  stopper
	closed     bool
	cancel     context.CancelFunc
}

func New(remote Remote, log *zap.Logger) *Client {
	return &Client{
		remote:     remote,
		log:        log.Named("display"),
		after:      realAfter,
		newRunID:   uuid.NewString,
		connectCh:  make(chan struct{}, 1),
		pushCh:     make(chan int, 1),
		state:      Disconnected,
		retryDelay: MinRetryDelay,
	}
}

// Run is the dedicated worker. It connects immediately and then serves
// reconnects and pushes until ctx is cancelled or Close is called.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer c.teardown()

	c.requestConnect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.connectCh:
			c.connect(ctx)
		case v := <-c.pushCh:
			c.push(ctx, v)
		}
	}
}

// Close cancels any pending reconnect and stops the worker.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopReconnectLocked()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	c.closed = true
	c.stopReconnectLocked()
	c.state = Disconnected
	c.mu.Unlock()
	if err := c.remote.Close(); err != nil {
		c.log.Debug("closing remote", zap.Error(err))
	}
}

// PushValue queues the countdown for the display. It is a no-op while
// disconnected and drops a stale value that the worker has not sent yet.
func (c *Client) PushValue(seconds int) {
	c.mu.Lock()
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected {
		return
	}

	select {
	case c.pushCh <- seconds:
		return
	default:
	}
	select {
	case <-c.pushCh:
	default:
	}
	select {
	case c.pushCh <- seconds:
	default:
	}
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *Client) RetryDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryDelay
}

func (c *Client) requestConnect() {
	select {
	case c.connectCh <- struct{}{}:
	default:
	}
}

func (c *Client) connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.state = Connecting
	c.mu.Unlock()

	runID, err := c.establish(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Disconnected
		c.log.Warn("display connect failed", zap.Error(err))
		c.scheduleReconnectLocked()
		return
	}
	c.state = Connected
	c.runID = runID
	c.retryDelay = MinRetryDelay
	c.log.Info("display connected", zap.String("run_id", runID))
}

func (c *Client) establish(ctx context.Context) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := c.remote.Connect(callCtx); err != nil {
		return "", fmt.Errorf("connect: %w", err)
	}
	runID := c.newRunID()
	if err := c.remote.ResetScene(callCtx, runID); err != nil {
		_ = c.remote.Close()
		return "", fmt.Errorf("reset scene: %w", err)
	}
	return runID, nil
}

func (c *Client) push(ctx context.Context, seconds int) {
	if c.State() != Connected {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if err := c.render(callCtx, seconds); err != nil {
		c.markDisconnected(err)
	}
}

func (c *Client) render(ctx context.Context, seconds int) error {
	if err := c.remote.SetText(ctx, FormatCountdown(seconds)); err != nil {
		return fmt.Errorf("set text: %w", err)
	}
	width, err := c.remote.CanvasWidth(ctx)
	if err != nil {
		return fmt.Errorf("canvas width: %w", err)
	}
	if err := c.remote.SetElementPosition(ctx, width/2); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	return nil
}

func (c *Client) markDisconnected(cause error) {
	c.mu.Lock()
	if c.state == Connected {
		c.log.Warn("display connection lost", zap.String("run_id", c.runID), zap.Error(cause))
		c.state = Disconnected
		c.runID = ""
	}
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if err := c.remote.Close(); err != nil {
		c.log.Debug("closing remote", zap.Error(err))
	}
}

// scheduleReconnectLocked arms at most one reconnect and doubles the delay
// for the next failure, capped at MaxRetryDelay.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.reconnect != nil {
		return
	}
	delay := c.retryDelay
	c.retryDelay = min(c.retryDelay*2, MaxRetryDelay)
	c.log.Info("display reconnect scheduled", zap.Duration("retry_in", delay))
	c.reconnect = c.after(delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		c.mu.Unlock()
		c.requestConnect()
	})
}

func (c *Client) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// FormatCountdown renders seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
