package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBroken = errors.New("broken pipe")

type fakeRemote struct {
	mu           sync.Mutex
	failConnects int
	failPushes   int
	connects     int
	closes       int
	runIDs       []string
	texts        []string
	positions    []float64
}

func (r *fakeRemote) Connect(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	if r.failConnects > 0 {
		r.failConnects--
		return errBroken
	}
	return nil
}

func (r *fakeRemote) ResetScene(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runIDs = append(r.runIDs, runID)
	return nil
}

func (r *fakeRemote) SetText(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPushes > 0 {
		r.failPushes--
		return errBroken
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *fakeRemote) CanvasWidth(context.Context) (float64, error) { return 1920, nil }

func (r *fakeRemote) SetElementPosition(_ context.Context, x float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, x)
	return nil
}

func (r *fakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

func (r *fakeRemote) snapshot() (texts []string, runIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...), append([]string(nil), r.runIDs...)
}

func (r *fakeRemote) failNextPush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPushes = 1
}

type fakeTimer struct {
	delay   time.Duration
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeScheduler struct {
	timers chan *fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(chan *fakeTimer, 16)}
}

func (s *fakeScheduler) after(d time.Duration, f func()) stopper {
	t := &fakeTimer{delay: d, fire: f}
	s.timers <- t
	return t
}

func (s *fakeScheduler) next(t *testing.T) *fakeTimer {
	t.Helper()
	select {
	case tm := <-s.timers:
		return tm
	case <-time.After(time.Second):
		t.Fatalf("no reconnect was scheduled")
		return nil
	}
}

func (s *fakeScheduler) none(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case tm := <-s.timers:
		t.Fatalf("unexpected reconnect scheduled after %v", tm.delay)
	case <-time.After(within):
	}
}

func startClient(t *testing.T, remote *fakeRemote) (*Client, *fakeScheduler) {
	t.Helper()
	sched := newFakeScheduler()
	c := New(remote, zap.NewNop())
	c.after = sched.after

	n := 0
	var mu sync.Mutex
	c.newRunID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("run-%d", n)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(context.Background())
	}()
	t.Cleanup(func() {
		c.Close()
		<-done
	})
	return c, sched
}

func waitState(t *testing.T, c *Client, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, time.Second, 5*time.Millisecond,
		"state never became %s", want)
}

func TestConnect_ResetsSceneWithRunID(t *testing.T) {
	remote := &fakeRemote{}
	c, _ := startClient(t, remote)

	waitState(t, c, Connected)
	assert.Equal(t, "run-1", c.RunID())
	_, runIDs := remote.snapshot()
	assert.Equal(t, []string{"run-1"}, runIDs)
}

func TestReconnect_BackoffSequence(t *testing.T) {
	remote := &fakeRemote{failConnects: 7}
	c, sched := startClient(t, remote)

	var delays []time.Duration
	for i := 0; i < 7; i++ {
		tm := sched.next(t)
		delays = append(delays, tm.delay)
		tm.fire()
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	assert.Equal(t, want, delays)

	waitState(t, c, Connected)
	assert.Equal(t, MinRetryDelay, c.RetryDelay(), "success resets the delay")
	sched.none(t, 20*time.Millisecond)
}

func TestPushValue_RendersCountdown(t *testing.T) {
	remote := &fakeRemote{}
	c, _ := startClient(t, remote)
	waitState(t, c, Connected)

	c.PushValue(125)
	require.Eventually(t, func() bool {
		texts, _ := remote.snapshot()
		return len(texts) == 1
	}, time.Second, 5*time.Millisecond)

	texts, _ := remote.snapshot()
	assert.Equal(t, []string{"2:05"}, texts)
	remote.mu.Lock()
	assert.Equal(t, []float64{960}, remote.positions)
	remote.mu.Unlock()
}

func TestPushValue_NoopWhileDisconnected(t *testing.T) {
	remote := &fakeRemote{failConnects: 1}
	c, sched := startClient(t, remote)

	sched.next(t)
	require.Equal(t, Disconnected, c.State())
	c.PushValue(10)

	assert.Len(t, c.pushCh, 0)
	texts, _ := remote.snapshot()
	assert.Empty(t, texts)
}

func TestPushFailure_ReconnectsWithNewRunID(t *testing.T) {
	remote := &fakeRemote{}
	c, sched := startClient(t, remote)
	waitState(t, c, Connected)
	first := c.RunID()

	remote.failNextPush()
	c.PushValue(30)

	tm := sched.next(t)
	assert.Equal(t, MinRetryDelay, tm.delay)
	assert.Equal(t, Disconnected, c.State())
	assert.Empty(t, c.RunID())

	tm.fire()
	waitState(t, c, Connected)
	assert.NotEqual(t, first, c.RunID())
	_, runIDs := remote.snapshot()
	assert.Equal(t, []string{"run-1", "run-2"}, runIDs)
}

func TestScheduleReconnect_SinglePending(t *testing.T) {
	remote := &fakeRemote{failConnects: 1}
	c, sched := startClient(t, remote)

	sched.next(t)
	c.mu.Lock()
	c.scheduleReconnectLocked()
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	sched.none(t, 20*time.Millisecond)
	assert.Equal(t, 2*time.Second, c.RetryDelay())
}

func TestClose_CancelsPendingReconnect(t *testing.T) {
	remote := &fakeRemote{failConnects: 1}
	c, sched := startClient(t, remote)

	tm := sched.next(t)
	c.Close()
	assert.True(t, tm.stopped)

	c.mu.Lock()
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	sched.none(t, 20*time.Millisecond)
}

func TestFormatCountdown(t *testing.T) {
	cases := map[int]string{0: "0:00", 9: "0:09", 60: "1:00", 300: "5:00", 3599: "59:59", -3: "0:00"}
	for in, want := range cases {
		assert.Equal(t, want, FormatCountdown(in), "seconds=%d", in)
	}
}
