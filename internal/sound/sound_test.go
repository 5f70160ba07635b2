package sound

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Name
		ok   bool
	}{
		{in: "rooster", want: Rooster, ok: true},
		{in: "ROOSTER", want: Rooster, ok: true},
		{in: "RoOsTeR", want: Rooster, ok: true},
		{in: "music_box", want: MusicBox, ok: true},
		{in: "nonexistent_sound", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Parse(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGroupsOnlyReferenceKnownSounds(t *testing.T) {
	for group, names := range Groups {
		for _, n := range names {
			_, ok := Parse(string(n))
			assert.True(t, ok, "group %s references unknown sound %s", group, n)
		}
	}
}

func TestCommandPlayer_RunsCommandWithFile(t *testing.T) {
	p := NewCommandPlayer("assets", "aplay", zap.NewNop())
	got := make(chan []string, 1)
	p.run = func(ctx context.Context, command string, args ...string) error {
		got <- append([]string{command}, args...)
		return nil
	}

	p.Play(Timer)

	select {
	case call := <-got:
		assert.Equal(t, []string{"aplay", filepath.Join("assets", "timer.wav")}, call)
	case <-time.After(time.Second):
		t.Fatalf("command never ran")
	}
}

func TestCommandPlayer_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewCommandPlayer("assets", "aplay", zap.New(core))
	p.run = func(ctx context.Context, command string, args ...string) error {
		return errors.New("no audio device")
	}

	p.Play(Death)

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sound playback failed", logs.All()[0].Message)
}
