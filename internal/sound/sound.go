package sound

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

type Name string

const (
	Death      Name = "death"
	Wilhelm    Name = "wilhelm"
	Rooster    Name = "rooster"
	Alarm      Name = "alarm"
	Timer      Name = "timer"
	MusicBox   Name = "music_box"
	Drumroll   Name = "drumroll"
	Drama      Name = "drama"
	SadTrumpet Name = "sad_trumpet"
)

var All = []Name{Death, Wilhelm, Rooster, Alarm, Timer, MusicBox, Drumroll, Drama, SadTrumpet}

// Groups buckets the effects by the moment of the game they are cued for.
var Groups = map[string][]Name{
	"morning":   {Rooster, Alarm, Timer},
	"goodnight": {MusicBox},
	"reveal":    {Drumroll, Drama, SadTrumpet},
	"death":     {Death, Wilhelm},
}

func Parse(s string) (Name, bool) {
	folded := cases.Fold().String(s)
	for _, n := range All {
		if string(n) == folded {
			return n, true
		}
	}
	return "", false
}

// Player plays a sound without waiting for it. Failures are the player's
// to log; callers never see them.
type Player interface {
	Play(Name)
}

type Nop struct{}

func (Nop) Play(Name) {}

const playTimeout = 30 * time.Second

// CommandPlayer hands <dir>/<name>.wav to an external audio command such as
// aplay or afplay.
type CommandPlayer struct {
	dir     string
	command string
	log     *zap.Logger
	run     func(ctx context.Context, command string, args ...string) error
}

func NewCommandPlayer(dir, command string, log *zap.Logger) *CommandPlayer {
	return &CommandPlayer{dir: dir, command: command, log: log.Named("sound"), run: runCommand}
}

func (p *CommandPlayer) Play(n Name) {
	file := filepath.Join(p.dir, string(n)+".wav")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
		defer cancel()
		if err := p.run(ctx, p.command, file); err != nil {
			p.log.Warn("sound playback failed", zap.String("sound", string(n)), zap.String("file", file), zap.Error(err))
		}
	}()
}

func runCommand(ctx context.Context, command string, args ...string) error {
	return exec.CommandContext(ctx, command, args...).Run()
}
