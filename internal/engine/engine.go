package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")
var ErrInvalidArgument = errors.New("invalid argument")

const (
	DefaultNightStep     = "Dusk"
	DefaultMaxNameLength = 50
)

type Player struct {
	Name            string
	Character       *script.Character
	Alignment       script.Alignment
	IsAlive         bool
	HasUsedDeadVote bool
	StatusEffects   []string
}

func newPlayer(name string, c *script.Character) *Player {
	return &Player{
		Name:          name,
		Character:     c,
		Alignment:     c.Alignment,
		IsAlive:       true,
		StatusEffects: []string{},
	}
}

func (p *Player) HasStatusEffect(effect string) bool {
	return slices.Contains(p.StatusEffects, effect)
}

// View returns a detached copy that is safe to hand out of a store operation.
func (p *Player) View() Player {
	v := *p
	v.StatusEffects = slices.Clone(p.StatusEffects)
	return v
}

// Game is the session aggregate. It is not safe for concurrent use; the
// store serializes every access to it.
type Game struct {
	Script            *script.Script
	PlayerCount       int
	IncludedRoles     []*script.Character
	Players           []*Player
	ShouldRevealRoles bool
	CurrentNightStep  string
	IsFirstNight      bool

	maxNameLength int
	pick          func(n int) int
}

type Option func(*Game)

// WithPicker replaces the random index source used by AssignRandom.
func WithPicker(pick func(n int) int) Option {
	return func(g *Game) { g.pick = pick }
}

func WithMaxNameLength(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.maxNameLength = n
		}
	}
}

// NewGame builds an empty session for s. playerCount 0 leaves the role
// distribution unspecified.
func NewGame(s *script.Script, playerCount int, opts ...Option) (*Game, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: script is required", ErrInvalidArgument)
	}
	if playerCount != 0 {
		if _, ok := distributions[playerCount]; !ok {
			return nil, fmt.Errorf("%w: invalid number of players: %d", ErrInvalidArgument, playerCount)
		}
	}
	g := &Game{
		Script:           s,
		PlayerCount:      playerCount,
		IncludedRoles:    []*script.Character{},
		Players:          []*Player{},
		CurrentNightStep: DefaultNightStep,
		IsFirstNight:     true,
		maxNameLength:    DefaultMaxNameLength,
		pick:             rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Clone deep-copies everything a store operation may mutate. Characters and
// the script are shared read-only data.
func (g *Game) Clone() *Game {
	c := *g
	c.IncludedRoles = slices.Clone(g.IncludedRoles)
	c.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.StatusEffects = slices.Clone(p.StatusEffects)
		c.Players[i] = &cp
	}
	return &c
}

func (g *Game) Player(name string) (*Player, error) {
	for _, p := range g.Players {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: player not found: %s", ErrNotFound, name)
}

func (g *Game) PlayerViews() []Player {
	out := make([]Player, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, p.View())
	}
	return out
}

func (g *Game) SetVisibility(reveal bool) {
	g.ShouldRevealRoles = reveal
}

func (g *Game) validateNewName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: player name is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(name) > g.maxNameLength {
		return "", fmt.Errorf("%w: player name longer than %d characters", ErrInvalidArgument, g.maxNameLength)
	}
	for _, p := range g.Players {
		if p.Name == name {
			return "", fmt.Errorf("%w: player %s already exists", ErrConflict, name)
		}
	}
	return name, nil
}
