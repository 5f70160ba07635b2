package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

// SetAlive updates the alive flag. Only the true to false transition runs the
// cascade; reviving a player restores nothing.
func (g *Game) SetAlive(name string, alive bool) (Player, error) {
	p, err := g.Player(name)
	if err != nil {
		return Player{}, err
	}
	if p.IsAlive && !alive {
		p.IsAlive = false
		g.cascadeDeath(p)
		return p.View(), nil
	}
	p.IsAlive = alive
	return p.View(), nil
}

func (g *Game) SetDeadVote(name string, used bool) (Player, error) {
	p, err := g.Player(name)
	if err != nil {
		return Player{}, err
	}
	p.HasUsedDeadVote = used
	return p.View(), nil
}

func (g *Game) SetAlignment(name string, a script.Alignment) (Player, error) {
	parsed, ok := script.ParseAlignment(string(a))
	if !ok {
		return Player{}, fmt.Errorf("%w: unknown alignment %q", ErrInvalidArgument, a)
	}
	p, err := g.Player(name)
	if err != nil {
		return Player{}, err
	}
	p.Alignment = parsed
	return p.View(), nil
}

// SwapCharacters exchanges the characters of two players. Alignments stay
// with the players.
func (g *Game) SwapCharacters(first, second string) (Player, Player, error) {
	if first == second {
		return Player{}, Player{}, fmt.Errorf("%w: cannot swap a player with themselves", ErrInvalidArgument)
	}
	a, err := g.Player(first)
	if err != nil {
		return Player{}, Player{}, err
	}
	b, err := g.Player(second)
	if err != nil {
		return Player{}, Player{}, err
	}
	a.Character, b.Character = b.Character, a.Character
	return a.View(), b.View(), nil
}

func (g *Game) AddStatusEffect(name, effect string) (Player, error) {
	effect = strings.TrimSpace(effect)
	if effect == "" {
		return Player{}, fmt.Errorf("%w: status effect name is required", ErrInvalidArgument)
	}
	p, err := g.Player(name)
	if err != nil {
		return Player{}, err
	}
	if !p.HasStatusEffect(effect) {
		p.StatusEffects = append(p.StatusEffects, effect)
	}
	return p.View(), nil
}

// RemoveStatusEffect is a no-op when the player does not carry the effect.
func (g *Game) RemoveStatusEffect(name, effect string) (Player, error) {
	p, err := g.Player(name)
	if err != nil {
		return Player{}, err
	}
	p.StatusEffects = slices.DeleteFunc(p.StatusEffects, func(e string) bool { return e == effect })
	return p.View(), nil
}

type StatusEffectRef struct {
	Name          string
	CharacterName string
}

// StatusEffects lists the reminder effects that the characters held by
// players can place.
func (g *Game) StatusEffects() []StatusEffectRef {
	out := []StatusEffectRef{}
	for _, p := range g.Players {
		for _, e := range p.Character.StatusEffects {
			out = append(out, StatusEffectRef{Name: e, CharacterName: p.Character.Name})
		}
	}
	return out
}

func (g *Game) HasLivingCharacter(name string) bool {
	for _, p := range g.Players {
		if p.IsAlive && p.Character.IsNamed(name) {
			return true
		}
	}
	return false
}
