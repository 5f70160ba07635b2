package engine

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

func (g *Game) IncludeRole(name string) (*script.Character, error) {
	c, err := g.includable(name, nil)
	if err != nil {
		return nil, err
	}
	g.IncludedRoles = append(g.IncludedRoles, c)
	return c, nil
}

// IncludeRoles validates every name before touching the pool; one bad name
// leaves the pool unchanged.
func (g *Game) IncludeRoles(names []string) ([]*script.Character, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no character names given", ErrInvalidArgument)
	}

	var errs error
	batch := make([]*script.Character, 0, len(names))
	for _, name := range names {
		c, err := g.includable(name, batch)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		batch = append(batch, c)
	}
	if errs != nil {
		return nil, errs
	}

	g.IncludedRoles = append(g.IncludedRoles, batch...)
	return batch, nil
}

func (g *Game) includable(name string, pending []*script.Character) (*script.Character, error) {
	if script.Normalize(name) == "" {
		return nil, fmt.Errorf("%w: character name is required", ErrInvalidArgument)
	}
	c, ok := g.Script.Character(name)
	if !ok {
		return nil, fmt.Errorf("%w: character %q not in script %s", ErrNotFound, name, g.Script.Name)
	}
	if slices.Contains(g.IncludedRoles, c) || slices.Contains(pending, c) {
		return nil, fmt.Errorf("%w: %s already included", ErrConflict, c.Name)
	}
	if holder := g.holderOf(c); holder != nil {
		return nil, fmt.Errorf("%w: %s already assigned to %s", ErrConflict, c.Name, holder.Name)
	}
	return c, nil
}

func (g *Game) ExcludeRole(name string) error {
	i := slices.IndexFunc(g.IncludedRoles, func(c *script.Character) bool { return c.IsNamed(name) })
	if i < 0 {
		return fmt.Errorf("%w: role %q not in included roles", ErrNotFound, name)
	}
	g.IncludedRoles = slices.Delete(g.IncludedRoles, i, i+1)
	return nil
}

// AssignRole creates a player holding the named included role.
func (g *Game) AssignRole(playerName, roleName string) (Player, error) {
	name, err := g.validateNewName(playerName)
	if err != nil {
		return Player{}, err
	}
	if script.Normalize(roleName) == "" {
		return Player{}, fmt.Errorf("%w: character name is required", ErrInvalidArgument)
	}

	i := slices.IndexFunc(g.IncludedRoles, func(c *script.Character) bool { return c.IsNamed(roleName) })
	if i < 0 {
		if c, ok := g.Script.Character(roleName); ok {
			if holder := g.holderOf(c); holder != nil {
				return Player{}, fmt.Errorf("%w: %s already assigned to %s", ErrConflict, c.Name, holder.Name)
			}
		}
		return Player{}, fmt.Errorf("%w: role '%s' not found in included roles", ErrNotFound, roleName)
	}

	return g.seat(name, i), nil
}

func (g *Game) AssignRandom(playerName string) (Player, error) {
	name, err := g.validateNewName(playerName)
	if err != nil {
		return Player{}, err
	}
	if len(g.IncludedRoles) == 0 {
		return Player{}, fmt.Errorf("%w: no roles to assign", ErrInvalidArgument)
	}
	return g.seat(name, g.pick(len(g.IncludedRoles))), nil
}

func (g *Game) seat(name string, roleIdx int) Player {
	c := g.IncludedRoles[roleIdx]
	g.IncludedRoles = slices.Delete(g.IncludedRoles, roleIdx, roleIdx+1)
	p := newPlayer(name, c)
	g.Players = append(g.Players, p)
	return p.View()
}

func (g *Game) AddTraveler(playerName, travelerName string) (Player, error) {
	name, err := g.validateNewName(playerName)
	if err != nil {
		return Player{}, err
	}
	t, ok := g.Script.Traveler(travelerName)
	if !ok || g.holderOf(t) != nil {
		return Player{}, fmt.Errorf("%w: traveler not found or in game: %s", ErrNotFound, travelerName)
	}
	p := newPlayer(name, t)
	g.Players = append(g.Players, p)
	return p.View(), nil
}

// RemovePlayer drops the player and returns a non-traveler character to the
// included pool.
func (g *Game) RemovePlayer(name string) (Player, error) {
	i := slices.IndexFunc(g.Players, func(p *Player) bool { return p.Name == name })
	if i < 0 {
		return Player{}, fmt.Errorf("%w: player not found: %s", ErrNotFound, name)
	}
	p := g.Players[i]
	g.Players = slices.Delete(g.Players, i, i+1)
	if !p.Character.IsTraveler() {
		g.IncludedRoles = append(g.IncludedRoles, p.Character)
	}
	return p.View(), nil
}

func (g *Game) UnclaimedTravelers() []*script.Character {
	out := []*script.Character{}
	for _, t := range g.Script.Travelers {
		if g.holderOf(t) == nil {
			out = append(out, t)
		}
	}
	return out
}

func (g *Game) holderOf(c *script.Character) *Player {
	for _, p := range g.Players {
		if p.Character == c {
			return p
		}
	}
	return nil
}
