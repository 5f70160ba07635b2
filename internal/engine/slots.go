package engine

import (
	"fmt"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

type Distribution struct {
	Townsfolk int
	Outsiders int
	Minions   int
	Demons    int
}

var distributions = map[int]Distribution{
	5:  {Townsfolk: 3, Outsiders: 0, Minions: 1, Demons: 1},
	6:  {Townsfolk: 3, Outsiders: 1, Minions: 1, Demons: 1},
	7:  {Townsfolk: 5, Outsiders: 0, Minions: 1, Demons: 1},
	8:  {Townsfolk: 5, Outsiders: 1, Minions: 1, Demons: 1},
	9:  {Townsfolk: 5, Outsiders: 2, Minions: 2, Demons: 1},
	10: {Townsfolk: 7, Outsiders: 0, Minions: 2, Demons: 1},
	11: {Townsfolk: 7, Outsiders: 1, Minions: 2, Demons: 1},
	12: {Townsfolk: 7, Outsiders: 2, Minions: 2, Demons: 1},
	13: {Townsfolk: 9, Outsiders: 0, Minions: 3, Demons: 1},
	14: {Townsfolk: 9, Outsiders: 1, Minions: 3, Demons: 1},
	15: {Townsfolk: 9, Outsiders: 2, Minions: 3, Demons: 1},
}

func BaseDistribution(playerCount int) (Distribution, bool) {
	d, ok := distributions[playerCount]
	return d, ok
}

// InPlay is every non-traveler character either waiting in the pool or held
// by a player.
func (g *Game) InPlay() []*script.Character {
	out := append([]*script.Character{}, g.IncludedRoles...)
	for _, p := range g.Players {
		if !p.Character.IsTraveler() {
			out = append(out, p.Character)
		}
	}
	return out
}

// OpenSlots is the adjusted base distribution minus the characters in play.
// A character's changes move slots from townsfolk into the named category.
func (g *Game) OpenSlots() (Distribution, error) {
	base, ok := distributions[g.PlayerCount]
	if !ok {
		return Distribution{}, fmt.Errorf("%w: player count not set for this game", ErrInvalidArgument)
	}

	inPlay := g.InPlay()
	for _, c := range inPlay {
		if c.Changes == nil {
			continue
		}
		ch := c.Changes
		base.Townsfolk += ch.Townsfolk
		base.Outsiders += ch.Outsider
		base.Minions += ch.Minion
		base.Demons += ch.Demon
		base.Townsfolk -= ch.Outsider + ch.Minion + ch.Demon
	}

	for _, c := range inPlay {
		switch c.Category {
		case script.CategoryTownsfolk:
			base.Townsfolk--
		case script.CategoryOutsider:
			base.Outsiders--
		case script.CategoryMinion:
			base.Minions--
		case script.CategoryDemon:
			base.Demons--
		}
	}
	return base, nil
}
