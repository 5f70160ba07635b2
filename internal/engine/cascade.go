package engine

import "slices"

// cascadeDeath strips every effect the dead player's character is the source
// of from all other players.
func (g *Game) cascadeDeath(dead *Player) {
	if len(dead.Character.PersistentEffects) == 0 {
		return
	}
	for _, p := range g.Players {
		if p == dead {
			continue
		}
		p.StatusEffects = slices.DeleteFunc(p.StatusEffects, dead.Character.IsSourceOf)
	}
}
