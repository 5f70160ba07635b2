package engine

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/storyteller-backend/internal/script"
)

func (g *Game) FirstNightSteps() []script.NightStep {
	return g.filterSteps(g.Script.FirstNightSteps())
}

func (g *Game) OtherNightSteps() []script.NightStep {
	return g.filterSteps(g.Script.OtherNightSteps())
}

// NightSteps returns the steps for whichever night the bookmark is on.
func (g *Game) NightSteps() []script.NightStep {
	if g.IsFirstNight {
		return g.FirstNightSteps()
	}
	return g.OtherNightSteps()
}

// A step shows when it is always shown or its character is held by a living
// player.
func (g *Game) filterSteps(steps []script.NightStep) []script.NightStep {
	out := make([]script.NightStep, 0, len(steps))
	for _, s := range steps {
		if s.AlwaysShow || g.HasLivingCharacter(s.Name) {
			out = append(out, s)
		}
	}
	return out
}

func (g *Game) SetNightStep(step string) error {
	step = strings.TrimSpace(step)
	if step == "" {
		return fmt.Errorf("%w: night step is required", ErrInvalidArgument)
	}
	steps := g.Script.OtherNightSteps()
	if g.IsFirstNight {
		steps = g.Script.FirstNightSteps()
	}
	for _, s := range steps {
		if script.Normalize(s.Name) == script.Normalize(step) {
			g.CurrentNightStep = s.Name
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a step of this night", ErrInvalidArgument, step)
}

// SetFirstNight always puts the bookmark back at dusk.
func (g *Game) SetFirstNight(first bool) {
	g.IsFirstNight = first
	g.CurrentNightStep = DefaultNightStep
}
