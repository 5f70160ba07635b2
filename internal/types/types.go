package types

import (
	"github.com/DoyleJ11/storyteller-backend/internal/engine"
	"github.com/DoyleJ11/storyteller-backend/internal/script"
	"github.com/DoyleJ11/storyteller-backend/internal/timer"
)

type Character struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	Alignment         string   `json:"alignment"`
	Icon              string   `json:"icon"`
	StatusEffects     []string `json:"status_effects"`
	PersistentEffects []string `json:"persistent_effects"`
}

type Player struct {
	Name            string     `json:"name"`
	Character       *Character `json:"character"`
	Alignment       string     `json:"alignment"`
	IsAlive         bool       `json:"is_alive"`
	HasUsedDeadVote bool       `json:"has_used_dead_vote"`
	StatusEffects   []string   `json:"status_effects"`
}

type NightStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AlwaysShow  bool   `json:"always_show"`
}

type Slots struct {
	Townsfolk int `json:"townsfolk"`
	Outsiders int `json:"outsiders"`
	Minions   int `json:"minions"`
	Demons    int `json:"demons"`
}

type StatusEffect struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

type Night struct {
	Step         string `json:"step"`
	IsFirstNight bool   `json:"is_first_night"`
}

type Timer struct {
	IsRunning bool `json:"is_running"`
	Seconds   int  `json:"seconds"`
}

type Game struct {
	Script            string      `json:"script"`
	PlayerCount       int         `json:"player_count"`
	IncludedRoles     []Character `json:"included_roles"`
	Players           []Player    `json:"players"`
	ShouldRevealRoles bool        `json:"should_reveal_roles"`
	CurrentNightStep  string      `json:"current_night_step"`
	IsFirstNight      bool        `json:"is_first_night"`
}

// ServerMessage is what the snapshot stream sends.
type ServerMessage struct {
	Type    string `json:"type"` // "StateSnapshot" | "Error"
	Version int    `json:"version,omitempty"`
	State   *Game  `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func FromCharacter(c *script.Character) Character {
	return Character{
		Name:              c.Name,
		Description:       c.Description,
		Category:          string(c.Category),
		Alignment:         string(c.Alignment),
		Icon:              c.IconPath(),
		StatusEffects:     nonNil(c.StatusEffects),
		PersistentEffects: nonNil(c.PersistentEffects),
	}
}

func FromCharacters(cs []*script.Character) []Character {
	out := make([]Character, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromCharacter(c))
	}
	return out
}

func FromPlayer(p engine.Player) Player {
	out := Player{
		Name:            p.Name,
		Alignment:       string(p.Alignment),
		IsAlive:         p.IsAlive,
		HasUsedDeadVote: p.HasUsedDeadVote,
		StatusEffects:   nonNil(p.StatusEffects),
	}
	if p.Character != nil {
		c := FromCharacter(p.Character)
		out.Character = &c
	}
	return out
}

func FromPlayers(ps []engine.Player) []Player {
	out := make([]Player, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromPlayer(p))
	}
	return out
}

func FromNightSteps(steps []script.NightStep) []NightStep {
	out := make([]NightStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, NightStep{Name: s.Name, Description: s.Description, AlwaysShow: s.AlwaysShow})
	}
	return out
}

func FromDistribution(d engine.Distribution) Slots {
	return Slots{Townsfolk: d.Townsfolk, Outsiders: d.Outsiders, Minions: d.Minions, Demons: d.Demons}
}

func FromStatusEffects(refs []engine.StatusEffectRef) []StatusEffect {
	out := make([]StatusEffect, 0, len(refs))
	for _, r := range refs {
		out = append(out, StatusEffect{Name: r.Name, Character: r.CharacterName})
	}
	return out
}

func FromTimer(s timer.State) Timer {
	return Timer{IsRunning: s.IsRunning, Seconds: s.Seconds}
}

// FromGame copies g into its wire form. It must run inside a store operation
// or on a committed snapshot.
func FromGame(g *engine.Game) Game {
	out := Game{
		PlayerCount:       g.PlayerCount,
		IncludedRoles:     FromCharacters(g.IncludedRoles),
		Players:           FromPlayers(g.PlayerViews()),
		ShouldRevealRoles: g.ShouldRevealRoles,
		CurrentNightStep:  g.CurrentNightStep,
		IsFirstNight:      g.IsFirstNight,
	}
	if g.Script != nil {
		out.Script = g.Script.Name
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}
