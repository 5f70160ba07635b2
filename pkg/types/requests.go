// Package types holds the request bodies accepted by the storyteller HTTP
// API.
package types

type NewGame struct {
	Script      string `json:"script"`
	PlayerCount int    `json:"player_count"` // 0 leaves it unset
}

type Role struct {
	Name string `json:"name"`
}

type Roles struct {
	Names []string `json:"names"`
}

type Player struct {
	Name string `json:"name"`
}

type PlayerWithRole struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type PlayerWithTraveler struct {
	Name     string `json:"name"`
	Traveler string `json:"traveler"`
}

type SetAlive struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"is_alive"`
}

type SetDeadVote struct {
	Name            string `json:"name"`
	HasUsedDeadVote bool   `json:"has_used_dead_vote"`
}

type SetAlignment struct {
	Name      string `json:"name"`
	Alignment string `json:"alignment"`
}

type Swap struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

type StatusEffect struct {
	Name   string `json:"name"`
	Effect string `json:"effect"`
}

type Visibility struct {
	Reveal bool `json:"reveal"`
}

type NightStep struct {
	Step string `json:"step"`
}

type FirstNight struct {
	IsFirstNight bool `json:"is_first_night"`
}

type TimerStart struct {
	Seconds *int `json:"seconds,omitempty"` // nil resumes
}

type TimerAdd struct {
	Seconds int `json:"seconds"`
}
