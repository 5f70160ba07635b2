package script

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

var ErrUnknownScript = errors.New("script not found")

type Category string

const (
	CategoryTownsfolk Category = "townsfolk"
	CategoryOutsider  Category = "outsider"
	CategoryMinion    Category = "minion"
	CategoryDemon     Category = "demon"
	CategoryTraveler  Category = "traveler"
)

type Alignment string

const (
	AlignmentGood    Alignment = "good"
	AlignmentEvil    Alignment = "evil"
	AlignmentUnknown Alignment = "unknown"
)

func ParseAlignment(s string) (Alignment, bool) {
	switch Alignment(Normalize(s)) {
	case AlignmentGood:
		return AlignmentGood, true
	case AlignmentEvil:
		return AlignmentEvil, true
	case AlignmentUnknown:
		return AlignmentUnknown, true
	default:
		return "", false
	}
}

// Changes is the net adjustment a character makes to the base role
// distribution, e.g. the Baron adds two outsiders.
type Changes struct {
	Townsfolk int `yaml:"townsfolk"`
	Outsider  int `yaml:"outsider"`
	Minion    int `yaml:"minion"`
	Demon     int `yaml:"demon"`
}

// Character is a read-only record shared by every session built from the
// same script. Players hold a pointer to it and never mutate it.
type Character struct {
	Name              string    `yaml:"name"`
	Description       string    `yaml:"description"`
	Category          Category  `yaml:"category"`
	Alignment         Alignment `yaml:"alignment"`
	Changes           *Changes  `yaml:"changes"`
	StatusEffects     []string  `yaml:"status_effects"`
	PersistentEffects []string  `yaml:"persistent_effects"`
}

func (c *Character) IsNamed(name string) bool {
	return Normalize(c.Name) == Normalize(name)
}

func (c *Character) IsTraveler() bool { return c.Category == CategoryTraveler }

// IconPath is the asset name the front end uses for the character token.
func (c *Character) IconPath() string {
	return strings.ReplaceAll(strings.ToLower(c.Name), " ", "") + ".png"
}

func (c *Character) IsSourceOf(effect string) bool {
	for _, e := range c.PersistentEffects {
		if e == effect {
			return true
		}
	}
	return false
}

type NightStep struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	AlwaysShow  bool   `yaml:"always_show"`
}

type Script struct {
	Name        string       `yaml:"name"`
	Title       string       `yaml:"title"`
	Characters  []*Character `yaml:"characters"`
	Travelers   []*Character `yaml:"travelers"`
	FirstNight  []NightStep  `yaml:"first_night"`
	OtherNights []NightStep  `yaml:"other_nights"`
}

func (s *Script) Character(name string) (*Character, bool) {
	return find(s.Characters, name)
}

func (s *Script) Traveler(name string) (*Character, bool) {
	return find(s.Travelers, name)
}

func (s *Script) FirstNightSteps() []NightStep { return s.FirstNight }

func (s *Script) OtherNightSteps() []NightStep { return s.OtherNights }

func find(chars []*Character, name string) (*Character, bool) {
	if Normalize(name) == "" {
		return nil, false
	}
	for _, c := range chars {
		if c.IsNamed(name) {
			return c, true
		}
	}
	return nil, false
}

// Normalize folds case and trims whitespace so "  fortune TELLER " matches
// "Fortune Teller".
func Normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
