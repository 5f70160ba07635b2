package script

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var tables embed.FS

// Registry holds every script table shipped with the server. It is built once
// at startup and only read afterwards.
type Registry struct {
	scripts map[string]*Script
}

func NewRegistry() (*Registry, error) {
	return LoadRegistry(tables, "data")
}

// LoadRegistry reads every *.yaml file in dir as one script.
func LoadRegistry(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read script tables: %w", err)
	}

	r := &Registry{scripts: make(map[string]*Script)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var s Script
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		if err := validate(&s); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		r.scripts[Normalize(s.Name)] = &s
	}
	return r, nil
}

func validate(s *Script) error {
	if s.Name == "" {
		return errors.New("script has no name")
	}
	seen := make(map[string]bool)
	for _, c := range append(append([]*Character{}, s.Characters...), s.Travelers...) {
		key := Normalize(c.Name)
		if key == "" {
			return errors.New("character with empty name")
		}
		if seen[key] {
			return fmt.Errorf("duplicate character %q", c.Name)
		}
		seen[key] = true
		switch c.Category {
		case CategoryTownsfolk, CategoryOutsider, CategoryMinion, CategoryDemon, CategoryTraveler:
		default:
			return fmt.Errorf("character %q: bad category %q", c.Name, c.Category)
		}
		if _, ok := ParseAlignment(string(c.Alignment)); !ok {
			return fmt.Errorf("character %q: bad alignment %q", c.Name, c.Alignment)
		}
	}
	for _, t := range s.Travelers {
		if !t.IsTraveler() {
			return fmt.Errorf("traveler %q has category %q", t.Name, t.Category)
		}
	}
	return nil
}

func (r *Registry) Script(name string) (*Script, error) {
	s, ok := r.scripts[Normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scripts))
	for _, s := range r.scripts {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
