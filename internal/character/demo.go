package character

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// DemoPrefix marks ids that always resolve through the demo table.
const DemoPrefix = "demo_"

//go:embed demo_characters.yaml
var demoYAML []byte

// Demo is the in-memory table of preset characters.
type Demo struct {
	order []string
	byID  map[string]domain.Character
}

// NewDemo loads the embedded demo table.
func NewDemo() (*Demo, error) {
	return parseDemo(demoYAML)
}

func parseDemo(raw []byte) (*Demo, error) {
	var entries []domain.Character
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("character: parse demo table: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("character: demo table is empty")
	}
	d := &Demo{byID: make(map[string]domain.Character, len(entries))}
	for _, c := range entries {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("character: demo entry %q: %w", c.ID, err)
		}
		if _, dup := d.byID[c.ID]; dup {
			return nil, fmt.Errorf("character: duplicate demo id %q", c.ID)
		}
		c.IsDemo = true
		c.Identity = IdentityVector(c.ID)
		d.byID[c.ID] = c
		d.order = append(d.order, c.ID)
	}
	return d, nil
}

// Match reports whether id belongs to the demo registry.
func (d *Demo) Match(id string) bool {
	if _, ok := d.byID[id]; ok {
		return true
	}
	return strings.HasPrefix(id, DemoPrefix)
}

// Lookup returns the entry for id, accepting the demo prefix.
func (d *Demo) Lookup(id string) (domain.Character, bool) {
	if c, ok := d.byID[id]; ok {
		return copyCharacter(c), true
	}
	if c, ok := d.byID[strings.TrimPrefix(id, DemoPrefix)]; ok && strings.HasPrefix(id, DemoPrefix) {
		return copyCharacter(c), true
	}
	return domain.Character{}, false
}

// Fallback is the first demo entry.
func (d *Demo) Fallback() domain.Character {
	return copyCharacter(d.byID[d.order[0]])
}

// List returns all demo characters in table order.
func (d *Demo) List() []domain.Character {
	out := make([]domain.Character, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, copyCharacter(d.byID[id]))
	}
	return out
}

func copyCharacter(c domain.Character) domain.Character {
	c.Traits = append([]string(nil), c.Traits...)
	c.Identity = append([]float32(nil), c.Identity...)
	return c
}
