package domain

import (
	"fmt"
	"strings"
)

// Character is the normalized descriptor adapters use to anchor identity.
type Character struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Traits       []string `json:"traits" yaml:"traits"`
	ImageURL     string   `json:"imageUrl,omitempty" yaml:"imageUrl"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty" yaml:"thumbnailUrl"`
	IsDemo       bool     `json:"isDemo" yaml:"-"`

	// Identity is the deterministic embedding carried by demo characters.
	Identity []float32 `json:"-" yaml:"-"`
}

// Validate rejects descriptors missing an id or name.
func (c *Character) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return NewError(KindCharacterMalformed, fmt.Sprintf("character descriptor missing %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// TraitSummary joins traits for prompt building.
func (c *Character) TraitSummary() string {
	traits := make([]string, 0, len(c.Traits))
	for _, t := range c.Traits {
		if t = strings.TrimSpace(t); t != "" {
			traits = append(traits, t)
		}
	}
	return strings.Join(traits, ", ")
}
