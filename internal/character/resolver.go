// Package character resolves character ids to descriptors across the demo
// table, the cloud profile store and uploaded descriptor files.
package character

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Source is a backing store that may know a character. Lookup returns
// (nil, nil) on a miss.
type Source interface {
	Name() string
	Lookup(ctx context.Context, id string) (*domain.Character, error)
}

// Resolution is the outcome of Resolve. Substituted is set when the
// fallback descriptor stands in for the requested id.
type Resolution struct {
	Character   domain.Character `json:"character"`
	Source      string           `json:"source"`
	Substituted bool             `json:"substituted"`
	Warning     *domain.Warning  `json:"warning,omitempty"`
}

type Resolver struct {
	demo    *Demo
	sources []Source
	logger  zerolog.Logger
}

// NewResolver resolves through demo first, then sources in order. Nil
// sources are ignored so optional stores can be passed unconditionally.
func NewResolver(demo *Demo, logger *zerolog.Logger, sources ...Source) *Resolver {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "character.resolver").Logger()
	}
	r := &Resolver{demo: demo, logger: l}
	for _, s := range sources {
		if s != nil && !isNilSource(s) {
			r.sources = append(r.sources, s)
		}
	}
	return r
}

func isNilSource(s Source) bool {
	switch v := s.(type) {
	case *CloudStore:
		return v == nil
	case *LocalStore:
		return v == nil
	}
	return false
}

// Demo exposes the demo table.
func (r *Resolver) Demo() *Demo { return r.demo }

// List returns the demo catalogue.
func (r *Resolver) List() []domain.Character { return r.demo.List() }

// Resolve always yields a descriptor unless a store returns a malformed one.
func (r *Resolver) Resolve(ctx context.Context, id string) (Resolution, error) {
	if id != "" && r.demo.Match(id) {
		if c, ok := r.demo.Lookup(id); ok {
			return Resolution{Character: c, Source: "demo"}, nil
		}
		return r.fallback(id, "demo prefix without a matching demo character"), nil
	}

	if id != "" {
		for _, src := range r.sources {
			c, err := src.Lookup(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrCharacterMalformed) {
					return Resolution{}, err
				}
				if ctx.Err() != nil {
					return Resolution{}, ctx.Err()
				}
				r.logger.Warn().Err(err).Str("source", src.Name()).Str("character_id", id).Msg("character source failed, trying next")
				continue
			}
			if c != nil {
				return Resolution{Character: *c, Source: src.Name()}, nil
			}
		}
	}

	return r.fallback(id, "not found in any character store"), nil
}

func (r *Resolver) fallback(id, reason string) Resolution {
	fb := r.demo.Fallback()
	msg := fmt.Sprintf("character %q %s; using %q (%s) instead", id, reason, fb.Name, fb.ID)
	if id == "" {
		msg = fmt.Sprintf("no character requested; using %q (%s)", fb.Name, fb.ID)
	}
	r.logger.Warn().Str("character_id", id).Str("fallback_id", fb.ID).Msg("character substituted")
	return Resolution{
		Character:   fb,
		Source:      "fallback",
		Substituted: true,
		Warning: &domain.Warning{
			Step:    domain.StepCharacterLoading,
			Kind:    domain.KindCharacterNotFound,
			Message: msg,
		},
	}
}
