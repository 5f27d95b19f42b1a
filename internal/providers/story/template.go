package story

import (
	"context"
	"fmt"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// MethodTemplate identifies stories built without a model.
const MethodTemplate = "template"

// Template writes a four-beat story from fixed templates. It is always available.
type Template struct{}

func NewTemplate() *Template { return &Template{} }

func (t *Template) Name() string { return MethodTemplate }

func (t *Template) Available(ctx context.Context) providers.Availability {
	return providers.Ready
}

func (t *Template) Generate(ctx context.Context, req Request) (*domain.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scenes := templateScenes(req)
	var full strings.Builder
	for i, sc := range scenes {
		if i > 0 {
			full.WriteString(" ")
		}
		full.WriteString(sc.Description)
	}
	st := Normalize(&domain.Story{
		Title:     templateTitle(req),
		FullStory: full.String(),
		Scenes:    scenes,
	}, req)
	st.Method = MethodTemplate
	return st, nil
}

type beat struct {
	title string
	text  string
}

var genreBeats = map[string][domain.SceneCount]beat{
	"adventure": {
		{"The Call To Adventure", "%s stands at the edge of the unknown, ready to begin: %s."},
		{"Into The Wild", "%s journeys through winding paths and surprising landscapes."},
		{"The Great Challenge", "%s faces a daring obstacle that tests every ounce of courage."},
		{"Homeward Bound", "%s returns triumphant, wiser and glowing with pride."},
	},
	"fantasy": {
		{"A Spark Of Magic", "%s discovers a shimmering sign of magic: %s."},
		{"The Enchanted Realm", "%s steps into a glowing realm of floating lights and ancient trees."},
		{"The Spell Is Tested", "%s confronts a powerful enchantment and must choose wisely."},
		{"Magic Restored", "%s brings harmony back to the realm as the magic sparkles anew."},
	},
	"sci-fi": {
		{"Signal From The Stars", "%s receives a mysterious signal from deep space: %s."},
		{"Launch Sequence", "%s races across the galaxy past glittering nebulae."},
		{"Trouble In Orbit", "%s repairs a failing system moments before disaster."},
		{"A New Horizon", "%s watches a new planet rise, the mission complete."},
	},
	"mystery": {
		{"A Curious Clue", "%s notices a puzzling clue that no one else has seen: %s."},
		{"Following The Trail", "%s follows footprints and whispers through shadowy corners."},
		{"The Hidden Room", "%s uncovers a secret room full of answers and surprises."},
		{"Mystery Solved", "%s reveals the truth as everyone gathers in amazement."},
	},
}

// templateScenes renders the genre's four beats for the request.
func templateScenes(req Request) []domain.Scene {
	beats, ok := genreBeats[req.Genre]
	if !ok {
		beats = genreBeats[domain.DefaultGenre]
	}
	name := strings.TrimSpace(req.Character.Name)
	if name == "" {
		name = "Our hero"
	}
	premise := strings.TrimSuffix(strings.TrimSpace(req.Prompt), ".")
	if premise == "" {
		premise = "a brand new day"
	}
	scenes := make([]domain.Scene, domain.SceneCount)
	for i, b := range beats {
		text := b.text
		var desc string
		if strings.Count(text, "%s") == 2 {
			desc = fmt.Sprintf(text, name, premise)
		} else {
			desc = fmt.Sprintf(text, name)
		}
		scenes[i] = domain.Scene{
			ID:          fmt.Sprintf("scene_%d", i+1),
			Number:      i + 1,
			Title:       b.title,
			Camera:      domain.CameraAngles[i],
			Description: desc,
			Character:   name,
		}
	}
	return scenes
}
