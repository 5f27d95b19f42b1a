// Package story holds the story-capability adapters and the normalization
// that guarantees every story leaves the adapter with exactly four scenes.
package story

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Request is the story adapter input.
type Request struct {
	Prompt    string
	Genre     string
	Style     string
	Character domain.Character
	Options   domain.Options
}

var titleCaser = cases.Title(language.English)

// Title title-cases s.
func Title(s string) string {
	return titleCaser.String(strings.TrimSpace(s))
}

// Normalize enforces the story shape: exactly four numbered scenes with
// title, camera and description set, distinct cameras where possible, and
// the character name on every scene. Missing scenes come from the template.
func Normalize(s *domain.Story, req Request) *domain.Story {
	out := &domain.Story{}
	if s != nil {
		*out = *s
	}
	name := req.Character.Name
	out.Character = name
	out.Title = strings.TrimSpace(out.Title)
	if out.Title == "" {
		out.Title = templateTitle(req)
	} else {
		out.Title = Title(out.Title)
	}

	template := templateScenes(req)
	scenes := make([]domain.Scene, domain.SceneCount)
	for i := range scenes {
		var sc domain.Scene
		if s != nil && i < len(s.Scenes) {
			sc = s.Scenes[i]
		}
		tpl := template[i]
		if strings.TrimSpace(sc.Title) == "" {
			sc.Title = tpl.Title
		}
		sc.Title = Title(sc.Title)
		sc.Description = strings.TrimSpace(sc.Description)
		if sc.Description == "" {
			sc.Description = tpl.Description
		}
		if strings.TrimSpace(sc.ID) == "" {
			sc.ID = uuid.NewString()
		}
		sc.Number = i + 1
		sc.Character = name
		sc.Camera = strings.TrimSpace(sc.Camera)
		scenes[i] = sc
	}
	assignCameras(scenes)
	out.Scenes = scenes

	if strings.TrimSpace(out.FullStory) == "" {
		parts := make([]string, len(scenes))
		for i, sc := range scenes {
			parts[i] = sc.Description
		}
		out.FullStory = strings.Join(parts, " ")
	}
	return out
}

// assignCameras replaces invalid or repeated cameras with the first unused
// angle. Valid first occurrences are kept.
func assignCameras(scenes []domain.Scene) {
	used := make(map[string]bool, len(scenes))
	pending := make([]int, 0, len(scenes))
	for i := range scenes {
		c := canonicalCamera(scenes[i].Camera)
		if c != "" && !used[c] {
			scenes[i].Camera = c
			used[c] = true
			continue
		}
		pending = append(pending, i)
	}
	for _, i := range pending {
		for _, angle := range domain.CameraAngles {
			if !used[angle] {
				scenes[i].Camera = angle
				used[angle] = true
				break
			}
		}
	}
}

// canonicalCamera matches case-insensitively and tolerates a trailing period.
func canonicalCamera(c string) string {
	c = strings.TrimSuffix(strings.TrimSpace(c), ".")
	for _, angle := range domain.CameraAngles {
		if strings.EqualFold(angle, c) {
			return angle
		}
	}
	return ""
}

func templateTitle(req Request) string {
	genre := req.Genre
	if genre == "" {
		genre = domain.DefaultGenre
	}
	return Title(fmt.Sprintf("%s and the %s %s", req.Character.Name, lengthAdjective(req.Options.Length), genreNoun(genre)))
}

func lengthAdjective(length string) string {
	switch length {
	case "short":
		return "little"
	case "long":
		return "great"
	}
	return "grand"
}

func genreNoun(genre string) string {
	switch genre {
	case "fantasy":
		return "enchanted quest"
	case "sci-fi":
		return "starbound mission"
	case "mystery":
		return "hidden mystery"
	}
	return "adventure"
}
