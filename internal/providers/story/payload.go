package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

type modelStoryPayload struct {
	Title     string              `json:"title"`
	FullStory string              `json:"fullStory"`
	Scenes    []modelScenePayload `json:"scenes"`
}

type modelScenePayload struct {
	Title       string `json:"title"`
	Camera      string `json:"camera"`
	Description string `json:"description"`
}

var lengthGuidance = map[string]string{
	"short":  "Keep the full story under 150 words.",
	"medium": "Keep the full story between 200 and 300 words.",
	"long":   "Write a full story of 400 to 500 words.",
}

func buildStoryPrompt(req Request) string {
	c := req.Character
	sb := &strings.Builder{}
	sb.WriteString("You are a children's storyteller writing for an illustrated storyboard. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"title":string,"fullStory":string,"scenes":[{"title":string,"camera":string,"description":string}]}`)
	fmt.Fprintf(sb, ". Write exactly %d scenes. Each scene description is one visual sentence an illustrator can draw. ", domain.SceneCount)
	fmt.Fprintf(sb, "Choose each camera from: %s, using a different one per scene. ", strings.Join(domain.CameraAngles, ", "))
	if g, ok := lengthGuidance[req.Options.Length]; ok {
		sb.WriteString(g + " ")
	}
	fmt.Fprintf(sb, "Main character: name=%q", c.Name)
	if d := strings.TrimSpace(c.Description); d != "" {
		fmt.Fprintf(sb, ", description=%q", d)
	}
	if t := c.TraitSummary(); t != "" {
		fmt.Fprintf(sb, ", traits=%q", t)
	}
	fmt.Fprintf(sb, ". Genre: %s. Visual style: %s.", req.Genre, req.Style)
	if req.Options.Tone != "" {
		fmt.Fprintf(sb, " Tone: %s.", req.Options.Tone)
	}
	if req.Options.StoryType != "" {
		fmt.Fprintf(sb, " Story type: %s.", req.Options.StoryType)
	}
	fmt.Fprintf(sb, " Story idea: %q", req.Prompt)
	return sb.String()
}

// decodeStory parses a model answer into a normalized story.
func decodeStory(raw string, req Request, method string) (*domain.Story, error) {
	parsed, err := parseModelPayload[modelStoryPayload](raw)
	if err != nil {
		return nil, fmt.Errorf("parse story payload: %w", err)
	}
	if len(parsed.Scenes) == 0 {
		return nil, errors.New("story payload has no scenes")
	}
	st := &domain.Story{Title: parsed.Title, FullStory: parsed.FullStory}
	for _, sc := range parsed.Scenes {
		st.Scenes = append(st.Scenes, domain.Scene{
			Title:       sc.Title,
			Camera:      sc.Camera,
			Description: sc.Description,
		})
	}
	out := Normalize(st, req)
	out.Method = method
	return out, nil
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
