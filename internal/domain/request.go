package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 1000

	DefaultStyle  = "cartoon"
	DefaultGenre  = "adventure"
	DefaultLength = "medium"
)

var (
	Styles  = []string{"cartoon", "watercolor", "cinematic", "anime", "storybook"}
	Genres  = []string{"fantasy", "sci-fi", "adventure", "mystery"}
	Lengths = []string{"short", "medium", "long"}
)

// RequestOptions is the client supplied options payload. Pointers distinguish
// an omitted flag from an explicit false.
type RequestOptions struct {
	IncludeVoice    *bool  `json:"includeVoice,omitempty"`
	IncludeVideo    *bool  `json:"includeVideo,omitempty"`
	Length          string `json:"length,omitempty"`
	Tone            string `json:"tone,omitempty"`
	MotionIntensity string `json:"motionIntensity,omitempty"`
	StoryType       string `json:"storyType,omitempty"`
	VoiceID         string `json:"voiceId,omitempty"`
}

// GenerateRequest is the submit payload.
type GenerateRequest struct {
	Prompt      string         `json:"prompt"`
	CharacterID string         `json:"characterId"`
	Style       string         `json:"style"`
	Genre       string         `json:"genre"`
	Options     RequestOptions `json:"options"`
}

// Normalize trims input and fills defaults for omitted enumerations.
func (r *GenerateRequest) Normalize() {
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.CharacterID = strings.TrimSpace(r.CharacterID)
	r.Style = strings.ToLower(strings.TrimSpace(r.Style))
	r.Genre = strings.ToLower(strings.TrimSpace(r.Genre))
	r.Options.Length = strings.ToLower(strings.TrimSpace(r.Options.Length))
	if r.Style == "" {
		r.Style = DefaultStyle
	}
	if r.Genre == "" {
		r.Genre = DefaultGenre
	}
	if r.Options.Length == "" {
		r.Options.Length = DefaultLength
	}
}

// Validate returns a ValidationError listing every rejected field.
func (r *GenerateRequest) Validate() error {
	var problems []string
	n := utf8.RuneCountInString(r.Prompt)
	switch {
	case n < MinPromptLength:
		problems = append(problems, fmt.Sprintf("prompt must be at least %d characters", MinPromptLength))
	case n > MaxPromptLength:
		problems = append(problems, fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength))
	}
	if !contains(Styles, r.Style) {
		problems = append(problems, fmt.Sprintf("style must be one of %s", strings.Join(Styles, ", ")))
	}
	if !contains(Genres, r.Genre) {
		problems = append(problems, fmt.Sprintf("genre must be one of %s", strings.Join(Genres, ", ")))
	}
	if r.Options.Length != "" && !contains(Lengths, r.Options.Length) {
		problems = append(problems, fmt.Sprintf("options.length must be one of %s", strings.Join(Lengths, ", ")))
	}
	if len(problems) > 0 {
		return NewError(KindValidation, strings.Join(problems, "; "), nil)
	}
	return nil
}

// ResolvedOptions applies option defaults: voice off, video on.
func (r GenerateRequest) ResolvedOptions() Options {
	opts := Options{
		IncludeVideo:    true,
		Length:          r.Options.Length,
		Tone:            r.Options.Tone,
		MotionIntensity: r.Options.MotionIntensity,
		StoryType:       r.Options.StoryType,
		VoiceID:         r.Options.VoiceID,
	}
	if opts.Length == "" {
		opts.Length = DefaultLength
	}
	if r.Options.IncludeVoice != nil {
		opts.IncludeVoice = *r.Options.IncludeVoice
	}
	if r.Options.IncludeVideo != nil {
		opts.IncludeVideo = *r.Options.IncludeVideo
	}
	return opts
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
