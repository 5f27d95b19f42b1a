package domain

import "time"

// SceneCount is the fixed number of scenes in every story.
const SceneCount = 4

// CameraAngles lists the allowed scene cameras in preference order.
var CameraAngles = []string{
	"Wide shot",
	"Medium shot",
	"Close-up",
	"Low angle",
	"High angle",
	"Extreme close-up",
	"Bird's-eye view",
	"Over-the-shoulder shot",
}

// ValidCamera reports whether c is one of CameraAngles.
func ValidCamera(c string) bool {
	for _, a := range CameraAngles {
		if a == c {
			return true
		}
	}
	return false
}

type Scene struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Camera      string `json:"camera"`
	Description string `json:"description"`
	Character   string `json:"character"`
}

type Story struct {
	Title     string  `json:"title"`
	Character string  `json:"character"`
	FullStory string  `json:"fullStory"`
	Scenes    []Scene `json:"scenes"`
	Method    string  `json:"method"`
}

// StoryboardResult holds one URL per scene or a single composite.
type StoryboardResult struct {
	URLs         []string `json:"urls,omitempty"`
	CompositeURL string   `json:"compositeUrl,omitempty"`
	Method       string   `json:"method"`
	Mode         string   `json:"mode"`
}

// Frames returns the per-scene URLs, or the composite as a single frame.
func (s *StoryboardResult) Frames() []string {
	if s == nil {
		return nil
	}
	if len(s.URLs) > 0 {
		return s.URLs
	}
	if s.CompositeURL != "" {
		return []string{s.CompositeURL}
	}
	return nil
}

type SceneAudio struct {
	SceneNumber int     `json:"sceneNumber"`
	URL         string  `json:"url"`
	Duration    float64 `json:"duration"`
	Emotion     string  `json:"emotion"`
	Text        string  `json:"text"`
}

type Narration struct {
	Scenes        []SceneAudio `json:"scenes"`
	TotalDuration float64      `json:"totalDuration"`
	VoiceID       string       `json:"voiceId"`
	Method        string       `json:"method"`
}

type Video struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Method   string  `json:"method"`
}

type ResultMetadata struct {
	CharacterName        string     `json:"characterName"`
	Style                string     `json:"style"`
	Genre                string     `json:"genre"`
	ScenesCount          int        `json:"scenesCount"`
	GenerationMethod     string     `json:"generationMethod"`
	GeneratedAt          time.Time  `json:"generatedAt"`
	StoryboardMethod     string     `json:"storyboardMethod,omitempty"`
	StoryboardMode       string     `json:"storyboardMode,omitempty"`
	VoiceMethod          string     `json:"voiceMethod,omitempty"`
	VideoMethod          string     `json:"videoMethod,omitempty"`
	CharacterSubstituted bool       `json:"characterSubstituted"`
	RetryCount           int        `json:"retryCount"`
	Degraded             []StepName `json:"degraded"`
	Warnings             []Warning  `json:"warnings"`
}

type Result struct {
	JobID          string         `json:"jobId"`
	Story          *Story         `json:"story"`
	VideoURL       string         `json:"videoUrl,omitempty"`
	StoryboardURLs []string       `json:"storyboardUrls"`
	AudioNarration *Narration     `json:"audioNarration,omitempty"`
	Metadata       ResultMetadata `json:"metadata"`
}
