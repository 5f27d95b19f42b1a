// Package voice narrates stories scene by scene. Each adapter wraps one
// speech Synthesizer.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

// wordsPerSecond approximates narration pace for duration estimates.
const wordsPerSecond = 2.5

// Request is the voice adapter input.
type Request struct {
	JobID    string
	Story    *domain.Story
	VoiceID  string
	Emotions []string
}

// NewRequest classifies every scene of the story.
func NewRequest(jobID string, story *domain.Story, voiceID string) Request {
	emotions := make([]string, len(story.Scenes))
	for i, sc := range story.Scenes {
		emotions[i] = Classify(sc)
	}
	return Request{JobID: jobID, Story: story, VoiceID: voiceID, Emotions: emotions}
}

// Line is one utterance to synthesize.
type Line struct {
	Text    string
	VoiceID string
	Emotion string
}

// Clip is synthesized audio. Duration is zero when the synthesizer cannot tell.
type Clip struct {
	Data     []byte
	MIME     string
	Duration float64
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Name() string
	Available(ctx context.Context) providers.Availability
	Speak(ctx context.Context, line Line) (*Clip, error)
}

// Narrator is the voice adapter over one Synthesizer.
type Narrator struct {
	synth        Synthesizer
	blobs        storage.BlobStore
	defaultVoice string
	concurrency  int
	logger       zerolog.Logger
}

var _ providers.Adapter[Request, *domain.Narration] = (*Narrator)(nil)

// NarratorOptions configures a Narrator.
type NarratorOptions struct {
	Blobs        storage.BlobStore
	DefaultVoice string
	Concurrency  int
	Logger       *zerolog.Logger
}

func NewNarrator(synth Synthesizer, opts NarratorOptions) *Narrator {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("synthesizer", synth.Name()).Logger()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Narrator{
		synth:        synth,
		blobs:        opts.Blobs,
		defaultVoice: opts.DefaultVoice,
		concurrency:  concurrency,
		logger:       logger,
	}
}

func (n *Narrator) Name() string { return n.synth.Name() }

func (n *Narrator) Available(ctx context.Context) providers.Availability {
	if n.blobs == nil {
		return providers.Unavailable("no blob store configured", false)
	}
	return n.synth.Available(ctx)
}

func (n *Narrator) Generate(ctx context.Context, req Request) (*domain.Narration, error) {
	if req.Story == nil || len(req.Story.Scenes) == 0 {
		return nil, errors.New("voice: story has no scenes")
	}
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = n.defaultVoice
	}
	scenes := make([]domain.SceneAudio, len(req.Story.Scenes))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(n.concurrency)
	for i, sc := range req.Story.Scenes {
		emotion := EmotionNeutral
		if i < len(req.Emotions) && req.Emotions[i] != "" {
			emotion = req.Emotions[i]
		}
		text := narrationText(sc)
		group.Go(func() error {
			clip, err := n.synth.Speak(gctx, Line{Text: text, VoiceID: voiceID, Emotion: emotion})
			if err != nil {
				return fmt.Errorf("scene %d: %w", sc.Number, err)
			}
			if len(clip.Data) == 0 {
				return fmt.Errorf("scene %d: empty audio", sc.Number)
			}
			url, err := n.blobs.Put(gctx, storage.AssetKey("narration", req.JobID, "scene", i, clip.MIME), clip.Data)
			if err != nil {
				return fmt.Errorf("scene %d: store: %w", sc.Number, err)
			}
			duration := clip.Duration
			if duration <= 0 {
				duration = EstimateDuration(text)
			}
			scenes[i] = domain.SceneAudio{
				SceneNumber: sc.Number,
				URL:         url,
				Duration:    duration,
				Emotion:     emotion,
				Text:        text,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	total := 0.0
	for _, s := range scenes {
		total += s.Duration
	}
	return &domain.Narration{
		Scenes:        scenes,
		TotalDuration: math.Round(total*10) / 10,
		VoiceID:       voiceID,
		Method:        n.Name(),
	}, nil
}

func narrationText(sc domain.Scene) string {
	text := strings.TrimSpace(sc.Description)
	if text == "" {
		text = strings.TrimSpace(sc.Title)
	}
	return text
}

// EstimateDuration approximates spoken length in seconds, never below one.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	d := math.Round(float64(words)/wordsPerSecond*10) / 10
	if d < 1 {
		return 1
	}
	return d
}
