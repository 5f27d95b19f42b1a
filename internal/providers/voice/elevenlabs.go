package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// ElevenLabsOptions configures the ElevenLabs synthesizer.
type ElevenLabsOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// ElevenLabs speaks through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// emotionSettings maps emotions to delivery settings; lower stability is
// more expressive.
var emotionSettings = map[string]elevenLabsSettings{
	EmotionHappy:    {Stability: 0.4, SimilarityBoost: 0.75, Style: 0.5},
	EmotionSad:      {Stability: 0.7, SimilarityBoost: 0.8, Style: 0.3},
	EmotionExcited:  {Stability: 0.3, SimilarityBoost: 0.75, Style: 0.7},
	EmotionDramatic: {Stability: 0.35, SimilarityBoost: 0.8, Style: 0.6},
	EmotionCalm:     {Stability: 0.8, SimilarityBoost: 0.75, Style: 0.1},
	EmotionNeutral:  {Stability: 0.5, SimilarityBoost: 0.75, Style: 0.0},
}

func NewElevenLabs(opts ElevenLabsOptions) *ElevenLabs {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	return &ElevenLabs{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs:" + e.model }

func (e *ElevenLabs) Available(ctx context.Context) providers.Availability {
	if e.apiKey == "" {
		return providers.Unavailable("missing ELEVENLABS_API_KEY", false)
	}
	return providers.Ready
}

func (e *ElevenLabs) Speak(ctx context.Context, line Line) (*Clip, error) {
	if line.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs: voice id is required")
	}
	settings, ok := emotionSettings[line.Emotion]
	if !ok {
		settings = emotionSettings[EmotionNeutral]
	}
	body, err := json.Marshal(elevenLabsRequest{Text: line.Text, ModelID: e.model, VoiceSettings: settings})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, url.PathEscape(line.VoiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &Clip{Data: data, MIME: mime}, nil
}
