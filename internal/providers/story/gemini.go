package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// GeminiOptions configures the Gemini story adapter.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Gemini writes stories with the Gemini text models through the genai SDK.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string

	once    sync.Once
	client  *genai.Client
	initErr error
}

const defaultGeminiModel = "gemini-2.0-flash"

func NewGemini(opts GeminiOptions) *Gemini {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: strings.TrimSpace(opts.BaseURL),
	}
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

func (g *Gemini) Available(ctx context.Context) providers.Availability {
	if g.apiKey == "" {
		return providers.Unavailable("missing GEMINI_API_KEY", false)
	}
	if _, err := g.sdk(ctx); err != nil {
		return providers.Unavailable(err.Error(), true)
	}
	return providers.Ready
}

func (g *Gemini) sdk(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if g.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
		}
		g.client, g.initErr = genai.NewClient(ctx, cfg)
	})
	return g.client, g.initErr
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*domain.Story, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(buildStoryPrompt(req)), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.8),
		ResponseMIMEType: "application/json",
		SystemInstruction: genai.NewContentFromText(
			"You only respond with valid JSON describing a four scene story.", genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, errors.New("gemini returned an empty story")
	}
	return decodeStory(text, req, g.Name())
}
