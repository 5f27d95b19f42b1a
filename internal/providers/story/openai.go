package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// OpenAIOptions configures the chat-completions story adapter.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// OpenAI writes stories through any OpenAI-compatible chat completions API.
type OpenAI struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

const (
	openAIDefaultTimeout = 45 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"
)

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAI{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

func (o *OpenAI) Available(ctx context.Context) providers.Availability {
	if o.apiKey == "" {
		return providers.Unavailable("missing OPENAI_API_KEY", false)
	}
	return providers.Ready
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*domain.Story, error) {
	payload := openAIChatRequest{
		Model:          o.model,
		Temperature:    0.8,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a storyteller that only responds with valid JSON."},
			{Role: "user", Content: buildStoryPrompt(req)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: status %d", resp.StatusCode)
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai: no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return nil, errors.New("openai: empty response")
	}
	return decodeStory(text, req, o.Name())
}
