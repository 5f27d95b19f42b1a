package storyboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/prompt"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/genai"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/qwen"
)

// QwenRenderer renders through DashScope.
type QwenRenderer struct {
	client *qwen.Client
}

func NewQwenRenderer(client *qwen.Client) *QwenRenderer {
	return &QwenRenderer{client: client}
}

func (r *QwenRenderer) Name() string { return "qwen:" + r.client.Model() }

func (r *QwenRenderer) References() bool { return true }

func (r *QwenRenderer) Available(ctx context.Context) providers.Availability {
	if !r.client.HasCredentials() {
		return providers.Unavailable("missing QWEN_API_KEY", false)
	}
	return providers.Ready
}

func (r *QwenRenderer) Render(ctx context.Context, img Image) (*Rendered, error) {
	req := qwen.ImageRequest{
		Prompt:         img.Prompt,
		NegativePrompt: img.NegativePrompt,
		Size:           prompt.AspectRatioSize(img.AspectRatio),
		Seed:           img.Seed,
		RequestID:      img.RequestID,
	}
	if img.Reference != nil {
		req.Reference = &qwen.Reference{Data: img.Reference.Data, MIME: img.Reference.MIME}
	}
	frame, err := r.client.GenerateImage(ctx, req)
	if err != nil && qwen.IsTransient(err) && ctx.Err() == nil {
		// DashScope throttles bursts; one immediate retry usually lands.
		frame, err = r.client.GenerateImage(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &Rendered{Data: frame.Data, MIME: frame.MIME}, nil
}

// GeminiRenderer renders through the Gemini image model.
type GeminiRenderer struct {
	client *genai.Client
}

func NewGeminiRenderer(client *genai.Client) *GeminiRenderer {
	return &GeminiRenderer{client: client}
}

func (r *GeminiRenderer) Name() string { return "gemini:" + r.client.Model() }

func (r *GeminiRenderer) References() bool { return true }

func (r *GeminiRenderer) Available(ctx context.Context) providers.Availability {
	if !r.client.HasCredentials() {
		return providers.Unavailable("missing GEMINI_API_KEY", false)
	}
	if err := r.client.Probe(ctx); err != nil {
		var se *genai.StatusError
		retryable := !errors.As(err, &se) || se.Retryable()
		return providers.Unavailable(err.Error(), retryable)
	}
	return providers.Ready
}

func (r *GeminiRenderer) Render(ctx context.Context, img Image) (*Rendered, error) {
	req := genai.ImageRequest{
		Prompt:      img.Prompt,
		AspectRatio: img.AspectRatio,
		Seed:        img.Seed,
		RequestID:   img.RequestID,
	}
	if img.Reference != nil {
		req.Reference = &genai.Reference{Data: img.Reference.Data, MIMEType: img.Reference.MIME}
	}
	frame, err := r.client.GenerateImage(ctx, req)
	var se *genai.StatusError
	if err != nil && errors.As(err, &se) && se.Retryable() && ctx.Err() == nil {
		// Gemini answers 429 on per-minute quota; one immediate retry.
		frame, err = r.client.GenerateImage(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &Rendered{Data: frame.Data, MIME: frame.Format}, nil
}

// PollinationsRenderer fetches images from the keyless Pollinations endpoint.
type PollinationsRenderer struct {
	baseURL    string
	httpClient *http.Client
}

func NewPollinationsRenderer(baseURL string, httpClient *http.Client) *PollinationsRenderer {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://image.pollinations.ai"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &PollinationsRenderer{baseURL: baseURL, httpClient: httpClient}
}

func (r *PollinationsRenderer) Name() string { return "pollinations" }

func (r *PollinationsRenderer) References() bool { return false }

func (r *PollinationsRenderer) Available(ctx context.Context) providers.Availability {
	return providers.Ready
}

func (r *PollinationsRenderer) Render(ctx context.Context, img Image) (*Rendered, error) {
	width, height := aspectDimensions(img.AspectRatio)
	q := url.Values{}
	q.Set("width", fmt.Sprint(width))
	q.Set("height", fmt.Sprint(height))
	q.Set("nologo", "true")
	q.Set("model", "flux")
	if img.Seed > 0 {
		q.Set("seed", fmt.Sprint(img.Seed))
	}
	if img.NegativePrompt != "" {
		q.Set("negative", img.NegativePrompt)
	}
	endpoint := fmt.Sprintf("%s/prompt/%s?%s", r.baseURL, url.PathEscape(img.Prompt), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "storyforge/1.0")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pollinations: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pollinations: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pollinations: read: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") || len(data) < 100 {
		return nil, fmt.Errorf("pollinations: unexpected %q response of %d bytes", mime, len(data))
	}
	return &Rendered{Data: data, MIME: mime}, nil
}
