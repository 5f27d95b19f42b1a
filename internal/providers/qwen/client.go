// Package qwen renders storyboard frames through the DashScope Qwen image API.
package qwen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
)

const (
	defaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	defaultModel   = "qwen-image"
	defaultSize    = "1328*1328"
	generationPath = "/services/aigc/multimodal-generation/generation"

	// maxImageBytes caps a downloaded frame.
	maxImageBytes = 20 << 20
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	Watermark  bool
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the DashScope multimodal generation endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	size       string
	watermark  bool
	httpClient *http.Client
	logger     *infra.Logger
}

// Reference is the character portrait a frame is conditioned on.
type Reference struct {
	Data []byte
	MIME string
	URL  string
}

// ImageRequest describes one storyboard frame.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Seed           int
	Reference      *Reference
	RequestID      string
}

// Image is a rendered frame, downloaded from the DashScope CDN.
type Image struct {
	Data      []byte
	MIME      string
	Width     int
	Height    int
	SourceURL string
}

type payload struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters parameters `json:"parameters"`
}

type message struct {
	Role    string `json:"role"`
	Content []part `json:"content"`
}

type part struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type parameters struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size"`
	Watermark      bool   `json:"watermark"`
	Seed           *int   `json:"seed,omitempty"`
}

type answer struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []part `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// APIError is an error answer from DashScope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("qwen: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("qwen: status %d: %s", e.Status, e.Message)
}

// Transient reports whether the same request may succeed on a later attempt.
func (e *APIError) Transient() bool {
	if e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError {
		return true
	}
	detail := strings.ToLower(e.Code + " " + e.Message)
	for _, marker := range []string{"internalerror", "throttling", "service unavailable", "timeout"} {
		if strings.Contains(detail, marker) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err wraps a transient APIError.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = defaultSize
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoint:   baseURL + generationPath,
		model:      model,
		size:       size,
		watermark:  opts.Watermark,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) Model() string { return c.model }

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// GenerateImage renders one frame and downloads it.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	body, err := c.encode(req)
	if err != nil {
		return nil, err
	}

	var out answer
	if err := c.post(ctx, body, &out); err != nil {
		return nil, err
	}
	imageURL := firstImage(out)
	if imageURL == "" {
		return nil, errors.New("qwen: answer carried no image")
	}
	img, err := c.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	img.Width, img.Height = out.Usage.Width, out.Usage.Height
	if img.Width == 0 || img.Height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
			img.Width, img.Height = cfg.Width, cfg.Height
		}
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Str("dashscope_request_id", out.RequestID).
		Bool("referenced", req.Reference != nil).
		Int("bytes", len(img.Data)).
		Msg("qwen frame rendered")
	return img, nil
}

func (c *Client) encode(req ImageRequest) ([]byte, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return nil, errors.New("qwen: prompt is required")
	}
	var p payload
	p.Model = c.model
	content := make([]part, 0, 2)
	if ref := referenceURI(req.Reference); ref != "" {
		content = append(content, part{Image: ref})
	}
	p.Input.Messages = []message{{Role: "user", Content: append(content, part{Text: text})}}
	p.Parameters = parameters{
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		Size:           c.size,
		Watermark:      c.watermark,
	}
	if size := strings.TrimSpace(req.Size); size != "" {
		p.Parameters.Size = size
	}
	if req.Seed > 0 {
		seed := req.Seed
		p.Parameters.Seed = &seed
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, body []byte, out *answer) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("qwen: read response: %w", err)
	}

	// DashScope reports failures either with a non-2xx status or with a
	// code in an otherwise successful envelope.
	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && out.Message != "" {
			return &APIError{Status: resp.StatusCode, Code: out.Code, Message: out.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if decodeErr != nil {
		return fmt.Errorf("qwen: decode response: %w", decodeErr)
	}
	if out.Code != "" {
		return &APIError{Status: resp.StatusCode, Code: out.Code, Message: out.Message}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("qwen: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qwen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: "image download failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("qwen: read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return &Image{Data: data, MIME: mime, SourceURL: imageURL}, nil
}

// referenceURI inlines portrait bytes as a data URI, or passes a URL through.
func referenceURI(ref *Reference) string {
	if ref == nil {
		return ""
	}
	if len(ref.Data) == 0 {
		return strings.TrimSpace(ref.URL)
	}
	mime := strings.TrimSpace(ref.MIME)
	if mime == "" {
		mime = http.DetectContentType(ref.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(ref.Data)
}

func firstImage(a answer) string {
	for _, choice := range a.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" {
				return u
			}
		}
	}
	return ""
}
