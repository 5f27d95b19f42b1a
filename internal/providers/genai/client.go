// Package genai is a small REST client for the Gemini image and Veo video
// endpoints used by the storyboard and video adapters.
package genai

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
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
)

// ErrMissingAPIKey is returned by remote calls when no key is configured.
var ErrMissingAPIKey = errors.New("genai: api key is required")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client talks to the Gemini REST API for one model.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

// Reference is a conditioning image sent alongside a prompt.
type Reference struct {
	Data     []byte
	MIMEType string
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
	Seed        int
	Reference   *Reference
	RequestID   string
}

// VideoRequest represents the information required to generate a video.
type VideoRequest struct {
	Prompt          string
	AspectRatio     string
	DurationSeconds int
	FirstFrame      *Reference
	RequestID       string
}

// ImageAsset is a decoded generated image.
type ImageAsset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// VideoAsset is a downloaded generated video.
type VideoAsset struct {
	URL    string
	Format string
	Length int
	Data   []byte
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
	Seed               int      `json:"seed,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	SampleCount     int    `json:"sampleCount,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

// NewClient constructs a Gemini client with defaults for unset options.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("genai: model is required")
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		pollInterval: poll,
		httpClient:   client,
		logger:       logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether remote calls can be attempted.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// Probe checks that the model is reachable with the configured key.
func (c *Client) Probe(ctx context.Context) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	endpoint := fmt.Sprintf("%s/models/%s", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe gemini: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Code: resp.StatusCode, Message: "probe failed"}
	}
	return nil
}

// GenerateImage renders one image for the prompt, optionally conditioned on a
// reference image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}

	parts := []geminiPart{{Text: buildImagePrompt(req)}}
	if ref := req.Reference; ref != nil && len(ref.Data) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: firstNonEmpty(ref.MIMEType, "image/png"),
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"TEXT", "IMAGE"},
			Seed:               req.Seed,
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			data, format, err := c.decodePart(ctx, part)
			if err != nil || len(data) == 0 {
				continue
			}
			w, h := decodeImageDimensions(data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Int("bytes", len(data)).
				Msg("genai: generated image")
			return &ImageAsset{Format: firstNonEmpty(format, "image/png"), Width: w, Height: h, Data: data}, nil
		}
	}
	return nil, errors.New("genai: no image content returned")
}

// GenerateVideo starts a Veo long running operation, polls it to completion
// and downloads the first sample.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoAsset, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}

	instance := veoInstance{Prompt: strings.TrimSpace(req.Prompt)}
	if f := req.FirstFrame; f != nil && len(f.Data) > 0 {
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(f.Data),
			MimeType:           firstNonEmpty(f.MIMEType, "image/png"),
		}
	}
	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 8
	}
	payload := veoRequest{
		Instances:  []veoInstance{instance},
		Parameters: veoParameters{AspectRatio: firstNonEmpty(req.AspectRatio, "16:9"), DurationSeconds: duration, SampleCount: 1},
	}

	var op veoOperation
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.model)), payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, errors.New("genai: video operation has no name")
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if err := c.get(ctx, "/"+strings.TrimLeft(op.Name, "/"), &op); err != nil {
			return nil, err
		}
	}
	if op.Error != nil {
		return nil, &StatusError{Code: op.Error.Code, Message: op.Error.Message}
	}
	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 || samples[0].Video.URI == "" {
		return nil, errors.New("genai: no video content returned")
	}

	data, mime, err := c.download(ctx, samples[0].Video.URI)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("bytes", len(data)).
		Msg("genai: generated video")
	return &VideoAsset{URL: samples[0].Video.URI, Format: firstNonEmpty(mime, "video/mp4"), Length: duration, Data: data}, nil
}

// StatusError is a non-2xx answer from Gemini.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Code)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is worth another attempt later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &StatusError{Code: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) decodePart(ctx context.Context, part geminiPart) ([]byte, string, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode inline data: %w", err)
		}
		return data, part.InlineData.MimeType, nil
	}
	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.download(ctx, part.FileData.FileURI)
		if err != nil {
			return nil, "", err
		}
		return data, firstNonEmpty(part.FileData.MimeType, mime), nil
	}
	return nil, "", nil
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func buildImagePrompt(req ImageRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		b.WriteString("\nAspect ratio: ")
		b.WriteString(aspect)
	}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		b.WriteString("\nKeep the character identical to the attached reference image.")
	}
	return strings.TrimSpace(b.String())
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
