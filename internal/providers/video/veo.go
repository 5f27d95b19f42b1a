package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/prompt"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/genai"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

// Veo animates the opening frame with the Gemini Veo model.
type Veo struct {
	client *genai.Client
	blobs  storage.BlobStore
	fetch  *fetcher
}

var _ providers.Adapter[Request, *domain.Video] = (*Veo)(nil)

func NewVeo(client *genai.Client, blobs storage.BlobStore, local LocalResolver, httpClient *http.Client) *Veo {
	return &Veo{client: client, blobs: blobs, fetch: newFetcher(local, httpClient)}
}

func (v *Veo) Name() string { return "veo:" + v.client.Model() }

func (v *Veo) Available(ctx context.Context) providers.Availability {
	if v.blobs == nil {
		return providers.Unavailable("no blob store configured", false)
	}
	if !v.client.HasCredentials() {
		return providers.Unavailable("missing GEMINI_API_KEY", false)
	}
	if err := v.client.Probe(ctx); err != nil {
		var se *genai.StatusError
		return providers.Unavailable(err.Error(), !errors.As(err, &se) || se.Retryable())
	}
	return providers.Ready
}

func (v *Veo) Generate(ctx context.Context, req Request) (*domain.Video, error) {
	vr := genai.VideoRequest{
		Prompt:          videoPrompt(req),
		AspectRatio:     "16:9",
		DurationSeconds: 8,
		RequestID:       req.JobID,
	}
	if len(req.Frames) > 0 {
		data, mime, err := v.fetch.read(ctx, req.Frames[0])
		if err != nil {
			return nil, fmt.Errorf("veo first frame: %w", err)
		}
		vr.FirstFrame = &genai.Reference{Data: data, MIMEType: mime}
	}
	asset, err := v.client.GenerateVideo(ctx, vr)
	if err != nil {
		return nil, err
	}
	url, err := v.blobs.Put(ctx, storage.AssetKey("videos", req.JobID, "story", -1, asset.Format), asset.Data)
	if err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	return &domain.Video{URL: url, Duration: float64(asset.Length), Method: v.Name()}, nil
}

func videoPrompt(req Request) string {
	var parts []string
	if req.Story != nil {
		parts = append(parts, fmt.Sprintf("Animated short titled %q starring %s.", req.Story.Title, req.Story.Character))
		for _, sc := range req.Story.Scenes {
			parts = append(parts, sc.Description)
		}
	}
	parts = append(parts, prompt.StyleDirection(req.Style)+", smooth camera motion.")
	return prompt.Budget(strings.Join(parts, " "))
}
