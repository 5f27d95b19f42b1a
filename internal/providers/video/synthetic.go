package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

// MethodSynthetic names the offline composer.
const MethodSynthetic = "synthetic"

// Synthetic stores a slideshow manifest that a client can play back frame by
// frame in place of an encoded video.
type Synthetic struct {
	blobs storage.BlobStore
}

var _ providers.Adapter[Request, *domain.Video] = (*Synthetic)(nil)

func NewSynthetic(blobs storage.BlobStore) *Synthetic {
	return &Synthetic{blobs: blobs}
}

type manifest struct {
	Kind     string          `json:"kind"`
	Title    string          `json:"title,omitempty"`
	Frames   []manifestFrame `json:"frames"`
	Audio    []string        `json:"audio,omitempty"`
	Duration float64         `json:"duration"`
}

type manifestFrame struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

func (s *Synthetic) Name() string { return MethodSynthetic }

func (s *Synthetic) Available(ctx context.Context) providers.Availability {
	if s.blobs == nil {
		return providers.Unavailable("no blob store configured", false)
	}
	return providers.Ready
}

func (s *Synthetic) Generate(ctx context.Context, req Request) (*domain.Video, error) {
	if len(req.Frames) == 0 {
		return nil, fmt.Errorf("synthetic video: no frames")
	}
	durations := FrameDurations(req)
	m := manifest{Kind: "slideshow"}
	if req.Story != nil {
		m.Title = req.Story.Title
	}
	for i, f := range req.Frames {
		m.Frames = append(m.Frames, manifestFrame{URL: f, Duration: durations[i]})
		m.Duration += durations[i]
	}
	if req.Narration != nil {
		for _, a := range req.Narration.Scenes {
			m.Audio = append(m.Audio, a.URL)
		}
	}
	m.Duration = math.Round(m.Duration*10) / 10
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	url, err := s.blobs.Put(ctx, storage.AssetKey("videos", req.JobID, "story", -1, "application/json"), data)
	if err != nil {
		return nil, fmt.Errorf("store slideshow: %w", err)
	}
	return &domain.Video{URL: url, Duration: m.Duration, Method: MethodSynthetic}, nil
}
