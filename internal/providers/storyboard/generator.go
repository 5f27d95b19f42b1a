package storyboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/prompt"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

// Storyboard modes recorded in result metadata.
const (
	ModeStandard            = "standard"
	ModeCharacterConsistent = "character-consistent"
)

const defaultAspectRatio = "16:9"

// Request is the storyboard adapter input.
type Request struct {
	JobID     string
	Scenes    []domain.Scene
	Character domain.Character
	Style     string
}

// Options configures a SceneGenerator.
type Options struct {
	Blobs storage.BlobStore
	// Consistent enables portrait conditioned rendering when the renderer
	// supports references.
	Consistent  bool
	Concurrency int
	AspectRatio string
	Logger      *zerolog.Logger
}

// SceneGenerator is the storyboard adapter over one Renderer.
type SceneGenerator struct {
	renderer    Renderer
	blobs       storage.BlobStore
	consistent  bool
	concurrency int
	aspect      string
	logger      zerolog.Logger
}

var _ providers.Adapter[Request, *domain.StoryboardResult] = (*SceneGenerator)(nil)

func NewSceneGenerator(renderer Renderer, opts Options) *SceneGenerator {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("renderer", renderer.Name()).Logger()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	aspect := opts.AspectRatio
	if aspect == "" {
		aspect = defaultAspectRatio
	}
	return &SceneGenerator{
		renderer:    renderer,
		blobs:       opts.Blobs,
		consistent:  opts.Consistent && renderer.References(),
		concurrency: concurrency,
		aspect:      aspect,
		logger:      logger,
	}
}

func (g *SceneGenerator) Name() string { return g.renderer.Name() }

func (g *SceneGenerator) Available(ctx context.Context) providers.Availability {
	if g.blobs == nil {
		return providers.Unavailable("no blob store configured", false)
	}
	return g.renderer.Available(ctx)
}

// Generate renders one frame per scene. In character-consistent mode a
// portrait is rendered first and every scene is conditioned on it; any
// failure there falls back to prompt-only rendering.
func (g *SceneGenerator) Generate(ctx context.Context, req Request) (*domain.StoryboardResult, error) {
	if len(req.Scenes) == 0 {
		return nil, errors.New("storyboard: no scenes to render")
	}
	if g.consistent {
		urls, err := g.renderConsistent(ctx, req)
		if err == nil {
			return &domain.StoryboardResult{URLs: urls, Method: g.Name(), Mode: ModeCharacterConsistent}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn().Err(err).Str("job_id", req.JobID).Msg("character-consistent storyboard failed, using standard mode")
	}
	urls, err := g.renderScenes(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &domain.StoryboardResult{URLs: urls, Method: g.Name(), Mode: ModeStandard}, nil
}

func (g *SceneGenerator) renderConsistent(ctx context.Context, req Request) ([]string, error) {
	portrait, err := g.renderer.Render(ctx, Image{
		Prompt:         prompt.PortraitPrompt(req.Character, req.Style),
		NegativePrompt: prompt.NegativePrompt,
		AspectRatio:    "1:1",
		Seed:           character.CharHash(req.Character.ID),
		RequestID:      req.JobID + "-portrait",
	})
	if err != nil {
		return nil, fmt.Errorf("portrait: %w", err)
	}
	if len(portrait.Data) == 0 {
		return nil, errors.New("portrait: empty image")
	}
	if _, err := g.blobs.Put(ctx, storage.AssetKey("storyboards", req.JobID, "portrait", -1, portrait.MIME), portrait.Data); err != nil {
		g.logger.Warn().Err(err).Str("job_id", req.JobID).Msg("store character portrait")
	}
	return g.renderScenes(ctx, req, &Reference{Data: portrait.Data, MIME: portrait.MIME})
}

func (g *SceneGenerator) renderScenes(ctx context.Context, req Request, ref *Reference) ([]string, error) {
	urls := make([]string, len(req.Scenes))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for i, scene := range req.Scenes {
		group.Go(func() error {
			img, err := g.renderer.Render(gctx, Image{
				Prompt:         prompt.ScenePrompt(scene, req.Character, req.Style),
				NegativePrompt: prompt.NegativePrompt,
				AspectRatio:    g.aspect,
				Seed:           character.SceneSeed(req.Character.ID, i),
				Reference:      ref,
				RequestID:      fmt.Sprintf("%s-scene-%d", req.JobID, i+1),
			})
			if err != nil {
				return fmt.Errorf("scene %d: %w", i+1, err)
			}
			if len(img.Data) == 0 {
				return fmt.Errorf("scene %d: empty image", i+1)
			}
			url, err := g.blobs.Put(gctx, storage.AssetKey("storyboards", req.JobID, "scene", i, img.MIME), img.Data)
			if err != nil {
				return fmt.Errorf("scene %d: store: %w", i+1, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
