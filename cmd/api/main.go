package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/http/handlers"
	httpapi "github.com/notedwin-dev/storyforge-ai-sub000/internal/http/httpapi"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra/credentials"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/jobs"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/orchestrator"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/progress"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/genai"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/qwen"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/story"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/storyboard"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/video"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/voice"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

func main() {
	// Optional .env
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("failed to open storage")
	}
	blobs := storage.NewBlobs(files, "generated", cfg.StorageBaseURL)

	// Postgres is optional: cloud character profiles and stored adapter keys.
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	var sources []character.Source
	if dbpool != nil {
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, infra.Component(logger, "sql"))
		loadStoredKeys(ctx, cfg, credentials.NewStore(runner))
		sources = append(sources, character.NewCloudStore(runner))
	}

	local := character.NewLocalStore(filepath.Join(cfg.StoragePath, "characters"), &logger)
	sources = append(sources, local)
	go func() {
		if err := local.Watch(ctx); err != nil {
			logger.Warn().Err(err).Str("dir", local.Dir()).Msg("character watcher stopped")
		}
	}()
	demo, err := character.NewDemo()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load demo characters")
	}
	resolver := character.NewResolver(demo, &logger, sources...)

	bus := progress.NewBus(&logger)
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if redisClient != nil {
		defer func(c *redis.Client) { _ = c.Close() }(redisClient)
		relay := progress.NewRedisRelay(redisClient, bus, &logger)
		bus.SetForwarder(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("progress relay stopped")
			}
		}()
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Store:     jobs.NewStore(files, &logger),
		Publisher: bus,
		Results:   jobs.NewResults(files),
		Resolver:  resolver,
		Chains:    buildChains(cfg, blobs, logger),
		Watchdog:  cfg.JobWatchdog,
		IOTimeout: cfg.JobIOTimeout,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}
	if n, err := orch.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("job recovery failed")
	} else if n > 0 {
		logger.Info().Int("jobs", n).Msg("resumed interrupted jobs")
	}
	go orch.Monitor(ctx, cfg.JobHealthInterval)

	httpLogger := infra.Component(logger, "http")
	app := handlers.NewApp(orch, resolver, bus, cfg.CORSAllowedOrigins, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          &httpLogger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       blobs.Dir(),
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Bool("demo_mode", cfg.DemoMode).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("jobs did not stop in time")
	}
	stopBackground()
	logger.Info().Msg("server stopped")
}

// loadStoredKeys fills adapter keys missing from the environment.
func loadStoredKeys(ctx context.Context, cfg *infra.Config, store *credentials.Store) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg.GeminiAPIKey = store.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	cfg.OpenAIAPIKey = store.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	cfg.QwenAPIKey = store.Resolve(ctx, credentials.ProviderQwen, cfg.QwenAPIKey)
	cfg.ElevenLabsAPIKey = store.Resolve(ctx, credentials.ProviderElevenLabs, cfg.ElevenLabsAPIKey)
}

// buildChains assembles the adapter chain of every capability in fallback
// order. Demo mode keeps only the offline adapters.
func buildChains(cfg *infra.Config, blobs *storage.Blobs, logger infra.Logger) orchestrator.Chains {
	chainLogger := infra.Component(logger, "adapters")
	withLogger := providers.WithLogger(&chainLogger)
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	var (
		stories  []providers.Adapter[story.Request, *domain.Story]
		boards   []providers.Adapter[storyboard.Request, *domain.StoryboardResult]
		voices   []providers.Adapter[voice.Request, *domain.Narration]
		videos   []providers.Adapter[video.Request, *domain.Video]
		renderer []storyboard.Renderer
	)
	sceneOpts := storyboard.Options{
		Blobs:       blobs,
		Consistent:  cfg.CharacterConsistent,
		Concurrency: cfg.StoryboardConcurrency,
		Logger:      &chainLogger,
	}
	narratorOpts := voice.NarratorOptions{
		Blobs:        blobs,
		DefaultVoice: cfg.ElevenLabsVoiceID,
		Concurrency:  cfg.StoryboardConcurrency,
		Logger:       &chainLogger,
	}

	if !cfg.DemoMode {
		if cfg.GeminiAPIKey != "" {
			stories = append(stories, story.NewGemini(story.GeminiOptions{
				APIKey: cfg.GeminiAPIKey,
				Model:  cfg.GeminiTextModel,
			}))
		}
		if cfg.OpenAIAPIKey != "" {
			stories = append(stories, story.NewOpenAI(story.OpenAIOptions{
				APIKey:     cfg.OpenAIAPIKey,
				Model:      cfg.OpenAIModel,
				BaseURL:    cfg.OpenAIBaseURL,
				HTTPClient: httpClient,
			}))
		}

		if cfg.QwenAPIKey != "" {
			client, err := qwen.NewClient(qwen.Options{
				APIKey:  cfg.QwenAPIKey,
				BaseURL: cfg.QwenBaseURL,
				Model:   cfg.QwenImageModel,
				Logger:  &chainLogger,
			})
			if err != nil {
				chainLogger.Warn().Err(err).Msg("qwen renderer disabled")
			} else {
				renderer = append(renderer, storyboard.NewQwenRenderer(client))
			}
		}
		if cfg.GeminiAPIKey != "" {
			if client := geminiClient(cfg, cfg.GeminiImageModel, httpClient, &chainLogger); client != nil {
				renderer = append(renderer, storyboard.NewGeminiRenderer(client))
			}
		}
		if cfg.PollinationsEnabled {
			renderer = append(renderer, storyboard.NewPollinationsRenderer(cfg.PollinationsBaseURL, httpClient))
		}
		for _, r := range renderer {
			boards = append(boards, storyboard.NewSceneGenerator(r, sceneOpts))
		}

		if cfg.ElevenLabsAPIKey != "" {
			voices = append(voices, voice.NewNarrator(voice.NewElevenLabs(voice.ElevenLabsOptions{
				APIKey:     cfg.ElevenLabsAPIKey,
				BaseURL:    cfg.ElevenLabsBaseURL,
				HTTPClient: httpClient,
			}), narratorOpts))
		}
		if cfg.TTSCommand != "" {
			cmdOpts := narratorOpts
			cmdOpts.DefaultVoice = cfg.TTSVoice
			voices = append(voices, voice.NewNarrator(voice.NewCommand(cfg.TTSCommand, cfg.TTSVoice, ffprobePath(cfg.FFmpegPath)), cmdOpts))
		}

		if cfg.GeminiAPIKey != "" {
			if client := geminiClient(cfg, cfg.GeminiVideoModel, httpClient, &chainLogger); client != nil {
				videos = append(videos, video.NewVeo(client, blobs, blobs, httpClient))
			}
		}
		if cfg.FFmpegPath != "" {
			videos = append(videos, video.NewFFmpeg(video.FFmpegOptions{
				Binary:     cfg.FFmpegPath,
				Blobs:      blobs,
				Local:      blobs,
				HTTPClient: httpClient,
			}))
		}
	}

	stories = append(stories, story.NewTemplate())
	boards = append(boards, storyboard.NewSceneGenerator(storyboard.NewSyntheticRenderer(), sceneOpts))
	voices = append(voices, voice.NewNarrator(voice.NewSynthetic(), narratorOpts))
	videos = append(videos, video.NewSynthetic(blobs))

	return orchestrator.Chains{
		Story:      providers.NewChain(providers.CapabilityStory, stories, withLogger),
		Storyboard: providers.NewChain(providers.CapabilityStoryboard, boards, withLogger),
		Voice:      providers.NewChain(providers.CapabilityVoice, voices, withLogger),
		Video:      providers.NewChain(providers.CapabilityVideo, videos, withLogger),
	}
}

func geminiClient(cfg *infra.Config, model string, httpClient *http.Client, logger *infra.Logger) *genai.Client {
	client, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      model,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		logger.Warn().Err(err).Str("model", model).Msg("gemini client disabled")
		return nil
	}
	return client
}

// ffprobePath finds ffprobe next to the configured ffmpeg binary.
func ffprobePath(ffmpeg string) string {
	ffmpeg = strings.TrimSpace(ffmpeg)
	if ffmpeg == "" {
		return ""
	}
	dir, base := filepath.Split(ffmpeg)
	if !strings.HasPrefix(base, "ffmpeg") {
		return "ffprobe"
	}
	return dir + "ffprobe" + strings.TrimPrefix(base, "ffmpeg")
}
