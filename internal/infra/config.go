package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	StoragePath    string
	StorageBaseURL string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DemoMode            bool
	CharacterConsistent bool

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiVideoModel string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	QwenAPIKey     string
	QwenBaseURL    string
	QwenImageModel string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	TTSCommand        string
	TTSVoice          string
	FFmpegPath        string

	PollinationsEnabled bool
	PollinationsBaseURL string

	StoryboardConcurrency int

	JobWatchdog       time.Duration
	JobIOTimeout      time.Duration
	JobHealthInterval time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  port,
		StoragePath:           getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:        getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		DemoMode:              getEnvBool("DEMO_MODE", false),
		CharacterConsistent:   getEnvBool("CHARACTER_CONSISTENT_STORYBOARD", false),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModel:       getEnv("GEMINI_TEXT_MODEL", "gemini-2.0-flash"),
		GeminiImageModel:      getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GeminiVideoModel:      getEnv("GEMINI_VIDEO_MODEL", "veo-2.0-generate-001"),
		OpenAIAPIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		QwenAPIKey:            strings.TrimSpace(os.Getenv("QWEN_API_KEY")),
		QwenBaseURL:           getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenImageModel:        getEnv("QWEN_IMAGE_MODEL", "qwen-image"),
		ElevenLabsAPIKey:      strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsBaseURL:     getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		TTSCommand:            getEnv("TTS_COMMAND", "edge-tts"),
		TTSVoice:              getEnv("TTS_VOICE", "en-US-AriaNeural"),
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		PollinationsEnabled:   getEnvBool("POLLINATIONS_ENABLED", true),
		PollinationsBaseURL:   getEnv("POLLINATIONS_BASE_URL", "https://image.pollinations.ai"),
		StoryboardConcurrency: getEnvInt("STORYBOARD_CONCURRENCY", 2),
		JobWatchdog:           getEnvDuration("JOB_WATCHDOG", 10*time.Minute),
		JobIOTimeout:          getEnvDuration("JOB_IO_TIMEOUT", 3*time.Second),
		JobHealthInterval:     getEnvDuration("JOB_HEALTH_INTERVAL", 0),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	if cfg.JobIOTimeout <= 0 || cfg.JobIOTimeout > 3*time.Second {
		return nil, fmt.Errorf("JOB_IO_TIMEOUT must be within (0s, 3s], got %s", cfg.JobIOTimeout)
	}
	if cfg.JobWatchdog <= 0 {
		return nil, fmt.Errorf("JOB_WATCHDOG must be positive")
	}
	if cfg.StoryboardConcurrency < 1 {
		cfg.StoryboardConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
