package infra

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger for the service. Development builds
// get a console writer and debug level; LOG_LEVEL overrides the level.
func NewLogger(appEnv string) zerolog.Logger {
	dev := appEnv == "development"
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	zerolog.DurationFieldUnit = time.Millisecond
	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "storyforge").
		Str("env", appEnv).
		Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog directly.
type Logger = zerolog.Logger
