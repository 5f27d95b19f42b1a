package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderGemini:     "GEMINI_API_KEY",
	credentials.ProviderOpenAI:     "OPENAI_API_KEY",
	credentials.ProviderQwen:       "QWEN_API_KEY",
	credentials.ProviderElevenLabs: "ELEVENLABS_API_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (fallbacks to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderGemini, "Adapter provider to configure (gemini, openai, qwen or elevenlabs)")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if provider == "" {
		provider = credentials.ProviderGemini
	}
	if !credentials.Supported(provider) {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKeys[provider]))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s API key is required via -key or %s\n", strings.ToUpper(provider), envKeys[provider])
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "setkey").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.SetToken(ctxExec, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s API key stored successfully\n", strings.ToUpper(provider))
}
