package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var fileFlag string
	flag.StringVar(&fileFlag, "file", "", "Character descriptor JSON file (id, name, description, traits, imageUrl, thumbnailUrl)")
	flag.Parse()

	path := strings.TrimSpace(fileFlag)
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "a descriptor file is required via -file")
		os.Exit(1)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	var c domain.Character
	if err := json.Unmarshal(raw, &c); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
		os.Exit(1)
	}
	c.IsDemo = false
	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid descriptor: %v\n", err)
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

	logger := infra.NewLogger("cli").With().Str("cmd", "charimport").Str("character_id", c.ID).Logger()
	store := character.NewCloudStore(infra.NewSQLRunner(pool, logger))
	if err := store.Save(ctx, c); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save character %q: %v\n", c.ID, err)
		os.Exit(1)
	}

	fmt.Printf("character %q (%s) stored successfully\n", c.ID, c.Name)
}
