package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/sqlinline"
)

// Providers whose API keys can live in the integration_tokens table.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderQwen       = "qwen"
	ProviderElevenLabs = "elevenlabs"
)

// Supported reports whether provider is a known integration.
func Supported(provider string) bool {
	switch provider {
	case ProviderGemini, ProviderOpenAI, ProviderQwen, ProviderElevenLabs:
		return true
	}
	return false
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none exists.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the key for provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if !Supported(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	if token == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "cli"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// Resolve returns envValue when set, otherwise the stored key. Lookup errors
// degrade to the empty key so a database outage never blocks startup.
func (s *Store) Resolve(ctx context.Context, provider, envValue string) string {
	if v := strings.TrimSpace(envValue); v != "" || s == nil {
		return v
	}
	token, err := s.Token(ctx, provider)
	if err != nil {
		return ""
	}
	return token
}
