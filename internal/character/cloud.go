package character

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/infra"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/sqlinline"
)

// CloudStore reads character profiles from the Postgres character_profiles table.
type CloudStore struct {
	sql infra.SQLExecutor
}

func NewCloudStore(sql infra.SQLExecutor) *CloudStore {
	return &CloudStore{sql: sql}
}

func (s *CloudStore) Name() string { return "cloud" }

// Lookup returns (nil, nil) when the profile does not exist.
func (s *CloudStore) Lookup(ctx context.Context, id string) (*domain.Character, error) {
	var (
		c      domain.Character
		traits []byte
	)
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCharacterProfile, id)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &traits, &c.ImageURL, &c.ThumbnailURL); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("character: cloud lookup %q: %w", id, err)
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &c.Traits); err != nil {
			return nil, domain.NewError(domain.KindCharacterMalformed, fmt.Sprintf("character %q has malformed traits", id), err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts a descriptor.
func (s *CloudStore) Save(ctx context.Context, c domain.Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	traits := make([]string, 0, len(c.Traits))
	for _, t := range c.Traits {
		if t = strings.TrimSpace(t); t != "" {
			traits = append(traits, t)
		}
	}
	raw, err := json.Marshal(traits)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertCharacterProfile, c.ID, c.Name, c.Description, raw, c.ImageURL, c.ThumbnailURL)
	return err
}
