package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// LocalStore reads uploaded descriptors from <dir>/{id}.json. Parsed
// descriptors are cached until the file changes on disk.
type LocalStore struct {
	dir    string
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]domain.Character
}

func NewLocalStore(dir string, logger *zerolog.Logger) *LocalStore {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "character.local").Logger()
	}
	return &LocalStore{dir: dir, logger: l, cache: make(map[string]domain.Character)}
}

func (s *LocalStore) Name() string { return "local" }

// Dir returns the descriptor directory.
func (s *LocalStore) Dir() string { return s.dir }

// Lookup returns (nil, nil) when no descriptor file exists for id.
func (s *LocalStore) Lookup(ctx context.Context, id string) (*domain.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validFileID(id) {
		return nil, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		c := copyCharacter(cached)
		return &c, nil
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("character: read local descriptor %q: %w", id, err)
	}
	var c domain.Character
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, domain.NewError(domain.KindCharacterMalformed, fmt.Sprintf("character %q descriptor is not valid JSON", id), err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.IsDemo = false

	s.mu.Lock()
	s.cache[id] = copyCharacter(c)
	s.mu.Unlock()
	return &c, nil
}

// Invalidate drops the cached descriptor for id.
func (s *LocalStore) Invalidate(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// Watch invalidates cache entries as descriptor files change. It blocks
// until ctx is done.
func (s *LocalStore) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("character: ensure %s: %w", s.dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("character: create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("character: watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")
			s.Invalidate(id)
			s.logger.Debug().Str("character_id", id).Str("op", ev.Op.String()).Msg("descriptor changed")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("descriptor watcher error")
		}
	}
}

func validFileID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
