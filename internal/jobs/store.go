// Package jobs persists job records and final results.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

const jobsDir = "jobs"

// Store is a write-through job map: every Put updates memory and rewrites
// jobs/{id}.json. A failed disk write never rolls back the memory update.
type Store struct {
	files  *storage.FileStore
	logger zerolog.Logger

	mu      sync.RWMutex
	jobs    map[string]*domain.Job
	seq     map[string]uint64
	written map[string]uint64
	locks   map[string]*sync.Mutex
}

func NewStore(files *storage.FileStore, logger *zerolog.Logger) *Store {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "jobs.store").Logger()
	}
	return &Store{
		files:   files,
		logger:  l,
		jobs:    make(map[string]*domain.Job),
		seq:     make(map[string]uint64),
		written: make(map[string]uint64),
		locks:   make(map[string]*sync.Mutex),
	}
}

func jobKey(id string) string { return jobsDir + "/" + id + ".json" }

// Put stores a snapshot of job. The returned error is always a
// PersistenceWarning; the in-memory record is updated regardless.
func (s *Store) Put(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("jobs: job id is required")
	}
	snap := job.Clone()
	data, err := json.MarshalIndent(snap, "", "  ")

	s.mu.Lock()
	s.jobs[snap.ID] = snap
	s.seq[snap.ID]++
	seq := s.seq[snap.ID]
	lock, ok := s.locks[snap.ID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[snap.ID] = lock
	}
	s.mu.Unlock()

	if err != nil {
		return s.warn(snap.ID, fmt.Errorf("encode job: %w", err))
	}

	lock.Lock()
	defer lock.Unlock()

	// A slower writer holding an older snapshot must not clobber a newer file.
	s.mu.RLock()
	stale := seq <= s.written[snap.ID]
	s.mu.RUnlock()
	if stale {
		return nil
	}

	if _, err := s.files.Write(ctx, jobKey(snap.ID), data); err != nil {
		return s.warn(snap.ID, err)
	}
	s.mu.Lock()
	if seq > s.written[snap.ID] {
		s.written[snap.ID] = seq
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) warn(id string, err error) error {
	s.logger.Warn().Err(err).Str("job_id", id).Str("kind", string(domain.KindPersistenceWarning)).Msg("job record not persisted to disk")
	return domain.NewError(domain.KindPersistenceWarning, "job record not persisted", err)
}

// Get returns a copy of the job, reading through to disk on a memory miss.
func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	if strings.ContainsAny(id, `/\`) || id == "" {
		return nil, domain.ErrNotFound
	}
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if ok {
		return job.Clone(), nil
	}

	job, err := s.load(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if existing, ok := s.jobs[id]; ok {
		job = existing
	} else {
		s.jobs[id] = job
	}
	s.mu.Unlock()
	return job.Clone(), nil
}

func (s *Store) load(ctx context.Context, key string) (*domain.Job, error) {
	data, err := s.files.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("jobs: decode %s: %w", key, err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("jobs: %s has no id", key)
	}
	return &job, nil
}

// List returns every known job, newest first. Unreadable files are logged
// and skipped.
func (s *Store) List(ctx context.Context) ([]*domain.Job, error) {
	keys, err := s.files.List(ctx, jobsDir, ".json")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, jobsDir+"/"), ".json")
		s.mu.RLock()
		_, ok := s.jobs[id]
		s.mu.RUnlock()
		if ok {
			continue
		}
		job, err := s.load(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable job record")
			continue
		}
		s.mu.Lock()
		if _, ok := s.jobs[job.ID]; !ok {
			s.jobs[job.ID] = job
		}
		s.mu.Unlock()
	}

	s.mu.RLock()
	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes the job from memory and disk.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.jobs, id)
	delete(s.seq, id)
	delete(s.written, id)
	delete(s.locks, id)
	s.mu.Unlock()
	return s.files.Delete(ctx, jobKey(id))
}
