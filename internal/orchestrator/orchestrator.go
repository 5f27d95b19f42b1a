// Package orchestrator drives generation jobs through their step pipeline.
// Each job runs on its own goroutine; a per-run mutex serializes the driver
// with cancel and watchdog expiry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/story"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/storyboard"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/video"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/voice"
)

const (
	DefaultWatchdog  = 10 * time.Minute
	DefaultIOTimeout = 3 * time.Second
)

// ErrShuttingDown is returned for submissions after Shutdown began.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// Store persists job records.
type Store interface {
	Put(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
}

// Publisher fans job snapshots out to observers.
type Publisher interface {
	Publish(ctx context.Context, job *domain.Job) error
}

// ResultStore keeps final results of completed jobs.
type ResultStore interface {
	Write(ctx context.Context, result *domain.Result) error
	Read(ctx context.Context, jobID string) (*domain.Result, error)
	Delete(ctx context.Context, jobID string) error
}

// CharacterResolver maps character ids to descriptors.
type CharacterResolver interface {
	Resolve(ctx context.Context, id string) (character.Resolution, error)
}

// Chains holds the fallback chain of every capability.
type Chains struct {
	Story      providers.Runner[story.Request, *domain.Story]
	Storyboard providers.Runner[storyboard.Request, *domain.StoryboardResult]
	Voice      providers.Runner[voice.Request, *domain.Narration]
	Video      providers.Runner[video.Request, *domain.Video]
}

// Options configures an Orchestrator.
type Options struct {
	Store     Store
	Publisher Publisher
	Results   ResultStore
	Resolver  CharacterResolver
	Chains    Chains
	Watchdog  time.Duration
	IOTimeout time.Duration
	Logger    *zerolog.Logger
	Now       func() time.Time
	NewID     func() string
}

// Orchestrator owns every running job.
type Orchestrator struct {
	store     Store
	publisher Publisher
	results   ResultStore
	resolver  CharacterResolver
	chains    Chains
	watchdog  time.Duration
	ioTimeout time.Duration
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	base     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	runs     map[string]*run
	shutdown bool
}

// run is the live state of one pipeline execution.
type run struct {
	mu      sync.Mutex
	job     *domain.Job
	cancel  context.CancelFunc
	timer   *time.Timer
	started time.Time
	done    chan struct{}

	// syncMu is taken before mu is released so deliveries keep mutation order.
	syncMu sync.Mutex
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Publisher == nil || opts.Results == nil || opts.Resolver == nil {
		return nil, errors.New("orchestrator: store, publisher, results and resolver are required")
	}
	if opts.Chains.Story == nil || opts.Chains.Storyboard == nil || opts.Chains.Voice == nil || opts.Chains.Video == nil {
		return nil, errors.New("orchestrator: every capability chain is required")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "orchestrator").Logger()
	}
	watchdog := opts.Watchdog
	if watchdog <= 0 {
		watchdog = DefaultWatchdog
	}
	ioTimeout := opts.IOTimeout
	if ioTimeout <= 0 || ioTimeout > DefaultIOTimeout {
		ioTimeout = DefaultIOTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:     opts.Store,
		publisher: opts.Publisher,
		results:   opts.Results,
		resolver:  opts.Resolver,
		chains:    opts.Chains,
		watchdog:  watchdog,
		ioTimeout: ioTimeout,
		logger:    logger,
		now:       now,
		newID:     newID,
		base:      base,
		stop:      stop,
		runs:      make(map[string]*run),
	}, nil
}

// Submit validates the request, records a new job and starts it.
func (o *Orchestrator) Submit(ctx context.Context, req domain.GenerateRequest) (*domain.Job, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	closed := o.shutdown
	o.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}
	job := domain.NewJob(o.newID(), req, o.now())
	o.sync(job.Clone())
	o.logger.Info().
		Str("job_id", job.ID).
		Str("character_id", job.CharacterID).
		Str("style", job.Style).
		Str("genre", job.Genre).
		Int("estimated_seconds", job.EstimatedDuration).
		Msg("job submitted")
	snapshot := job.Clone()
	if !o.start(job) {
		return nil, ErrShuttingDown
	}
	return snapshot, nil
}

// Get returns the live record of a running job, or the stored one.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Job, error) {
	if r := o.active(id); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.job.Clone(), nil
	}
	return o.store.Get(ctx, id)
}

// List returns every job newest first, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error) {
	stored, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Job, 0, len(stored))
	for _, job := range stored {
		if r := o.active(job.ID); r != nil {
			r.mu.Lock()
			job = r.job.Clone()
			r.mu.Unlock()
		}
		if status == "" || job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

// Result returns the final result of a completed job.
func (o *Orchestrator) Result(ctx context.Context, id string) (*domain.Result, error) {
	return o.results.Read(ctx, id)
}

// Cancel stops a job that has not reached a terminal state. The adapter
// call in flight is abandoned and its output discarded.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	if r := o.active(id); r != nil {
		r.mu.Lock()
		if r.job.Status.Terminal() {
			job := r.job.Clone()
			r.mu.Unlock()
			return job, domain.ErrTerminal
		}
		o.markCancelled(r.job)
		r.cancel()
		snap := o.unlockAndSync(r)
		o.logger.Info().Str("job_id", id).Msg("job cancelled")
		return snap.Clone(), nil
	}

	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, domain.ErrTerminal
	}
	o.markCancelled(job)
	o.sync(job.Clone())
	o.logger.Info().Str("job_id", id).Msg("idle job cancelled")
	return job, nil
}

func (o *Orchestrator) markCancelled(job *domain.Job) {
	now := o.now()
	job.Status = domain.JobStatusCancelled
	job.ErrorKind = domain.KindCancelled
	for i := range job.Steps {
		if job.Steps[i].Status == domain.StepProcessing {
			job.Steps[i].Status = domain.StepSkipped
			job.Steps[i].Message = "Cancelled"
			job.Steps[i].CompletedAt = &now
		}
	}
	job.Touch(now)
}

// Retry re-enters the pipeline of a failed job. Completed steps whose
// artifacts survive are not re-run.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*domain.Job, error) {
	if r := o.active(id); r != nil {
		r.mu.Lock()
		status := r.job.Status
		r.mu.Unlock()
		if status != domain.JobStatusFailed {
			return nil, domain.ErrNotRetryable
		}
		// the failed driver is unwinding; wait for it to let go
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return nil, domain.ErrNotRetryable
	}
	job.RetryCount++
	job.Status = domain.JobStatusProcessing
	job.Progress = 0
	job.Error = ""
	job.ErrorKind = ""
	job.Result = nil
	resetSteps(job, true)
	job.Touch(o.now())
	snapshot := job.Clone()
	if !o.start(job) {
		return nil, domain.ErrNotRetryable
	}
	o.logger.Info().Str("job_id", id).Int("retry_count", snapshot.RetryCount).Msg("job retried")
	return snapshot, nil
}

// resetSteps returns steps to pending when they must run again: any step
// left processing, completed steps whose artifact is gone, and, on retry,
// failed steps. Warnings of reset steps are dropped.
func resetSteps(job *domain.Job, failed bool) {
	reset := map[domain.StepName]bool{}
	for i := range job.Steps {
		s := &job.Steps[i]
		switch {
		case s.Status == domain.StepProcessing,
			s.Status == domain.StepCompleted && !hasArtifact(job, s.Name),
			failed && s.Status == domain.StepFailed:
			s.Status = domain.StepPending
			s.Error = ""
			s.StartedAt, s.CompletedAt, s.FailedAt = nil, nil, nil
			reset[s.Name] = true
		}
	}
	if len(reset) == 0 {
		return
	}
	kept := job.Warnings[:0:0]
	for _, w := range job.Warnings {
		if !reset[w.Step] {
			kept = append(kept, w)
		}
	}
	job.Warnings = kept
}

func hasArtifact(job *domain.Job, name domain.StepName) bool {
	a := job.Artifacts
	switch name {
	case domain.StepCharacterLoading:
		return a.Character != nil
	case domain.StepStoryGeneration:
		return a.Story != nil && len(a.Story.Scenes) == domain.SceneCount
	case domain.StepStoryboardGeneration:
		return a.Storyboard != nil
	case domain.StepVoiceGeneration:
		return a.Narration != nil
	case domain.StepVideoGeneration:
		return a.Video != nil
	case domain.StepFinalization:
		return job.Result != nil
	}
	return false
}

// Active describes a job currently being driven.
type Active struct {
	ID      string           `json:"id"`
	Status  domain.JobStatus `json:"status"`
	Step    domain.StepName  `json:"step,omitempty"`
	Elapsed time.Duration    `json:"elapsed"`
}

// ActiveJobs lists running jobs, longest running first.
func (o *Orchestrator) ActiveJobs() []Active {
	o.mu.Lock()
	runs := make([]*run, 0, len(o.runs))
	for _, r := range o.runs {
		runs = append(runs, r)
	}
	o.mu.Unlock()

	now := o.now()
	out := make([]Active, 0, len(runs))
	for _, r := range runs {
		r.mu.Lock()
		a := Active{ID: r.job.ID, Status: r.job.Status, Elapsed: now.Sub(r.started)}
		for _, s := range r.job.Steps {
			if s.Status == domain.StepProcessing {
				a.Step = s.Name
			}
		}
		r.mu.Unlock()
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Elapsed > out[j].Elapsed })
	return out
}

// Readiness probes every adapter of every capability.
func (o *Orchestrator) Readiness(ctx context.Context) map[providers.Capability]map[string]providers.Availability {
	return map[providers.Capability]map[string]providers.Availability{
		providers.CapabilityStory:      o.chains.Story.Probe(ctx),
		providers.CapabilityStoryboard: o.chains.Storyboard.Probe(ctx),
		providers.CapabilityVoice:      o.chains.Voice.Probe(ctx),
		providers.CapabilityVideo:      o.chains.Video.Probe(ctx),
	}
}

// Shutdown stops every driver without touching job state, so running jobs
// stay resumable, and waits for them to return.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.shutdown = true
	o.mu.Unlock()
	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) active(id string) *run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[id]
}

// start registers a run for job and launches its driver. It reports false
// when the job already runs or the orchestrator is shutting down.
func (o *Orchestrator) start(job *domain.Job) bool {
	ctx, cancel := context.WithCancel(o.base)
	r := &run{job: job, cancel: cancel, started: o.now(), done: make(chan struct{})}

	o.mu.Lock()
	if _, running := o.runs[job.ID]; running || o.shutdown {
		o.mu.Unlock()
		cancel()
		return false
	}
	o.runs[job.ID] = r
	o.mu.Unlock()

	r.mu.Lock()
	r.timer = time.AfterFunc(o.watchdog, func() { o.expire(r) })
	r.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.finish(r)
		o.drive(ctx, r)
	}()
	return true
}

func (o *Orchestrator) finish(r *run) {
	r.mu.Lock()
	r.timer.Stop()
	id := r.job.ID
	r.mu.Unlock()
	r.cancel()
	// wait out a cancel or expiry delivery still in flight
	r.syncMu.Lock()
	r.syncMu.Unlock()

	o.mu.Lock()
	if o.runs[id] == r {
		delete(o.runs, id)
	}
	o.mu.Unlock()
	close(r.done)
}

// expire is the watchdog: a job still running after the deadline fails
// with Timeout.
func (o *Orchestrator) expire(r *run) {
	r.mu.Lock()
	if r.job.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	now := o.now()
	msg := fmt.Sprintf("job did not finish within %s", o.watchdog)
	for i := range r.job.Steps {
		s := &r.job.Steps[i]
		if s.Status == domain.StepProcessing {
			s.Status = domain.StepFailed
			s.Error = msg
			s.FailedAt = &now
		}
	}
	r.job.Status = domain.JobStatusFailed
	r.job.Error = msg
	r.job.ErrorKind = domain.KindTimeout
	r.job.Touch(now)
	r.cancel()
	snap := o.unlockAndSync(r)
	o.logger.Error().Str("job_id", snap.ID).Str("kind", string(domain.KindTimeout)).Msg(msg)
}

// unlockAndSync delivers the current job state. It is called with r.mu
// held and releases it.
func (o *Orchestrator) unlockAndSync(r *run) *domain.Job {
	snap := r.job.Clone()
	r.syncMu.Lock()
	r.mu.Unlock()
	defer r.syncMu.Unlock()
	o.sync(snap)
	return snap
}

// sync persists and publishes a snapshot, each bounded by the I/O timeout.
// Neither can fail or stall the pipeline.
func (o *Orchestrator) sync(snap *domain.Job) {
	o.bounded("persist", snap.ID, func(ctx context.Context) error { return o.store.Put(ctx, snap) })
	o.bounded("publish", snap.ID, func(ctx context.Context) error { return o.publisher.Publish(ctx, snap) })
}

func (o *Orchestrator) bounded(op, jobID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.ioTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Str("op", op).
				Str("kind", string(domain.KindPersistenceWarning)).Msg("job update not delivered")
		}
	case <-ctx.Done():
		o.logger.Warn().Str("job_id", jobID).Str("op", op).Dur("timeout", o.ioTimeout).
			Str("kind", string(domain.KindPersistenceWarning)).Msg("job update stalled, continuing")
	}
}
