package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/jobs"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/progress"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/story"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/storyboard"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/video"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/voice"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/storage"
)

const testPrompt = "A brave cat explores a forest"

type funcAdapter[In, Out any] struct {
	name  string
	avail providers.Availability
	gen   func(ctx context.Context, in In) (Out, error)
}

func (a *funcAdapter[In, Out]) Name() string { return a.name }

func (a *funcAdapter[In, Out]) Available(ctx context.Context) providers.Availability {
	return a.avail
}

func (a *funcAdapter[In, Out]) Generate(ctx context.Context, in In) (Out, error) {
	return a.gen(ctx, in)
}

func blocking[In, Out any](name string, entered chan<- struct{}) *funcAdapter[In, Out] {
	return &funcAdapter[In, Out]{
		name:  name,
		avail: providers.Ready,
		gen: func(ctx context.Context, in In) (Out, error) {
			var zero Out
			if entered != nil {
				select {
				case entered <- struct{}{}:
				default:
				}
			}
			<-ctx.Done()
			return zero, ctx.Err()
		},
	}
}

type adapterSet struct {
	story      []providers.Adapter[story.Request, *domain.Story]
	storyboard []providers.Adapter[storyboard.Request, *domain.StoryboardResult]
	voice      []providers.Adapter[voice.Request, *domain.Narration]
	video      []providers.Adapter[video.Request, *domain.Video]
}

type fixture struct {
	orch    *Orchestrator
	store   *jobs.Store
	results *jobs.Results
	bus     *progress.Bus
}

func newFixture(t *testing.T, adapt func(set *adapterSet), configure func(opts *Options)) *fixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	blobs := storage.NewBlobs(files, "generated", "http://test/static")
	demo, err := character.NewDemo()
	require.NoError(t, err)

	set := &adapterSet{
		story:      []providers.Adapter[story.Request, *domain.Story]{story.NewTemplate()},
		storyboard: []providers.Adapter[storyboard.Request, *domain.StoryboardResult]{storyboard.NewSceneGenerator(storyboard.NewSyntheticRenderer(), storyboard.Options{Blobs: blobs, Concurrency: 2})},
		voice:      []providers.Adapter[voice.Request, *domain.Narration]{voice.NewNarrator(voice.NewSynthetic(), voice.NarratorOptions{Blobs: blobs})},
		video:      []providers.Adapter[video.Request, *domain.Video]{video.NewSynthetic(blobs)},
	}
	if adapt != nil {
		adapt(set)
	}

	f := &fixture{
		store:   jobs.NewStore(files, nil),
		results: jobs.NewResults(files),
		bus:     progress.NewBus(nil),
	}
	opts := Options{
		Store:     f.store,
		Publisher: f.bus,
		Results:   f.results,
		Resolver:  character.NewResolver(demo, nil),
		Chains: Chains{
			Story:      providers.NewChain(providers.CapabilityStory, set.story),
			Storyboard: providers.NewChain(providers.CapabilityStoryboard, set.storyboard),
			Voice:      providers.NewChain(providers.CapabilityVoice, set.voice),
			Video:      providers.NewChain(providers.CapabilityVideo, set.video),
		},
	}
	if configure != nil {
		configure(&opts)
	}
	f.orch, err = New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.orch.Shutdown(ctx)
	})
	return f
}

func (f *fixture) wait(t *testing.T, id string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		got, err := f.orch.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func (f *fixture) idle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.orch.ActiveJobs()) == 0 }, 5*time.Second, 5*time.Millisecond)
}

func boolPtr(v bool) *bool { return &v }

func stepStatus(job *domain.Job, name domain.StepName) domain.StepStatus {
	if s := job.Step(name); s != nil {
		return s.Status
	}
	return ""
}

func TestSubmitCompletesWithoutVideo(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, domain.GenerateRequest{
		Prompt:      testPrompt,
		CharacterID: "astronaut_cat",
		Style:       "cartoon",
		Genre:       "adventure",
		Options:     domain.RequestOptions{IncludeVideo: boolPtr(false)},
	})
	require.NoError(t, err)
	assert.Nil(t, job.Step(domain.StepVideoGeneration))

	done := f.wait(t, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	for _, s := range done.Steps {
		assert.Equal(t, domain.StepCompleted, s.Status, s.Name)
	}

	res, err := f.orch.Result(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, res.Story.Scenes, domain.SceneCount)
	for i, sc := range res.Story.Scenes {
		assert.Equal(t, i+1, sc.Number)
		assert.NotEmpty(t, sc.Title)
		assert.NotEmpty(t, sc.Camera)
		assert.NotEmpty(t, sc.Description)
	}
	assert.Len(t, res.StoryboardURLs, domain.SceneCount)
	assert.Equal(t, "Astro Cat", res.Metadata.CharacterName)
	assert.Empty(t, res.VideoURL)
	assert.False(t, res.Metadata.CharacterSubstituted)
	assert.Empty(t, res.Metadata.Degraded)
	assert.Equal(t, story.MethodTemplate, res.Metadata.GenerationMethod)
	assert.Equal(t, storyboard.ModeStandard, res.Metadata.StoryboardMode)
}

func TestUnknownCharacterIsSubstituted(t *testing.T) {
	f := newFixture(t, nil, nil)
	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{
		Prompt:      testPrompt,
		CharacterID: "does_not_exist",
		Options:     domain.RequestOptions{IncludeVideo: boolPtr(false)},
	})
	require.NoError(t, err)

	done := f.wait(t, job.ID, domain.JobStatusCompleted)
	require.NotEmpty(t, done.Warnings)
	assert.Equal(t, domain.KindCharacterNotFound, done.Warnings[0].Kind)

	res, err := f.orch.Result(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Astro Cat", res.Metadata.CharacterName)
	assert.True(t, res.Metadata.CharacterSubstituted)
	require.NotEmpty(t, res.Metadata.Warnings)
	assert.Equal(t, domain.StepCharacterLoading, res.Metadata.Warnings[0].Step)
}

func TestVoiceNarrationAndVideo(t *testing.T) {
	f := newFixture(t, nil, nil)
	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{
		Prompt:      testPrompt,
		CharacterID: "astronaut_cat",
		Options:     domain.RequestOptions{IncludeVoice: boolPtr(true)},
	})
	require.NoError(t, err)
	require.NotNil(t, job.Step(domain.StepVoiceGeneration))

	f.wait(t, job.ID, domain.JobStatusCompleted)
	res, err := f.orch.Result(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, res.AudioNarration)
	require.Len(t, res.AudioNarration.Scenes, domain.SceneCount)
	for _, sc := range res.AudioNarration.Scenes {
		assert.Greater(t, sc.Duration, 0.0)
	}
	assert.NotEmpty(t, res.VideoURL)
	assert.Equal(t, video.MethodSynthetic, res.Metadata.VideoMethod)
	assert.Equal(t, voice.MethodSynthetic, res.Metadata.VoiceMethod)
}

func TestSubmitRejectsShortPrompt(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.orch.Submit(context.Background(), domain.GenerateRequest{Prompt: "123456789"})
	require.ErrorIs(t, err, domain.ErrValidation)

	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{Prompt: "1234567890"})
	require.NoError(t, err)
	f.wait(t, job.ID, domain.JobStatusCompleted)
}

func TestCancelDuringStoryboard(t *testing.T) {
	entered := make(chan struct{}, 1)
	f := newFixture(t, func(set *adapterSet) {
		set.storyboard = []providers.Adapter[storyboard.Request, *domain.StoryboardResult]{
			blocking[storyboard.Request, *domain.StoryboardResult]("stuck", entered),
		}
	}, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt, CharacterID: "astronaut_cat"})
	require.NoError(t, err)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("storyboard step never started")
	}

	cancelled, err := f.orch.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)
	f.idle(t)

	final, err := f.orch.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, final.Status)
	assert.Equal(t, domain.StepSkipped, stepStatus(final, domain.StepStoryboardGeneration))
	assert.Equal(t, domain.StepPending, stepStatus(final, domain.StepVideoGeneration))
	assert.Equal(t, domain.StepPending, stepStatus(final, domain.StepFinalization))
	assert.Equal(t, 0, final.ProcessingSteps())

	_, err = f.orch.Result(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orch.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrTerminal)
	_, err = f.orch.Retry(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrNotRetryable)
}

func TestCancelImmediatelyWritesNoResult(t *testing.T) {
	entered := make(chan struct{}, 1)
	f := newFixture(t, func(set *adapterSet) {
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			blocking[story.Request, *domain.Story]("slow-story", entered),
		}
	}, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt})
	require.NoError(t, err)
	_, err = f.orch.Cancel(ctx, job.ID)
	require.NoError(t, err)
	f.idle(t)

	final, err := f.orch.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, final.Status)
	_, err = f.results.Read(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoryboardUnavailableDegrades(t *testing.T) {
	f := newFixture(t, func(set *adapterSet) {
		set.storyboard = []providers.Adapter[storyboard.Request, *domain.StoryboardResult]{
			&funcAdapter[storyboard.Request, *domain.StoryboardResult]{name: "offline", avail: providers.Unavailable("no key", false)},
			&funcAdapter[storyboard.Request, *domain.StoryboardResult]{name: "also-offline", avail: providers.Unavailable("no key", false)},
		}
	}, nil)

	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{Prompt: testPrompt, CharacterID: "astronaut_cat"})
	require.NoError(t, err)

	done := f.wait(t, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, domain.StepFailed, stepStatus(done, domain.StepStoryboardGeneration))
	assert.Equal(t, domain.StepSkipped, stepStatus(done, domain.StepVideoGeneration))

	res, err := f.orch.Result(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, res.StoryboardURLs)
	assert.Empty(t, res.StoryboardURLs)
	assert.Empty(t, res.VideoURL)
	assert.Contains(t, res.Metadata.Degraded, domain.StepStoryboardGeneration)
	assert.Contains(t, res.Metadata.Degraded, domain.StepVideoGeneration)

	var kinds []domain.ErrorKind
	for _, w := range res.Metadata.Warnings {
		if w.Step == domain.StepStoryboardGeneration {
			kinds = append(kinds, w.Kind)
		}
	}
	assert.Equal(t, []domain.ErrorKind{domain.KindCapabilityExhausted}, kinds)
}

func TestStoryExhaustedFailsJob(t *testing.T) {
	f := newFixture(t, func(set *adapterSet) {
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			&funcAdapter[story.Request, *domain.Story]{
				name:  "broken",
				avail: providers.Ready,
				gen: func(ctx context.Context, in story.Request) (*domain.Story, error) {
					return nil, errors.New("upstream 500")
				},
			},
			&funcAdapter[story.Request, *domain.Story]{name: "offline", avail: providers.Unavailable("no key", false)},
		}
	}, nil)

	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{Prompt: testPrompt})
	require.NoError(t, err)

	failedJob := f.wait(t, job.ID, domain.JobStatusFailed)
	assert.Equal(t, domain.KindCapabilityExhausted, failedJob.ErrorKind)
	assert.Equal(t, "story generation failed: all story adapters failed", failedJob.Error)
	assert.Equal(t, domain.StepFailed, stepStatus(failedJob, domain.StepStoryGeneration))
	assert.Equal(t, domain.StepPending, stepStatus(failedJob, domain.StepStoryboardGeneration))
	assert.Equal(t, domain.StepStoryGeneration.ProgressTarget(), failedJob.Progress)

	_, err = f.orch.Result(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryReusesCompletedSteps(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, func(set *adapterSet) {
		tmpl := story.NewTemplate()
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			&funcAdapter[story.Request, *domain.Story]{
				name:  "flaky",
				avail: providers.Ready,
				gen: func(ctx context.Context, in story.Request) (*domain.Story, error) {
					if calls.Add(1) == 1 {
						return nil, errors.New("rate limited")
					}
					return tmpl.Generate(ctx, in)
				},
			},
		}
	}, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt, CharacterID: "astronaut_cat"})
	require.NoError(t, err)
	failedJob := f.wait(t, job.ID, domain.JobStatusFailed)
	loadedAt := failedJob.Step(domain.StepCharacterLoading).CompletedAt
	require.NotNil(t, loadedAt)

	retried, err := f.orch.Retry(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Equal(t, 0, retried.Progress)
	assert.Empty(t, retried.Error)
	assert.Equal(t, domain.StepCompleted, stepStatus(retried, domain.StepCharacterLoading))
	assert.Equal(t, domain.StepPending, stepStatus(retried, domain.StepStoryGeneration))

	done := f.wait(t, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, 1, done.RetryCount)
	assert.Equal(t, 100, done.Progress)
	assert.True(t, done.Step(domain.StepCharacterLoading).CompletedAt.Equal(*loadedAt))
	assert.EqualValues(t, 2, calls.Load())

	res, err := f.orch.Result(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Metadata.RetryCount)

	_, err = f.orch.Retry(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrNotRetryable)
}

func TestWatchdogFailsStuckJob(t *testing.T) {
	f := newFixture(t, func(set *adapterSet) {
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			blocking[story.Request, *domain.Story]("stuck", nil),
		}
	}, func(opts *Options) { opts.Watchdog = 50 * time.Millisecond })

	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{Prompt: testPrompt})
	require.NoError(t, err)

	failedJob := f.wait(t, job.ID, domain.JobStatusFailed)
	assert.Equal(t, domain.KindTimeout, failedJob.ErrorKind)
	assert.Contains(t, failedJob.Error, "did not finish within")
	assert.Equal(t, domain.StepFailed, stepStatus(failedJob, domain.StepStoryGeneration))
	f.idle(t)

	stored, err := f.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

type stallingPublisher struct{}

func (stallingPublisher) Publish(ctx context.Context, job *domain.Job) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledPublishDoesNotBlockPipeline(t *testing.T) {
	f := newFixture(t, nil, func(opts *Options) {
		opts.Publisher = stallingPublisher{}
		opts.IOTimeout = 10 * time.Millisecond
	})
	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{
		Prompt:  testPrompt,
		Options: domain.RequestOptions{IncludeVideo: boolPtr(false)},
	})
	require.NoError(t, err)
	f.wait(t, job.ID, domain.JobStatusCompleted)
}

func TestPublishedDeltasAreOrdered(t *testing.T) {
	f := newFixture(t, nil, func(opts *Options) {
		opts.NewID = func() string { return "job-ordered" }
	})
	q := progress.NewQueue("observer", 256)
	f.bus.Subscribe(q, "job-ordered")

	_, err := f.orch.Submit(context.Background(), domain.GenerateRequest{
		Prompt:  testPrompt,
		Options: domain.RequestOptions{IncludeVoice: boolPtr(true)},
	})
	require.NoError(t, err)
	f.wait(t, "job-ordered", domain.JobStatusCompleted)
	f.idle(t)
	q.Close()

	last := -1
	var final *domain.Job
	for msg := range q.C() {
		require.Equal(t, progress.TypeProgress, msg.Type)
		assert.GreaterOrEqual(t, msg.Data.Progress, last)
		assert.LessOrEqual(t, msg.Data.ProcessingSteps(), 1)
		assert.Len(t, msg.Data.Steps, 6)
		last = msg.Data.Progress
		final = msg.Data
	}
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
}

type recordingPublisher struct {
	mu     sync.Mutex
	deltas []*domain.Job
}

func (p *recordingPublisher) Publish(ctx context.Context, job *domain.Job) error {
	p.mu.Lock()
	p.deltas = append(p.deltas, job.Clone())
	p.mu.Unlock()
	return nil
}

func TestProgressAdvancesWhenStepStarts(t *testing.T) {
	rec := &recordingPublisher{}
	f := newFixture(t, nil, func(opts *Options) { opts.Publisher = rec })

	job, err := f.orch.Submit(context.Background(), domain.GenerateRequest{
		Prompt:  testPrompt,
		Options: domain.RequestOptions{IncludeVoice: boolPtr(true), IncludeVideo: boolPtr(true)},
	})
	require.NoError(t, err)
	f.wait(t, job.ID, domain.JobStatusCompleted)
	f.idle(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	started := map[domain.StepName]int{}
	for _, delta := range rec.deltas {
		for _, step := range delta.Steps {
			if step.Status != domain.StepProcessing {
				continue
			}
			if _, seen := started[step.Name]; !seen {
				started[step.Name] = delta.Progress
			}
		}
	}
	want := map[domain.StepName]int{
		domain.StepCharacterLoading:     20,
		domain.StepStoryGeneration:      45,
		domain.StepStoryboardGeneration: 65,
		domain.StepVoiceGeneration:      80,
		domain.StepVideoGeneration:      95,
		domain.StepFinalization:         100,
	}
	assert.Equal(t, want, started)
}

func TestRecoverResumesInterruptedJob(t *testing.T) {
	var storyCalls atomic.Int32
	f := newFixture(t, func(set *adapterSet) {
		tmpl := story.NewTemplate()
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			&funcAdapter[story.Request, *domain.Story]{
				name:  "counting",
				avail: providers.Ready,
				gen: func(ctx context.Context, in story.Request) (*domain.Story, error) {
					storyCalls.Add(1)
					return tmpl.Generate(ctx, in)
				},
			},
		}
	}, nil)
	ctx := context.Background()
	now := time.Now()

	demo, err := character.NewDemo()
	require.NoError(t, err)
	astro := demo.Fallback()
	st, err := story.NewTemplate().Generate(ctx, story.Request{Prompt: testPrompt, Genre: "adventure", Style: "cartoon", Character: astro})
	require.NoError(t, err)

	interrupted := domain.NewJob("job-interrupted", domain.GenerateRequest{
		Prompt:  testPrompt,
		Style:   "cartoon",
		Genre:   "adventure",
		Options: domain.RequestOptions{IncludeVideo: boolPtr(false)},
	}, now)
	interrupted.Status = domain.JobStatusProcessing
	interrupted.Progress = 45
	interrupted.Steps[0].Status = domain.StepCompleted
	interrupted.Steps[1].Status = domain.StepCompleted
	interrupted.Steps[2].Status = domain.StepProcessing
	interrupted.Artifacts.Character = &astro
	interrupted.Artifacts.Story = st
	require.NoError(t, f.store.Put(ctx, interrupted))

	lost := domain.NewJob("job-lost-story", domain.GenerateRequest{Prompt: testPrompt}, now)
	lost.Status = domain.JobStatusProcessing
	lost.Steps[0].Status = domain.StepCompleted
	lost.Steps[1].Status = domain.StepCompleted
	lost.Artifacts.Character = &astro
	require.NoError(t, f.store.Put(ctx, lost))

	finished := domain.NewJob("job-finished", domain.GenerateRequest{Prompt: testPrompt}, now)
	finished.Status = domain.JobStatusCompleted
	require.NoError(t, f.store.Put(ctx, finished))

	n, err := f.orch.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	resumed := f.wait(t, "job-interrupted", domain.JobStatusCompleted)
	assert.Equal(t, st.Title, resumed.Artifacts.Story.Title)
	f.wait(t, "job-lost-story", domain.JobStatusCompleted)
	f.idle(t)
	assert.EqualValues(t, 1, storyCalls.Load(), "only the job without a story should regenerate it")

	res, err := f.orch.Result(ctx, "job-interrupted")
	require.NoError(t, err)
	assert.Len(t, res.StoryboardURLs, domain.SceneCount)

	untouched, err := f.orch.Get(ctx, "job-finished")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, untouched.Status)
}

func TestShutdownLeavesJobResumable(t *testing.T) {
	entered := make(chan struct{}, 1)
	f := newFixture(t, func(set *adapterSet) {
		set.story = []providers.Adapter[story.Request, *domain.Story]{
			blocking[story.Request, *domain.Story]("stuck", entered),
		}
	}, nil)
	ctx := context.Background()

	job, err := f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt})
	require.NoError(t, err)
	<-entered

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Shutdown(shutdownCtx))

	stored, err := f.store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, domain.StepProcessing, stepStatus(stored, domain.StepStoryGeneration))

	_, err = f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt})
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestReadinessCoversEveryCapability(t *testing.T) {
	f := newFixture(t, nil, nil)
	ready := f.orch.Readiness(context.Background())
	require.Len(t, ready, 4)
	assert.True(t, ready[providers.CapabilityStory][story.MethodTemplate].Available)
	assert.True(t, ready[providers.CapabilityStoryboard][storyboard.MethodSynthetic].Available)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	job, err := f.orch.Submit(ctx, domain.GenerateRequest{Prompt: testPrompt, Options: domain.RequestOptions{IncludeVideo: boolPtr(false)}})
	require.NoError(t, err)
	f.wait(t, job.ID, domain.JobStatusCompleted)

	all, err := f.orch.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)

	none, err := f.orch.List(ctx, domain.JobStatusFailed)
	require.NoError(t, err)
	assert.Empty(t, none)
}
