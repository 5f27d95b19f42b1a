package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/story"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/storyboard"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/video"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers/voice"
)

const (
	characterBudget = 30 * time.Second
	finalizeBudget  = 30 * time.Second
)

// outcome is what executing one step produced. It is applied to the job
// under the run lock.
type outcome struct {
	status   domain.StepStatus
	message  string
	err      error
	warnings []domain.Warning
	store    func(a *domain.Artifacts)
	result   *domain.Result
}

func completed(message string, store func(a *domain.Artifacts)) outcome {
	return outcome{status: domain.StepCompleted, message: message, store: store}
}

func failed(err error) outcome {
	return outcome{status: domain.StepFailed, err: err}
}

// drive runs the remaining steps of r.job in order. It returns without
// touching the job when the context ends for any reason other than an
// explicit cancel or the watchdog, so an interrupted job stays resumable.
func (o *Orchestrator) drive(ctx context.Context, r *run) {
	r.mu.Lock()
	if r.job.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.job.Status = domain.JobStatusProcessing
	r.job.Touch(o.now())
	snap := o.unlockAndSync(r)

	log := o.logger.With().Str("job_id", snap.ID).Logger()
	log.Info().Int("retry_count", snap.RetryCount).Msg("job started")

	for i := 0; ; i++ {
		r.mu.Lock()
		if r.job.Status.Terminal() || ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		if i >= len(r.job.Steps) {
			r.mu.Unlock()
			return
		}
		step := &r.job.Steps[i]
		if step.Status.Terminal() {
			// settled in an earlier run; its output is reused
			r.job.AdvanceProgress(step.Name.ProgressTarget())
			r.mu.Unlock()
			continue
		}
		now := o.now()
		step.Status = domain.StepProcessing
		step.Message = runningMessage(step.Name)
		step.StartedAt = &now
		r.job.AdvanceProgress(step.Name.ProgressTarget())
		r.job.Touch(now)
		name := step.Name
		view := o.unlockAndSync(r)

		log.Info().Str("step", string(name)).Msg("step started")
		started := time.Now()
		out := o.execute(ctx, name, view)

		r.mu.Lock()
		if r.job.Status.Terminal() {
			// cancelled or timed out while the step ran
			r.mu.Unlock()
			if out.result != nil {
				o.discardResult(view.ID)
			}
			log.Info().Str("step", string(name)).Msg("step output discarded")
			return
		}
		if ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		fatal := o.apply(r.job, i, out)
		snap := o.unlockAndSync(r)

		level := zerolog.InfoLevel
		if out.status == domain.StepFailed {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).Err(out.err).
			Str("step", string(name)).
			Str("status", string(out.status)).
			Dur("elapsed", time.Since(started)).
			Int("progress", snap.Progress).
			Msg("step settled")

		if fatal {
			log.Error().Str("kind", string(snap.ErrorKind)).Msg(snap.Error)
			return
		}
		if snap.Status == domain.JobStatusCompleted {
			log.Info().Int("warnings", len(snap.Warnings)).Msg("job completed")
			return
		}
	}
}

// apply settles step i with out and reports whether the job failed.
func (o *Orchestrator) apply(job *domain.Job, i int, out outcome) bool {
	now := o.now()
	step := &job.Steps[i]
	if out.store != nil {
		out.store(&job.Artifacts)
	}
	for _, w := range out.warnings {
		job.AddWarning(w)
	}
	step.Status = out.status
	step.Message = out.message
	switch out.status {
	case domain.StepCompleted, domain.StepSkipped:
		step.CompletedAt = &now
	case domain.StepFailed:
		msg := humanError(step.Name, out.err)
		step.FailedAt = &now
		step.Error = msg
		if step.Message == "" {
			step.Message = msg
		}
		if step.Name.Mandatory() {
			job.AdvanceProgress(step.Name.ProgressTarget())
			job.Status = domain.JobStatusFailed
			job.Error = msg
			job.ErrorKind = domain.KindOf(out.err)
			job.Touch(now)
			return true
		}
		job.AddWarning(domain.Warning{Step: step.Name, Kind: domain.KindOf(out.err), Message: msg})
	}
	job.AdvanceProgress(step.Name.ProgressTarget())
	if out.result != nil {
		job.Result = out.result
		job.Status = domain.JobStatusCompleted
	}
	job.Touch(now)
	return false
}

// execute runs one step against a snapshot of the job.
func (o *Orchestrator) execute(ctx context.Context, name domain.StepName, job *domain.Job) outcome {
	switch name {
	case domain.StepCharacterLoading:
		return o.loadCharacter(ctx, job)
	case domain.StepStoryGeneration:
		return o.writeStory(ctx, job)
	case domain.StepStoryboardGeneration:
		return o.drawStoryboard(ctx, job)
	case domain.StepVoiceGeneration:
		return o.recordNarration(ctx, job)
	case domain.StepVideoGeneration:
		return o.composeVideo(ctx, job)
	case domain.StepFinalization:
		return o.finalize(ctx, job)
	}
	return failed(fmt.Errorf("unknown step %q", name))
}

func (o *Orchestrator) loadCharacter(ctx context.Context, job *domain.Job) outcome {
	ctx, cancel := context.WithTimeout(ctx, characterBudget)
	defer cancel()
	res, err := o.resolver.Resolve(ctx, job.CharacterID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.NewError(domain.KindTimeout, fmt.Sprintf("character lookup exceeded %s", characterBudget), err)
		}
		return failed(err)
	}
	c := res.Character
	out := completed("Loaded "+c.Name, func(a *domain.Artifacts) {
		a.Character = &c
		a.CharacterSubstituted = res.Substituted
	})
	if res.Warning != nil {
		out.warnings = append(out.warnings, *res.Warning)
	}
	return out
}

func (o *Orchestrator) writeStory(ctx context.Context, job *domain.Job) outcome {
	if job.Artifacts.Character == nil {
		return failed(domain.NewError(domain.KindCharacterNotFound, "no character loaded", nil))
	}
	st, err := o.chains.Story.Run(ctx, story.Request{
		Prompt:    job.Prompt,
		Genre:     job.Genre,
		Style:     job.Style,
		Character: *job.Artifacts.Character,
		Options:   job.Options,
	})
	if err != nil {
		return failed(err)
	}
	if err := checkStory(st); err != nil {
		return failed(err)
	}
	return completed(fmt.Sprintf("Wrote %q", st.Title), func(a *domain.Artifacts) { a.Story = st })
}

// checkStory enforces the shape every later step relies on.
func checkStory(st *domain.Story) error {
	if st == nil || len(st.Scenes) != domain.SceneCount {
		return domain.NewError(domain.KindAdapterFailure, fmt.Sprintf("story must have exactly %d scenes", domain.SceneCount), nil)
	}
	for i, sc := range st.Scenes {
		if sc.Number != i+1 || strings.TrimSpace(sc.Title) == "" || strings.TrimSpace(sc.Camera) == "" || strings.TrimSpace(sc.Description) == "" {
			return domain.NewError(domain.KindAdapterFailure, fmt.Sprintf("story scene %d is incomplete", i+1), nil)
		}
	}
	return nil
}

func (o *Orchestrator) drawStoryboard(ctx context.Context, job *domain.Job) outcome {
	st := job.Artifacts.Story
	sb, err := o.chains.Storyboard.Run(ctx, storyboard.Request{
		JobID:     job.ID,
		Scenes:    st.Scenes,
		Character: *job.Artifacts.Character,
		Style:     job.Style,
	})
	if err != nil {
		return failed(err)
	}
	return completed(fmt.Sprintf("Drew %d frames (%s)", len(sb.Frames()), sb.Mode), func(a *domain.Artifacts) { a.Storyboard = sb })
}

func (o *Orchestrator) recordNarration(ctx context.Context, job *domain.Job) outcome {
	n, err := o.chains.Voice.Run(ctx, voice.NewRequest(job.ID, job.Artifacts.Story, job.Options.VoiceID))
	if err != nil {
		return failed(err)
	}
	return completed(fmt.Sprintf("Recorded %.1fs of narration", n.TotalDuration), func(a *domain.Artifacts) { a.Narration = n })
}

func (o *Orchestrator) composeVideo(ctx context.Context, job *domain.Job) outcome {
	frames := job.Artifacts.Storyboard.Frames()
	if len(frames) == 0 {
		return outcome{
			status:  domain.StepSkipped,
			message: "No storyboard frames to compose",
			warnings: []domain.Warning{{
				Step:    domain.StepVideoGeneration,
				Kind:    domain.KindAdapterUnavailable,
				Message: "video skipped: storyboard produced no frames",
			}},
		}
	}
	v, err := o.chains.Video.Run(ctx, video.Request{
		JobID:     job.ID,
		Frames:    frames,
		Story:     job.Artifacts.Story,
		Narration: job.Artifacts.Narration,
		Style:     job.Style,
		Options:   job.Options,
	})
	if err != nil {
		return failed(err)
	}
	return completed(fmt.Sprintf("Composed %.0fs video", v.Duration), func(a *domain.Artifacts) { a.Video = v })
}

func (o *Orchestrator) finalize(ctx context.Context, job *domain.Job) outcome {
	result := buildResult(job, o.now())
	ctx, cancel := context.WithTimeout(ctx, finalizeBudget)
	defer cancel()
	if err := o.results.Write(ctx, result); err != nil {
		return failed(domain.NewError(domain.KindFinalizationFailed, "result could not be saved", err))
	}
	return outcome{status: domain.StepCompleted, message: "Story ready", result: result}
}

func (o *Orchestrator) discardResult(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.ioTimeout)
	defer cancel()
	if err := o.results.Delete(ctx, jobID); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("result of cancelled job not removed")
	}
}

// buildResult assembles the final record from the job's artifacts.
func buildResult(job *domain.Job, now time.Time) *domain.Result {
	a := job.Artifacts
	res := &domain.Result{
		JobID:          job.ID,
		Story:          a.Story,
		StoryboardURLs: []string{},
		AudioNarration: a.Narration,
		Metadata: domain.ResultMetadata{
			Style:                job.Style,
			Genre:                job.Genre,
			GeneratedAt:          now,
			CharacterSubstituted: a.CharacterSubstituted,
			RetryCount:           job.RetryCount,
			Degraded:             []domain.StepName{},
			Warnings:             []domain.Warning{},
		},
	}
	if a.Character != nil {
		res.Metadata.CharacterName = a.Character.Name
	}
	if a.Story != nil {
		res.Metadata.ScenesCount = len(a.Story.Scenes)
		res.Metadata.GenerationMethod = a.Story.Method
	}
	if a.Storyboard != nil {
		res.StoryboardURLs = append(res.StoryboardURLs, a.Storyboard.Frames()...)
		res.Metadata.StoryboardMethod = a.Storyboard.Method
		res.Metadata.StoryboardMode = a.Storyboard.Mode
	}
	if a.Narration != nil {
		res.Metadata.VoiceMethod = a.Narration.Method
	}
	if a.Video != nil {
		res.VideoURL = a.Video.URL
		res.Metadata.VideoMethod = a.Video.Method
	}
	for _, s := range job.Steps {
		if !s.Name.Mandatory() && (s.Status == domain.StepFailed || s.Status == domain.StepSkipped) {
			res.Metadata.Degraded = append(res.Metadata.Degraded, s.Name)
		}
	}
	res.Metadata.Warnings = append(res.Metadata.Warnings, job.Warnings...)
	return res
}

func stepLabel(name domain.StepName) string {
	return strings.ReplaceAll(string(name), "_", " ")
}

func runningMessage(name domain.StepName) string {
	switch name {
	case domain.StepCharacterLoading:
		return "Loading character"
	case domain.StepStoryGeneration:
		return "Writing story"
	case domain.StepStoryboardGeneration:
		return "Drawing storyboard"
	case domain.StepVoiceGeneration:
		return "Recording narration"
	case domain.StepVideoGeneration:
		return "Composing video"
	case domain.StepFinalization:
		return "Finalizing"
	}
	return "Working"
}

// humanError keeps the classified message and drops the joined attempt
// details, which only belong in logs.
func humanError(name domain.StepName, err error) string {
	if err == nil {
		return stepLabel(name) + " failed"
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		return stepLabel(name) + " failed: " + de.Message
	}
	return stepLabel(name) + " failed: " + strings.SplitN(err.Error(), "\n", 2)[0]
}
