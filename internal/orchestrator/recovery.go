package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Recover restarts every stored job left initializing or processing by a
// previous process. Steps that completed with their output intact are
// reused; everything else runs again. It returns how many jobs restarted.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	stored, err := o.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stored {
		if job.Status != domain.JobStatusInitializing && job.Status != domain.JobStatusProcessing {
			continue
		}
		resetSteps(job, false)
		job.Touch(o.now())
		o.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Int("progress", job.Progress).
			Msg("resuming interrupted job")
		if o.start(job) {
			n++
		}
	}
	if n > 0 {
		o.logger.Info().Int("jobs", n).Msg("recovery finished")
	}
	return n, nil
}

// Monitor logs the active jobs every interval until ctx is done. It never
// changes job state.
func (o *Orchestrator) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := o.ActiveJobs()
			if len(active) == 0 {
				o.logger.Debug().Msg("no active jobs")
				continue
			}
			o.logger.Info().Int("active_jobs", len(active)).Array("jobs", activeList(active)).Msg("job health")
		}
	}
}

type activeList []Active

func (l activeList) MarshalZerologArray(a *zerolog.Array) {
	for _, j := range l {
		a.Object(j)
	}
}

func (a Active) MarshalZerologObject(e *zerolog.Event) {
	e.Str("job_id", a.ID).Str("step", string(a.Step)).Dur("elapsed", a.Elapsed)
}
