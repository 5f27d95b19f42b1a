package handlers

import (
	"net/http"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/orchestrator"
)

// StatsSummary counts jobs per status and lists the ones running now.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	all, err := a.Jobs.List(r.Context(), "")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	counts := map[domain.JobStatus]int{
		domain.JobStatusInitializing: 0,
		domain.JobStatusProcessing:   0,
		domain.JobStatusCompleted:    0,
		domain.JobStatusFailed:       0,
		domain.JobStatusCancelled:    0,
	}
	retries := 0
	for _, job := range all {
		counts[job.Status]++
		retries += job.RetryCount
	}
	active := a.Jobs.ActiveJobs()
	if active == nil {
		active = []orchestrator.Active{}
	}
	a.json(w, http.StatusOK, map[string]any{
		"total":    len(all),
		"byStatus": counts,
		"retries":  retries,
		"active":   active,
	})
}
