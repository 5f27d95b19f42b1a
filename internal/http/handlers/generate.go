package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

const maxGenerateBody = 64 << 10

type generateResponse struct {
	JobID         string            `json:"jobId"`
	Status        string            `json:"status"`
	EstimatedTime int               `json:"estimatedTime"`
	Steps         []domain.StepName `json:"steps"`
}

// Generate submits a new job.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err := dec.Decode(&req); err != nil {
		msg := "invalid payload"
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			msg = "payload too large"
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		}
		a.error(w, http.StatusBadRequest, string(domain.KindValidation), msg)
		return
	}
	job, err := a.Jobs.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	steps := make([]domain.StepName, len(job.Steps))
	for i, s := range job.Steps {
		steps[i] = s.Name
	}
	a.json(w, http.StatusAccepted, generateResponse{
		JobID:         job.ID,
		Status:        "started",
		EstimatedTime: job.EstimatedDuration,
		Steps:         steps,
	})
}

var jobStatuses = map[domain.JobStatus]bool{
	domain.JobStatusInitializing: true,
	domain.JobStatusProcessing:   true,
	domain.JobStatusCompleted:    true,
	domain.JobStatusFailed:       true,
	domain.JobStatusCancelled:    true,
}

// ListJobs returns job records newest first, optionally filtered by ?status=.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !jobStatuses[status] {
		a.error(w, http.StatusBadRequest, string(domain.KindValidation), "unknown status filter")
		return
	}
	items, err := a.Jobs.List(r.Context(), status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Job{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// JobStatus returns the full job record.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// JobResult returns the result of a completed job; 404 until then.
func (a *App) JobResult(w http.ResponseWriter, r *http.Request) {
	res, err := a.Jobs.Result(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "result not available")
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// RetryJob restarts a failed job.
func (a *App) RetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Retry(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobId":      job.ID,
		"status":     job.Status,
		"retryCount": job.RetryCount,
	})
}

// CancelJob cancels a job that has not finished.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Cancel(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobId": job.ID, "status": job.Status})
}
