// Package handlers implements the HTTP and WebSocket surface of the service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/character"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/middleware"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/orchestrator"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/progress"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

// Jobs is the orchestrator surface the handlers drive.
type Jobs interface {
	Submit(ctx context.Context, req domain.GenerateRequest) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error)
	Result(ctx context.Context, id string) (*domain.Result, error)
	Retry(ctx context.Context, id string) (*domain.Job, error)
	Cancel(ctx context.Context, id string) (*domain.Job, error)
	Readiness(ctx context.Context) map[providers.Capability]map[string]providers.Availability
	ActiveJobs() []orchestrator.Active
}

// Characters resolves and lists character descriptors.
type Characters interface {
	Resolve(ctx context.Context, id string) (character.Resolution, error)
	List() []domain.Character
}

// Bus is the subscription side of the progress bus.
type Bus interface {
	Subscribe(sub progress.Subscriber, jobID string)
	Unsubscribe(subID, jobID string)
	Remove(subID string)
}

type App struct {
	Jobs       Jobs
	Characters Characters
	Bus        Bus
	Logger     zerolog.Logger

	upgrader websocket.Upgrader
}

// NewApp wires the handlers. WebSocket upgrades are accepted from the same
// origins the CORS policy allows.
func NewApp(jobs Jobs, characters Characters, bus Bus, allowedOrigins []string, logger *zerolog.Logger) *App {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}
	return &App{
		Jobs:       jobs,
		Characters: characters,
		Bus:        bus,
		Logger:     l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: kind, Message: message}})
}

// fail maps domain and orchestrator errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	switch {
	case errors.Is(err, domain.ErrValidation) && errors.As(err, &de):
		a.error(w, http.StatusBadRequest, string(domain.KindValidation), de.Message)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrNotRetryable):
		a.error(w, http.StatusBadRequest, "not_retryable", err.Error())
	case errors.Is(err, domain.ErrTerminal):
		a.error(w, http.StatusConflict, "job_terminal", err.Error())
	case errors.Is(err, orchestrator.ErrShuttingDown):
		a.error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, context.Canceled):
		a.error(w, http.StatusServiceUnavailable, "unavailable", "request cancelled")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
