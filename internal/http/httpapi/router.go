// Package httpapi assembles the chi router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/http/handlers"
	"github.com/notedwin-dev/storyforge-ai-sub000/internal/middleware"
)

type Options struct {
	// Logger receives access logs; nil discards them.
	Logger         *zerolog.Logger
	AllowedOrigins []string
	// RateLimitPerMin bounds job mutations per client; zero disables it.
	RateLimitPerMin int
	// StaticDir is served under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/healthz", app.Health)
	r.Get("/readyz", app.Ready)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Get("/ws", app.WebSocket)
	r.Get("/stats", app.StatsSummary)

	r.Route("/generate", func(r chi.Router) {
		r.Get("/", app.ListJobs)
		r.Get("/{jobId}/status", app.JobStatus)
		r.Get("/{jobId}/result", app.JobResult)

		r.Group(func(r chi.Router) {
			if opts.RateLimitPerMin > 0 {
				r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			}
			r.Post("/", app.Generate)
			r.Post("/{jobId}/retry", app.RetryJob)
			r.Delete("/{jobId}", app.CancelJob)
		})
	})

	r.Route("/characters", func(r chi.Router) {
		r.Get("/", app.ListCharacters)
		r.Get("/{id}", app.GetCharacter)
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}
