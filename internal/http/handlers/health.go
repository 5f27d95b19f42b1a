package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/providers"
)

const readinessTimeout = 5 * time.Second

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status       string                                                     `json:"status"`
	Capabilities map[providers.Capability]map[string]providers.Availability `json:"capabilities"`
	Missing      []providers.Capability                                     `json:"missing,omitempty"`
	ActiveJobs   int                                                        `json:"activeJobs"`
}

// Ready probes every adapter. The service is ready while story generation
// has a usable adapter; other capabilities without one are reported as
// degraded since their steps are optional.
func (a *App) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	caps := a.Jobs.Readiness(ctx)
	out := readiness{Status: "ready", Capabilities: caps, ActiveJobs: len(a.Jobs.ActiveJobs())}
	for _, c := range []providers.Capability{providers.CapabilityStory, providers.CapabilityStoryboard, providers.CapabilityVoice, providers.CapabilityVideo} {
		if !anyAvailable(caps[c]) {
			out.Missing = append(out.Missing, c)
		}
	}
	code := http.StatusOK
	switch {
	case !anyAvailable(caps[providers.CapabilityStory]):
		out.Status = "unavailable"
		code = http.StatusServiceUnavailable
	case len(out.Missing) > 0:
		out.Status = "degraded"
	}
	a.json(w, code, out)
}

func anyAvailable(adapters map[string]providers.Availability) bool {
	for _, a := range adapters {
		if a.Available {
			return true
		}
	}
	return false
}
