// Package providers defines the adapter contract every external generator
// presents to the orchestrator and the ordered fallback chain run per
// capability.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Capability names the functional role of an adapter.
type Capability string

const (
	CapabilityStory      Capability = "story"
	CapabilityStoryboard Capability = "storyboard"
	CapabilityVoice      Capability = "voice"
	CapabilityVideo      Capability = "video"
)

// ProbeTimeout bounds every Available call.
const ProbeTimeout = 3 * time.Second

// Budget is the upper bound of one Generate call for the capability.
func (c Capability) Budget() time.Duration {
	switch c {
	case CapabilityStory:
		return 60 * time.Second
	case CapabilityStoryboard:
		return 120 * time.Second
	case CapabilityVoice:
		return 60 * time.Second
	case CapabilityVideo:
		return 300 * time.Second
	}
	return 60 * time.Second
}

// Availability is the answer of a cheap readiness probe.
type Availability struct {
	Available bool   `json:"available"`
	Retryable bool   `json:"retryable"`
	Reason    string `json:"reason,omitempty"`
}

// Ready is the Availability of an adapter with nothing to check.
var Ready = Availability{Available: true}

// Unavailable builds a non-ready answer.
func Unavailable(reason string, retryable bool) Availability {
	return Availability{Reason: reason, Retryable: retryable}
}

// Adapter wraps one external service for one capability.
type Adapter[In, Out any] interface {
	Name() string
	Available(ctx context.Context) Availability
	Generate(ctx context.Context, in In) (Out, error)
}

// Attempt records how one adapter fared inside a chain run.
type Attempt struct {
	Adapter string
	Err     error
}

// Chain tries adapters in order; the first success wins.
type Chain[In, Out any] struct {
	capability Capability
	adapters   []Adapter[In, Out]
	budget     time.Duration
	probe      time.Duration
	logger     zerolog.Logger
}

// ChainOption customizes a Chain.
type ChainOption func(*chainSettings)

type chainSettings struct {
	budget time.Duration
	probe  time.Duration
	logger *zerolog.Logger
}

// WithBudget overrides the per-call budget of the capability.
func WithBudget(d time.Duration) ChainOption {
	return func(s *chainSettings) { s.budget = d }
}

// WithProbeTimeout overrides ProbeTimeout.
func WithProbeTimeout(d time.Duration) ChainOption {
	return func(s *chainSettings) { s.probe = d }
}

// WithLogger attaches a logger for fallback reporting.
func WithLogger(l *zerolog.Logger) ChainOption {
	return func(s *chainSettings) { s.logger = l }
}

// NewChain builds a chain for a capability. Nil adapters are dropped.
func NewChain[In, Out any](capability Capability, adapters []Adapter[In, Out], opts ...ChainOption) *Chain[In, Out] {
	settings := chainSettings{budget: capability.Budget(), probe: ProbeTimeout}
	for _, opt := range opts {
		opt(&settings)
	}
	logger := zerolog.Nop()
	if settings.logger != nil {
		logger = settings.logger.With().Str("capability", string(capability)).Logger()
	}
	kept := make([]Adapter[In, Out], 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			kept = append(kept, a)
		}
	}
	return &Chain[In, Out]{
		capability: capability,
		adapters:   kept,
		budget:     settings.budget,
		probe:      settings.probe,
		logger:     logger,
	}
}

// Capability returns the chain's capability.
func (c *Chain[In, Out]) Capability() Capability { return c.capability }

// Names lists adapter names in order.
func (c *Chain[In, Out]) Names() []string {
	names := make([]string, len(c.adapters))
	for i, a := range c.adapters {
		names[i] = a.Name()
	}
	return names
}

// Probe reports the availability of every adapter.
func (c *Chain[In, Out]) Probe(ctx context.Context) map[string]Availability {
	out := make(map[string]Availability, len(c.adapters))
	for _, a := range c.adapters {
		out[a.Name()] = c.available(ctx, a)
	}
	return out
}

// Run invokes adapters in order and returns the first success. When every
// adapter fails the error is CapabilityExhausted joined with each attempt.
func (c *Chain[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	var zero Out
	attempts := make([]error, 0, len(c.adapters))
	for _, a := range c.adapters {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		avail := c.available(ctx, a)
		if !avail.Available {
			err := domain.NewError(domain.KindAdapterUnavailable, fmt.Sprintf("%s unavailable: %s", a.Name(), avail.Reason), nil)
			c.logger.Warn().Str("adapter", a.Name()).Str("reason", avail.Reason).Msg("adapter unavailable, trying next")
			attempts = append(attempts, err)
			continue
		}
		out, err := c.generate(ctx, a, in)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("adapter", a.Name()).Msg("adapter failed, trying next")
		attempts = append(attempts, err)
	}
	if len(attempts) == 0 {
		attempts = append(attempts, errors.New("no adapters configured"))
	}
	return zero, domain.NewError(domain.KindCapabilityExhausted,
		fmt.Sprintf("all %s adapters failed", c.capability), errors.Join(attempts...))
}

func (c *Chain[In, Out]) available(ctx context.Context, a Adapter[In, Out]) Availability {
	probeCtx, cancel := context.WithTimeout(ctx, c.probe)
	defer cancel()
	ch := make(chan Availability, 1)
	go func() { ch <- a.Available(probeCtx) }()
	select {
	case avail := <-ch:
		return avail
	case <-probeCtx.Done():
		return Unavailable("availability probe timed out", true)
	}
}

type outcome[Out any] struct {
	out Out
	err error
}

func (c *Chain[In, Out]) generate(ctx context.Context, a Adapter[In, Out], in In) (Out, error) {
	var zero Out
	callCtx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	ch := make(chan outcome[Out], 1)
	go func() {
		out, err := a.Generate(callCtx, in)
		ch <- outcome[Out]{out: out, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return zero, domain.NewError(domain.KindTimeout, fmt.Sprintf("%s exceeded %s", a.Name(), c.budget), res.err)
			}
			var de *domain.Error
			if errors.As(res.err, &de) {
				return zero, res.err
			}
			return zero, domain.NewError(domain.KindAdapterFailure, a.Name()+" failed", res.err)
		}
		return res.out, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, domain.NewError(domain.KindTimeout, fmt.Sprintf("%s exceeded %s", a.Name(), c.budget), callCtx.Err())
	}
}

// Runner is the view of a chain the orchestrator depends on.
type Runner[In, Out any] interface {
	Run(ctx context.Context, in In) (Out, error)
	Probe(ctx context.Context) map[string]Availability
}

var _ Runner[string, string] = (*Chain[string, string])(nil)
