// Package progress fans job state out to subscribed observers.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Message types exchanged with observers.
const (
	TypeProgress   = "progress"
	TypeConnection = "connection"
	TypePong       = "pong"
	TypeError      = "error"
)

// Message is the envelope pushed to observers.
type Message struct {
	Type      string      `json:"type"`
	JobID     string      `json:"jobId,omitempty"`
	Data      *domain.Job `json:"data,omitempty"`
	Status    string      `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscriber receives messages. Send must not block; an error removes the
// subscriber from every job it follows.
type Subscriber interface {
	ID() string
	Send(msg Message) error
}

// Forwarder mirrors published messages beyond this process.
type Forwarder interface {
	Forward(ctx context.Context, msg Message) error
}

// Bus is the subscription registry. Deliveries for all jobs happen under one
// lock, so every subscriber sees a job's messages in publish order.
type Bus struct {
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	byJob     map[string]map[string]Subscriber
	bySub     map[string]map[string]struct{}
	forwarder Forwarder
}

func NewBus(logger *zerolog.Logger) *Bus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "progress.bus").Logger()
	}
	return &Bus{
		logger: l,
		now:    time.Now,
		byJob:  make(map[string]map[string]Subscriber),
		bySub:  make(map[string]map[string]struct{}),
	}
}

// SetForwarder installs the cross-instance relay.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	b.forwarder = f
	b.mu.Unlock()
}

// Subscribe registers sub for jobID. Subscribing twice is a no-op.
func (b *Bus) Subscribe(sub Subscriber, jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.byJob[jobID]
	if !ok {
		subs = make(map[string]Subscriber)
		b.byJob[jobID] = subs
	}
	subs[sub.ID()] = sub
	jobs, ok := b.bySub[sub.ID()]
	if !ok {
		jobs = make(map[string]struct{})
		b.bySub[sub.ID()] = jobs
	}
	jobs[jobID] = struct{}{}
}

// Unsubscribe removes the (subscriber, job) pair.
func (b *Bus) Unsubscribe(subID, jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeLocked(subID, jobID)
}

// Remove drops a subscriber from every job.
func (b *Bus) Remove(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for jobID := range b.bySub[subID] {
		b.unsubscribeLocked(subID, jobID)
	}
	delete(b.bySub, subID)
}

func (b *Bus) unsubscribeLocked(subID, jobID string) {
	if subs, ok := b.byJob[jobID]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(b.byJob, jobID)
		}
	}
	if jobs, ok := b.bySub[subID]; ok {
		delete(jobs, jobID)
		if len(jobs) == 0 {
			delete(b.bySub, subID)
		}
	}
}

// Subscribers returns how many observers follow jobID.
func (b *Bus) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byJob[jobID])
}

// Publish pushes the full job record to local subscribers and, when a
// forwarder is installed, to other instances.
func (b *Bus) Publish(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("progress: nil job")
	}
	msg := Message{Type: TypeProgress, JobID: job.ID, Data: job.Clone(), Timestamp: b.now()}
	b.Deliver(msg)

	b.mu.Lock()
	f := b.forwarder
	b.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Forward(ctx, msg)
}

// Deliver hands msg to the local subscribers of msg.JobID.
func (b *Bus) Deliver(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.byJob[msg.JobID] {
		if err := sub.Send(msg); err != nil {
			b.logger.Debug().Err(err).Str("subscriber_id", id).Str("job_id", msg.JobID).Msg("dropping subscriber")
			for jobID := range b.bySub[id] {
				b.unsubscribeLocked(id, jobID)
			}
		}
	}
}
