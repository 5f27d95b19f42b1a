package progress

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("progress: subscriber queue full")
	ErrQueueClosed = errors.New("progress: subscriber closed")
)

// Queue is a buffered Subscriber drained by its owner (for example a
// WebSocket writer). A full queue fails the send instead of blocking.
type Queue struct {
	id string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func NewQueue(id string, size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{id: id, ch: make(chan Message, size)}
}

func (q *Queue) ID() string { return q.id }

func (q *Queue) Send(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// C is drained by the owner.
func (q *Queue) C() <-chan Message { return q.ch }

// Close stops further sends and closes C.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
