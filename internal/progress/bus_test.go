package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingSub struct{ id string }

func (f failingSub) ID() string             { return f.id }
func (f failingSub) Send(msg Message) error { return errors.New("broken pipe") }

type recordingForwarder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingForwarder) Forward(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func job(id string, progress int) *domain.Job {
	return &domain.Job{ID: id, Status: domain.JobStatusProcessing, Progress: progress}
}

func TestPublishReachesOnlyJobSubscribers(t *testing.T) {
	bus := NewBus(nil)
	a := NewQueue("a", 4)
	b := NewQueue("b", 4)
	bus.Subscribe(a, "job-1")
	bus.Subscribe(b, "job-2")

	if err := bus.Publish(context.Background(), job("job-1", 20)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-a.C():
		if msg.Type != TypeProgress || msg.JobID != "job-1" || msg.Data.Progress != 20 {
			t.Fatalf("unexpected message %+v", msg)
		}
	default:
		t.Fatal("subscriber a got nothing")
	}
	select {
	case msg := <-b.C():
		t.Fatalf("subscriber b got %+v", msg)
	default:
	}
}

func TestPublishSendsSnapshot(t *testing.T) {
	bus := NewBus(nil)
	q := NewQueue("a", 1)
	bus.Subscribe(q, "job-1")

	j := job("job-1", 20)
	j.Steps = []domain.Step{{Name: domain.StepCharacterLoading, Status: domain.StepProcessing}}
	_ = bus.Publish(context.Background(), j)
	j.Steps[0].Status = domain.StepCompleted

	msg := <-q.C()
	if msg.Data.Steps[0].Status != domain.StepProcessing {
		t.Fatal("published message shares state with the caller")
	}
}

func TestFailedSendRemovesSubscriber(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(failingSub{id: "bad"}, "job-1")
	bus.Subscribe(failingSub{id: "bad"}, "job-2")
	good := NewQueue("good", 4)
	bus.Subscribe(good, "job-1")

	_ = bus.Publish(context.Background(), job("job-1", 20))

	if got := bus.Subscribers("job-1"); got != 1 {
		t.Fatalf("Subscribers(job-1) = %d, want 1", got)
	}
	if got := bus.Subscribers("job-2"); got != 0 {
		t.Fatalf("Subscribers(job-2) = %d, want 0", got)
	}
}

func TestFullQueueIsDropped(t *testing.T) {
	bus := NewBus(nil)
	q := NewQueue("slow", 1)
	bus.Subscribe(q, "job-1")

	_ = bus.Publish(context.Background(), job("job-1", 20))
	_ = bus.Publish(context.Background(), job("job-1", 45))

	if got := bus.Subscribers("job-1"); got != 0 {
		t.Fatalf("Subscribers = %d, want 0", got)
	}
}

func TestOrderingPerSubscriber(t *testing.T) {
	bus := NewBus(nil)
	q := NewQueue("a", 256)
	bus.Subscribe(q, "job-1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := 0; p <= 100; p++ {
			_ = bus.Publish(context.Background(), job("job-1", p))
		}
	}()
	// Concurrent traffic for another job must not reorder job-1.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := 0; p <= 100; p++ {
			_ = bus.Publish(context.Background(), job("job-2", p))
		}
	}()
	wg.Wait()

	last := -1
	for i := 0; i <= 100; i++ {
		msg := <-q.C()
		if msg.Data.Progress <= last {
			t.Fatalf("out of order: %d after %d", msg.Data.Progress, last)
		}
		last = msg.Data.Progress
	}
}

func TestUnsubscribeAndRemove(t *testing.T) {
	bus := NewBus(nil)
	q := NewQueue("a", 4)
	bus.Subscribe(q, "job-1")
	bus.Subscribe(q, "job-1")
	bus.Subscribe(q, "job-2")

	bus.Unsubscribe("a", "job-1")
	if bus.Subscribers("job-1") != 0 || bus.Subscribers("job-2") != 1 {
		t.Fatal("Unsubscribe removed the wrong pair")
	}
	bus.Remove("a")
	if bus.Subscribers("job-2") != 0 {
		t.Fatal("Remove left a subscription behind")
	}
}

func TestPublishForwards(t *testing.T) {
	bus := NewBus(nil)
	fwd := &recordingForwarder{}
	bus.SetForwarder(fwd)

	_ = bus.Publish(context.Background(), job("job-1", 65))
	if len(fwd.msgs) != 1 || fwd.msgs[0].JobID != "job-1" {
		t.Fatalf("forwarded = %+v", fwd.msgs)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue("a", 1)
	q.Close()
	q.Close()
	if err := q.Send(Message{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Send after Close = %v", err)
	}
	if _, ok := <-q.C(); ok {
		t.Fatal("channel should be closed")
	}
}

func TestRelayHandleSkipsOwnMessages(t *testing.T) {
	bus := NewBus(nil)
	q := NewQueue("a", 4)
	bus.Subscribe(q, "job-1")
	relay := &RedisRelay{bus: bus, instance: "self"}

	own, _ := json.Marshal(envelope{Origin: "self", Message: Message{Type: TypeProgress, JobID: "job-1", Timestamp: time.Now()}})
	if err := relay.handle(ChannelPrefix+"job-1", own); err != nil {
		t.Fatalf("handle own: %v", err)
	}
	remote, _ := json.Marshal(envelope{Origin: "other", Message: Message{Type: TypeProgress, JobID: "job-1", Data: job("job-1", 80)}})
	if err := relay.handle(ChannelPrefix+"job-1", remote); err != nil {
		t.Fatalf("handle remote: %v", err)
	}
	mismatched, _ := json.Marshal(envelope{Origin: "other", Message: Message{JobID: "job-9"}})
	if err := relay.handle(ChannelPrefix+"job-1", mismatched); err == nil {
		t.Fatal("expected mismatch error")
	}

	select {
	case msg := <-q.C():
		if msg.Data == nil || msg.Data.Progress != 80 {
			t.Fatalf("unexpected message %+v", msg)
		}
	default:
		t.Fatal("remote message not delivered")
	}
	select {
	case msg := <-q.C():
		t.Fatalf("extra message %+v", msg)
	default:
	}
}
