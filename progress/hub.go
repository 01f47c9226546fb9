package progress

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"webshrink/failures"
	"webshrink/models"
)

var (
	ErrUnknownTopic = errors.New("progress: unknown job")
	ErrTopicClosed  = errors.New("progress: job already reached a terminal event")
)

// Event is one entry of a job's progress stream.
type Event struct {
	JobID    string        `json:"job_id"`
	Seq      int           `json:"seq"`
	Percent  int           `json:"percent"`
	Phase    models.Phase  `json:"phase"`
	State    models.State  `json:"state"`
	Terminal bool          `json:"terminal"`
	Kind     failures.Kind `json:"kind,omitempty"`   // failed jobs only
	Detail   string        `json:"detail,omitempty"` // failed jobs only
	At       time.Time     `json:"at"`
}

// topic is the full event history of one job. Waiters block on notify,
// which is closed and replaced on every publish.
type topic struct {
	mu     sync.Mutex
	events []Event
	closed bool
	notify chan struct{}
}

// Hub keeps an append-only event log per job and lets any number of
// subscribers read it from the start. Publishing never blocks.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]*topic), now: time.Now}
}

// Open creates the stream for a job. Opening an existing stream is a no-op.
func (h *Hub) Open(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[jobID]; !ok {
		h.topics[jobID] = &topic{notify: make(chan struct{})}
	}
}

// Publish appends ev to its job's stream. Seq, Phase and At are filled in
// by the hub. A terminal event closes the stream.
func (h *Hub) Publish(ev Event) error {
	t := h.topic(ev.JobID)
	if t == nil {
		return ErrUnknownTopic
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTopicClosed
	}
	ev.Seq = len(t.events)
	if ev.Phase == "" {
		ev.Phase = models.PhaseFor(ev.Percent)
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	t.events = append(t.events, ev)
	if ev.Terminal {
		t.closed = true
	}
	close(t.notify)
	t.notify = make(chan struct{})
	return nil
}

// Subscribe returns a reader positioned at the first event of the job.
func (h *Hub) Subscribe(jobID string) (*Subscription, error) {
	t := h.topic(jobID)
	if t == nil {
		return nil, ErrUnknownTopic
	}
	return &Subscription{jobID: jobID, t: t}, nil
}

// History returns a copy of every event published for a job so far.
func (h *Hub) History(jobID string) []Event {
	t := h.topic(jobID)
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Drop forgets a job's stream. Subscribers that already hold it can still drain it.
func (h *Hub) Drop(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, jobID)
}

func (h *Hub) topic(jobID string) *topic {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.topics[jobID]
}

// Subscription is one reader's cursor into a job's stream. It is not safe
// for concurrent use; open one subscription per consumer.
type Subscription struct {
	jobID string
	t     *topic
	next  int
}

func (s *Subscription) JobID() string { return s.jobID }

// Next blocks until the next event is available. It returns false once the
// terminal event has been delivered or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Event, bool) {
	for {
		s.t.mu.Lock()
		if s.next < len(s.t.events) {
			ev := s.t.events[s.next]
			s.next++
			s.t.mu.Unlock()
			return ev, true
		}
		if s.t.closed {
			s.t.mu.Unlock()
			return Event{}, false
		}
		wait := s.t.notify
		s.t.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// All yields every remaining event, ending after the terminal one.
func (s *Subscription) All(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, ok := s.Next(ctx)
			if !ok || !yield(ev) {
				return
			}
		}
	}
}
