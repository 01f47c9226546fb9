package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webshrink/models"
)

func publishAll(t *testing.T, h *Hub, id string, percents []int, final models.State) {
	t.Helper()
	if err := h.Publish(Event{JobID: id, State: models.StateQueued}); err != nil {
		t.Fatalf("Failed to publish queued event: %v", err)
	}
	for _, p := range percents {
		if err := h.Publish(Event{JobID: id, Percent: p, State: models.StateRunning}); err != nil {
			t.Fatalf("Failed to publish %d%%: %v", p, err)
		}
	}
	last := percents[len(percents)-1]
	if final == models.StateSucceeded {
		last = 100
	}
	if err := h.Publish(Event{JobID: id, Percent: last, State: final, Terminal: true}); err != nil {
		t.Fatalf("Failed to publish terminal event: %v", err)
	}
}

func TestReplayAfterCompletion(t *testing.T) {
	h := NewHub()
	h.Open("job")
	publishAll(t, h, "job", []int{10, 40, 96}, models.StateSucceeded)

	sub, err := h.Subscribe("job")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	var events []Event
	for ev := range sub.All(context.Background()) {
		events = append(events, ev)
	}
	if len(events) != 5 {
		t.Fatalf("Expected 5 events, got %d", len(events))
	}

	wantPhases := []models.Phase{
		models.PhaseAnalyzing, models.PhaseAnalyzing, models.PhaseTranscoding,
		models.PhaseFinalizing, models.PhaseDone,
	}
	for i, ev := range events {
		if ev.Seq != i {
			t.Errorf("Event %d has seq %d", i, ev.Seq)
		}
		if ev.Phase != wantPhases[i] {
			t.Errorf("Event %d phase %s, want %s", i, ev.Phase, wantPhases[i])
		}
	}
	if !events[4].Terminal || events[4].State != models.StateSucceeded {
		t.Errorf("Last event should be terminal success, got %+v", events[4])
	}

	if _, ok := sub.Next(context.Background()); ok {
		t.Error("Next after the terminal event should return false")
	}
}

func TestPublishAfterTerminal(t *testing.T) {
	h := NewHub()
	h.Open("job")
	h.Publish(Event{JobID: "job", State: models.StateCancelled, Terminal: true})

	if err := h.Publish(Event{JobID: "job", Percent: 50}); !errors.Is(err, ErrTopicClosed) {
		t.Errorf("Expected ErrTopicClosed, got %v", err)
	}
	if err := h.Publish(Event{JobID: "other"}); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("Expected ErrUnknownTopic, got %v", err)
	}
	if _, err := h.Subscribe("other"); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("Expected ErrUnknownTopic on subscribe, got %v", err)
	}
}

func TestConcurrentSubscribersSeeSameStream(t *testing.T) {
	h := NewHub()
	h.Open("job")

	const subscribers = 4
	results := make([][]int, subscribers)
	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		sub, err := h.Subscribe("job")
		if err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			for ev := range sub.All(context.Background()) {
				results[i] = append(results[i], ev.Percent)
			}
		}(i, sub)
	}

	for p := 0; p <= 99; p += 11 {
		h.Publish(Event{JobID: "job", Percent: p, State: models.StateRunning})
		time.Sleep(time.Millisecond)
	}
	h.Publish(Event{JobID: "job", Percent: 100, State: models.StateSucceeded, Terminal: true})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribers did not finish")
	}

	for i := 1; i < subscribers; i++ {
		if len(results[i]) != len(results[0]) {
			t.Fatalf("Subscriber %d saw %d events, subscriber 0 saw %d", i, len(results[i]), len(results[0]))
		}
		for j := range results[0] {
			if results[i][j] != results[0][j] {
				t.Errorf("Subscriber %d diverged at %d", i, j)
			}
		}
	}
	if last := results[0][len(results[0])-1]; last != 100 {
		t.Errorf("Expected stream to end at 100, got %d", last)
	}
}

func TestNextHonoursContext(t *testing.T) {
	h := NewHub()
	h.Open("job")
	sub, _ := h.Subscribe("job")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := sub.Next(ctx); ok {
		t.Error("Next should give up when the context ends")
	}
}

func TestDropKeepsExistingSubscribers(t *testing.T) {
	h := NewHub()
	h.Open("job")
	sub, _ := h.Subscribe("job")
	h.Publish(Event{JobID: "job", State: models.StateFailed, Terminal: true})
	h.Drop("job")

	if _, ok := sub.Next(context.Background()); !ok {
		t.Error("Existing subscriber should still drain the dropped stream")
	}
	if h.History("job") != nil {
		t.Error("Dropped stream should have no history")
	}
}
