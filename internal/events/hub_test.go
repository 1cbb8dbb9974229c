package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	h := NewHub(16)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(PipelineStarted{Label: "//icons:home"})

	select {
	case env := <-ch:
		ev, ok := env.Ev.(PipelineStarted)
		if !ok || ev.Label != "//icons:home" {
			t.Fatalf("unexpected event: %#v", env.Ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	t.Parallel()

	h := NewHub(4)
	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			h.Publish(CacheMiss{Key: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestSnapshotSinceReturnsTail(t *testing.T) {
	t.Parallel()

	h := NewHub(8)
	for i := 0; i < 5; i++ {
		h.Publish(CacheMiss{Key: "k"})
	}
	all := h.SnapshotSince(0)
	if len(all) != 5 {
		t.Fatalf("snapshot size = %d, want 5", len(all))
	}
	tail := h.SnapshotSince(all[2].ID)
	if len(tail) != 2 {
		t.Fatalf("tail size = %d, want 2", len(tail))
	}
}
