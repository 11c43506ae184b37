package pubsub

import (
	"testing"
	"time"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub[int]()
	defer h.Close()

	_, ch := h.Subscribe()

	// Nobody is reading yet; publish must not block.
	for i := 0; i < 1000; i++ {
		h.Publish(i)
	}

	for i := 0; i < 1000; i++ {
		if got := receive(t, ch); got != i {
			t.Fatalf("value %d: got %d", i, got)
		}
	}
}

func TestHubSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := NewHub[string]()
	defer h.Close()

	_, slow := h.Subscribe()
	_, fast := h.Subscribe()

	h.Publish("a")
	h.Publish("b")

	if got := receive(t, fast); got != "a" {
		t.Fatalf("fast got %q", got)
	}
	if got := receive(t, fast); got != "b" {
		t.Fatalf("fast got %q", got)
	}
	if got := receive(t, slow); got != "a" {
		t.Fatalf("slow got %q", got)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub[int]()
	id, ch := h.Subscribe()

	h.Publish(1)
	h.Unsubscribe(id)
	h.Unsubscribe(id) // second call is a no-op

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if h.Len() != 0 {
					t.Fatalf("Len = %d; want 0", h.Len())
				}
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Unsubscribe")
		}
	}
}

func TestHubCloseClosesEverything(t *testing.T) {
	h := NewHub[int]()
	_, a := h.Subscribe()
	_, b := h.Subscribe()

	h.Close()

	for _, ch := range []<-chan int{a, b} {
		select {
		case _, ok := <-ch:
			if ok {
				// drain whatever was queued before close
				for range ch {
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatal("channel not closed after Close")
		}
	}

	if _, ch := h.Subscribe(); ch != nil {
		if _, ok := <-ch; ok {
			t.Fatal("subscribe after Close should return a closed channel")
		}
	}
}
