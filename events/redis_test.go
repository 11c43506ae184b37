package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"scenecast/pubsub"
	"scenecast/timeline"
	"scenecast/types"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		f.fail = false
		return errors.New("connection reset")
	}
	f.msgs = append(f.msgs, published{channel, payload})
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

type hubRequests struct {
	*pubsub.Hub[types.GenerationRequest]
}

func waitForMessages(t *testing.T, pub *fakePublisher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.snapshot()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d messages; want %d", len(pub.snapshot()), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestChannelNames(t *testing.T) {
	if got := TimelineChannel("a1"); got != "scenecast:asset:a1:timeline" {
		t.Fatalf("TimelineChannel = %q", got)
	}
	if got := RequestChannel("r1"); got != "scenecast:request:r1:status" {
		t.Fatalf("RequestChannel = %q", got)
	}
}

func TestForward(t *testing.T) {
	registry := timeline.NewRegistry()
	requests := hubRequests{pubsub.NewHub[types.GenerationRequest]()}
	pub := &fakePublisher{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Forward(ctx, registry, requests, pub)
		close(done)
	}()

	// Wait until Forward has subscribed to both sources.
	deadline := time.Now().Add(2 * time.Second)
	for requests.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// The first publish fails and is skipped.
	requests.Publish(types.GenerationRequest{RequestID: "r0", Status: types.RequestPending})
	requests.Publish(types.GenerationRequest{RequestID: "r1", Status: types.RequestSucceeded})
	waitForMessages(t, pub, 1)

	registry.Insert(types.Artifact{ArtifactID: "x", AssetID: "a1", TimestampSeconds: 40})
	waitForMessages(t, pub, 2)

	cancel()
	<-done

	byChannel := map[string][]byte{}
	for _, m := range pub.snapshot() {
		byChannel[m.channel] = m.payload
	}

	var req types.GenerationRequest
	if err := json.Unmarshal(byChannel["scenecast:request:r1:status"], &req); err != nil || req.Status != types.RequestSucceeded {
		t.Fatalf("request event = %s (%v)", byChannel["scenecast:request:r1:status"], err)
	}

	var upd timeline.Update
	if err := json.Unmarshal(byChannel["scenecast:asset:a1:timeline"], &upd); err != nil || upd.Kind != timeline.UpdateInserted {
		t.Fatalf("timeline event = %s (%v)", byChannel["scenecast:asset:a1:timeline"], err)
	}
}
