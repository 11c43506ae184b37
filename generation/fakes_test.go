package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scenecast/config"
	"scenecast/timeline"
	"scenecast/types"
)

type extractFunc func(ctx context.Context, asset types.Asset, start, end float64) ([]byte, error)

func (f extractFunc) ExtractSegment(ctx context.Context, asset types.Asset, start, end float64) ([]byte, error) {
	return f(ctx, asset, start, end)
}

type transcribeFunc func(ctx context.Context, audio []byte) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}

type synthesizeFunc func(ctx context.Context, style, transcript string) (types.Image, error)

func (f synthesizeFunc) SynthesizeImage(ctx context.Context, style, transcript string) (types.Image, error) {
	return f(ctx, style, transcript)
}

type fakeStore struct {
	mu        sync.Mutex
	saved     []types.Artifact
	discarded int
	err       error

	// entered and release, when set, hold Persist until the test lets go
	entered chan string
	release chan struct{}
}

func (s *fakeStore) Persist(_ context.Context, a types.Artifact) (string, error) {
	if s.entered != nil {
		s.entered <- a.ArtifactID
	}
	if s.release != nil {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, a)
	return "images/" + a.ArtifactID + ".png", nil
}

func (s *fakeStore) Discard(_ context.Context, a types.Artifact, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref != "images/"+a.ArtifactID+".png" {
		return errors.New("unknown ref " + ref)
	}
	kept := s.saved[:0]
	for _, saved := range s.saved {
		if saved.ArtifactID != a.ArtifactID {
			kept = append(kept, saved)
		}
	}
	s.saved = kept
	s.discarded++
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *fakeStore) discards() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// echoAdapters encode the window end into the audio so later stages can
// tell requests apart.
func echoExtractor() extractFunc {
	return func(_ context.Context, _ types.Asset, _, end float64) ([]byte, error) {
		return []byte(formatSeconds(end)), nil
	}
}

func echoTranscriber() transcribeFunc {
	return func(_ context.Context, audio []byte) (string, error) {
		return "scene at " + string(audio), nil
	}
}

func echoSynthesizer() synthesizeFunc {
	return func(_ context.Context, style, transcript string) (types.Image, error) {
		return types.Image{Handle: "img:" + transcript, Prompt: style + ", " + transcript}, nil
	}
}

func formatSeconds(f float64) string {
	return time.Duration(f * float64(time.Second)).String()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	coord    *Coordinator
	registry *timeline.Registry
	store    *fakeStore
}

func newHarness(t *testing.T, adapters Adapters, opts Options) *harness {
	t.Helper()

	h := &harness{registry: timeline.NewRegistry(), store: &fakeStore{}}

	if adapters.Extractor == nil {
		adapters.Extractor = echoExtractor()
	}
	if adapters.Transcriber == nil {
		adapters.Transcriber = echoTranscriber()
	}
	if adapters.Synthesizer == nil {
		adapters.Synthesizer = echoSynthesizer()
	}
	if adapters.Store == nil {
		adapters.Store = h.store
	}
	if adapters.Assets == nil {
		adapters.Assets = StaticAssets{
			"a1": {ID: "a1", DurationSeconds: 120, StylePrompt: "oil painting", Ready: true},
			"a2": {ID: "a2", DurationSeconds: 600, StylePrompt: "watercolor", Ready: true},
		}
	}
	adapters.Registry = h.registry

	coord, err := NewCoordinator(adapters, opts)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = coord.Shutdown(ctx)
	})

	h.coord = coord
	return h
}

func (h *harness) submit(t *testing.T, asset string, ts float64) string {
	t.Helper()
	id, err := h.coord.Submit(context.Background(), asset, ts)
	if err != nil {
		t.Fatalf("Submit(%s, %v): %v", asset, ts, err)
	}
	return id
}

// waitDone polls until the request is terminal. The terminal Query also
// garbage collects it.
func (h *harness) waitDone(t *testing.T, id string) types.GenerationRequest {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req, err := h.coord.Query(id)
		if err != nil {
			t.Fatalf("Query(%s): %v", id, err)
		}
		if req.Status.Terminal() {
			return req
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s did not finish", id)
	return types.GenerationRequest{}
}

// waitStatus polls without consuming terminal requests
func (h *harness) waitStatus(t *testing.T, id string, want types.RequestStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, req := range h.coord.InFlight(assetOf(h, id)) {
			if req.RequestID == id && req.Status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %s never reached %s", id, want)
}

// waitTerminal waits for a terminal status without observing the request
func (h *harness) waitTerminal(t *testing.T, id string) {
	t.Helper()
	waitFor(t, func() bool {
		h.coord.mu.Lock()
		defer h.coord.mu.Unlock()
		e, ok := h.coord.requests[id]
		return ok && e.req.Status.Terminal()
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func configTimeouts(d time.Duration) config.StageTimeouts {
	return config.StageTimeouts{Extract: d, Transcribe: d, Synthesize: d, Persist: d}
}

func assetOf(h *harness, id string) string {
	h.coord.mu.Lock()
	defer h.coord.mu.Unlock()
	if e, ok := h.coord.requests[id]; ok {
		return e.req.AssetID
	}
	return ""
}
