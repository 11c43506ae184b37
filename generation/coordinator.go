package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scenecast/config"
	"scenecast/pubsub"
	"scenecast/types"
)

// Options tunes the coordinator. Zero values fall back to the defaults in config.
type Options struct {
	MaxInFlight int
	Timeouts    config.StageTimeouts
	Lookback    float64
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = config.DefaultMaxInFlight
	}
	defaults := config.DefaultTimeouts()
	if o.Timeouts.Extract <= 0 {
		o.Timeouts.Extract = defaults.Extract
	}
	if o.Timeouts.Transcribe <= 0 {
		o.Timeouts.Transcribe = defaults.Transcribe
	}
	if o.Timeouts.Synthesize <= 0 {
		o.Timeouts.Synthesize = defaults.Synthesize
	}
	if o.Timeouts.Persist <= 0 {
		o.Timeouts.Persist = defaults.Persist
	}
	if o.Lookback <= 0 {
		o.Lookback = config.LookbackSeconds
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type dedupKey struct {
	assetID string
	second  int64
}

func keyFor(assetID string, ts float64) dedupKey {
	return dedupKey{assetID: assetID, second: int64(math.Round(ts / config.DedupGranularitySeconds))}
}

type entry struct {
	req        types.GenerationRequest
	asset      types.Asset
	key        dedupKey
	epoch      uint64
	finishedAt time.Time
}

// Coordinator turns timestamps into artifacts. Each request runs
// Extract, Transcribe, Synthesize, Persist and Register in order on its own
// goroutine; at most MaxInFlight pipelines run at once and the rest wait in
// submission order.
type Coordinator struct {
	adapters Adapters
	opts     Options

	mu       sync.Mutex
	requests map[string]*entry
	inflight map[dedupKey]string
	queue    []string
	running  int
	epochs   map[string]uint64 // bumped when an asset is unloaded
	closed   bool

	hub    *pubsub.Hub[types.GenerationRequest]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator. Extractor, Transcriber, Synthesizer
// and Assets are required.
func NewCoordinator(adapters Adapters, opts Options) (*Coordinator, error) {
	if adapters.Extractor == nil || adapters.Transcriber == nil || adapters.Synthesizer == nil {
		return nil, fmt.Errorf("extractor, transcriber and synthesizer are required")
	}
	if adapters.Assets == nil {
		return nil, fmt.Errorf("asset resolver is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		adapters: adapters,
		opts:     opts.withDefaults(),
		requests: make(map[string]*entry),
		inflight: make(map[dedupKey]string),
		epochs:   make(map[string]uint64),
		hub:      pubsub.NewHub[types.GenerationRequest](),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// WindowFor returns the audio span transcribed for a request at ts
func WindowFor(ts, lookback float64) types.ExtractionWindow {
	return types.ExtractionWindow{Start: math.Max(0, ts-lookback), End: ts}
}

// Submit queues a generation for assetID at timestamp seconds. When an
// unfinished request already covers the same second, its id is returned
// together with ErrDuplicateInFlight.
func (c *Coordinator) Submit(ctx context.Context, assetID string, timestamp float64) (string, error) {
	if math.IsNaN(timestamp) || math.IsInf(timestamp, 0) || timestamp < 0 {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimestamp, timestamp)
	}

	asset, err := c.adapters.Assets.Asset(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve asset %s: %w", assetID, err)
	}
	if asset.DurationKnown() && timestamp > asset.DurationSeconds {
		return "", fmt.Errorf("%w: %v beyond duration %v", ErrInvalidTimestamp, timestamp, asset.DurationSeconds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	key := keyFor(assetID, timestamp)
	if existing, ok := c.inflight[key]; ok {
		return existing, ErrDuplicateInFlight
	}

	now := c.opts.Now()
	e := &entry{
		req: types.GenerationRequest{
			RequestID:          uuid.New().String(),
			AssetID:            assetID,
			RequestedTimestamp: timestamp,
			Window:             WindowFor(timestamp, c.opts.Lookback),
			Status:             types.RequestPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		asset: asset,
		key:   key,
		epoch: c.epochs[assetID],
	}

	id := e.req.RequestID
	c.requests[id] = e
	c.inflight[key] = id
	c.queue = append(c.queue, id)
	c.publishLocked(e)

	log.Printf("request %s: queued for asset %s at %.2fs", id, assetID, timestamp)
	c.admitLocked()

	return id, nil
}

// admitLocked starts queued requests while slots are free (must hold lock)
func (c *Coordinator) admitLocked() {
	for c.running < c.opts.MaxInFlight && len(c.queue) > 0 {
		id := c.queue[0]
		c.queue = c.queue[1:]

		e, ok := c.requests[id]
		if !ok || e.req.Status != types.RequestPending {
			continue
		}

		c.running++
		c.wg.Add(1)
		go c.run(id, e.asset, e.req.RequestedTimestamp, e.req.Window)
	}
}

func (c *Coordinator) run(id string, asset types.Asset, timestamp float64, window types.ExtractionWindow) {
	defer func() {
		c.mu.Lock()
		c.running--
		if !c.closed {
			c.admitLocked()
		}
		c.mu.Unlock()
		c.wg.Done()
	}()

	t := c.opts.Timeouts

	c.advance(id, types.RequestExtracting)
	audio, err := stage(c.ctx, t.Extract, types.FailureExtraction, func(ctx context.Context) ([]byte, error) {
		return c.adapters.Extractor.ExtractSegment(ctx, asset, window.Start, window.End)
	})
	if err != nil {
		c.fail(id, err)
		return
	}

	c.advance(id, types.RequestTranscribing)
	transcript, err := stage(c.ctx, t.Transcribe, types.FailureTranscription, func(ctx context.Context) (string, error) {
		text, err := c.adapters.Transcriber.Transcribe(ctx, audio)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyTranscript
		}
		return text, nil
	})
	if err != nil {
		c.fail(id, err)
		return
	}

	c.advance(id, types.RequestSynthesizing)
	img, err := stage(c.ctx, t.Synthesize, types.FailureSynthesis, func(ctx context.Context) (types.Image, error) {
		img, err := c.adapters.Synthesizer.SynthesizeImage(ctx, asset.StylePrompt, transcript)
		if err != nil {
			return types.Image{}, err
		}
		if img.Handle == "" {
			return types.Image{}, ErrEmptyImage
		}
		return img, nil
	})
	if err != nil {
		c.fail(id, err)
		return
	}

	artifact := types.Artifact{
		ArtifactID:       uuid.New().String(),
		AssetID:          asset.ID,
		TimestampSeconds: timestamp,
		TranscriptText:   transcript,
		ImagePromptText:  img.Prompt,
		ImageHandle:      img.Handle,
		CreatedAt:        c.opts.Now(),
	}

	// Results for an unloaded asset are neither stored nor registered.
	if c.stale(id) {
		c.fail(id, &StageError{Kind: types.FailureAssetUnloaded, Err: ErrAssetUnloaded})
		return
	}

	if c.adapters.Store != nil {
		ref, err := c.persist(artifact)
		if err != nil {
			c.fail(id, err)
			return
		}
		artifact.ImageRef = ref
	}

	if !c.register(id, artifact) && artifact.ImageRef != "" {
		c.discard(artifact, artifact.ImageRef)
	}
}

// persist runs the store stage. A write that completes after the stage gave
// up is discarded.
func (c *Coordinator) persist(artifact types.Artifact) (string, error) {
	var (
		mu        sync.Mutex
		written   string
		abandoned bool
	)

	ref, err := stage(c.ctx, c.opts.Timeouts.Persist, types.FailureStorage, func(ctx context.Context) (string, error) {
		ref, err := c.adapters.Store.Persist(ctx, artifact)
		if err != nil {
			return "", err
		}

		mu.Lock()
		late := abandoned
		written = ref
		mu.Unlock()

		if late {
			c.discard(artifact, ref)
			return "", ErrAssetUnloaded
		}
		return ref, nil
	})
	if err == nil {
		return ref, nil
	}

	mu.Lock()
	abandoned = true
	late := written
	mu.Unlock()

	if late != "" {
		c.discard(artifact, late)
	}
	return "", err
}

func (c *Coordinator) discard(artifact types.Artifact, ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeouts.Persist)
	defer cancel()

	if err := c.adapters.Store.Discard(ctx, artifact, ref); err != nil {
		log.Printf("failed to discard artifact %s for asset %s: %v", artifact.ArtifactID, artifact.AssetID, err)
		return
	}
	log.Printf("discarded artifact %s for asset %s", artifact.ArtifactID, artifact.AssetID)
}

// stage runs fn with its own deadline. The coordinator stops waiting as soon
// as the deadline passes even if fn ignores its context.
func stage[T any](parent context.Context, timeout time.Duration, kind types.FailureKind, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return zero, &StageError{Kind: types.FailureTimeout, Err: r.err}
		}
		return zero, &StageError{Kind: kind, Err: r.err}
	case <-ctx.Done():
		if parent.Err() != nil {
			return zero, &StageError{Kind: types.FailureCanceled, Err: parent.Err()}
		}
		return zero, &StageError{Kind: types.FailureTimeout, Err: fmt.Errorf("%s stage exceeded %v", kind, timeout)}
	}
}

// advance moves a running request to the next stage
func (c *Coordinator) advance(id string, status types.RequestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.requests[id]
	if !ok || e.req.Status.Terminal() {
		return
	}
	e.req.Status = status
	e.req.UpdatedAt = c.opts.Now()
	c.publishLocked(e)

	log.Printf("request %s: %s", id, status)
}

func (c *Coordinator) stale(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.requests[id]
	return !ok || e.epoch != c.epochs[e.req.AssetID]
}

// register inserts the artifact unless the asset was unloaded meanwhile and
// reports whether it did. The epoch check and the insert happen under the
// same lock as Invalidate.
func (c *Coordinator) register(id string, artifact types.Artifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.requests[id]
	if !ok || e.req.Status.Terminal() {
		return false
	}

	if e.epoch != c.epochs[e.req.AssetID] {
		c.finishLocked(e, types.RequestFailed, &StageError{Kind: types.FailureAssetUnloaded, Err: ErrAssetUnloaded})
		return false
	}

	if c.adapters.Registry != nil {
		c.adapters.Registry.Insert(artifact)
	}
	e.req.Artifact = &artifact
	c.finishLocked(e, types.RequestSucceeded, nil)
	return true
}

func (c *Coordinator) fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.requests[id]; ok && !e.req.Status.Terminal() {
		c.finishLocked(e, types.RequestFailed, err)
	}
}

// finishLocked moves e into a terminal status (must hold lock)
func (c *Coordinator) finishLocked(e *entry, status types.RequestStatus, err error) {
	now := c.opts.Now()
	e.req.Status = status
	e.req.UpdatedAt = now
	e.finishedAt = now

	if err != nil {
		e.req.Failure = KindOf(err, types.FailureStorage)
		e.req.Error = err.Error()
		log.Printf("request %s: failed (%s): %v", e.req.RequestID, e.req.Failure, err)
	} else {
		log.Printf("request %s: %s", e.req.RequestID, status)
	}

	if c.inflight[e.key] == e.req.RequestID {
		delete(c.inflight, e.key)
	}
	c.publishLocked(e)
}

// Cancel fails a request that has not started yet
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if e.req.Status != types.RequestPending {
		return fmt.Errorf("request %s is %s: %w", id, e.req.Status, ErrNotCancelable)
	}

	c.finishLocked(e, types.RequestFailed, &StageError{Kind: types.FailureCanceled, Err: errors.New("canceled before start")})
	return nil
}

// Invalidate drops every unfinished request for assetID. Pending requests
// fail immediately; running ones finish their current work but their results
// are discarded.
func (c *Coordinator) Invalidate(assetID string) {
	if assetID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs[assetID]++

	for _, e := range c.requests {
		if e.req.AssetID != assetID || e.req.Status.Terminal() {
			continue
		}
		if c.inflight[e.key] == e.req.RequestID {
			delete(c.inflight, e.key)
		}
		if e.req.Status == types.RequestPending {
			c.finishLocked(e, types.RequestFailed, &StageError{Kind: types.FailureAssetUnloaded, Err: ErrAssetUnloaded})
		}
	}
}

// Query returns a snapshot of the request. Terminal requests are forgotten
// once observed, so a second Query returns ErrNotFound.
func (c *Coordinator) Query(id string) (types.GenerationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.requests[id]
	if !ok {
		return types.GenerationRequest{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	snap := snapshot(e)
	if e.req.Status.Terminal() {
		delete(c.requests, id)
	}
	return snap, nil
}

// InFlight lists the unfinished requests for an asset without observing them
func (c *Coordinator) InFlight(assetID string) []types.GenerationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.GenerationRequest
	for _, e := range c.requests {
		if e.req.AssetID == assetID && !e.req.Status.Terminal() {
			out = append(out, snapshot(e))
		}
	}
	return out
}

// Sweep forgets terminal requests that finished more than ttl ago and were
// never queried. It returns how many were dropped.
func (c *Coordinator) Sweep(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.opts.Now().Add(-ttl)
	dropped := 0
	for id, e := range c.requests {
		if e.req.Status.Terminal() && !e.finishedAt.After(cutoff) {
			delete(c.requests, id)
			dropped++
		}
	}
	return dropped
}

// Subscribe returns a channel of request snapshots, one per status change
func (c *Coordinator) Subscribe() (int, <-chan types.GenerationRequest) {
	return c.hub.Subscribe()
}

// Unsubscribe stops delivery and closes the subscriber's channel
func (c *Coordinator) Unsubscribe(id int) {
	c.hub.Unsubscribe(id)
}

// Shutdown stops admitting work, cancels pending requests and waits for the
// running pipelines. If ctx ends first the running stages are canceled.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	for _, id := range c.queue {
		if e, ok := c.requests[id]; ok && e.req.Status == types.RequestPending {
			c.finishLocked(e, types.RequestFailed, &StageError{Kind: types.FailureCanceled, Err: ErrClosed})
		}
	}
	c.queue = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		c.cancel()
		<-done
		err = ctx.Err()
	}

	c.cancel()
	c.hub.Close()
	return err
}

// publishLocked must hold lock
func (c *Coordinator) publishLocked(e *entry) {
	c.hub.Publish(snapshot(e))
}

func snapshot(e *entry) types.GenerationRequest {
	req := e.req
	if e.req.Artifact != nil {
		a := *e.req.Artifact
		req.Artifact = &a
	}
	return req
}
