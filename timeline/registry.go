package timeline

import (
	"math"
	"sort"
	"sync"

	"scenecast/config"
	"scenecast/pubsub"
	"scenecast/types"
)

// UpdateKind describes what happened to an asset's timeline
type UpdateKind string

const (
	UpdateInserted UpdateKind = "inserted"
	UpdateReplaced UpdateKind = "replaced"
	UpdateRemoved  UpdateKind = "removed"
)

// Update is published to subscribers after every change
type Update struct {
	AssetID  string           `json:"asset_id"`
	Kind     UpdateKind       `json:"kind"`
	Artifact *types.Artifact  `json:"artifact,omitempty"`
	Replaced []types.Artifact `json:"replaced,omitempty"`
}

// Registry keeps, per asset, the artifacts sorted by timestamp. Slices are
// never modified in place once published, so List can hand out copies
// without holding the lock while callers iterate.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]types.Artifact
	epsilon float64
	hub     *pubsub.Hub[Update]
}

// NewRegistry creates a registry with the default collision epsilon
func NewRegistry() *Registry {
	return NewRegistryWithEpsilon(config.CollisionEpsilonSeconds)
}

// NewRegistryWithEpsilon creates a registry where artifacts closer than
// epsilon seconds replace each other
func NewRegistryWithEpsilon(epsilon float64) *Registry {
	if epsilon < 0 {
		epsilon = 0
	}
	return &Registry{
		entries: make(map[string][]types.Artifact),
		epsilon: epsilon,
		hub:     pubsub.NewHub[Update](),
	}
}

// Insert adds an artifact in timestamp order. Existing entries for the same
// asset lying strictly within epsilon of it are replaced.
func (r *Registry) Insert(a types.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := r.insertLocked(a)

	kind := UpdateInserted
	if len(replaced) > 0 {
		kind = UpdateReplaced
	}
	inserted := a
	r.hub.Publish(Update{AssetID: a.AssetID, Kind: kind, Artifact: &inserted, Replaced: replaced})
}

// insertLocked swaps in a new sorted slice and returns the entries it
// replaced (must hold lock)
func (r *Registry) insertLocked(a types.Artifact) []types.Artifact {
	current := r.entries[a.AssetID]
	next := make([]types.Artifact, 0, len(current)+1)
	var replaced []types.Artifact

	for _, existing := range current {
		if math.Abs(existing.TimestampSeconds-a.TimestampSeconds) < r.epsilon {
			replaced = append(replaced, existing)
			continue
		}
		next = append(next, existing)
	}

	i := sort.Search(len(next), func(i int) bool {
		return next[i].TimestampSeconds > a.TimestampSeconds
	})
	next = append(next, types.Artifact{})
	copy(next[i+1:], next[i:])
	next[i] = a

	r.entries[a.AssetID] = next
	return replaced
}

// Seed loads stored artifacts, oldest first. Collisions among the stored
// artifacts resolve as in Insert, but entries already in the registry win
// over stored ones.
func (r *Registry) Seed(artifacts []types.Artifact) {
	staged := NewRegistryWithEpsilon(r.epsilon)
	for _, a := range artifacts {
		staged.insertLocked(a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for assetID, entries := range staged.entries {
		for _, a := range entries {
			if r.collidesLocked(assetID, a.TimestampSeconds) {
				continue
			}
			r.insertLocked(a)
			inserted := a
			r.hub.Publish(Update{AssetID: assetID, Kind: UpdateInserted, Artifact: &inserted})
		}
	}
}

func (r *Registry) collidesLocked(assetID string, ts float64) bool {
	for _, existing := range r.entries[assetID] {
		if math.Abs(existing.TimestampSeconds-ts) < r.epsilon {
			return true
		}
	}
	return false
}

// List returns the asset's artifacts sorted by timestamp
func (r *Registry) List(assetID string) []types.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[assetID]
	out := make([]types.Artifact, len(entries))
	copy(out, entries)
	return out
}

// Has reports whether the asset has any artifact
func (r *Registry) Has(assetID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[assetID]) > 0
}

// Nearest returns the artifact whose timestamp is closest to t. On a tie the
// earlier artifact wins.
func (r *Registry) Nearest(assetID string, t float64) (types.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[assetID]
	if len(entries) == 0 || math.IsNaN(t) {
		return types.Artifact{}, false
	}

	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].TimestampSeconds >= t
	})

	switch {
	case i == 0:
		return entries[0], true
	case i == len(entries):
		return entries[len(entries)-1], true
	}

	before, after := entries[i-1], entries[i]
	if t-before.TimestampSeconds <= after.TimestampSeconds-t {
		return before, true
	}
	return after, true
}

// Remove drops every artifact of the asset
func (r *Registry) Remove(assetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok := r.entries[assetID]
	if !ok {
		return
	}
	delete(r.entries, assetID)
	r.hub.Publish(Update{AssetID: assetID, Kind: UpdateRemoved, Replaced: removed})
}

// Subscribe returns a channel of updates, delivered in order
func (r *Registry) Subscribe() (int, <-chan Update) {
	return r.hub.Subscribe()
}

// Unsubscribe stops delivery and closes the subscriber's channel
func (r *Registry) Unsubscribe(id int) {
	r.hub.Unsubscribe(id)
}

// Close releases every subscriber
func (r *Registry) Close() {
	r.hub.Close()
}
