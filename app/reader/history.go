package reader

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// History is a bounded set of fingerprints ordered by how recently they were
// confirmed new. It is safe for concurrent use.
type History struct {
	cache *lru.Cache
	size  int
}

func NewHistory(size int) (*History, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: history size must be positive, got %d", ErrInvalidOptions, size)
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history: %w", err)
	}

	return &History{cache: cache, size: size}, nil
}

func (h *History) Contains(fingerprint string) bool {
	return h.cache.Contains(fingerprint)
}

// Add records fingerprints given newest first. Entries beyond capacity are
// evicted from the old end; fingerprints already present move to the front.
func (h *History) Add(fingerprints []string) {
	for i := len(fingerprints) - 1; i >= 0; i-- {
		h.cache.Add(fingerprints[i], struct{}{})
	}
}

// Seed hydrates the history from a persisted snapshot, newest first. Anything
// past capacity is dropped.
func (h *History) Seed(fingerprints []string) {
	if len(fingerprints) > h.size {
		fingerprints = fingerprints[:h.size]
	}
	h.Add(fingerprints)
}

// Snapshot returns the fingerprints newest first.
func (h *History) Snapshot() []string {
	keys := h.cache.Keys()
	out := make([]string, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, keys[i].(string))
	}
	return out
}

func (h *History) Len() int {
	return h.cache.Len()
}

func (h *History) Cap() int {
	return h.size
}
