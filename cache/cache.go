// Package cache memoizes the references extracted from blocks, and
// optionally memoizes negative block-store lookups, so a protocol run
// doesn't re-parse or re-query a block it has already seen.
package cache

import (
	"context"
	"sync"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/refs"
)

// ReferencesCache abstracts the memoization table used by References. All
// implementations here are pure memoization (or no-ops), so callers never
// need to worry about eviction correctness, only capacity.
type ReferencesCache interface {
	GetReferences(ctx context.Context, c cid.Cid) ([]cid.Cid, bool, error)
	PutReferences(ctx context.Context, c cid.Cid, refs []cid.Cid) error
}

// References returns the CIDs linked from the block at c, using cache as a
// memoization table and store to fetch+parse the block on a cache miss. Raw
// blocks always short-circuit to no references without touching the cache
// or the store.
func References(ctx context.Context, cache ReferencesCache, store blockstore.BlockStore, c cid.Cid) ([]cid.Cid, error) {
	if c.Prefix().Codec == cid.Raw {
		return nil, nil
	}

	if cached, ok, err := cache.GetReferences(ctx, c); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	data, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	found, err := refs.References(c, data)
	if err != nil {
		return nil, err
	}
	if err := cache.PutReferences(ctx, c, found); err != nil {
		return nil, err
	}
	return found, nil
}

// NoCache is a ReferencesCache that never caches anything.
type NoCache struct{}

func (NoCache) GetReferences(ctx context.Context, c cid.Cid) ([]cid.Cid, bool, error) {
	return nil, false, nil
}

func (NoCache) PutReferences(ctx context.Context, c cid.Cid, refs []cid.Cid) error {
	return nil
}

// InMemoryCache is a ReferencesCache backed by a plain map guarded by a
// RWMutex. Suitable for a single protocol run or test; unbounded.
type InMemoryCache struct {
	mu   sync.RWMutex
	refs map[cid.Cid][]cid.Cid
}

// NewInMemoryCache returns an empty InMemoryCache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{refs: make(map[cid.Cid][]cid.Cid)}
}

func (c *InMemoryCache) GetReferences(ctx context.Context, cidKey cid.Cid) ([]cid.Cid, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs, ok := c.refs[cidKey]
	return refs, ok, nil
}

func (c *InMemoryCache) PutReferences(ctx context.Context, cidKey cid.Cid, refs []cid.Cid) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[cidKey] = refs
	return nil
}
