package cache

import (
	"context"
	"sync"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/errs"
)

// MissingStore wraps a blockstore.BlockStore, caching HasBlock results so
// repeated lookups for a block that's known to be absent don't hit the
// underlying store again. GetBlock short-circuits to *errs.CIDNotFound for
// CIDs already known to be missing.
//
// Blocks added or removed from the wrapped store other than through this
// wrapper's own PutBlockKeyed can make the cache stale; this is acceptable
// for the protocol's single-run usage but would need a TTL/eviction
// strategy for a long-lived process.
type MissingStore struct {
	inner blockstore.BlockStore

	mu   sync.Mutex
	have map[cid.Cid]bool
}

// NewMissingStore wraps inner with a has-block cache.
func NewMissingStore(inner blockstore.BlockStore) *MissingStore {
	return &MissingStore{inner: inner, have: make(map[cid.Cid]bool)}
}

func (m *MissingStore) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	if known, ok := m.cached(c); ok && !known {
		return nil, &errs.CIDNotFound{Cid: c}
	}

	data, err := m.inner.GetBlock(ctx, c)
	if err != nil {
		if errs.IsCIDNotFound(err) {
			m.setCached(c, false)
		}
		return nil, err
	}
	m.setCached(c, true)
	return data, nil
}

func (m *MissingStore) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	if known, ok := m.cached(c); ok {
		return known, nil
	}
	has, err := m.inner.HasBlock(ctx, c)
	if err != nil {
		return false, err
	}
	m.setCached(c, has)
	return has, nil
}

func (m *MissingStore) PutBlockKeyed(ctx context.Context, c cid.Cid, data []byte) error {
	if err := m.inner.PutBlockKeyed(ctx, c, data); err != nil {
		return err
	}
	m.setCached(c, true)
	return nil
}

func (m *MissingStore) cached(c cid.Cid) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	known, ok := m.have[c]
	return known, ok
}

func (m *MissingStore) setCached(c cid.Cid, has bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.have[c] = has
}
