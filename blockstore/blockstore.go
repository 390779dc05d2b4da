// Package blockstore defines the minimal block storage contract the core
// protocol runs against, plus an in-memory implementation used by tests and
// simple embedders.
package blockstore

import (
	"context"
	"sync"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/errs"
)

// BlockStore is the storage contract required by the protocol core: get,
// has, and a keyed put (the CID is supplied by the caller, who already
// derived it from the protocol's own hashing/verification, rather than
// recomputed from bytes as a content-addressed store normally would).
type BlockStore interface {
	// GetBlock returns the raw bytes stored under c, or *errs.CIDNotFound
	// if no block is stored under that CID.
	GetBlock(ctx context.Context, c cid.Cid) ([]byte, error)
	// HasBlock reports whether a block is stored under c.
	HasBlock(ctx context.Context, c cid.Cid) (bool, error)
	// PutBlockKeyed stores data under the caller-supplied CID c, without
	// reverifying that c is data's digest (the caller already did, per
	// spec §4.4).
	PutBlockKeyed(ctx context.Context, c cid.Cid, data []byte) error
}

// MemoryStore is a BlockStore backed by an in-memory map, safe for
// concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blocks: make(map[cid.Cid][]byte)}
}

func (s *MemoryStore) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blocks[c]
	if !ok {
		return nil, &errs.CIDNotFound{Cid: c}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[c]
	return ok, nil
}

func (s *MemoryStore) PutBlockKeyed(ctx context.Context, c cid.Cid, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blocks[c] = cp
	return nil
}

// Len returns the number of blocks currently stored, used by tests asserting
// no-redundant-writes (spec §8).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
