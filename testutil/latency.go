package testutil

import (
	"context"
	"time"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
)

// LatencyStore wraps a BlockStore, adding a fixed artificial delay before
// every GetBlock and HasBlock call, for exercising the protocol's behavior
// against a slow backing store.
type LatencyStore struct {
	blockstore.BlockStore
	Latency time.Duration
}

// NewLatencyStore wraps store with the given per-call latency.
func NewLatencyStore(store blockstore.BlockStore, latency time.Duration) *LatencyStore {
	return &LatencyStore{BlockStore: store, Latency: latency}
}

func (s *LatencyStore) GetBlock(ctx context.Context, c cid.Cid) ([]byte, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	return s.BlockStore.GetBlock(ctx, c)
}

func (s *LatencyStore) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	if err := s.sleep(ctx); err != nil {
		return false, err
	}
	return s.BlockStore.HasBlock(ctx, c)
}

func (s *LatencyStore) sleep(ctx context.Context) error {
	t := time.NewTimer(s.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
