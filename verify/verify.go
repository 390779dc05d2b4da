// Package verify implements incremental DAG verification: tracking which
// CIDs below a set of roots are already present (have), which are known to
// be missing (want), and validating+storing blocks as they arrive without
// ever trusting a block before it's been shown to belong under the roots.
package verify

import (
	"bytes"
	"context"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/dag"
	"github.com/fission-codes/go-car-mirror/errs"
	carrefs "github.com/fission-codes/go-car-mirror/refs"
)

// State tracks the want/have sets for an in-progress DAG verification.
type State struct {
	Want map[cid.Cid]struct{}
	Have map[cid.Cid]struct{}
}

// source adapts a blockstore+cache pair to dag.Source, so State can drive a
// dag.Walk without the dag package knowing about either concrete type.
type source struct {
	store blockstore.BlockStore
	cache cache.ReferencesCache
}

func (s source) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	return s.store.HasBlock(ctx, c)
}

func (s source) References(ctx context.Context, c cid.Cid) ([]cid.Cid, error) {
	return cache.References(ctx, s.cache, s.store, c)
}

// NewState runs a breadth-first walk from roots, partitioning every CID it
// encounters into Want (missing from store) or Have (present).
func NewState(ctx context.Context, roots []cid.Cid, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*State, error) {
	s := &State{
		Want: make(map[cid.Cid]struct{}),
		Have: make(map[cid.Cid]struct{}),
	}
	src := source{store: store, cache: refsCache}
	walk := dag.NewBreadthFirst(roots)

	for {
		item, ok, err := walk.Next(ctx, src)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if item.Have {
			s.Have[item.Cid] = struct{}{}
		} else {
			s.Want[item.Cid] = struct{}{}
		}
	}
	return s, nil
}

// BlockState reports whether c is currently wanted, already have, or
// neither (Unexpected).
func (s *State) BlockState(c cid.Cid) errs.BlockState {
	if _, ok := s.Want[c]; ok {
		return errs.Want
	}
	if _, ok := s.Have[c]; ok {
		return errs.Have
	}
	return errs.Unexpected
}

// VerifyAndStore checks that c is currently wanted and that data's digest
// matches c, stores the block, and folds any newly-discovered references
// into the want set. It returns *errs.ExpectedWantedBlock for a CID that is
// not currently wanted (already had, or Unexpected), and
// *errs.DigestMismatch if data doesn't hash to c.
func (s *State) VerifyAndStore(ctx context.Context, c cid.Cid, data []byte, store blockstore.BlockStore, refsCache cache.ReferencesCache) error {
	if state := s.BlockState(c); state != errs.Want {
		return &errs.ExpectedWantedBlock{Cid: c, BlockState: state}
	}

	if err := verifyDigest(c, data); err != nil {
		return err
	}

	refList, err := carrefs.References(c, data)
	if err != nil {
		return err
	}

	if err := store.PutBlockKeyed(ctx, c, data); err != nil {
		return errs.NewBlockStoreError(err)
	}
	if err := refsCache.PutReferences(ctx, c, refList); err != nil {
		return err
	}

	for _, r := range refList {
		if _, have := s.Have[r]; !have {
			s.Want[r] = struct{}{}
		}
	}

	delete(s.Want, c)
	s.Have[c] = struct{}{}

	return nil
}

func verifyDigest(c cid.Cid, data []byte) error {
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return &errs.UnsupportedHashCode{Cid: c}
	}
	digest, err := mh.Sum(data, decoded.Code, decoded.Length)
	if err != nil {
		return &errs.UnsupportedHashCode{Cid: c}
	}
	if !bytes.Equal(digest, c.Hash()) {
		return &errs.DigestMismatch{Expected: c, Actual: cid.NewCidV1(c.Prefix().Codec, digest)}
	}
	return nil
}

