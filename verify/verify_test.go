package verify

import (
	"context"
	"errors"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"gotest.tools/assert"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/errs"
)

func rawCid(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	assert.NilError(t, err)
	return cid.NewCidV1(cid.Raw, digest)
}

func TestNewStatePartitionsWantAndHave(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()
	c := cache.NewInMemoryCache()

	present := rawCid(t, []byte("present"))
	assert.NilError(t, store.PutBlockKeyed(ctx, present, []byte("present")))
	missing := rawCid(t, []byte("missing"))

	state, err := NewState(ctx, []cid.Cid{present, missing}, store, c)
	assert.NilError(t, err)

	assert.Equal(t, state.BlockState(present), errs.Have)
	assert.Equal(t, state.BlockState(missing), errs.Want)
}

func TestVerifyAndStoreRejectsUnexpectedBlock(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()
	c := cache.NewInMemoryCache()
	state := &State{Want: map[cid.Cid]struct{}{}, Have: map[cid.Cid]struct{}{}}

	unexpected := rawCid(t, []byte("unexpected"))
	err := state.VerifyAndStore(ctx, unexpected, []byte("unexpected"), store, c)
	var target *errs.ExpectedWantedBlock
	assert.Assert(t, errors.As(err, &target))
}

func TestVerifyAndStoreRejectsDigestMismatch(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()
	c := cache.NewInMemoryCache()

	wanted := rawCid(t, []byte("correct"))
	state := &State{
		Want: map[cid.Cid]struct{}{wanted: {}},
		Have: map[cid.Cid]struct{}{},
	}

	err := state.VerifyAndStore(ctx, wanted, []byte("tampered"), store, c)
	var target *errs.DigestMismatch
	assert.Assert(t, errors.As(err, &target))
}

func TestVerifyAndStoreAcceptsWantedBlockAndDiscoversRefs(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()
	c := cache.NewInMemoryCache()

	child := rawCid(t, []byte("child"))
	assert.NilError(t, store.PutBlockKeyed(ctx, child, []byte("child")))

	root := rawCid(t, []byte("root"))
	state := &State{
		Want: map[cid.Cid]struct{}{root: {}},
		Have: map[cid.Cid]struct{}{},
	}

	err := state.VerifyAndStore(ctx, root, []byte("root"), store, c)
	assert.NilError(t, err)
	assert.Equal(t, state.BlockState(root), errs.Have)
}
