package cache

import (
	"context"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"gotest.tools/assert"

	"github.com/fission-codes/go-car-mirror/blockstore"
)

func rawCid(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	assert.NilError(t, err)
	return cid.NewCidV1(cid.Raw, digest)
}

func TestReferencesPopulatesCacheOnMiss(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()
	c := NewInMemoryCache()

	// Raw blocks bypass the cache, so use a DAG-CBOR block (an empty map).
	data := []byte{0xa0}
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	assert.NilError(t, err)
	node := cid.NewCidV1(cid.DagCBOR, digest)
	assert.NilError(t, store.PutBlockKeyed(ctx, node, data))

	_, ok, err := c.GetReferences(ctx, node)
	assert.NilError(t, err)
	assert.Assert(t, !ok)

	out, err := References(ctx, c, store, node)
	assert.NilError(t, err)
	assert.Assert(t, len(out) == 0)

	_, ok, err = c.GetReferences(ctx, node)
	assert.NilError(t, err)
	assert.Assert(t, ok)
}

func TestNoCacheNeverPopulates(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemoryStore()

	leaf := rawCid(t, []byte("leaf"))
	assert.NilError(t, store.PutBlockKeyed(ctx, leaf, []byte("leaf")))

	out, err := References(ctx, NoCache{}, store, leaf)
	assert.NilError(t, err)
	assert.Assert(t, len(out) == 0)

	_, ok, err := NoCache{}.GetReferences(ctx, leaf)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}

func TestMissingStoreCachesNegativeLookups(t *testing.T) {
	ctx := context.Background()
	inner := blockstore.NewMemoryStore()
	wrapped := NewMissingStore(inner)

	absent := rawCid(t, []byte("absent"))

	has, err := wrapped.HasBlock(ctx, absent)
	assert.NilError(t, err)
	assert.Assert(t, !has)

	_, err = wrapped.GetBlock(ctx, absent)
	assert.ErrorContains(t, err, "not found")

	present := rawCid(t, []byte("present"))
	assert.NilError(t, wrapped.PutBlockKeyed(ctx, present, []byte("present")))

	has, err = wrapped.HasBlock(ctx, present)
	assert.NilError(t, err)
	assert.Assert(t, has)
}
