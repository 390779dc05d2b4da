package dag

import (
	"context"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"gotest.tools/assert"
)

// fakeSource is a tiny in-memory DAG used only to exercise Walk.
type fakeSource struct {
	refs map[cid.Cid][]cid.Cid
}

func (f *fakeSource) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	_, ok := f.refs[c]
	return ok, nil
}

func (f *fakeSource) References(ctx context.Context, c cid.Cid) ([]cid.Cid, error) {
	return f.refs[c], nil
}

func testCid(t *testing.T, data string) cid.Cid {
	t.Helper()
	digest, err := mh.Sum([]byte(data), mh.SHA2_256, -1)
	assert.NilError(t, err)
	return cid.NewCidV1(cid.Raw, digest)
}

func TestWalkBreadthFirstVisitsEachBlockOnce(t *testing.T) {
	ctx := context.Background()
	root := testCid(t, "root")
	a := testCid(t, "a")
	b := testCid(t, "b")
	leaf := testCid(t, "leaf")

	src := &fakeSource{refs: map[cid.Cid][]cid.Cid{
		root: {a, b},
		a:    {leaf},
		b:    {leaf},
		leaf: {},
	}}

	w := NewBreadthFirst([]cid.Cid{root})
	seen := map[cid.Cid]int{}
	for {
		item, ok, err := w.Next(ctx, src)
		assert.NilError(t, err)
		if !ok {
			break
		}
		assert.Assert(t, item.Have)
		seen[item.Cid]++
	}

	assert.Equal(t, seen[root], 1)
	assert.Equal(t, seen[a], 1)
	assert.Equal(t, seen[b], 1)
	assert.Equal(t, seen[leaf], 1)
	assert.Assert(t, w.IsFinished())
}

func TestWalkDepthFirstVisitsEachBlockOnce(t *testing.T) {
	ctx := context.Background()
	root := testCid(t, "df-root")
	a := testCid(t, "df-a")
	b := testCid(t, "df-b")
	leaf := testCid(t, "df-leaf")

	src := &fakeSource{refs: map[cid.Cid][]cid.Cid{
		root: {a, b},
		a:    {leaf},
		b:    {leaf},
		leaf: {},
	}}

	w := NewDepthFirst([]cid.Cid{root})

	item, ok, err := w.Next(ctx, src)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, item.Cid, root)

	seen := map[cid.Cid]int{root: 1}
	for {
		item, ok, err := w.Next(ctx, src)
		assert.NilError(t, err)
		if !ok {
			break
		}
		seen[item.Cid]++
	}

	assert.Equal(t, seen[root], 1)
	assert.Equal(t, seen[a], 1)
	assert.Equal(t, seen[b], 1)
	assert.Equal(t, seen[leaf], 1)
	assert.Assert(t, w.IsFinished())
}

func TestWalkYieldsMissingForAbsentBlocks(t *testing.T) {
	ctx := context.Background()
	root := testCid(t, "root-missing")
	missing := testCid(t, "missing-child")

	src := &fakeSource{refs: map[cid.Cid][]cid.Cid{
		root: {missing},
	}}

	w := NewBreadthFirst([]cid.Cid{root})

	item, ok, err := w.Next(ctx, src)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, item.Cid, root)
	assert.Assert(t, item.Have)

	item, ok, err = w.Next(ctx, src)
	assert.NilError(t, err)
	assert.Assert(t, ok)
	assert.Equal(t, item.Cid, missing)
	assert.Assert(t, !item.Have)

	_, err = item.ToCid()
	assert.ErrorContains(t, err, "not found")

	_, ok, err = w.Next(ctx, src)
	assert.NilError(t, err)
	assert.Assert(t, !ok)
}
