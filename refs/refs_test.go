package refs

import (
	"bytes"
	"testing"

	cid "github.com/ipfs/go-cid"
	mdag "github.com/ipfs/go-merkledag"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	fluent "github.com/ipld/go-ipld-prime/fluent"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	mh "github.com/multiformats/go-multihash"
	"gotest.tools/assert"
)

func rawCid(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	assert.NilError(t, err)
	return cid.NewCidV1(cid.Raw, digest)
}

func TestReferencesRawHasNoLinks(t *testing.T) {
	c := rawCid(t, []byte("leaf"))
	out, err := References(c, []byte("leaf"))
	assert.NilError(t, err)
	assert.Assert(t, len(out) == 0)
}

func TestReferencesDagCBORFindsNestedLinks(t *testing.T) {
	childCid := rawCid(t, []byte("child"))
	childLink := cidlink.Link{Cid: childCid}

	n, err := fluent.NewNodeBuilder(basicnode.Prototype.Any).CreateMap(func(ma fluent.MapAssembler) {
		ma.AssembleEntry("single").AssignLink(childLink)
		ma.AssembleEntry("list").CreateList(func(la fluent.ListAssembler) {
			la.AssembleValue().AssignLink(childLink)
		})
	})
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, dagcbor.Encode(n, &buf))

	digest, err := mh.Sum(buf.Bytes(), mh.SHA2_256, -1)
	assert.NilError(t, err)
	parentCid := cid.NewCidV1(cid.DagCBOR, digest)

	out, err := References(parentCid, buf.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, len(out), 2)
	assert.Equal(t, out[0], childCid)
	assert.Equal(t, out[1], childCid)
}

func TestReferencesDagPBFindsLinks(t *testing.T) {
	child := mdag.NodeWithData([]byte("leaf"))
	parent := mdag.NodeWithData([]byte("parent"))
	assert.NilError(t, parent.AddNodeLink("child", child))

	out, err := References(parent.Cid(), parent.RawData())
	assert.NilError(t, err)
	assert.Equal(t, len(out), 1)
	assert.Equal(t, out[0], child.Cid())
}
