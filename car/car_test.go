package car

import (
	"bytes"
	"io"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"gotest.tools/assert"
)

func rawCid(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	assert.NilError(t, err)
	return cid.NewCidV1(cid.Raw, digest)
}

func TestWriterDefersHeaderUntilFirstBlock(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	assert.Assert(t, !w.WroteHeader())
	assert.Equal(t, buf.Len(), 0)

	root := rawCid(t, []byte("root"))
	_, err := w.WriteBlock(root, []byte("root"))
	assert.NilError(t, err)
	assert.Assert(t, w.WroteHeader())
	assert.Assert(t, buf.Len() > 0)
}

func TestWriterEmitsNothingWithNoBlocks(t *testing.T) {
	var buf bytes.Buffer
	_ = NewWriter(&buf)
	assert.Equal(t, buf.Len(), 0)
}

func TestReaderRoundTripsWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	root := rawCid(t, []byte("root"))
	child := rawCid(t, []byte("child"))
	_, err := w.WriteBlock(root, []byte("root"))
	assert.NilError(t, err)
	_, err = w.WriteBlock(child, []byte("child"))
	assert.NilError(t, err)

	r, err := NewReader(&buf)
	assert.NilError(t, err)
	assert.Equal(t, len(r.Header.Roots), 1)
	assert.Equal(t, r.Header.Roots[0], root)

	c1, d1, err := r.Next()
	assert.NilError(t, err)
	assert.Equal(t, c1, root)
	assert.DeepEqual(t, d1, []byte("root"))

	c2, d2, err := r.Next()
	assert.NilError(t, err)
	assert.Equal(t, c2, child)
	assert.DeepEqual(t, d2, []byte("child"))

	_, _, err = r.Next()
	assert.Equal(t, err, io.EOF)
}
