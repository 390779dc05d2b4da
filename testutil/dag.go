// Package testutil provides deterministic DAG generation and simulation
// helpers shared by the core, push, and pull test suites.
package testutil

import (
	"bytes"
	"context"
	"math/rand"

	cid "github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/fluent"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	random "github.com/jbenet/go-random"
	mh "github.com/multiformats/go-multihash"

	"github.com/fission-codes/go-car-mirror/blockstore"
)

// GenerateDag populates store with a random DAG-CBOR DAG of size blocks and
// returns its root CID. Each block carries blockPadding bytes of
// deterministic pseudo-random filler data plus links to the block created
// just before it and to a random selection of other already-created blocks,
// so every block is reachable from the root and the DAG fans in without ever
// cycling back on itself. seed makes the shape and padding reproducible
// across test runs.
func GenerateDag(ctx context.Context, size, blockPadding int, seed int64, store blockstore.BlockStore) (cid.Cid, error) {
	if size <= 0 {
		size = 1
	}
	rng := rand.New(rand.NewSource(seed))
	cids := make([]cid.Cid, 0, size)

	for i := 0; i < size; i++ {
		var links []cid.Cid
		if len(cids) > 0 {
			links = append(links, cids[len(cids)-1])
			maxFanOut := len(cids)
			if maxFanOut > 4 {
				maxFanOut = 4
			}
			for j := 0; j < rng.Intn(maxFanOut+1); j++ {
				links = append(links, cids[rng.Intn(len(cids))])
			}
		}

		var padding bytes.Buffer
		if blockPadding > 0 {
			if err := random.WritePseudoRandomBytes(int64(blockPadding), &padding, seed+int64(i)); err != nil {
				return cid.Undef, err
			}
		}

		data, err := encodeNode(padding.Bytes(), links)
		if err != nil {
			return cid.Undef, err
		}

		digest, err := mh.Sum(data, mh.SHA2_256, -1)
		if err != nil {
			return cid.Undef, err
		}
		c := cid.NewCidV1(cid.DagCBOR, digest)

		if err := store.PutBlockKeyed(ctx, c, data); err != nil {
			return cid.Undef, err
		}
		cids = append(cids, c)
	}

	return cids[len(cids)-1], nil
}

func encodeNode(data []byte, links []cid.Cid) ([]byte, error) {
	n, err := fluent.NewNodeBuilder(basicnode.Prototype.Any).CreateMap(func(ma fluent.MapAssembler) {
		ma.AssembleEntry("data").AssignBytes(data)
		ma.AssembleEntry("links").CreateList(func(la fluent.ListAssembler) {
			for _, c := range links {
				la.AssembleValue().AssignLink(cidlink.Link{Cid: c})
			}
		})
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dagcbor.Encode(n, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
