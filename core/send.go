package core

import (
	"bytes"
	"context"
	"io"

	golog "github.com/ipfs/go-log"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/bloom"
	carpkg "github.com/fission-codes/go-car-mirror/car"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/dag"
)

var log = golog.Logger("go-car-mirror")

// BlockSend runs the block-sending side of the protocol: client during
// push, server during pull. It returns a CAR file of (a subset of) the
// blocks below root that are thought to be missing on the receiving end.
func BlockSend(ctx context.Context, root cid.Cid, lastState *ReceiverState, cfg Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := BlockSendCarStream(ctx, root, lastState, &buf, cfg.ReceiveMaximum, store, refsCache); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BlockSendCarStream is the streaming equivalent of BlockSend: it writes
// CAR frames directly to w, stopping once sendLimit bytes have been
// written (the first block is always written regardless of the limit, so
// the CAR is never empty when there's at least one block to send).
func BlockSendCarStream(ctx context.Context, root cid.Cid, lastState *ReceiverState, w io.Writer, sendLimit int, store blockstore.BlockStore, refsCache cache.ReferencesCache) (int, error) {
	stream, err := BlockSendBlockStream(ctx, root, lastState, store, refsCache)
	if err != nil {
		return 0, err
	}
	return writeBlocksIntoCar(ctx, w, stream, sendLimit)
}

// BlockStream is a pull-based sequence of (CID, block bytes) pairs,
// produced by walking the DAG below a set of subgraph roots and skipping
// blocks the receiver's bloom filter claims to already have.
type BlockStream struct {
	walk          *dag.Walk
	src           dag.Source
	store         blockstore.BlockStore
	bloomFilter   *bloom.Filter
	subgraphRoots []cid.Cid
}

// BlockSendBlockStream is like BlockSendCarStream, but leaves CAR framing
// to the caller.
func BlockSendBlockStream(ctx context.Context, root cid.Cid, lastState *ReceiverState, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*BlockStream, error) {
	missingSubgraphRoots := []cid.Cid{root}
	var haveBloom *bloom.Filter
	if lastState != nil {
		missingSubgraphRoots = lastState.MissingSubgraphRoots
		haveBloom = lastState.HaveCidsBloom
	}

	subgraphRoots, err := verifyMissingSubgraphRoots(ctx, root, missingSubgraphRoots, store, refsCache)
	if err != nil {
		return nil, err
	}

	filter := handleMissingBloom(haveBloom)

	src := dagSource{store: store, cache: refsCache}
	return &BlockStream{
		walk:          dag.NewBreadthFirst(subgraphRoots),
		src:           src,
		store:         store,
		bloomFilter:   filter,
		subgraphRoots: subgraphRoots,
	}, nil
}

// Next returns the next (CID, bytes) pair, or io.EOF once exhausted.
func (s *BlockStream) Next(ctx context.Context) (cid.Cid, []byte, error) {
	for {
		item, ok, err := s.walk.Next(ctx, s.src)
		if err != nil {
			return cid.Undef, nil, err
		}
		if !ok {
			return cid.Undef, nil, io.EOF
		}
		c, err := item.ToCid()
		if err != nil {
			return cid.Undef, nil, err
		}
		if shouldBlockBeSkipped(c, s.bloomFilter, s.subgraphRoots) {
			continue
		}
		data, err := s.store.GetBlock(ctx, c)
		if err != nil {
			return cid.Undef, nil, err
		}
		return c, data, nil
	}
}

func shouldBlockBeSkipped(c cid.Cid, f *bloom.Filter, subgraphRoots []cid.Cid) bool {
	if !f.Test(c.Bytes()) {
		return false
	}
	for _, r := range subgraphRoots {
		if r.Equals(c) {
			return false
		}
	}
	return true
}

// writeBlocksIntoCar drains stream into w as CAR frames, stopping once
// writing the next frame would exceed sendLimit — except the very first
// frame, which is always written so the CAR is never empty.
func writeBlocksIntoCar(ctx context.Context, w io.Writer, stream *BlockStream, sendLimit int) (int, error) {
	cw := carpkg.NewWriter(w)
	blockBytes := 0

	c, data, err := stream.Next(ctx)
	if err == io.EOF {
		log.Debug("no blocks to write")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := cw.WriteBlock(c, data)
	if err != nil {
		return n, err
	}
	blockBytes += len(data)
	written := n

	for {
		c, data, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}

		// Conservative estimate: a 64-byte CID (usually ~40) plus a 4-byte
		// frame-length varint (3 would suffice for a frame under 2MiB).
		addedBytes := 64 + 4 + len(data)
		if sendLimit > 0 && blockBytes+addedBytes > sendLimit {
			log.Debugw("skipping block, would exceed send limit", "cid", c)
			break
		}

		n, err := cw.WriteBlock(c, data)
		written += n
		if err != nil {
			return written, err
		}
		blockBytes += addedBytes
	}

	return written, nil
}

// handleMissingBloom logs the incoming bloom's shape (if any) and returns
// an empty, always-false bloom filter when the receiver didn't send one.
// An empty bloom means "skip nothing", so sending degrades gracefully to
// sending everything below the subgraph roots.
func handleMissingBloom(haveBloom *bloom.Filter) *bloom.Filter {
	if haveBloom != nil {
		log.Debugw("received 'have cids' bloom",
			"sizeBits", len(haveBloom.Bytes())*8,
			"hashCount", haveBloom.HashCount(),
			"popCount", haveBloom.PopCount(),
		)
		return haveBloom
	}
	return bloom.NewFilter(8, 1)
}

// verifyMissingSubgraphRoots filters missingSubgraphRoots down to those
// that actually appear in the DAG below root, warning about any that
// don't (the receiver asked for something unrelated).
func verifyMissingSubgraphRoots(ctx context.Context, root cid.Cid, missingSubgraphRoots []cid.Cid, store blockstore.BlockStore, refsCache cache.ReferencesCache) ([]cid.Cid, error) {
	src := dagSource{store: store, cache: refsCache}
	walk := dag.NewBreadthFirst([]cid.Cid{root})

	var subgraphRoots []cid.Cid
	for {
		item, ok, err := walk.Next(ctx, src)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		c, err := item.ToCid()
		if err != nil {
			return nil, err
		}
		if containsCid(missingSubgraphRoots, c) {
			subgraphRoots = append(subgraphRoots, c)
		}
	}

	if len(subgraphRoots) != len(missingSubgraphRoots) {
		var unrelated []cid.Cid
		for _, c := range missingSubgraphRoots {
			if !containsCid(subgraphRoots, c) {
				unrelated = append(unrelated, c)
			}
		}
		log.Warnw("got asked for DAG-unrelated blocks", "unrelatedRoots", unrelated)
	}

	return subgraphRoots, nil
}

func containsCid(cids []cid.Cid, c cid.Cid) bool {
	for _, x := range cids {
		if x.Equals(c) {
			return true
		}
	}
	return false
}

// dagSource adapts a blockstore+cache pair to dag.Source, same as verify's
// internal adapter, but needed again here since BlockStream walks the
// sender's own store rather than running incremental verification.
type dagSource struct {
	store blockstore.BlockStore
	cache cache.ReferencesCache
}

func (s dagSource) HasBlock(ctx context.Context, c cid.Cid) (bool, error) {
	return s.store.HasBlock(ctx, c)
}

func (s dagSource) References(ctx context.Context, c cid.Cid) ([]cid.Cid, error) {
	return cache.References(ctx, s.cache, s.store, c)
}
