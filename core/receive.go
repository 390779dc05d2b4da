package core

import (
	"bytes"
	"context"
	"io"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	carpkg "github.com/fission-codes/go-car-mirror/car"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/errs"
	"github.com/fission-codes/go-car-mirror/verify"
)

// BlockReceive runs the block-receiving side of the protocol: server during
// push, client during pull. lastCar is the CAR file received in the
// previous round, or nil on the very first round (in which case no blocks
// are consumed and the returned state reports what store is missing below
// root: just root, with no bloom, when store lacks root itself).
func BlockReceive(ctx context.Context, root cid.Cid, lastCar []byte, cfg Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*ReceiverState, error) {
	var state ReceiverState
	if lastCar == nil {
		s, err := verify.NewState(ctx, []cid.Cid{root}, store, refsCache)
		if err != nil {
			return nil, err
		}
		state = intoReceiverState(s, cfg.BloomFPR)
	} else {
		if len(lastCar) > cfg.ReceiveMaximum {
			return nil, &errs.TooManyBytes{Limit: cfg.ReceiveMaximum, Read: len(lastCar)}
		}
		s, err := BlockReceiveCarStream(ctx, root, bytes.NewReader(lastCar), cfg, store, refsCache)
		if err != nil {
			return nil, err
		}
		state = *s
	}

	if len(state.MissingSubgraphRoots) > cfg.MaxRootsPerRound {
		state.MissingSubgraphRoots = state.MissingSubgraphRoots[:cfg.MaxRootsPerRound]
	}
	return &state, nil
}

// blockSource is the common shape BlockReceiveBlockStream consumes: a
// pull-based sequence of (CID, bytes) pairs ending in io.EOF. Both
// *BlockStream (in-memory sends) and a CAR reader implement it.
type blockSource interface {
	Next(ctx context.Context) (cid.Cid, []byte, error)
}

type carReaderSource struct {
	r *carpkg.Reader
}

func (s carReaderSource) Next(ctx context.Context) (cid.Cid, []byte, error) {
	return s.r.Next()
}

// BlockReceiveCarStream parses CAR frames from r and feeds them into
// BlockReceiveBlockStream.
func BlockReceiveCarStream(ctx context.Context, root cid.Cid, r io.Reader, cfg Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*ReceiverState, error) {
	cr, err := carpkg.NewReader(r)
	if err != nil {
		return nil, err
	}
	return BlockReceiveBlockStream(ctx, root, carReaderSource{cr}, cfg, store, refsCache)
}

// BlockReceiveBlockStream consumes blocks from the given source, verifying
// and storing each wanted block. It stops reading as soon as a block comes
// back Have (already verified, nothing left to do with it) or Unexpected
// (not part of the current want set): the sender is acting on a view of
// state this round has already moved past, so there is nothing more in the
// stream worth consuming this round.
func BlockReceiveBlockStream(ctx context.Context, root cid.Cid, blocks blockSource, cfg Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*ReceiverState, error) {
	state, err := verify.NewState(ctx, []cid.Cid{root}, store, refsCache)
	if err != nil {
		return nil, err
	}

	for {
		stop, err := readAndVerifyBlock(ctx, blocks, state, cfg, store, refsCache)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}

	rs := intoReceiverState(state, cfg.BloomFPR)
	return &rs, nil
}

// readAndVerifyBlock reads one block from blocks and, if it's currently
// wanted, verifies and stores it. It returns io.EOF when blocks is
// exhausted, and stop == true when the block was Have or Unexpected, both
// of which end the round's receive loop rather than just skipping a block.
func readAndVerifyBlock(ctx context.Context, blocks blockSource, state *verify.State, cfg Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (stop bool, err error) {
	c, data, err := blocks.Next(ctx)
	if err != nil {
		return false, err
	}

	if len(data) > cfg.MaxBlockSize {
		return false, &errs.BlockSizeExceeded{Cid: c, BlockBytes: len(data), Max: cfg.MaxBlockSize}
	}

	switch state.BlockState(c) {
	case errs.Have:
		return true, nil
	case errs.Unexpected:
		log.Debugw("received unrequested block", "cid", c)
		return true, nil
	}

	if err := state.VerifyAndStore(ctx, c, data, store, refsCache); err != nil {
		return false, err
	}
	return false, nil
}
