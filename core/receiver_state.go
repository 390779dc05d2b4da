package core

import (
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/bloom"
	"github.com/fission-codes/go-car-mirror/messages"
	"github.com/fission-codes/go-car-mirror/verify"
)

// ReceiverState is what a receiver tells the sender between rounds: the
// subgraph roots it still knows it's missing, and (optionally) a bloom
// sketch of everything else it already has.
type ReceiverState struct {
	MissingSubgraphRoots []cid.Cid
	HaveCidsBloom        *bloom.Filter
}

// String gives a compact summary (root count, not the full list; bloom
// shape, not its bytes) so logging a ReceiverState with thousands of roots
// doesn't flood logs.
func (r ReceiverState) String() string {
	bloomDesc := "None"
	if r.HaveCidsBloom != nil {
		bloomDesc = fmt.Sprintf("Some(BloomFilter(k_hashes = %d, %d bytes))",
			r.HaveCidsBloom.HashCount(), len(r.HaveCidsBloom.Bytes()))
	}
	return fmt.Sprintf("ReceiverState{missing_subgraph_roots.len() == %d, have_cids_bloom: %s}",
		len(r.MissingSubgraphRoots), bloomDesc)
}

// FromPushResponse converts a wire PushResponse into a ReceiverState.
func FromPushResponse(p messages.PushResponse) ReceiverState {
	return ReceiverState{
		MissingSubgraphRoots: p.SubgraphRoots,
		HaveCidsBloom:        bloomDeserialize(p.BloomHashCount, p.BloomBytes),
	}
}

// FromPullRequest converts a wire PullRequest into a ReceiverState.
func FromPullRequest(p messages.PullRequest) ReceiverState {
	return ReceiverState{
		MissingSubgraphRoots: p.Resources,
		HaveCidsBloom:        bloomDeserialize(p.BloomHashCount, p.BloomBytes),
	}
}

// ToPushResponse converts a ReceiverState into its wire PushResponse form.
func (r ReceiverState) ToPushResponse() messages.PushResponse {
	hashCount, bytes := bloomSerialize(r.HaveCidsBloom)
	return messages.PushResponse{
		SubgraphRoots:  r.MissingSubgraphRoots,
		BloomHashCount: hashCount,
		BloomBytes:     bytes,
	}
}

// ToPullRequest converts a ReceiverState into its wire PullRequest form.
func (r ReceiverState) ToPullRequest() messages.PullRequest {
	hashCount, bytes := bloomSerialize(r.HaveCidsBloom)
	return messages.PullRequest{
		Resources:      r.MissingSubgraphRoots,
		BloomHashCount: hashCount,
		BloomBytes:     bytes,
	}
}

func bloomSerialize(f *bloom.Filter) (uint32, []byte) {
	if f == nil {
		return 3, nil
	}
	return uint32(f.HashCount()), f.Bytes()
}

func bloomDeserialize(hashCount uint32, bytes []byte) *bloom.Filter {
	if len(bytes) == 0 {
		return nil
	}
	return bloom.NewFilterFromBloomBytes(uint64(len(bytes))*8, uint64(hashCount), bytes)
}

// intoReceiverState builds a ReceiverState from an incremental verification
// State: the want set becomes the missing subgraph roots, and (if anything
// has been verified as present) the have set is sketched into a bloom sized
// for its element count via cfg's FPR curve. No bloom is built when there's
// nothing to sketch (|have| == 0) or when the round is already finished
// (want == ∅): a finished round has nothing left for a bloom to prune.
func intoReceiverState(state *verify.State, bloomFPR func(uint64) float64) ReceiverState {
	missing := make([]cid.Cid, 0, len(state.Want))
	for c := range state.Want {
		missing = append(missing, c)
	}

	n := uint64(len(state.Have))
	if n == 0 || len(missing) == 0 {
		return ReceiverState{MissingSubgraphRoots: missing}
	}

	f := bloom.NewFilterWithEstimates(n, bloomFPR(n))
	for c := range state.Have {
		f.Add(c.Bytes())
	}
	log.Debugw("built have cids bloom",
		"elementCount", n,
		"sizeBits", f.BitCount(),
		"hashCount", f.HashCount(),
		"estimatedFPP", f.FPP(n),
	)
	return ReceiverState{MissingSubgraphRoots: missing, HaveCidsBloom: f}
}
