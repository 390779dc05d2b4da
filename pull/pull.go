// Package pull implements the client/server halves of a CAR Mirror pull
// exchange: the client reports what it still wants (plus a have-set
// sketch) in a PullRequest, and the server answers with a CAR file of
// blocks from below root.
package pull

import (
	"context"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/messages"
)

// Request builds the client's next PullRequest. lastResponse is nil for
// the very first round, in which case the request reports what the local
// store is missing below root: just root, with no have-set sketch, when the
// store lacks root itself.
func Request(ctx context.Context, root cid.Cid, lastResponse []byte, cfg core.Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*messages.PullRequest, error) {
	state, err := core.BlockReceive(ctx, root, lastResponse, cfg, store, refsCache)
	if err != nil {
		return nil, err
	}
	req := state.ToPullRequest()
	return &req, nil
}

// Response handles one pull request on the server side, returning a CAR
// file of blocks below root that the request's have-set sketch suggests
// the client is still missing.
func Response(ctx context.Context, root cid.Cid, request messages.PullRequest, cfg core.Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) ([]byte, error) {
	state := core.FromPullRequest(request)
	return core.BlockSend(ctx, root, &state, cfg, store, refsCache)
}
