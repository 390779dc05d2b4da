// Package push implements the client/server halves of a CAR Mirror push
// exchange: the client sends CAR files of blocks it believes the server is
// missing, and the server answers with a PushResponse naming what it still
// wants plus a have-set sketch, on top of which the client builds its next
// request.
package push

import (
	"context"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/messages"
)

// Request builds the next CAR file to push to the server. lastResponse is
// nil for the very first round of a push, in which case the client sends
// blocks breadth-first from root, as many as fit in cfg.ReceiveMaximum, and
// relies on the server's first PushResponse to tell it what's still missing.
func Request(ctx context.Context, root cid.Cid, lastResponse *messages.PushResponse, cfg core.Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) ([]byte, error) {
	var lastState *core.ReceiverState
	if lastResponse != nil {
		s := core.FromPushResponse(*lastResponse)
		lastState = &s
	}
	return core.BlockSend(ctx, root, lastState, cfg, store, refsCache)
}

// Response handles one push request on the server side, verifying and
// storing the blocks it contains, and reports what it still wants.
func Response(ctx context.Context, root cid.Cid, request []byte, cfg core.Config, store blockstore.BlockStore, refsCache cache.ReferencesCache) (*messages.PushResponse, error) {
	state, err := core.BlockReceive(ctx, root, request, cfg, store, refsCache)
	if err != nil {
		return nil, err
	}
	resp := state.ToPushResponse()
	return &resp, nil
}
