package carmirror

import (
	"context"
	"testing"

	"gotest.tools/assert"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/messages"
	"github.com/fission-codes/go-car-mirror/push"
	"github.com/fission-codes/go-car-mirror/testutil"
)

func TestSessionDrivesPushToCompletion(t *testing.T) {
	ctx := context.Background()
	clientStore := blockstore.NewMemoryStore()
	root, err := testutil.GenerateDag(ctx, 16, 128, 3, clientStore)
	assert.NilError(t, err)
	clientCache := cache.NewInMemoryCache()

	serverStore := blockstore.NewMemoryStore()
	serverCache := cache.NewInMemoryCache()
	cm := New(serverStore, serverCache)

	sid, err := cm.NewSession(root)
	assert.NilError(t, err)

	var lastResponse *messages.PushResponse
	for rounds := 0; rounds < 100; rounds++ {
		request, err := push.Request(ctx, root, lastResponse, core.DefaultConfig(), clientStore, clientCache)
		assert.NilError(t, err)

		resp, err := cm.HandlePushRequest(ctx, sid, request)
		assert.NilError(t, err)

		if resp.IndicatesFinished() {
			break
		}
		lastResponse = resp

		state, err := cm.SessionState(sid)
		assert.NilError(t, err)
		assert.Equal(t, len(state.MissingSubgraphRoots), len(resp.SubgraphRoots))
	}

	assert.Equal(t, serverStore.Len(), clientStore.Len())

	_, err = cm.getSession(sid)
	assert.ErrorContains(t, err, "unknown or expired")
}
