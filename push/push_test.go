package push_test

import (
	"context"
	"testing"

	"gotest.tools/assert"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/testutil"
)

func TestSimulatedPushTransfersWholeDag(t *testing.T) {
	ctx := context.Background()
	clientStore := blockstore.NewMemoryStore()
	root, err := testutil.GenerateDag(ctx, 32, 512, 11, clientStore)
	assert.NilError(t, err)

	clientCache := cache.NewInMemoryCache()
	serverStore := blockstore.NewMemoryStore()
	serverCache := cache.NewInMemoryCache()

	metrics, err := testutil.SimulatePush(ctx, root, core.DefaultConfig(), clientStore, clientCache, serverStore, serverCache)
	assert.NilError(t, err)
	assert.Assert(t, len(metrics) > 0)
	assert.Equal(t, serverStore.Len(), clientStore.Len())
}
