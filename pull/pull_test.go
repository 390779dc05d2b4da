package pull_test

import (
	"context"
	"testing"

	"gotest.tools/assert"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/testutil"
)

func TestSimulatedPullTransfersWholeDag(t *testing.T) {
	ctx := context.Background()
	serverStore := blockstore.NewMemoryStore()
	root, err := testutil.GenerateDag(ctx, 32, 512, 21, serverStore)
	assert.NilError(t, err)

	serverCache := cache.NewInMemoryCache()
	clientStore := blockstore.NewMemoryStore()
	clientCache := cache.NewInMemoryCache()

	metrics, err := testutil.SimulatePull(ctx, root, core.DefaultConfig(), clientStore, clientCache, serverStore, serverCache)
	assert.NilError(t, err)
	assert.Assert(t, len(metrics) > 0)
	assert.Equal(t, clientStore.Len(), serverStore.Len())
}
