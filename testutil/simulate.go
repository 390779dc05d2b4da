package testutil

import (
	"context"

	cid "github.com/ipfs/go-cid"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/messages"
	"github.com/fission-codes/go-car-mirror/pull"
	"github.com/fission-codes/go-car-mirror/push"
)

// Metrics records the request/response size of one round of a simulated
// protocol run, for measuring network overhead.
type Metrics struct {
	RequestBytes  int
	ResponseBytes int
}

// SimulatePush drives a full client/server push exchange in memory,
// alternating push.Request and push.Response until the server reports it
// wants nothing more, and returns the per-round byte metrics.
func SimulatePush(ctx context.Context, root cid.Cid, cfg core.Config, clientStore blockstore.BlockStore, clientCache cache.ReferencesCache, serverStore blockstore.BlockStore, serverCache cache.ReferencesCache) ([]Metrics, error) {
	var metrics []Metrics
	var lastResponse *messages.PushResponse

	for {
		request, err := push.Request(ctx, root, lastResponse, cfg, clientStore, clientCache)
		if err != nil {
			return metrics, err
		}

		response, err := push.Response(ctx, root, request, cfg, serverStore, serverCache)
		if err != nil {
			return metrics, err
		}

		responseBytes, err := response.MarshalCBOR()
		if err != nil {
			return metrics, err
		}
		metrics = append(metrics, Metrics{RequestBytes: len(request), ResponseBytes: len(responseBytes)})

		if response.IndicatesFinished() {
			return metrics, nil
		}
		lastResponse = response
	}
}

// SimulatePull drives a full client/server pull exchange in memory,
// alternating pull.Request and pull.Response until the client reports it
// wants nothing more, and returns the per-round byte metrics.
func SimulatePull(ctx context.Context, root cid.Cid, cfg core.Config, clientStore blockstore.BlockStore, clientCache cache.ReferencesCache, serverStore blockstore.BlockStore, serverCache cache.ReferencesCache) ([]Metrics, error) {
	var metrics []Metrics

	request, err := pull.Request(ctx, root, nil, cfg, clientStore, clientCache)
	if err != nil {
		return nil, err
	}

	for {
		requestBytes, err := request.MarshalCBOR()
		if err != nil {
			return metrics, err
		}

		response, err := pull.Response(ctx, root, *request, cfg, serverStore, serverCache)
		if err != nil {
			return metrics, err
		}
		metrics = append(metrics, Metrics{RequestBytes: len(requestBytes), ResponseBytes: len(response)})

		request, err = pull.Request(ctx, root, response, cfg, clientStore, clientCache)
		if err != nil {
			return metrics, err
		}
		if request.IndicatesFinished() {
			return metrics, nil
		}
	}
}
