// Package carmirror ties the push and pull protocol engines together into
// a session pool suitable for embedding behind any transport: each session
// tracks one root's in-progress exchange so a transport binding only needs
// to hand it request bytes and get back response bytes, round after round,
// without itself knowing anything about ReceiverState or bloom filters.
// The package contains no HTTP or other transport code of its own.
package carmirror

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	cid "github.com/ipfs/go-cid"
	golog "github.com/ipfs/go-log"

	"github.com/fission-codes/go-car-mirror/blockstore"
	"github.com/fission-codes/go-car-mirror/cache"
	"github.com/fission-codes/go-car-mirror/core"
	"github.com/fission-codes/go-car-mirror/dag"
	"github.com/fission-codes/go-car-mirror/messages"
	"github.com/fission-codes/go-car-mirror/pull"
	"github.com/fission-codes/go-car-mirror/push"
)

var log = golog.Logger("car-mirror")

// Version is the protocol version this module speaks, used by transport
// bindings that want to advertise a protocol ID.
const Version = "1.0.0"

// session tracks one in-progress push or pull exchange: the root it's
// transferring, the last round's receiver state, and when it was last used
// (for TTL-based expiry).
type session struct {
	root       cid.Cid
	lastState  *core.ReceiverState
	lastAccess time.Time
}

// CarMirror holds the local store and reference cache used to answer both
// sides of push and pull exchanges, plus a pool of in-progress sessions.
//
// The spec notes that session state is purely an optimization: a Provider
// MAY garbage collect it whenever convenient, since bloom false positives
// mean a stale or missing session degrades to "start over" rather than an
// incorrect transfer. We apply that by expiring sessions lazily, on access,
// rather than running a background sweep.
type CarMirror struct {
	store blockstore.BlockStore
	cache cache.ReferencesCache
	cfg   core.Config

	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
}

// Option configures a CarMirror at construction time.
type Option func(*CarMirror)

// WithConfig overrides the default core.Config used for every exchange.
func WithConfig(cfg core.Config) Option {
	return func(cm *CarMirror) { cm.cfg = cfg }
}

// WithSessionTTL overrides how long an idle session is kept before it's
// treated as expired (default 30s, per the spec's recommendation).
func WithSessionTTL(d time.Duration) Option {
	return func(cm *CarMirror) { cm.ttl = d }
}

// New returns a CarMirror answering push/pull exchanges against store and
// refsCache.
func New(store blockstore.BlockStore, refsCache cache.ReferencesCache, opts ...Option) *CarMirror {
	cm := &CarMirror{
		store:    store,
		cache:    refsCache,
		cfg:      core.DefaultConfig(),
		sessions: make(map[string]*session),
		ttl:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// NewSession starts a new server-side session for root and returns its ID,
// to be handed back by the remote peer on every subsequent round.
func (cm *CarMirror) NewSession(root cid.Cid) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sessions[id] = &session{root: root, lastAccess: time.Now()}
	return id, nil
}

// NewSessionForCidString is NewSession for transport bindings that receive
// the root CID as a string (an HTTP path segment or header, for instance)
// rather than an already-parsed cid.Cid.
func (cm *CarMirror) NewSessionForCidString(rootCidStr string) (string, error) {
	root, err := dag.ParseCid(rootCidStr)
	if err != nil {
		return "", err
	}
	return cm.NewSession(root)
}

// HandlePushRequest answers one round of a push exchange for an existing
// session: request is the CAR file the pushing peer just sent.
func (cm *CarMirror) HandlePushRequest(ctx context.Context, sessionID string, request []byte) (*messages.PushResponse, error) {
	sess, err := cm.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := push.Response(ctx, sess.root, request, cm.cfg, cm.store, cm.cache)
	if err != nil {
		return nil, err
	}

	if resp.IndicatesFinished() {
		cm.finalize(sessionID)
	} else {
		state := core.FromPushResponse(*resp)
		cm.touch(sessionID, &state)
	}
	return resp, nil
}

// HandlePullRequest answers one round of a pull exchange for an existing
// session: request is the PullRequest the pulling peer just sent.
func (cm *CarMirror) HandlePullRequest(ctx context.Context, sessionID string, request messages.PullRequest) ([]byte, error) {
	sess, err := cm.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	carBytes, err := pull.Response(ctx, sess.root, request, cm.cfg, cm.store, cm.cache)
	if err != nil {
		return nil, err
	}

	if request.IndicatesFinished() {
		cm.finalize(sessionID)
	} else {
		state := core.FromPullRequest(request)
		cm.touch(sessionID, &state)
	}
	return carBytes, nil
}

func (cm *CarMirror) getSession(id string) (*session, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	sess, ok := cm.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown or expired car-mirror session: %s", id)
	}
	if time.Since(sess.lastAccess) > cm.ttl {
		delete(cm.sessions, id)
		return nil, fmt.Errorf("unknown or expired car-mirror session: %s", id)
	}
	return sess, nil
}

// SessionState returns the ReceiverState recorded after the most recently
// completed round of an in-progress session, or nil if no round has
// completed yet. Callers (transport bindings, progress reporting) can use
// this to inspect how much of the transfer remains without re-deriving
// state from the store themselves.
func (cm *CarMirror) SessionState(id string) (*core.ReceiverState, error) {
	sess, err := cm.getSession(id)
	if err != nil {
		return nil, err
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return sess.lastState, nil
}

func (cm *CarMirror) touch(id string, state *core.ReceiverState) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if sess, ok := cm.sessions[id]; ok {
		sess.lastState = state
		sess.lastAccess = time.Now()
	}
}

func (cm *CarMirror) finalize(id string) {
	log.Debugw("finalizing car-mirror session", "sessionID", id)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.sessions, id)
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
