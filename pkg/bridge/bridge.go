// Package bridge mediates between opaque native engine handles and
// managed Go wrapper objects. It owns three guarantees the native layer
// cannot give on its own: no handle is used after its release, every
// native resource is released exactly once, and every asynchronous open
// settles exactly once — no matter how callers, finalizers, cancellation,
// and the native network thread interleave.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/metrics"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// DefaultClusterFile selects the native library's platform default
// cluster file.
const DefaultClusterFile = ""

// DefaultDatabaseName is the only database name current engine releases
// accept.
const DefaultDatabaseName = "DB"

// trackedHandle is what the bridge retains about a live wrapper for
// shutdown cleanup. It deliberately holds the shared close guard and a
// release closure instead of the wrapper itself: a strong reference to
// the wrapper would keep it reachable forever and disarm its finalizer.
type trackedHandle struct {
	h       *handle
	kind    HandleKind
	release func(ptr native.Pointer)
}

// Bridge owns the native library lifecycle and every wrapper created
// through it. All methods are safe for concurrent use.
type Bridge struct {
	lib     native.Lib
	cfg     Config
	log     logging.Logger
	metrics *metrics.Registry
	reg     *registry

	completions chan *PendingOperation
	stopCh      chan struct{}
	wg          sync.WaitGroup
	netDone     chan struct{}

	mu            sync.Mutex
	started       bool
	stopped       bool
	inflight      map[*PendingOperation]struct{}
	handles       map[native.Pointer]*trackedHandle
	openClusters  map[string]*Cluster
	openDatabases map[string]*Database
}

// NewBridge creates a bridge over the given native library. The network
// is not started; call Start (or use Open, which starts it on demand).
func NewBridge(lib native.Lib, config Config) (*Bridge, error) {
	if lib == nil {
		return nil, ErrMissingLib
	}
	if config.CompletionQueueSize == 0 {
		config.CompletionQueueSize = DefaultConfig().CompletionQueueSize
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log := config.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}
	reg := config.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	return &Bridge{
		lib:           lib,
		cfg:           config,
		log:           log.With(logging.Component("bridge")),
		metrics:       reg,
		reg:           newRegistry(),
		completions:   make(chan *PendingOperation, config.CompletionQueueSize),
		stopCh:        make(chan struct{}),
		netDone:       make(chan struct{}),
		inflight:      make(map[*PendingOperation]struct{}),
		handles:       make(map[native.Pointer]*trackedHandle),
		openClusters:  make(map[string]*Cluster),
		openDatabases: make(map[string]*Database),
	}, nil
}

// Start pins the API version, sets up the native network, launches the
// network goroutine, and starts the completion dispatcher. Must be
// called exactly once.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked()
}

func (b *Bridge) startLocked() error {
	if b.stopped {
		return ErrBridgeClosed
	}
	if b.started {
		return ErrNetworkAlreadyStarted
	}

	if err := mapLifecycleCode(b.lib.SelectAPIVersion(b.cfg.APIVersion)); err != nil {
		return err
	}
	if err := mapLifecycleCode(b.lib.SetupNetwork()); err != nil {
		return err
	}

	go func() {
		defer close(b.netDone)
		if code := b.lib.RunNetwork(); !code.OK() {
			b.log.Error("network loop exited with error", logging.NativeCode(code))
		}
	}()

	b.wg.Add(1)
	go b.dispatch()

	b.started = true
	b.log.Info("bridge started", logging.Int("api_version", b.cfg.APIVersion))
	return nil
}

// Stop shuts the bridge down: stops the native network, drains the
// dispatcher, fails still-pending operations with ErrBridgeClosed, and
// closes any handles still open. Stop after Stop is a no-op.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return ErrNetworkNotStarted
	}
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	// No new completions after this returns: the network goroutine is
	// the only source of native callbacks.
	if err := mapLifecycleCode(b.lib.StopNetwork()); err != nil {
		b.log.Error("stop network failed", logging.Error(err))
	}
	<-b.netDone

	close(b.stopCh)
	b.wg.Wait()

	// Stragglers that missed the queue hand off via short-lived
	// goroutines; give them a grace window.
	b.drainStragglers(10 * time.Millisecond)

	b.mu.Lock()
	pending := make([]*PendingOperation, 0, len(b.inflight))
	for op := range b.inflight {
		pending = append(pending, op)
	}
	leftover := make([]*trackedHandle, 0, len(b.handles))
	for _, t := range b.handles {
		leftover = append(leftover, t)
	}
	b.mu.Unlock()

	for _, op := range pending {
		if op.settle(OpErrored, nil, nil, ErrBridgeClosed) {
			if token := op.tokenValue(); token != native.NilFuture {
				b.reapFuture(op.kind, token)
			}
		}
	}
	for _, t := range leftover {
		if t.h.close(t.release) {
			b.metrics.RecordHandleClose(string(t.kind), "shutdown")
		}
	}

	b.log.Info("bridge stopped",
		logging.Int("failed_pending", len(pending)),
		logging.Int("closed_handles", len(leftover)))
	return nil
}

// drainStragglers resolves completions that arrive within the grace
// window after the dispatcher has exited.
func (b *Bridge) drainStragglers(grace time.Duration) {
	deadline := time.After(grace)
	for {
		select {
		case op := <-b.completions:
			b.resolve(op)
		case <-deadline:
			return
		}
	}
}

// OpenCluster begins an asynchronous cluster open. An empty clusterFile
// selects the platform default. The native open call is issued at most
// once; a bridge that is not running fails the future without touching
// native code.
func (b *Bridge) OpenCluster(clusterFile string) *ClusterFuture {
	op := b.newOp(opOpenCluster, clusterFile)
	if err := b.admitOp(op); err != nil {
		op.settle(OpErrored, nil, nil, err)
		return &ClusterFuture{op}
	}

	token := b.lib.CreateCluster(clusterFile)
	if !op.publishToken(token) {
		// Shutdown settled the operation while the native call was in
		// flight; nobody else will release the token.
		b.reapFuture(opOpenCluster, token)
		return &ClusterFuture{op}
	}
	b.lib.FutureSetCallback(token, func(native.FutureToken) { b.enqueue(op) })
	b.log.Debug("cluster open issued",
		logging.OpID(op.id),
		logging.ClusterFile(clusterFile))
	return &ClusterFuture{op}
}

// OpenClusterSync is the blocking variant of OpenCluster.
func (b *Bridge) OpenClusterSync(clusterFile string) (*Cluster, error) {
	return b.OpenCluster(clusterFile).Get(context.Background())
}

// Open returns a database handle for the named database on the cluster
// identified by clusterFile, starting the network first if necessary.
// Cluster and database handles are cached per clusterFile and name, so
// repeated calls share wrappers.
func (b *Bridge) Open(clusterFile, dbName string) (*Database, error) {
	b.mu.Lock()
	if !b.started && !b.stopped {
		if err := b.startLocked(); err != nil {
			b.mu.Unlock()
			return nil, err
		}
	}
	if db, ok := b.openDatabases[clusterFile+"\x00"+dbName]; ok && db.h.open() {
		b.mu.Unlock()
		return db, nil
	}
	cached, ok := b.openClusters[clusterFile]
	b.mu.Unlock()

	var (
		c   *Cluster
		err error
	)
	if ok && cached.h.open() {
		c = cached
	} else {
		c, err = b.OpenClusterSync(clusterFile)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.openClusters[clusterFile] = c
		b.mu.Unlock()
	}

	db, err := c.OpenDatabaseSync(dbName)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.openDatabases[clusterFile+"\x00"+dbName] = db
	b.mu.Unlock()
	return db, nil
}

// OpenDefault opens DefaultDatabaseName against the configured default
// cluster file.
func (b *Bridge) OpenDefault() (*Database, error) {
	return b.Open(b.cfg.DefaultClusterFile, DefaultDatabaseName)
}

// WrapCluster adopts a cluster pointer obtained out of band, such as one
// handed over by embedding code. Exactly one wrapper may own a pointer
// value: a concurrent second wrap fails with ErrPointerAlreadyWrapped.
func (b *Bridge) WrapCluster(ptr native.Pointer) (*Cluster, error) {
	return b.adoptCluster(ptr, "")
}

// WrapDatabase adopts a database pointer obtained out of band.
func (b *Bridge) WrapDatabase(ptr native.Pointer) (*Database, error) {
	return b.adoptDatabase(ptr, "", "", native.NilPointer)
}

// OpenHandleCount returns the number of live wrappers owned by the
// bridge, for diagnostics.
func (b *Bridge) OpenHandleCount() int {
	return b.reg.size()
}

// InFlightCount returns the number of unsettled operations.
func (b *Bridge) InFlightCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight)
}

// admitOp checks bridge state and registers op as in flight.
func (b *Bridge) admitOp(op *PendingOperation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrBridgeClosed
	}
	if !b.started {
		return ErrNetworkNotStarted
	}
	b.inflight[op] = struct{}{}
	b.metrics.SetOperationsInFlight(len(b.inflight))
	return nil
}

// forgetOp drops op from the in-flight set once it settles.
func (b *Bridge) forgetOp(op *PendingOperation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, op)
	b.metrics.SetOperationsInFlight(len(b.inflight))
}

// track records a live handle for shutdown cleanup.
func (b *Bridge) track(ptr native.Pointer, t *trackedHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handles[ptr] = t
}

// untrack forgets a wrapper once its handle is released.
func (b *Bridge) untrack(ptr native.Pointer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, ptr)
}
