package bridge

import (
	"context"
	"runtime"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Cluster wraps a native cluster handle. It is the sole owner of the
// underlying pointer: the native release runs exactly once, through
// either Close, bridge shutdown, or garbage collection of the wrapper,
// whichever fires first.
type Cluster struct {
	br          *Bridge
	h           *handle
	clusterFile string
	release     func(ptr native.Pointer)
}

// adoptCluster claims ptr in the registry and builds its wrapper.
// A wrap conflict never releases ptr: the pointer belongs to the wrapper
// that won.
func (b *Bridge) adoptCluster(ptr native.Pointer, clusterFile string) (*Cluster, error) {
	if err := b.reg.wrap(ptr, KindCluster); err != nil {
		b.metrics.RecordWrapConflict(string(KindCluster))
		return nil, err
	}
	release := func(p native.Pointer) {
		b.lib.ClusterDestroy(p)
		b.reg.release(p)
		b.untrack(p)
	}
	c := &Cluster{
		br:          b,
		h:           newHandle(ptr, KindCluster),
		clusterFile: clusterFile,
		release:     release,
	}
	b.track(ptr, &trackedHandle{h: c.h, kind: KindCluster, release: release})
	runtime.SetFinalizer(c, (*Cluster).finalize)
	b.metrics.RecordHandleOpen(string(KindCluster))
	b.log.Debug("cluster handle adopted",
		logging.Ptr(ptr),
		logging.ClusterFile(clusterFile))
	return c, nil
}

// ClusterFile returns the connection descriptor path this cluster was
// opened with; empty for the platform default.
func (c *Cluster) ClusterFile() string {
	return c.clusterFile
}

// Open reports whether the handle has not been closed.
func (c *Cluster) Open() bool {
	return c.h.open()
}

// OpenDatabase begins an asynchronous database open. The name is
// forwarded to the engine verbatim. A closed cluster handle fails the
// future with ErrInvalidHandle without reaching native code.
func (c *Cluster) OpenDatabase(name string) *DatabaseFuture {
	op := c.br.newOp(opOpenDatabase, name)
	op.ownerFile = c.clusterFile
	if err := c.br.admitOp(op); err != nil {
		op.settle(OpErrored, nil, nil, err)
		return &DatabaseFuture{op}
	}

	err := c.h.use(func(ptr native.Pointer) {
		op.ownerPtr = ptr
		token := c.br.lib.ClusterOpenDatabase(ptr, []byte(name))
		if !op.publishToken(token) {
			c.br.reapFuture(opOpenDatabase, token)
			return
		}
		c.br.lib.FutureSetCallback(token, func(native.FutureToken) { c.br.enqueue(op) })
	})
	if err != nil {
		op.settle(OpErrored, nil, nil, err)
		return &DatabaseFuture{op}
	}

	c.br.log.Debug("database open issued",
		logging.OpID(op.id),
		logging.DatabaseName(name),
		logging.Ptr(op.ownerPtr))
	return &DatabaseFuture{op}
}

// OpenDatabaseSync blocks the calling goroutine until the open
// completes. Completion callbacks registered through OnReady run on
// their own goroutines, so this is safe to call from anywhere, including
// inside such a callback.
func (c *Cluster) OpenDatabaseSync(name string) (*Database, error) {
	return c.OpenDatabase(name).Get(context.Background())
}

// Close releases the native cluster handle. Idempotent: the release
// itself runs at most once, and repeat calls are silent no-ops.
func (c *Cluster) Close() {
	if c.closeWith("explicit") {
		runtime.SetFinalizer(c, nil)
	}
}

// finalize is the GC-triggered close path. It shares the once-guard with
// Close, so a finalizer racing an explicit close releases nothing twice.
func (c *Cluster) finalize() {
	if c.closeWith("finalizer") {
		c.br.log.Warn("cluster wrapper finalized without explicit Close",
			logging.ClusterFile(c.clusterFile))
	}
}

func (c *Cluster) closeWith(trigger string) bool {
	closed := c.h.close(c.release)
	if closed {
		c.br.metrics.RecordHandleClose(string(KindCluster), trigger)
		c.br.log.Debug("cluster handle closed",
			logging.ClusterFile(c.clusterFile),
			logging.String("trigger", trigger))
	}
	return closed
}
