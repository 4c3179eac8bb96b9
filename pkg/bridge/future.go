package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/native"
	"github.com/google/uuid"
)

// OpState is the lifecycle state of a PendingOperation.
type OpState int32

const (
	// OpPending means the native future has not delivered a result yet.
	OpPending OpState = iota
	// OpResolved means the operation produced its handle.
	OpResolved
	// OpErrored means the native layer reported a failure.
	OpErrored
	// OpCancelled means cancellation won the race against completion.
	OpCancelled
)

// String returns the string representation of an operation state.
func (s OpState) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpResolved:
		return "resolved"
	case OpErrored:
		return "errored"
	case OpCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the three final states.
func (s OpState) Terminal() bool {
	return s != OpPending
}

type opKind int

const (
	opOpenCluster opKind = iota
	opOpenDatabase
)

func (k opKind) String() string {
	if k == opOpenCluster {
		return "open_cluster"
	}
	return "open_database"
}

// PendingOperation is an in-flight asynchronous open. It transitions out
// of OpPending exactly once, no matter how many completion sources race:
// the dispatcher, a cancellation, or bridge shutdown.
type PendingOperation struct {
	id      string
	kind    opKind
	br      *Bridge
	token   native.FutureToken
	target  string // cluster file or database name, diagnostics only
	started time.Time

	// owner diagnostics for database opens; no ownership implied
	ownerFile string
	ownerPtr  native.Pointer

	state atomic.Int32
	done  chan struct{}

	mu        sync.Mutex
	cluster   *Cluster
	database  *Database
	err       error
	callbacks []func()
}

func (b *Bridge) newOp(kind opKind, target string) *PendingOperation {
	return &PendingOperation{
		id:      uuid.NewString(),
		kind:    kind,
		br:      b,
		target:  target,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the operation's diagnostic identifier, present in every log
// line the bridge emits about it.
func (op *PendingOperation) ID() string {
	return op.id
}

// State returns the current operation state.
func (op *PendingOperation) State() OpState {
	return OpState(op.state.Load())
}

// Done returns a channel closed when the operation reaches a terminal
// state.
func (op *PendingOperation) Done() <-chan struct{} {
	return op.done
}

// Err returns the terminal error, ErrOperationPending while pending, and
// nil once resolved.
func (op *PendingOperation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !OpState(op.state.Load()).Terminal() {
		return ErrOperationPending
	}
	return op.err
}

// Cancel requests cancellation from the native layer. Cancellation is
// cooperative: a result that already completed (or completes before the
// cancel lands) wins, and Cancel after a terminal state is a no-op.
func (op *PendingOperation) Cancel() {
	if OpState(op.state.Load()).Terminal() {
		return
	}
	if token := op.tokenValue(); token != native.NilFuture {
		op.br.lib.FutureCancel(token)
		op.br.metrics.RecordCancellation()
	}
}

// publishToken records the native future token once the call has been
// issued. It fails if the operation settled in the meantime (bridge
// shutdown); the issuer then owns the token's cleanup.
func (op *PendingOperation) publishToken(token native.FutureToken) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if OpState(op.state.Load()).Terminal() {
		return false
	}
	op.token = token
	return true
}

// tokenValue reads the token under the same lock publishToken writes it
// under, so shutdown either sees the token or the publish fails.
func (op *PendingOperation) tokenValue() native.FutureToken {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.token
}

// OnReady registers fn to run once the operation settles. fn always runs
// on its own goroutine, never on the dispatcher, so it may safely issue
// further bridge calls, including blocking ones.
func (op *PendingOperation) OnReady(fn func()) {
	op.mu.Lock()
	if OpState(op.state.Load()).Terminal() {
		op.mu.Unlock()
		go fn()
		return
	}
	op.callbacks = append(op.callbacks, fn)
	op.mu.Unlock()
}

// settle moves the operation to a terminal state. Exactly one caller
// wins; the result slots are written before the state becomes visible
// and before done closes.
func (op *PendingOperation) settle(st OpState, c *Cluster, d *Database, err error) bool {
	op.mu.Lock()
	if OpState(op.state.Load()).Terminal() {
		op.mu.Unlock()
		return false
	}
	op.cluster = c
	op.database = d
	op.err = err
	op.state.Store(int32(st))
	callbacks := op.callbacks
	op.callbacks = nil
	op.mu.Unlock()

	close(op.done)
	op.br.forgetOp(op)
	op.br.metrics.RecordOperation(op.kind.String(), st.String(), time.Since(op.started))
	for _, fn := range callbacks {
		go fn()
	}
	return true
}

// wait blocks until the operation settles or ctx expires. On ctx expiry
// the operation itself stays pending.
func (op *PendingOperation) wait(ctx context.Context) error {
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClusterFuture is the awaitable result of Bridge.OpenCluster.
type ClusterFuture struct {
	*PendingOperation
}

// Get waits for the open to settle and returns the cluster wrapper. A
// ctx expiry returns the ctx error and leaves the operation pending; a
// cancelled operation returns ErrOperationCancelled.
func (f *ClusterFuture) Get(ctx context.Context) (*Cluster, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cluster, f.err
}

// Poll is the non-blocking variant of Get. The bool reports whether the
// operation has settled.
func (f *ClusterFuture) Poll() (*Cluster, bool, error) {
	if !f.State().Terminal() {
		return nil, false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cluster, true, f.err
}

// DatabaseFuture is the awaitable result of Cluster.OpenDatabase.
type DatabaseFuture struct {
	*PendingOperation
}

// Get waits for the open to settle and returns the database wrapper.
func (f *DatabaseFuture) Get(ctx context.Context) (*Database, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.database, f.err
}

// Poll is the non-blocking variant of Get.
func (f *DatabaseFuture) Poll() (*Database, bool, error) {
	if !f.State().Terminal() {
		return nil, false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.database, true, f.err
}
