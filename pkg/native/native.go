// Package native defines the fixed calling convention of the external
// key-value engine client: opaque handle pointers, future tokens, numeric
// error codes, and the entry points for cluster/database lifecycle and
// future completion. The engine itself (replication, transactions, storage)
// lives entirely behind this boundary.
package native

// Pointer is an opaque native handle address. It must never be fabricated
// by callers; the only valid values are those returned by Lib calls.
type Pointer uint64

// NilPointer is the zero handle value, never a valid resource.
const NilPointer Pointer = 0

// FutureToken identifies a native asynchronous completion token. Like
// Pointer, tokens are opaque and owned by the engine until destroyed.
type FutureToken uint64

// NilFuture is the zero token value, never a valid future.
const NilFuture FutureToken = 0

// Callback is invoked by the engine when a future becomes ready. It runs
// on the engine's network goroutine, or on the registering goroutine when
// the future is already ready at registration time. Callbacks must not
// block and must not call back into Lib.
type Callback func(token FutureToken)

// Lib is the C-style surface of the engine client. All methods are safe
// for concurrent use. Blocking behavior: only RunNetwork blocks; every
// other call returns immediately, with asynchronous results delivered
// through futures.
type Lib interface {
	// SelectAPIVersion pins the client protocol version. Must be called
	// exactly once before any other call.
	SelectAPIVersion(version int) Code

	// SetupNetwork prepares the network layer. Called once, after
	// SelectAPIVersion and before RunNetwork.
	SetupNetwork() Code

	// RunNetwork runs the engine's network loop. It blocks until
	// StopNetwork is called and is intended to run on its own goroutine.
	RunNetwork() Code

	// StopNetwork signals the network loop to exit and waits for it. If
	// the loop has not entered RunNetwork yet, StopNetwork prevents it
	// from ever starting; a later RunNetwork returns immediately.
	StopNetwork() Code

	// CreateCluster starts an asynchronous cluster open. An empty
	// clusterFile selects the engine's default. The returned future
	// resolves to a cluster pointer or an error code.
	CreateCluster(clusterFile string) FutureToken

	// ClusterOpenDatabase starts an asynchronous database open on an
	// existing cluster handle. The name is forwarded verbatim.
	ClusterOpenDatabase(cluster Pointer, name []byte) FutureToken

	// ClusterDestroy releases a cluster handle. Exactly one destroy is
	// permitted per handle; a second destroy is undefined behavior, which
	// is why callers guard it.
	ClusterDestroy(cluster Pointer)

	// DatabaseDestroy releases a database handle. Same single-destroy
	// contract as ClusterDestroy.
	DatabaseDestroy(db Pointer)

	// FutureIsReady reports whether the future has completed.
	FutureIsReady(token FutureToken) bool

	// FutureSetCallback registers the completion callback. At most one
	// callback per future. If the future is already ready the callback
	// fires before FutureSetCallback returns.
	FutureSetCallback(token FutureToken, cb Callback) Code

	// FutureGetError returns the future's terminal error code. Only valid
	// once the future is ready.
	FutureGetError(token FutureToken) Code

	// FutureGetCluster extracts the cluster pointer from a ready
	// cluster-open future.
	FutureGetCluster(token FutureToken) (Pointer, Code)

	// FutureGetDatabase extracts the database pointer from a ready
	// database-open future.
	FutureGetDatabase(token FutureToken) (Pointer, Code)

	// FutureCancel requests cancellation. If the future already completed
	// this is a no-op; a result already in flight is still delivered.
	FutureCancel(token FutureToken)

	// FutureDestroy releases the future token. Exactly one destroy per
	// token.
	FutureDestroy(token FutureToken)

	// ErrorString returns the engine's message for a code.
	ErrorString(code Code) string
}
