package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

type futureKind int

const (
	kindCluster futureKind = iota
	kindDatabase
)

// future is a simulated completion token. The outcome (wantCode) is
// decided when the call is issued; the transition to ready happens later
// on the network goroutine, or immediately for API-misuse failures.
type future struct {
	token native.FutureToken
	kind  futureKind

	// wantCode is the predetermined outcome; success when zero.
	wantCode native.Code

	mu    sync.Mutex
	ready bool
	code  native.Code
	ptr   native.Pointer
	cb    native.Callback
}

// newFuture allocates and registers a future.
func (e *Engine) newFuture(kind futureKind, wantCode native.Code) *future {
	f := &future{
		token:    native.FutureToken(e.nextID.Add(1)),
		kind:     kind,
		wantCode: wantCode,
	}
	e.mu.Lock()
	e.futures[f.token] = f
	e.mu.Unlock()
	return f
}

// lookup resolves a token, panicking on tokens that were never issued or
// already destroyed. A real client library would corrupt memory here; the
// simulator fails fast instead so lifecycle bugs surface in tests.
func (e *Engine) lookup(token native.FutureToken) *future {
	e.mu.Lock()
	f, ok := e.futures[token]
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("sim: use of unknown or destroyed future token %d", token))
	}
	return f
}

// complete transitions f to ready on the network goroutine, allocating
// the native resource on success. A future already made ready by
// cancellation counts as a late completion and allocates nothing.
func (e *Engine) complete(f *future) {
	f.mu.Lock()
	if f.ready {
		f.mu.Unlock()
		e.lateCompletions.Add(1)
		return
	}
	f.ready = true
	f.code = f.wantCode
	if f.code.OK() {
		f.ptr = e.alloc(f.kind)
	}
	cb := f.cb
	f.mu.Unlock()

	if cb != nil {
		cb(f.token)
	}
}

// alloc creates a live cluster or database handle.
func (e *Engine) alloc(kind futureKind) native.Pointer {
	ptr := native.Pointer(e.nextID.Add(1))
	e.mu.Lock()
	switch kind {
	case kindCluster:
		e.clusters[ptr] = "cluster"
	case kindDatabase:
		e.databases[ptr] = "database"
	}
	e.mu.Unlock()
	return ptr
}

// CreateCluster implements native.Lib.
func (e *Engine) CreateCluster(clusterFile string) native.FutureToken {
	var want native.Code
	e.mu.Lock()
	switch {
	case e.apiVersion == 0:
		want = native.CodeAPIVersionUnset
	case !e.running:
		want = native.CodeNetworkNotSetup
	default:
		if code, rejected := e.rejects[clusterFile]; rejected {
			want = code
		}
	}
	e.mu.Unlock()

	f := e.newFuture(kindCluster, want)
	switch want {
	case native.CodeAPIVersionUnset, native.CodeNetworkNotSetup:
		// The network loop is not running; complete on the caller.
		e.complete(f)
	default:
		e.schedule(f)
	}
	return f.token
}

// ClusterOpenDatabase implements native.Lib.
func (e *Engine) ClusterOpenDatabase(cluster native.Pointer, name []byte) native.FutureToken {
	e.mu.Lock()
	_, ok := e.clusters[cluster]
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("sim: open database on unknown or destroyed cluster handle %d", cluster))
	}

	var want native.Code
	if !slices.Contains(e.opts.ValidDatabaseNames, string(name)) {
		want = native.CodeDatabaseNameInvalid
	}
	f := e.newFuture(kindDatabase, want)
	e.schedule(f)
	return f.token
}

// ClusterDestroy implements native.Lib.
func (e *Engine) ClusterDestroy(cluster native.Pointer) {
	e.mu.Lock()
	_, ok := e.clusters[cluster]
	delete(e.clusters, cluster)
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("sim: cluster handle %d destroyed twice or never created", cluster))
	}
	e.clusterDestroys.Add(1)
}

// DatabaseDestroy implements native.Lib.
func (e *Engine) DatabaseDestroy(db native.Pointer) {
	e.mu.Lock()
	_, ok := e.databases[db]
	delete(e.databases, db)
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("sim: database handle %d destroyed twice or never created", db))
	}
	e.databaseDestroys.Add(1)
}

// FutureIsReady implements native.Lib.
func (e *Engine) FutureIsReady(token native.FutureToken) bool {
	f := e.lookup(token)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// FutureSetCallback implements native.Lib.
func (e *Engine) FutureSetCallback(token native.FutureToken, cb native.Callback) native.Code {
	f := e.lookup(token)
	f.mu.Lock()
	if f.cb != nil {
		f.mu.Unlock()
		return native.CodeInternalError
	}
	if f.ready {
		f.mu.Unlock()
		cb(token)
		return native.CodeSuccess
	}
	f.cb = cb
	f.mu.Unlock()
	return native.CodeSuccess
}

// FutureGetError implements native.Lib.
func (e *Engine) FutureGetError(token native.FutureToken) native.Code {
	f := e.lookup(token)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		panic(fmt.Sprintf("sim: FutureGetError on pending future %d", token))
	}
	return f.code
}

// FutureGetCluster implements native.Lib.
func (e *Engine) FutureGetCluster(token native.FutureToken) (native.Pointer, native.Code) {
	return e.futureHandle(token, kindCluster)
}

// FutureGetDatabase implements native.Lib.
func (e *Engine) FutureGetDatabase(token native.FutureToken) (native.Pointer, native.Code) {
	return e.futureHandle(token, kindDatabase)
}

func (e *Engine) futureHandle(token native.FutureToken, kind futureKind) (native.Pointer, native.Code) {
	f := e.lookup(token)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		panic(fmt.Sprintf("sim: handle extraction from pending future %d", token))
	}
	if f.kind != kind {
		panic(fmt.Sprintf("sim: handle extraction with wrong kind from future %d", token))
	}
	if !f.code.OK() {
		return native.NilPointer, f.code
	}
	return f.ptr, native.CodeSuccess
}

// FutureCancel implements native.Lib. A ready future is left untouched;
// the result in flight still stands.
func (e *Engine) FutureCancel(token native.FutureToken) {
	f := e.lookup(token)
	f.mu.Lock()
	if f.ready {
		f.mu.Unlock()
		return
	}
	f.ready = true
	f.code = native.CodeOperationCancelled
	cb := f.cb
	f.mu.Unlock()

	if cb != nil {
		cb(token)
	}
}

// FutureDestroy implements native.Lib.
func (e *Engine) FutureDestroy(token native.FutureToken) {
	e.mu.Lock()
	_, ok := e.futures[token]
	delete(e.futures, token)
	e.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("sim: future token %d destroyed twice or never created", token))
	}
	e.futureDestroys.Add(1)
}
