// Package sim provides an in-process engine implementing native.Lib. It
// reproduces the client library's completion model faithfully enough to
// develop and test against without a real cluster: futures complete on a
// dedicated network goroutine after a configurable latency, callbacks fire
// from that goroutine, and handle misuse (double destroy, use after
// destroy) panics loudly instead of corrupting memory silently.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Options configures the simulated engine.
type Options struct {
	// Latency is the delay between issuing an async call and its
	// completion firing on the network goroutine.
	Latency time.Duration

	// ValidDatabaseNames lists database names the engine accepts.
	// Empty means the engine's default, {"DB"}.
	ValidDatabaseNames []string

	// MinAPIVersion and MaxAPIVersion bound SelectAPIVersion. Zero
	// values default to 100..101.
	MinAPIVersion int
	MaxAPIVersion int
}

// DefaultOptions returns options matching the real client's defaults.
func DefaultOptions() Options {
	return Options{
		Latency:            time.Millisecond,
		ValidDatabaseNames: []string{"DB"},
		MinAPIVersion:      100,
		MaxAPIVersion:      101,
	}
}

// Engine is a simulated native engine. All methods are safe for
// concurrent use. The zero value is not usable; construct with NewEngine.
type Engine struct {
	opts Options

	mu           sync.Mutex
	apiVersion   int
	networkSetup bool
	running      bool
	stopped      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	work         chan *job

	futures   map[native.FutureToken]*future
	clusters  map[native.Pointer]string
	databases map[native.Pointer]string
	rejects   map[string]native.Code

	nextID atomic.Uint64

	clusterDestroys  atomic.Int64
	databaseDestroys atomic.Int64
	futureDestroys   atomic.Int64
	lateCompletions  atomic.Int64
}

// job is a scheduled completion for the network goroutine.
type job struct {
	f       *future
	readyAt time.Time
}

// NewEngine creates a simulated engine with the given options.
func NewEngine(opts Options) *Engine {
	if opts.Latency < 0 {
		opts.Latency = 0
	}
	if len(opts.ValidDatabaseNames) == 0 {
		opts.ValidDatabaseNames = []string{"DB"}
	}
	if opts.MinAPIVersion == 0 {
		opts.MinAPIVersion = 100
	}
	if opts.MaxAPIVersion == 0 {
		opts.MaxAPIVersion = 101
	}
	return &Engine{
		opts:      opts,
		work:      make(chan *job, 128),
		futures:   make(map[native.FutureToken]*future),
		clusters:  make(map[native.Pointer]string),
		databases: make(map[native.Pointer]string),
		rejects:   make(map[string]native.Code),
	}
}

// RejectClusterFile makes subsequent CreateCluster calls for path fail
// with the given code. Used for failure injection in tests.
func (e *Engine) RejectClusterFile(path string, code native.Code) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejects[path] = code
}

// SelectAPIVersion implements native.Lib.
func (e *Engine) SelectAPIVersion(version int) native.Code {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.apiVersion != 0 {
		return native.CodeAPIVersionAlreadySet
	}
	if version < e.opts.MinAPIVersion || version > e.opts.MaxAPIVersion {
		return native.CodeAPIVersionNotSupported
	}
	e.apiVersion = version
	return native.CodeSuccess
}

// SetupNetwork implements native.Lib.
func (e *Engine) SetupNetwork() native.Code {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.apiVersion == 0 {
		return native.CodeAPIVersionUnset
	}
	if e.networkSetup {
		return native.CodeNetworkAlreadySetup
	}
	e.networkSetup = true
	// The stop channel exists from setup on, so StopNetwork can reach a
	// loop that has not started yet.
	e.stopCh = make(chan struct{})
	return native.CodeSuccess
}

// RunNetwork implements native.Lib. It blocks until StopNetwork and is
// the only goroutine that fires scheduled completions.
func (e *Engine) RunNetwork() native.Code {
	e.mu.Lock()
	if !e.networkSetup {
		e.mu.Unlock()
		return native.CodeNetworkNotSetup
	}
	if e.running {
		e.mu.Unlock()
		return native.CodeNetworkAlreadySetup
	}
	if e.stopped {
		// StopNetwork won the race against the loop starting.
		e.mu.Unlock()
		return native.CodeSuccess
	}
	e.running = true
	e.doneCh = make(chan struct{})
	stop, done := e.stopCh, e.doneCh
	e.mu.Unlock()

	defer close(done)
	for {
		select {
		case <-stop:
			return native.CodeSuccess
		case j := <-e.work:
			if d := time.Until(j.readyAt); d > 0 {
				t := time.NewTimer(d)
				select {
				case <-stop:
					t.Stop()
					return native.CodeSuccess
				case <-t.C:
				}
			}
			e.complete(j.f)
		}
	}
}

// StopNetwork implements native.Lib. If the loop has not entered
// RunNetwork yet, stopping here keeps it from ever starting.
func (e *Engine) StopNetwork() native.Code {
	e.mu.Lock()
	if !e.networkSetup || e.stopped {
		e.mu.Unlock()
		return native.CodeNetworkNotSetup
	}
	e.stopped = true
	running := e.running
	e.running = false
	stop, done := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stop)
	if running {
		<-done
	}
	return native.CodeSuccess
}

// networkReady reports whether async calls are currently legal.
func (e *Engine) networkReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apiVersion != 0 && e.running
}

// schedule queues f for completion after the configured latency. If the
// network loop has stopped the job is dropped; pending futures are then
// only resolvable through cancellation.
func (e *Engine) schedule(f *future) {
	j := &job{f: f, readyAt: time.Now().Add(e.opts.Latency)}
	select {
	case e.work <- j:
	default:
		go func() { e.work <- j }()
	}
}

// ErrorString implements native.Lib.
func (e *Engine) ErrorString(code native.Code) string {
	return code.Message()
}

// ClusterDestroyCount returns how many cluster handles were released.
func (e *Engine) ClusterDestroyCount() int64 { return e.clusterDestroys.Load() }

// DatabaseDestroyCount returns how many database handles were released.
func (e *Engine) DatabaseDestroyCount() int64 { return e.databaseDestroys.Load() }

// FutureDestroyCount returns how many future tokens were released.
func (e *Engine) FutureDestroyCount() int64 { return e.futureDestroys.Load() }

// LateCompletionCount returns how many completions fired after their
// future had already been cancelled.
func (e *Engine) LateCompletionCount() int64 { return e.lateCompletions.Load() }

// OpenClusterCount returns the number of live cluster handles.
func (e *Engine) OpenClusterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clusters)
}

// OpenDatabaseCount returns the number of live database handles.
func (e *Engine) OpenDatabaseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.databases)
}

// LiveFutureCount returns the number of undestroyed future tokens.
func (e *Engine) LiveFutureCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.futures)
}

var _ native.Lib = (*Engine)(nil)
