package bridge

import (
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// enqueue hands a completed operation from the native network goroutine
// to the dispatcher. This is the only bridge code that runs on the
// native thread, and it only queues: wrapper state is never touched
// here. If the queue is full the handoff moves to a fresh goroutine
// rather than blocking the network thread.
func (b *Bridge) enqueue(op *PendingOperation) {
	select {
	case b.completions <- op:
		b.metrics.SetCompletionQueueDepth(len(b.completions))
	default:
		b.metrics.RecordCompletionQueueOverflow()
		go func() {
			select {
			case b.completions <- op:
			case <-b.stopCh:
				// The dispatcher is gone; Stop settles the operation
				// through the in-flight set instead.
			}
		}()
	}
}

// dispatch drains the completion queue on the bridge's own goroutine.
// All wrapper construction and operation settlement happens here or on
// caller goroutines, never on the native thread.
func (b *Bridge) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case op := <-b.completions:
			b.resolve(op)
		case <-b.stopCh:
			// Drain what already arrived before shutting down.
			for {
				select {
				case op := <-b.completions:
					b.resolve(op)
				default:
					return
				}
			}
		}
	}
}

// resolve extracts the native result for op and settles it. Runs only on
// the dispatcher goroutine.
func (b *Bridge) resolve(op *PendingOperation) {
	start := time.Now()
	defer func() {
		b.metrics.RecordDispatch(time.Since(start))
		b.metrics.SetCompletionQueueDepth(len(b.completions))
	}()

	token := op.tokenValue()
	if code := b.lib.FutureGetError(token); !code.OK() {
		b.lib.FutureDestroy(token)
		b.settleFailure(op, code)
		return
	}

	switch op.kind {
	case opOpenCluster:
		ptr, code := b.lib.FutureGetCluster(token)
		b.lib.FutureDestroy(token)
		if !code.OK() {
			b.settleFailure(op, code)
			return
		}
		c, err := b.adoptCluster(ptr, op.target)
		if err != nil {
			op.settle(OpErrored, nil, nil, err)
			return
		}
		if !op.settle(OpResolved, c, nil, nil) {
			// Lost the race against shutdown; the fresh handle has no
			// owner left to close it.
			b.metrics.RecordLateCompletion()
			c.Close()
		}
	case opOpenDatabase:
		ptr, code := b.lib.FutureGetDatabase(token)
		b.lib.FutureDestroy(token)
		if !code.OK() {
			b.settleFailure(op, code)
			return
		}
		d, err := b.adoptDatabase(ptr, op.target, op.ownerFile, op.ownerPtr)
		if err != nil {
			op.settle(OpErrored, nil, nil, err)
			return
		}
		if !op.settle(OpResolved, nil, d, nil) {
			b.metrics.RecordLateCompletion()
			d.Close()
		}
	}
}

// reapFuture releases a future whose operation settled with no consumer
// left for the result, along with any handle the engine had already
// allocated for it. Cancelling first closes the window where a
// completion lands between the readiness check and the destroy.
func (b *Bridge) reapFuture(kind opKind, token native.FutureToken) {
	b.lib.FutureCancel(token)
	if b.lib.FutureIsReady(token) {
		if code := b.lib.FutureGetError(token); code.OK() {
			switch kind {
			case opOpenCluster:
				if ptr, c := b.lib.FutureGetCluster(token); c.OK() && ptr != native.NilPointer {
					b.lib.ClusterDestroy(ptr)
				}
			case opOpenDatabase:
				if ptr, c := b.lib.FutureGetDatabase(token); c.OK() && ptr != native.NilPointer {
					b.lib.DatabaseDestroy(ptr)
				}
			}
			b.metrics.RecordLateCompletion()
		}
	}
	b.lib.FutureDestroy(token)
}

// settleFailure maps a native failure code onto the operation. A
// cancellation code becomes the Cancelled terminal state; everything
// else becomes a typed open error.
func (b *Bridge) settleFailure(op *PendingOperation, code native.Code) {
	if code == native.CodeOperationCancelled {
		if op.settle(OpCancelled, nil, nil, ErrOperationCancelled) {
			b.log.Debug("operation cancelled",
				logging.OpID(op.id),
				logging.Operation(op.kind.String()))
		}
		return
	}

	var err error
	switch op.kind {
	case opOpenCluster:
		err = &ClusterOpenError{ClusterFile: op.target, Code: code}
	case opOpenDatabase:
		err = &DatabaseOpenError{Name: op.target, Code: code}
	}
	if op.settle(OpErrored, nil, nil, err) {
		b.log.Warn("open failed",
			logging.OpID(op.id),
			logging.Operation(op.kind.String()),
			logging.NativeCode(code),
			logging.Error(err))
	} else {
		b.metrics.RecordLateCompletion()
	}
}
