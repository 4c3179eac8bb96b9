package bridge

import (
	"sync"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// HandleKind labels wrapper types in logs and metrics.
type HandleKind string

const (
	KindCluster  HandleKind = "cluster"
	KindDatabase HandleKind = "database"
)

// handle pairs a native pointer with its once-only release guard. The
// RWMutex makes the no-use-after-close guarantee exact: operations hold
// the read side across the native call, so close cannot release the
// pointer while a call is in flight, and no call can start once closed.
type handle struct {
	ptr  native.Pointer
	kind HandleKind

	mu     sync.RWMutex
	closed bool
}

func newHandle(ptr native.Pointer, kind HandleKind) *handle {
	return &handle{ptr: ptr, kind: kind}
}

// use runs fn with the native pointer if the handle is still open.
// fn must not block indefinitely; close waits for it.
func (h *handle) use(fn func(ptr native.Pointer)) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrInvalidHandle
	}
	fn(h.ptr)
	return nil
}

// open reports whether the handle has not been closed. Advisory only;
// use provides the race-free check.
func (h *handle) open() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// close runs release exactly once regardless of how many callers race
// here, including a finalizer racing an explicit Close. Returns whether
// this call performed the release.
func (h *handle) close(release func(ptr native.Pointer)) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.closed = true
	ptr := h.ptr
	h.mu.Unlock()

	release(ptr)
	return true
}
