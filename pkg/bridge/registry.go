package bridge

import (
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// registry enforces the one-to-one mapping between native pointer values
// and wrapper objects. A pointer stays registered from adoption until its
// wrapper releases it, so a second wrap attempt over a live pointer is
// rejected instead of aliasing ownership.
type registry struct {
	mu    sync.Mutex
	byPtr map[native.Pointer]HandleKind
}

func newRegistry() *registry {
	return &registry{byPtr: make(map[native.Pointer]HandleKind)}
}

// wrap claims ptr for a new wrapper.
func (r *registry) wrap(ptr native.Pointer, kind HandleKind) error {
	if ptr == native.NilPointer {
		return ErrInvalidHandle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byPtr[ptr]; ok {
		return fmt.Errorf("wrap %s pointer %d (held by %s wrapper): %w", kind, ptr, existing, ErrPointerAlreadyWrapped)
	}
	r.byPtr[ptr] = kind
	return nil
}

// release forgets ptr. Safe to call for pointers that were never
// registered; the handle guard already makes release single-shot.
func (r *registry) release(ptr native.Pointer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPtr, ptr)
}

// size returns the number of live registered pointers.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPtr)
}
