package bridge

import (
	"runtime"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Database wraps a native database handle. Its lifetime is independent
// of the cluster wrapper that opened it: the engine reference-counts
// underneath, so the bridge tracks each handle's state on its own. The
// owner fields are diagnostics only.
type Database struct {
	br      *Bridge
	h       *handle
	name    string
	release func(ptr native.Pointer)

	// diagnostics; no ownership
	ownerFile string
	ownerPtr  native.Pointer
}

func (b *Bridge) adoptDatabase(ptr native.Pointer, name, ownerFile string, ownerPtr native.Pointer) (*Database, error) {
	if err := b.reg.wrap(ptr, KindDatabase); err != nil {
		b.metrics.RecordWrapConflict(string(KindDatabase))
		return nil, err
	}
	release := func(p native.Pointer) {
		b.lib.DatabaseDestroy(p)
		b.reg.release(p)
		b.untrack(p)
	}
	d := &Database{
		br:        b,
		h:         newHandle(ptr, KindDatabase),
		name:      name,
		release:   release,
		ownerFile: ownerFile,
		ownerPtr:  ownerPtr,
	}
	b.track(ptr, &trackedHandle{h: d.h, kind: KindDatabase, release: release})
	runtime.SetFinalizer(d, (*Database).finalize)
	b.metrics.RecordHandleOpen(string(KindDatabase))
	b.log.Debug("database handle adopted",
		logging.Ptr(ptr),
		logging.DatabaseName(name))
	return d, nil
}

// Name returns the database name this handle was opened with.
func (d *Database) Name() string {
	return d.name
}

// OwnerClusterFile returns the cluster file of the cluster that opened
// this database, for diagnostics.
func (d *Database) OwnerClusterFile() string {
	return d.ownerFile
}

// Open reports whether the handle has not been closed.
func (d *Database) Open() bool {
	return d.h.open()
}

// Close releases the native database handle. Idempotent; the native
// release runs at most once.
func (d *Database) Close() {
	if d.closeWith("explicit") {
		runtime.SetFinalizer(d, nil)
	}
}

func (d *Database) finalize() {
	if d.closeWith("finalizer") {
		d.br.log.Warn("database wrapper finalized without explicit Close",
			logging.DatabaseName(d.name))
	}
}

func (d *Database) closeWith(trigger string) bool {
	closed := d.h.close(d.release)
	if closed {
		d.br.metrics.RecordHandleClose(string(KindDatabase), trigger)
		d.br.log.Debug("database handle closed",
			logging.DatabaseName(d.name),
			logging.String("trigger", trigger))
	}
	return closed
}
