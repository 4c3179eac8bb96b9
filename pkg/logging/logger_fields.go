package logging

import (
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

// Ptr records an opaque native handle address
func Ptr(p native.Pointer) Field {
	return Uint64("ptr", uint64(p))
}

// OpID records a pending operation's diagnostic identifier
func OpID(id string) Field {
	return String("op_id", id)
}

// NativeCode records a numeric engine error code
func NativeCode(code native.Code) Field {
	return Int("native_code", int(code))
}

// ClusterFile records a cluster connection descriptor path
func ClusterFile(path string) Field {
	if path == "" {
		path = "<default>"
	}
	return String("cluster_file", path)
}

// DatabaseName records a database name
func DatabaseName(name string) Field {
	return String("database", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
