package bridge

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Configuration errors
var (
	ErrMissingLib        = errors.New("native library implementation required")
	ErrInvalidAPIVersion = errors.New("API version must be set")
	ErrInvalidQueueSize  = errors.New("completion queue size must be at least 1")
)

// Lifecycle errors
var (
	ErrAPIVersionUnset        = errors.New("API version has not been selected")
	ErrAPIVersionAlreadySet   = errors.New("API version has already been selected")
	ErrAPIVersionNotSupported = errors.New("API version not supported")
	ErrNetworkNotStarted      = errors.New("network has not been started")
	ErrNetworkAlreadyStarted  = errors.New("network has already been started")
	ErrBridgeClosed           = errors.New("bridge has been stopped")
)

// Handle errors
var (
	ErrInvalidHandle         = errors.New("handle is closed or was never opened")
	ErrPointerAlreadyWrapped = errors.New("native pointer is already owned by another wrapper")
)

// Operation errors
var (
	ErrOperationCancelled = errors.New("operation was cancelled")
	ErrOperationPending   = errors.New("operation has not completed")
)

// ClusterOpenError reports a failed cluster open. It carries the native
// code and unwraps to native.Error so callers can match either way.
type ClusterOpenError struct {
	ClusterFile string
	Code        native.Code
}

func (e *ClusterOpenError) Error() string {
	file := e.ClusterFile
	if file == "" {
		file = "<default>"
	}
	return fmt.Sprintf("open cluster %s: %s (%d)", file, e.Code.Message(), e.Code)
}

func (e *ClusterOpenError) Unwrap() error {
	return native.Error{Code: e.Code}
}

// DatabaseOpenError reports a failed database open.
type DatabaseOpenError struct {
	Name string
	Code native.Code
}

func (e *DatabaseOpenError) Error() string {
	return fmt.Sprintf("open database %q: %s (%d)", e.Name, e.Code.Message(), e.Code)
}

func (e *DatabaseOpenError) Unwrap() error {
	return native.Error{Code: e.Code}
}

// mapLifecycleCode translates network/version codes returned by the
// native layer into the bridge's sentinel errors.
func mapLifecycleCode(code native.Code) error {
	switch code {
	case native.CodeSuccess:
		return nil
	case native.CodeAPIVersionUnset:
		return ErrAPIVersionUnset
	case native.CodeAPIVersionAlreadySet:
		return ErrAPIVersionAlreadySet
	case native.CodeAPIVersionNotSupported:
		return ErrAPIVersionNotSupported
	case native.CodeNetworkNotSetup:
		return ErrNetworkNotStarted
	case native.CodeNetworkAlreadySetup:
		return ErrNetworkAlreadyStarted
	default:
		return native.Error{Code: code}
	}
}
