package native

import "fmt"

// Code is a numeric engine error code. Zero means success.
type Code int32

// Engine error codes. The numbering follows the engine's convention:
// 1xxx operational failures, 2xxx client/API misuse, 4xxx internal.
const (
	CodeSuccess                Code = 0
	CodeOperationFailed        Code = 1000
	CodeOperationCancelled     Code = 1101
	CodeClusterFileNotFound    Code = 1515
	CodeDatabaseNameInvalid    Code = 2013
	CodeNetworkNotSetup        Code = 2008
	CodeNetworkAlreadySetup    Code = 2009
	CodeAPIVersionUnset        Code = 2200
	CodeAPIVersionAlreadySet   Code = 2201
	CodeAPIVersionNotSupported Code = 2203
	CodeInternalError          Code = 4100
)

var codeMessages = map[Code]string{
	CodeSuccess:                "success",
	CodeOperationFailed:        "operation failed",
	CodeOperationCancelled:     "operation cancelled",
	CodeClusterFileNotFound:    "cluster file not found or unreachable",
	CodeDatabaseNameInvalid:    "invalid database name",
	CodeNetworkNotSetup:        "network has not been set up",
	CodeNetworkAlreadySetup:    "network has already been set up",
	CodeAPIVersionUnset:        "API version has not been selected",
	CodeAPIVersionAlreadySet:   "API version has already been selected",
	CodeAPIVersionNotSupported: "API version not supported",
	CodeInternalError:          "internal engine error",
}

// Message returns the engine message for a code, without needing a Lib.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unknown error"
}

// OK reports whether the code is success.
func (c Code) OK() bool {
	return c == CodeSuccess
}

// Error represents a failure surfaced by the engine. It carries the raw
// numeric code so callers can compare against the engine's published
// code list.
type Error struct {
	Code Code
}

func (e Error) Error() string {
	return fmt.Sprintf("engine error: %s (%d)", e.Code.Message(), e.Code)
}

// NewError wraps a non-success code in an Error. Passing a success code
// is a programming error and returns nil.
func NewError(code Code) error {
	if code.OK() {
		return nil
	}
	return Error{Code: code}
}
