// Package remote carries the native calling convention over a mangos
// req/rep socket, so the engine can run out of process. The client side
// implements native.Lib; the server side exposes any native.Lib on a
// socket. Completion crosses the wire through the poll half of the
// future model: the client's poll loop turns readiness into local
// callbacks, standing in for the engine's network thread.
package remote

import "encoding/json"

// Operation names on the wire.
const (
	opSelectAPIVersion = "select_api_version"
	opCreateCluster    = "create_cluster"
	opOpenDatabase     = "open_database"
	opClusterDestroy   = "cluster_destroy"
	opDatabaseDestroy  = "database_destroy"
	opFutureIsReady    = "future_is_ready"
	opFutureGetError   = "future_get_error"
	opFutureGetCluster = "future_get_cluster"
	opFutureGetDB      = "future_get_database"
	opFutureCancel     = "future_cancel"
	opFutureDestroy    = "future_destroy"
	opErrorString      = "error_string"
)

// request is one native call crossing the wire.
type request struct {
	Op          string `json:"op"`
	Version     int    `json:"version,omitempty"`
	ClusterFile string `json:"cluster_file,omitempty"`
	Name        []byte `json:"name,omitempty"`
	Pointer     uint64 `json:"pointer,omitempty"`
	Token       uint64 `json:"token,omitempty"`
	Code        int32  `json:"code,omitempty"`
}

// response carries the call result back.
type response struct {
	Code    int32  `json:"code"`
	Token   uint64 `json:"token,omitempty"`
	Pointer uint64 `json:"pointer,omitempty"`
	Ready   bool   `json:"ready,omitempty"`
	Message string `json:"message,omitempty"`
}

func encodeRequest(r request) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRequest(data []byte) (request, error) {
	var r request
	err := json.Unmarshal(data, &r)
	return r, err
}

func encodeResponse(r response) ([]byte, error) {
	return json.Marshal(r)
}

func decodeResponse(data []byte) (response, error) {
	var r response
	err := json.Unmarshal(data, &r)
	return r, err
}
