package remote

import (
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// DefaultPollInterval is how often the client polls watched futures.
const DefaultPollInterval = 2 * time.Millisecond

// Client implements native.Lib against an engine daemon. Network
// lifecycle is local: RunNetwork runs the poll loop that watches
// pending futures and fires their callbacks, playing the role the
// engine's network thread plays in process. Everything else is
// forwarded over the socket.
//
// The req protocol is strictly alternating, so one round-trip happens
// at a time; callers and the poll loop share the socket under a mutex.
type Client struct {
	sock         mangos.Socket
	log          logging.Logger
	pollInterval time.Duration

	callMu sync.Mutex // one req/rep round-trip at a time

	mu         sync.Mutex
	apiVersion int
	setup      bool
	running    bool
	stopped    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	watches    map[native.FutureToken]native.Callback
}

// Dial connects to an engine daemon at addr (any mangos transport URL,
// e.g. tcp://host:port or inproc://name).
func Dial(addr string, logger logging.Logger) (*Client, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, err
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Client{
		sock:         sock,
		log:          logger.With(logging.Component("remote-client")),
		pollInterval: DefaultPollInterval,
		watches:      make(map[native.FutureToken]native.Callback),
	}, nil
}

// SetPollInterval adjusts the future poll cadence. Call before
// RunNetwork.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Close releases the socket. The poll loop must be stopped first.
func (c *Client) Close() error {
	return c.sock.Close()
}

// call performs one round-trip. Transport failures surface as internal
// engine errors; the bridge maps them like any other native failure.
func (c *Client) call(r request) response {
	data, err := encodeRequest(r)
	if err != nil {
		return response{Code: int32(native.CodeInternalError), Message: err.Error()}
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.sock.Send(data); err != nil {
		c.log.Error("send failed", logging.String("op", r.Op), logging.Error(err))
		return response{Code: int32(native.CodeInternalError), Message: err.Error()}
	}
	raw, err := c.sock.Recv()
	if err != nil {
		c.log.Error("recv failed", logging.String("op", r.Op), logging.Error(err))
		return response{Code: int32(native.CodeInternalError), Message: err.Error()}
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return response{Code: int32(native.CodeInternalError), Message: err.Error()}
	}
	return resp
}

// SelectAPIVersion implements native.Lib. The version is negotiated
// with the daemon; a daemon whose engine already pinned the same
// version range reports success for additional clients.
func (c *Client) SelectAPIVersion(version int) native.Code {
	c.mu.Lock()
	if c.apiVersion != 0 {
		c.mu.Unlock()
		return native.CodeAPIVersionAlreadySet
	}
	c.mu.Unlock()

	resp := c.call(request{Op: opSelectAPIVersion, Version: version})
	code := native.Code(resp.Code)
	if code.OK() {
		c.mu.Lock()
		c.apiVersion = version
		c.mu.Unlock()
	}
	return code
}

// SetupNetwork implements native.Lib. Local only: the daemon's own
// network is already running.
func (c *Client) SetupNetwork() native.Code {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiVersion == 0 {
		return native.CodeAPIVersionUnset
	}
	if c.setup {
		return native.CodeNetworkAlreadySetup
	}
	c.setup = true
	// The stop channel exists from setup on, so StopNetwork can reach a
	// poll loop that has not started yet.
	c.stopCh = make(chan struct{})
	return native.CodeSuccess
}

// RunNetwork implements native.Lib: it runs the poll loop until
// StopNetwork and blocks, intended for its own goroutine.
func (c *Client) RunNetwork() native.Code {
	c.mu.Lock()
	if !c.setup {
		c.mu.Unlock()
		return native.CodeNetworkNotSetup
	}
	if c.running {
		c.mu.Unlock()
		return native.CodeNetworkAlreadySetup
	}
	if c.stopped {
		// StopNetwork won the race against the loop starting.
		c.mu.Unlock()
		return native.CodeSuccess
	}
	c.running = true
	c.doneCh = make(chan struct{})
	stop, done := c.stopCh, c.doneCh
	c.mu.Unlock()

	defer close(done)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return native.CodeSuccess
		case <-ticker.C:
			c.pollWatches()
		}
	}
}

// StopNetwork implements native.Lib. If the poll loop has not entered
// RunNetwork yet, stopping here keeps it from ever starting.
func (c *Client) StopNetwork() native.Code {
	c.mu.Lock()
	if !c.setup || c.stopped {
		c.mu.Unlock()
		return native.CodeNetworkNotSetup
	}
	c.stopped = true
	running := c.running
	c.running = false
	stop, done := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stop)
	if running {
		<-done
	}
	return native.CodeSuccess
}

// pollWatches asks the daemon about each watched future and fires
// callbacks for the ready ones. Runs on the poll goroutine.
func (c *Client) pollWatches() {
	c.mu.Lock()
	tokens := make([]native.FutureToken, 0, len(c.watches))
	for t := range c.watches {
		tokens = append(tokens, t)
	}
	c.mu.Unlock()

	for _, token := range tokens {
		resp := c.call(request{Op: opFutureIsReady, Token: uint64(token)})
		if !native.Code(resp.Code).OK() || !resp.Ready {
			continue
		}
		c.mu.Lock()
		cb, ok := c.watches[token]
		delete(c.watches, token)
		c.mu.Unlock()
		if ok && cb != nil {
			cb(token)
		}
	}
}

// CreateCluster implements native.Lib.
func (c *Client) CreateCluster(clusterFile string) native.FutureToken {
	resp := c.call(request{Op: opCreateCluster, ClusterFile: clusterFile})
	return native.FutureToken(resp.Token)
}

// ClusterOpenDatabase implements native.Lib.
func (c *Client) ClusterOpenDatabase(cluster native.Pointer, name []byte) native.FutureToken {
	resp := c.call(request{Op: opOpenDatabase, Pointer: uint64(cluster), Name: name})
	return native.FutureToken(resp.Token)
}

// ClusterDestroy implements native.Lib.
func (c *Client) ClusterDestroy(cluster native.Pointer) {
	c.call(request{Op: opClusterDestroy, Pointer: uint64(cluster)})
}

// DatabaseDestroy implements native.Lib.
func (c *Client) DatabaseDestroy(db native.Pointer) {
	c.call(request{Op: opDatabaseDestroy, Pointer: uint64(db)})
}

// FutureIsReady implements native.Lib.
func (c *Client) FutureIsReady(token native.FutureToken) bool {
	resp := c.call(request{Op: opFutureIsReady, Token: uint64(token)})
	return resp.Ready
}

// FutureSetCallback implements native.Lib. A future already ready at
// registration fires the callback before returning, on the caller.
func (c *Client) FutureSetCallback(token native.FutureToken, cb native.Callback) native.Code {
	resp := c.call(request{Op: opFutureIsReady, Token: uint64(token)})
	if code := native.Code(resp.Code); !code.OK() {
		return code
	}
	if resp.Ready {
		cb(token)
		return native.CodeSuccess
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.watches[token]; exists {
		return native.CodeInternalError
	}
	c.watches[token] = cb
	return native.CodeSuccess
}

// FutureGetError implements native.Lib.
func (c *Client) FutureGetError(token native.FutureToken) native.Code {
	resp := c.call(request{Op: opFutureGetError, Token: uint64(token)})
	return native.Code(resp.Code)
}

// FutureGetCluster implements native.Lib.
func (c *Client) FutureGetCluster(token native.FutureToken) (native.Pointer, native.Code) {
	resp := c.call(request{Op: opFutureGetCluster, Token: uint64(token)})
	return native.Pointer(resp.Pointer), native.Code(resp.Code)
}

// FutureGetDatabase implements native.Lib.
func (c *Client) FutureGetDatabase(token native.FutureToken) (native.Pointer, native.Code) {
	resp := c.call(request{Op: opFutureGetDB, Token: uint64(token)})
	return native.Pointer(resp.Pointer), native.Code(resp.Code)
}

// FutureCancel implements native.Lib.
func (c *Client) FutureCancel(token native.FutureToken) {
	c.call(request{Op: opFutureCancel, Token: uint64(token)})
}

// FutureDestroy implements native.Lib. The watch, if any, is dropped so
// the poll loop does not touch a destroyed token.
func (c *Client) FutureDestroy(token native.FutureToken) {
	c.mu.Lock()
	delete(c.watches, token)
	c.mu.Unlock()
	c.call(request{Op: opFutureDestroy, Token: uint64(token)})
}

// ErrorString implements native.Lib.
func (c *Client) ErrorString(code native.Code) string {
	resp := c.call(request{Op: opErrorString, Code: int32(code)})
	if resp.Message != "" {
		return resp.Message
	}
	return code.Message()
}

var _ native.Lib = (*Client)(nil)
