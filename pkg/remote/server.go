package remote

import (
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native"
)

// Server exposes a native.Lib on a mangos rep socket. The lib's network
// is expected to be running already; the server only forwards calls.
type Server struct {
	lib    native.Lib
	sock   mangos.Socket
	log    logging.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewServer listens on addr and serves lib. Serve must be called to
// start handling requests.
func NewServer(lib native.Lib, addr string, logger logging.Logger) (*Server, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, 250*time.Millisecond); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, err
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Server{
		lib:    lib,
		sock:   sock,
		log:    logger.With(logging.Component("remote-server")),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Serve handles requests until Close. Blocks; run on its own goroutine
// if the caller has other work.
func (s *Server) Serve() error {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		raw, err := s.sock.Recv()
		if err != nil {
			// Recv deadline doubles as the stop poll interval.
			if err == mangos.ErrRecvTimeout {
				continue
			}
			select {
			case <-s.stopCh:
				return nil
			default:
				return err
			}
		}

		req, err := decodeRequest(raw)
		var resp response
		if err != nil {
			resp = response{Code: int32(native.CodeInternalError), Message: err.Error()}
		} else {
			resp = s.handle(req)
		}
		data, err := encodeResponse(resp)
		if err != nil {
			data, _ = encodeResponse(response{Code: int32(native.CodeInternalError)})
		}
		if err := s.sock.Send(data); err != nil {
			s.log.Error("send failed", logging.Error(err))
		}
	}
}

// Close stops the serve loop and releases the socket.
func (s *Server) Close() error {
	close(s.stopCh)
	err := s.sock.Close()
	<-s.doneCh
	return err
}

// handle executes one forwarded native call. A client can hold stale
// tokens across reconnects, and strict lib implementations treat stale
// handles as fatal; the recover keeps one bad request from taking the
// daemon down.
func (s *Server) handle(req request) (resp response) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("native call panicked",
				logging.String("op", req.Op),
				logging.Any("panic", fmt.Sprint(r)))
			resp = response{Code: int32(native.CodeInternalError), Message: fmt.Sprint(r)}
		}
	}()

	switch req.Op {
	case opSelectAPIVersion:
		code := s.lib.SelectAPIVersion(req.Version)
		// The daemon's engine is shared; a later client asking for the
		// already-pinned version is fine.
		if code == native.CodeAPIVersionAlreadySet {
			code = native.CodeSuccess
		}
		return response{Code: int32(code)}
	case opCreateCluster:
		token := s.lib.CreateCluster(req.ClusterFile)
		return response{Token: uint64(token)}
	case opOpenDatabase:
		token := s.lib.ClusterOpenDatabase(native.Pointer(req.Pointer), req.Name)
		return response{Token: uint64(token)}
	case opClusterDestroy:
		s.lib.ClusterDestroy(native.Pointer(req.Pointer))
		return response{}
	case opDatabaseDestroy:
		s.lib.DatabaseDestroy(native.Pointer(req.Pointer))
		return response{}
	case opFutureIsReady:
		return response{Ready: s.lib.FutureIsReady(native.FutureToken(req.Token))}
	case opFutureGetError:
		return response{Code: int32(s.lib.FutureGetError(native.FutureToken(req.Token)))}
	case opFutureGetCluster:
		ptr, code := s.lib.FutureGetCluster(native.FutureToken(req.Token))
		return response{Pointer: uint64(ptr), Code: int32(code)}
	case opFutureGetDB:
		ptr, code := s.lib.FutureGetDatabase(native.FutureToken(req.Token))
		return response{Pointer: uint64(ptr), Code: int32(code)}
	case opFutureCancel:
		s.lib.FutureCancel(native.FutureToken(req.Token))
		return response{}
	case opFutureDestroy:
		s.lib.FutureDestroy(native.FutureToken(req.Token))
		return response{}
	case opErrorString:
		return response{Message: s.lib.ErrorString(native.Code(req.Code))}
	default:
		return response{Code: int32(native.CodeInternalError), Message: "unknown op: " + req.Op}
	}
}
