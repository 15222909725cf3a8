package jsonpeer

import (
	"context"
	"encoding/json"
	"net"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/util/panics"
	"github.com/pkg/errors"
)

var spawn = panics.GoroutineWrapperFunc(log)

// Producer answers one incoming stream request by pushing zero or more
// summaries to send before returning, the server-side mirror of
// transport/channelpeer.Producer.
type Producer func(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64, send func(*dagsync.BlockSummary) error) error

// Server accepts jsonpeer connections and answers each with produce.
type Server struct {
	listener net.Listener
	produce  Producer
}

// Listen starts a Server on addr.
func Listen(addr string, produce Producer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}
	return &Server{listener: listener, produce: produce}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return errors.WithStack(s.listener.Close())
}

// Serve accepts connections until the listener is closed or ctx is done.
// Each connection is handled in its own goroutine and serves exactly one
// request.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "accepting connection")
		}
		spawn(func() {
			if err := s.handleConn(ctx, conn); err != nil {
				log.Warnf("serving %s: %s", conn.RemoteAddr(), err)
			}
		})
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	var req request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		return errors.Wrap(err, "decoding stream request")
	}

	targets := make([]*externalapi.DomainHash, len(req.Targets))
	for i := range req.Targets {
		targets[i] = &req.Targets[i]
	}
	known := make([]*externalapi.DomainHash, len(req.Known))
	for i := range req.Known {
		known[i] = &req.Known[i]
	}

	enc := json.NewEncoder(conn)
	send := func(summary *dagsync.BlockSummary) error {
		return enc.Encode(toWire(summary))
	}

	produceErr := s.produce(ctx, targets, known, req.MaxDepth, send)
	if err := enc.Encode(wireSummary{Done: true}); err != nil {
		return errors.Wrap(err, "sending end-of-stream marker")
	}
	return produceErr
}
