// Package channelpeer implements dagsync.PeerService over an in-process
// Go channel rather than a wire transport, the way
// infrastructure/network/netadapter/router.Route carries queued messages
// between a connection's read loop and its consuming flow. It's the
// transport used by tests and by any two dagsync.Syncer instances that
// share a process (e.g. a local simnet of several daemons).
package channelpeer

import (
	"context"
	"io"
	"sync"

	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/pkg/errors"
)

const defaultCapacity = 1000

// ErrRouteClosed indicates that a route was closed while reading or
// writing.
var ErrRouteClosed = errors.New("route is closed")

// route is a single-writer, single-reader queue of block summaries,
// generalized from router.Route to carry *dagsync.BlockSummary instead of
// wire.Message.
type route struct {
	channel chan *dagsync.BlockSummary

	closeLock sync.Mutex
	closed    bool
}

func newRoute() *route {
	return &route{channel: make(chan *dagsync.BlockSummary, defaultCapacity)}
}

func (r *route) enqueue(summary *dagsync.BlockSummary) error {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()

	if r.closed {
		return errors.WithStack(ErrRouteClosed)
	}
	r.channel <- summary
	return nil
}

func (r *route) close() error {
	r.closeLock.Lock()
	defer r.closeLock.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.channel)
	return nil
}

// Recv implements dagsync.SummaryStream.
func (r *route) Recv(ctx context.Context) (*dagsync.BlockSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case summary, isOpen := <-r.channel:
		if !isOpen {
			return nil, io.EOF
		}
		return summary, nil
	}
}

// Close implements dagsync.SummaryStream.
func (r *route) Close() error {
	return r.close()
}
