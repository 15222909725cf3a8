package dagsync

import (
	"context"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
)

// PeerService is the gossip transport's streaming RPC, as needed by the
// synchronizer. It is an external collaborator: the
// synchronizer neither trusts nor needs to know how the stream is carried
// over the wire, only that it is lazy and finite.
type PeerService interface {
	// StreamAncestorBlockSummaries asks the peer for ancestors of
	// targets, up to maxDepth hops, stopping at the known frontier. The
	// returned stream need not be ordered or complete - every element
	// the synchronizer receives is independently admission-checked.
	StreamAncestorBlockSummaries(ctx context.Context, targets, known []*externalapi.DomainHash,
		maxDepth uint64) (SummaryStream, error)
}

// SummaryStream is a finite, lazy sequence of block summaries. Recv
// follows the same shape as a gRPC client stream (and, in this tree,
// infrastructure/network/netadapter/router.Route.Dequeue): it returns
// io.EOF once the peer has sent everything it intends to send.
type SummaryStream interface {
	// Recv blocks until the next summary arrives, the stream ends
	// (io.EOF), or ctx is done.
	Recv(ctx context.Context) (*BlockSummary, error)

	// Close releases the stream's underlying transport resources. It is
	// always safe to call more than once, and must be called promptly
	// after the first admission-check or validation failure.
	Close() error
}

