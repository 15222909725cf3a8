package channelpeer

import (
	"context"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/logger"
	"github.com/kaspanet/dagsync/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.XPRT)
var spawn = panics.GoroutineWrapperFunc(log)

// Sender lets a Producer push summaries into the stream a Peer handed
// back from StreamAncestorBlockSummaries, the way a flow writes responses
// onto its outgoingRoute (see app/protocol/flows/ibd/handle_ibd_block_requests.go).
type Sender struct {
	r *route
}

// Send enqueues summary onto the stream. It returns ErrRouteClosed once the
// consumer has closed its end.
func (s *Sender) Send(summary *dagsync.BlockSummary) error {
	return s.r.enqueue(summary)
}

// Producer answers one StreamAncestorBlockSummaries call by pushing zero or
// more summaries into sender before returning. Returning a non-nil error
// only affects logging - the stream still terminates with io.EOF, since
// dagsync.SummaryStream has no side channel for producer-side failures.
type Producer func(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64, sender *Sender) error

// Peer is an in-process dagsync.PeerService backed by a Producer, used to
// connect a Syncer directly to a local source of block summaries without a
// wire transport - in tests, and in a single-process simnet of several
// dagsyncd instances.
type Peer struct {
	produce Producer
}

// NewPeer wraps produce as a dagsync.PeerService.
func NewPeer(produce Producer) *Peer {
	return &Peer{produce: produce}
}

// StreamAncestorBlockSummaries implements dagsync.PeerService.
func (p *Peer) StreamAncestorBlockSummaries(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64) (dagsync.SummaryStream, error) {

	r := newRoute()
	spawn(func() {
		defer func() {
			if err := r.close(); err != nil {
				log.Warnf("closing channel peer route: %s", err)
			}
		}()
		if err := p.produce(ctx, targets, known, maxDepth, &Sender{r: r}); err != nil {
			log.Warnf("producing ancestor summaries: %s", err)
		}
	})
	return r, nil
}
