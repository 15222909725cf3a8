package dagsync

import (
	"context"
	"io"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// dumpState renders state's unexported fields for failure messages - a
// SyncState's summaries/dag maps are unreadable via %v, the same problem
// go-spew solves for kaspad's own consensus test suites.
func dumpState(state *SyncState) string {
	return spew.Sdump(state)
}

// testHash builds a deterministic, distinct DomainHash for test fixtures.
// Real hashes are content-addressed; tests only need uniqueness.
func testHash(n byte) *externalapi.DomainHash {
	var h externalapi.DomainHash
	h[0] = n
	h[1] = n >> 8
	return &h
}

func testSummary(hash *externalapi.DomainHash, rank uint64, parents ...*externalapi.DomainHash) *BlockSummary {
	return &BlockSummary{
		BlockHash:    hash,
		ParentHashes: parents,
		Header:       &BlockHeader{Rank: rank},
	}
}

// fakeStream replays a fixed slice of summaries, then returns io.EOF.
type fakeStream struct {
	mu      sync.Mutex
	pending []*BlockSummary
	closed  bool
	onClose func()
}

func newFakeStream(summaries ...*BlockSummary) *fakeStream {
	return &fakeStream{pending: summaries}
}

func (f *fakeStream) Recv(ctx context.Context) (*BlockSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.closed {
		return nil, io.EOF
	}
	if len(f.pending) == 0 {
		return nil, io.EOF
	}
	next := f.pending[0]
	f.pending = f.pending[1:]
	return next, nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed && f.onClose != nil {
		f.onClose()
	}
	f.closed = true
	return nil
}

// fakePeer hands out one scripted stream per call to
// StreamAncestorBlockSummaries, keyed by call order, and records the
// arguments it was invoked with for assertions.
type fakePeer struct {
	mu      sync.Mutex
	streams []*fakeStream
	calls   []fakePeerCall
}

type fakePeerCall struct {
	targets []*externalapi.DomainHash
	known   []*externalapi.DomainHash
	maxDepth uint64
}

func (p *fakePeer) StreamAncestorBlockSummaries(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64) (SummaryStream, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, fakePeerCall{targets: targets, known: known, maxDepth: maxDepth})

	if len(p.streams) == 0 {
		return newFakeStream(), nil
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return stream, nil
}

// fakeBackend is an in-memory Backend for tests: hashes in knownHashes are
// "already in the local DAG"; validateErrors maps a hash to the error
// Validate should return for it (panic sentinel supported via
// validatePanics).
type fakeBackend struct {
	tips           []*externalapi.DomainHash
	justifications []*externalapi.DomainHash
	knownHashes    map[externalapi.DomainHash]bool
	validateErrors map[externalapi.DomainHash]error
	validatePanics map[externalapi.DomainHash]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		knownHashes:    make(map[externalapi.DomainHash]bool),
		validateErrors: make(map[externalapi.DomainHash]error),
		validatePanics: make(map[externalapi.DomainHash]bool),
	}
}

func (b *fakeBackend) Tips(ctx context.Context) ([]*externalapi.DomainHash, error) {
	return b.tips, nil
}

func (b *fakeBackend) Justifications(ctx context.Context) ([]*externalapi.DomainHash, error) {
	return b.justifications, nil
}

func (b *fakeBackend) Validate(ctx context.Context, summary *BlockSummary) error {
	if b.validatePanics[*summary.BlockHash] {
		panic("boom")
	}
	if err, ok := b.validateErrors[*summary.BlockHash]; ok {
		return err
	}
	return nil
}

func (b *fakeBackend) NotInDAG(ctx context.Context, hash *externalapi.DomainHash) (bool, error) {
	return !b.knownHashes[*hash], nil
}

var errBackendRejected = errors.New("backend rejected block")
