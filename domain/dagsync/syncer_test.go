package dagsync

import (
	"context"
	"testing"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// asSyncError is errors.As spelled out for a target parameter, saving the
// repetition of &target at every call site below.
func asSyncError(err error, target interface{}) bool {
	switch t := target.(type) {
	case **TooDeep:
		return errors.As(err, t)
	case **TooWide:
		return errors.As(err, t)
	case **Unreachable:
		return errors.As(err, t)
	case **ValidationError:
		return errors.As(err, t)
	case **MissingDependencies:
		return errors.As(err, t)
	default:
		return false
	}
}

func defaultConfig() Config {
	return Config{
		MaxPossibleDepth:         10,
		MaxBranchingFactor:       4.0,
		MaxDepthAncestorsRequest: 10,
	}
}

// TestSyncDagStraightChain covers a straight chain delivered in a single
// stream call.
func TestSyncDagStraightChain(t *testing.T) {
	h1, h2, h3 := testHash(1), testHash(2), testHash(3)
	s1 := testSummary(h1, 0)
	s2 := testSummary(h2, 1, h1)
	s3 := testSummary(h3, 2, h2)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(s3, s2, s1)}}
	backend := newFakeBackend()
	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{h3})
	if err != nil {
		t.Fatalf("SyncDag: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(out))
	}
	i1, i2, i3 := indexOf(out, h1), indexOf(out, h2), indexOf(out, h3)
	if !(i1 < i2 && i2 < i3) {
		t.Fatalf("expected topological order h1 < h2 < h3, got %d,%d,%d", i1, i2, i3)
	}
	if len(peer.calls) != 1 {
		t.Fatalf("expected exactly one peer call, got %d", len(peer.calls))
	}
}

// TestSyncDagGapRequiresReRequest covers the case where the peer's first
// response leaves a gap that triggers a second, narrower request using
// the same known-hashes snapshot.
func TestSyncDagGapRequiresReRequest(t *testing.T) {
	h1, h2, h3, h4 := testHash(1), testHash(2), testHash(3), testHash(4)
	s4 := testSummary(h4, 3, h3)
	s3 := testSummary(h3, 2, h2)
	s2 := testSummary(h2, 1, h1)
	s1 := testSummary(h1, 0)

	peer := &fakePeer{streams: []*fakeStream{
		newFakeStream(s4, s3),
		newFakeStream(s2, s1),
	}}
	backend := newFakeBackend()
	backend.tips = []*externalapi.DomainHash{testHash(200)}
	backend.justifications = []*externalapi.DomainHash{testHash(201)}

	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{h4})
	if err != nil {
		t.Fatalf("SyncDag: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 summaries, got %d", len(out))
	}

	if len(peer.calls) != 2 {
		t.Fatalf("expected exactly two peer calls, got %d", len(peer.calls))
	}
	if len(peer.calls[1].targets) != 1 || !peer.calls[1].targets[0].Equal(h2) {
		t.Fatalf("expected the second call's targets to be the missing ancestor %s, got %v",
			h2, peer.calls[1].targets)
	}

	// known hashes are snapshotted once and reused unchanged.
	if !externalapi.HashesEqual(peer.calls[0].known, peer.calls[1].known) {
		t.Fatalf("expected known hashes to be identical across re-requests")
	}
}

func TestSyncDagTooDeep(t *testing.T) {
	target := testHash(0)
	config := defaultConfig()
	config.MaxPossibleDepth = 3

	var summaries []*BlockSummary
	current := target
	for i := 0; i < 5; i++ {
		parent := testHash(byte(10 + i))
		summaries = append(summaries, testSummary(current, uint64(i), parent))
		current = parent
	}
	summaries = append(summaries, testSummary(current, 5))

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(summaries...)}}
	backend := newFakeBackend()
	syncer, err := New(backend, config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{target})
	if err == nil {
		t.Fatal("expected TooDeep")
	}
	var tooDeep *TooDeep
	if !asSyncError(err, &tooDeep) {
		t.Fatalf("expected a *TooDeep error, got %v (%T)", err, err)
	}
	if tooDeep.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", tooDeep.Limit)
	}
}

func TestSyncDagTooWide(t *testing.T) {
	config := defaultConfig()
	config.MaxBranchingFactor = 2.0

	target := testHash(1)
	var summaries []*BlockSummary
	summaries = append(summaries, testSummary(target, 0))
	// Ten rank-1 direct parents of target, pushing the rank-0 -> rank-1
	// population ratio to 10, which exceeds 2.0.
	for i := 0; i < 10; i++ {
		summaries = append(summaries, testSummary(testHash(byte(20+i)), 1))
	}
	summaries[0] = testSummary(target, 0, summariesHashes(summaries[1:])...)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(summaries...)}}
	backend := newFakeBackend()
	syncer, err := New(backend, config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{target})
	if err == nil {
		t.Fatal("expected TooWide")
	}
	var tooWide *TooWide
	if !asSyncError(err, &tooWide) {
		t.Fatalf("expected a *TooWide error, got %v (%T)", err, err)
	}
}

func summariesHashes(summaries []*BlockSummary) []*externalapi.DomainHash {
	hashes := make([]*externalapi.DomainHash, len(summaries))
	for i, s := range summaries {
		hashes[i] = s.BlockHash
	}
	return hashes
}

func TestSyncDagUnreachable(t *testing.T) {
	target := testHash(1)
	unrelated := testSummary(testHash(99), 0)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(unrelated)}}
	backend := newFakeBackend()
	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{target})
	if err == nil {
		t.Fatal("expected Unreachable")
	}
	var unreachable *Unreachable
	if !asSyncError(err, &unreachable) {
		t.Fatalf("expected an *Unreachable error, got %v (%T)", err, err)
	}
}

// TestSyncDagValidationError covers the backend rejecting the second
// summary: the first summary's contribution to the state is discarded
// along with everything else.
func TestSyncDagValidationError(t *testing.T) {
	h1, h2 := testHash(1), testHash(2)
	s2 := testSummary(h2, 1, h1)
	s1 := testSummary(h1, 0)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(s2, s1)}}
	backend := newFakeBackend()
	backend.validateErrors[*h1] = errBackendRejected

	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{h2})
	if out != nil {
		t.Fatalf("expected no partial result on error, got %v", out)
	}
	var validationErr *ValidationError
	if !asSyncError(err, &validationErr) {
		t.Fatalf("expected a *ValidationError, got %v (%T)", err, err)
	}
	if !validationErr.Summary.BlockHash.Equal(h1) {
		t.Fatalf("expected the validation error to name h1, got %s", validationErr.Summary.BlockHash)
	}
}

func TestSyncDagValidatePanicBecomesValidationError(t *testing.T) {
	h1, h2 := testHash(1), testHash(2)
	s2 := testSummary(h2, 1, h1)
	s1 := testSummary(h1, 0)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream(s2, s1)}}
	backend := newFakeBackend()
	backend.validatePanics[*h1] = true

	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{h2})
	var validationErr *ValidationError
	if !asSyncError(err, &validationErr) {
		t.Fatalf("expected a panic during validate to be reclassified as *ValidationError, got %v (%T)", err, err)
	}
}

// TestSyncDagEmptyStreamAllTargetsKnownLocally covers an empty peer stream
// with all targets already known locally: it returns an empty vector and
// no error.
func TestSyncDagEmptyStreamAllTargetsKnownLocally(t *testing.T) {
	target := testHash(1)

	peer := &fakePeer{streams: []*fakeStream{newFakeStream()}}
	backend := newFakeBackend()
	backend.knownHashes[*target] = true

	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{target})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected an empty result, got %d summaries", len(out))
	}
}

// TestSyncDagFixedPointTerminatesWithoutInfiniteLoop covers a re-request
// that yields no new summaries: it must stop, even though dependencies
// remain missing.
func TestSyncDagFixedPointTerminatesWithoutInfiniteLoop(t *testing.T) {
	h1, h2 := testHash(1), testHash(2)
	s2 := testSummary(h2, 1, h1) // h1 never delivered, and never locally known

	peer := &fakePeer{streams: []*fakeStream{
		newFakeStream(s2),
		newFakeStream(), // re-request for h1 comes back empty
	}}
	backend := newFakeBackend()

	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, []*externalapi.DomainHash{h2})
	var missingDeps *MissingDependencies
	if !asSyncError(err, &missingDeps) {
		t.Fatalf("expected *MissingDependencies, got %v (%T)", err, err)
	}
	if len(peer.calls) != 2 {
		t.Fatalf("expected exactly two peer calls before giving up, got %d", len(peer.calls))
	}
}

func TestSyncDagRejectsEmptyTargets(t *testing.T) {
	peer := &fakePeer{}
	backend := newFakeBackend()
	syncer, err := New(backend, defaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = syncer.SyncDag(context.Background(), "peer-1", peer, nil)
	if err == nil {
		t.Fatal("expected an error for an empty target set")
	}
}
