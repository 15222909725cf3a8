package dagsync

import (
	"context"
	"io"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// PeerID identifies the peer a SyncDag call is directed at. It never
// leaves this package's logging and error-reporting paths - the
// synchronizer itself only ever talks to a peer through PeerService.
type PeerID string

// Syncer drives one DAG-synchronization call against one backend. A
// Syncer has no mutable state of its own beyond its dependencies: all of
// a call's working state lives in the SyncState it creates for that call,
// so one Syncer may safely be used for concurrent syncs against different
// peers.
type Syncer struct {
	backend Backend
	config  Config
}

// New constructs a Syncer. config is validated up front since there's no
// sane zero value for it.
func New(backend Backend, config Config) (*Syncer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dagsync config")
	}
	return &Syncer{backend: backend, config: config}, nil
}

// SyncDag fetches enough block summaries from peer to extend the local
// DAG with ancestors of targetBlockHashes, enforcing the depth, width,
// reachability and validity admission checks on every summary as it
// arrives. On success it returns a topological listing of the
// newly received summaries; on failure, no partial result is returned.
func (s *Syncer) SyncDag(ctx context.Context, source PeerID, peer PeerService,
	targetBlockHashes []*externalapi.DomainHash) ([]*BlockSummary, error) {

	if len(targetBlockHashes) == 0 {
		return nil, errors.New("syncDag requires a non-empty target hash set")
	}

	tips, err := s.backend.Tips(ctx)
	if err != nil {
		return nil, s.fail(source, errors.Wrap(err, "fetching local tips"))
	}
	justifications, err := s.backend.Justifications(ctx)
	if err != nil {
		return nil, s.fail(source, errors.Wrap(err, "fetching local justifications"))
	}

	// Snapshotted once and reused unchanged across every re-request this
	// call makes.
	known := make([]*externalapi.DomainHash, 0, len(tips)+len(justifications))
	known = append(known, tips...)
	known = append(known, justifications...)

	state := newSyncState()
	targets := targetBlockHashes

	for {
		beforeCount := state.summaryCount()

		stream, err := peer.StreamAncestorBlockSummaries(ctx, targets, known,
			uint64(s.config.MaxDepthAncestorsRequest))
		if err != nil {
			return nil, s.fail(source, errors.Wrap(err, "opening peer stream"))
		}

		if err := s.consumeStream(ctx, state, stream, targetBlockHashes); err != nil {
			return nil, s.fail(source, err)
		}

		missing, err := s.missing(ctx, state)
		if err != nil {
			return nil, s.fail(source, errors.Wrap(err, "computing missing dependencies"))
		}
		if len(missing) == 0 {
			break
		}
		if state.summaryCount() == beforeCount {
			// The peer's last response added nothing new. Asking again
			// with the same gaps would loop forever against an
			// adversarial or simply exhausted peer.
			log.Debugf("sync with %s made no progress this round, stopping with %d "+
				"dependencies still missing", source, len(missing))
			break
		}
		targets = missing
	}

	missing, err := s.missing(ctx, state)
	if err != nil {
		return nil, s.fail(source, errors.Wrap(err, "computing missing dependencies"))
	}
	if len(missing) > 0 {
		return nil, s.fail(source, &MissingDependencies{Hashes: missing})
	}

	return topologicalEmit(state), nil
}

// consumeStream folds summaries yielded by stream into state in arrival
// order, short-circuiting on the first admission or validation failure.
// The stream is always closed before returning, whether or not the fold
// succeeded.
func (s *Syncer) consumeStream(ctx context.Context, state *SyncState, stream SummaryStream,
	originalTargets []*externalapi.DomainHash) (err error) {

	defer func() {
		if closeErr := stream.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "closing peer stream")
		}
	}()

	for {
		summary, recvErr := stream.Recv(ctx)
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				return nil
			}
			return errors.Wrap(recvErr, "receiving next block summary")
		}

		if tooDeep := notTooDeep(state, originalTargets, s.config.MaxPossibleDepth); tooDeep != nil {
			return tooDeep
		}
		if tooWide := notTooWide(state, s.config.MaxBranchingFactor); tooWide != nil {
			return tooWide
		}
		if unreachable := reachable(state, summary, originalTargets, s.config.MaxDepthAncestorsRequest); unreachable != nil {
			return unreachable
		}
		if validationErr := s.validateSummary(ctx, summary); validationErr != nil {
			return validationErr
		}

		state.append(summary)
	}
}

// validateSummary delegates to the backend, reclassifying any failure -
// including a panic inside the backend's own validation code - as a
// ValidationError.
func (s *Syncer) validateSummary(ctx context.Context, summary *BlockSummary) (syncErr *ValidationError) {
	defer func() {
		if r := recover(); r != nil {
			syncErr = &ValidationError{Summary: summary, Cause: errors.Errorf("validate panicked: %v", r)}
		}
	}()

	if err := s.backend.Validate(ctx, summary); err != nil {
		return &ValidationError{Summary: summary, Cause: err}
	}
	return nil
}

// missing returns the dangling parents of state that the local backend
// still doesn't have - the candidates for the next re-request, or for a
// final MissingDependencies failure.
func (s *Syncer) missing(ctx context.Context, state *SyncState) ([]*externalapi.DomainHash, error) {
	dangling := state.danglingParents()
	missing := make([]*externalapi.DomainHash, 0, len(dangling))
	for _, hash := range dangling {
		notInDAG, err := s.backend.NotInDAG(ctx, hash)
		if err != nil {
			return nil, err
		}
		if notInDAG {
			missing = append(missing, hash)
		}
	}
	return missing, nil
}

// fail logs unexpected (non-SyncError) failures together with the source
// peer's identity before returning them. Well-formed SyncError results are
// left for the caller to log, at its own discretion.
func (s *Syncer) fail(source PeerID, err error) error {
	var syncErr SyncError
	if !errors.As(err, &syncErr) {
		log.Errorf("sync with peer %s failed: %+v", source, err)
	}
	return err
}
