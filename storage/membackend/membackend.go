// Package membackend is an in-memory dagsync.Backend, the same role
// domain/consensus/processes/dagtopologymanager plays over a durable store:
// tracking each block's recorded parents/children and answering tips,
// justifications and membership queries from that relation table. It never
// persists anything and is meant for tests and short-lived local networks,
// not a running daemon (see storage/leveldbbackend for that).
package membackend

import (
	"context"
	"sync"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/pkg/errors"
)

// ValidateFunc decides whether a newly admitted summary is acceptable.
// A nil ValidateFunc accepts everything.
type ValidateFunc func(summary *dagsync.BlockSummary) error

// Backend is an in-memory dagsync.Backend. The zero value is not usable;
// construct one with New.
type Backend struct {
	mu sync.RWMutex

	children map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}
	blocks   map[externalapi.DomainHash]*dagsync.BlockSummary

	justifications []*externalapi.DomainHash
	validate       ValidateFunc
}

// New returns a Backend seeded with genesisAndJustificationHashes as its
// initial justification set and no blocks of its
// own yet. validate may be nil to accept every summary unconditionally.
func New(genesisAndJustificationHashes []*externalapi.DomainHash, validate ValidateFunc) *Backend {
	return &Backend{
		children:       make(map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}),
		blocks:         make(map[externalapi.DomainHash]*dagsync.BlockSummary),
		justifications: genesisAndJustificationHashes,
		validate:       validate,
	}
}

// Tips implements dagsync.Backend: every admitted block with no recorded
// child.
func (b *Backend) Tips(ctx context.Context) ([]*externalapi.DomainHash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hasChild := make(map[externalapi.DomainHash]bool, len(b.blocks))
	for parent, children := range b.children {
		if len(children) > 0 {
			hasChild[parent] = true
		}
	}

	var tips []*externalapi.DomainHash
	for hash := range b.blocks {
		hashCopy := hash
		if !hasChild[hashCopy] {
			tips = append(tips, &hashCopy)
		}
	}
	return tips, nil
}

// Justifications implements dagsync.Backend.
func (b *Backend) Justifications(ctx context.Context) ([]*externalapi.DomainHash, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*externalapi.DomainHash, len(b.justifications))
	copy(out, b.justifications)
	return out, nil
}

// Validate implements dagsync.Backend.
func (b *Backend) Validate(ctx context.Context, summary *dagsync.BlockSummary) error {
	if b.validate == nil {
		return nil
	}
	return b.validate(summary)
}

// NotInDAG implements dagsync.Backend.
func (b *Backend) NotInDAG(ctx context.Context, hash *externalapi.DomainHash) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, known := b.blocks[*hash]
	return !known, nil
}

// Admit records summary as part of the local DAG once a Syncer has
// finished validating and topologically ordering it. This is the
// counterpart to domain/consensus/processes/blockprocessor applying a
// validated block to the DAG store - membackend has no block processor of
// its own, so the caller is expected to call Admit for
// every summary dagsync.Syncer.SyncDag returned, in order.
func (b *Backend) Admit(summary *dagsync.BlockSummary) error {
	if summary.BlockHash == nil {
		return errors.New("cannot admit a summary with no block hash")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	hash := *summary.BlockHash
	b.blocks[hash] = summary
	if _, ok := b.children[hash]; !ok {
		b.children[hash] = make(map[externalapi.DomainHash]struct{})
	}
	for _, parent := range summary.ParentHashes {
		parentChildren, ok := b.children[*parent]
		if !ok {
			parentChildren = make(map[externalapi.DomainHash]struct{})
			b.children[*parent] = parentChildren
		}
		parentChildren[hash] = struct{}{}
	}
	return nil
}
