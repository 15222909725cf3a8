package dagsync

import "github.com/kaspanet/dagsync/domain/consensus/model/externalapi"

// BlockJustification is a consensus-level reference from a block to an
// additional ancestor, beyond its direct parents.
type BlockJustification struct {
	LatestBlockHash *externalapi.DomainHash
}

// BlockHeader carries the subset of a block's header the synchronizer
// cares about.
type BlockHeader struct {
	// Rank is the block's topological rank, as asserted by its producer.
	// It is monotonic along parent edges but is never independently
	// verified by the synchronizer - that's validate's job.
	Rank uint64
}

// BlockSummary is a block header together with its parent and
// justification links - everything the synchronizer needs to extend the
// local DAG without downloading the block body.
type BlockSummary struct {
	BlockHash      *externalapi.DomainHash
	ParentHashes   []*externalapi.DomainHash
	Justifications []*BlockJustification
	Header         *BlockHeader
}

// Dependencies returns the union of s.ParentHashes and the LatestBlockHash
// of every justification - every hash that must eventually be present in
// the DAG for s to be integrated.
func (s *BlockSummary) Dependencies() []*externalapi.DomainHash {
	deps := make([]*externalapi.DomainHash, 0, len(s.ParentHashes)+len(s.Justifications))
	deps = append(deps, s.ParentHashes...)
	for _, j := range s.Justifications {
		deps = append(deps, j.LatestBlockHash)
	}
	return deps
}
