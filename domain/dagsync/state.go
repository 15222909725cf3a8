package dagsync

import "github.com/kaspanet/dagsync/domain/consensus/model/externalapi"

// hashSet is an unordered collection of distinct hashes, the same shape as
// the set types kaspad builds on top of a plain map (see
// domain/consensus/utils/hashset in the wider kaspad tree).
type hashSet map[externalapi.DomainHash]struct{}

func newHashSet(hashes ...*externalapi.DomainHash) hashSet {
	s := make(hashSet, len(hashes))
	for _, h := range hashes {
		s[*h] = struct{}{}
	}
	return s
}

func (s hashSet) add(h *externalapi.DomainHash) {
	s[*h] = struct{}{}
}

func (s hashSet) contains(h *externalapi.DomainHash) bool {
	_, ok := s[*h]
	return ok
}

func (s hashSet) toSlice() []*externalapi.DomainHash {
	out := make([]*externalapi.DomainHash, 0, len(s))
	for h := range s {
		hCopy := h
		out = append(out, &hCopy)
	}
	return out
}

// SyncState is the in-memory, append-only partial DAG built during a single
// syncDag call. It is never shared across concurrent calls and needs no
// locking.
type SyncState struct {
	// summaries maps a block hash to the summary received for it.
	summaries map[externalapi.DomainHash]*BlockSummary

	// dag maps a parent hash to the set of its direct children observed
	// so far. A key with no corresponding entry in summaries is a
	// dangling parent - referenced, but not yet received.
	dag map[externalapi.DomainHash]hashSet
}

// newSyncState returns an empty SyncState, as required at the start of
// every syncDag call.
func newSyncState() *SyncState {
	return &SyncState{
		summaries: make(map[externalapi.DomainHash]*BlockSummary),
		dag:       make(map[externalapi.DomainHash]hashSet),
	}
}

// append inserts summary into the state and records it as a child of every
// one of its dependencies. Idempotent: appending the same summary twice
// leaves the state equal to appending it once.
func (s *SyncState) append(summary *BlockSummary) {
	s.summaries[*summary.BlockHash] = summary

	for _, dep := range summary.Dependencies() {
		children, ok := s.dag[*dep]
		if !ok {
			children = make(hashSet)
			s.dag[*dep] = children
		}
		children.add(summary.BlockHash)
	}
}

// summaryCount reports how many summaries have been appended. Used by the
// outer loop to detect whether a re-request made progress.
func (s *SyncState) summaryCount() int {
	return len(s.summaries)
}

// has reports whether a summary for hash has been appended.
func (s *SyncState) has(hash *externalapi.DomainHash) bool {
	_, ok := s.summaries[*hash]
	return ok
}

// parentsOf returns the in-DAG parents of hash: every key of s.dag whose
// child set contains hash. This walks the synchronizer's own partial dag,
// never the backend.
func (s *SyncState) parentsOf(hash *externalapi.DomainHash) []*externalapi.DomainHash {
	var parents []*externalapi.DomainHash
	for parent, children := range s.dag {
		if children.contains(hash) {
			parentCopy := parent
			parents = append(parents, &parentCopy)
		}
	}
	return parents
}

// danglingParents returns keys(dag) \ keys(summaries) - hashes referenced
// as a dependency by some received summary but with no summary of their
// own received yet. A key with an empty dependency set is never dangling
// once its own summary arrives, regardless of whether anything else also
// references it as a child.
func (s *SyncState) danglingParents() []*externalapi.DomainHash {
	var dangling []*externalapi.DomainHash
	for parent := range s.dag {
		parentCopy := parent
		if !s.has(&parentCopy) {
			dangling = append(dangling, &parentCopy)
		}
	}
	return dangling
}
