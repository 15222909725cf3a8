package dagsync

import (
	"sort"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
)

// parentsOfSet returns the union of the in-DAG parents (per state.dag) of
// every hash in frontier. Hashes with no recorded parent contribute
// nothing - this is how the walk runs dry at the edge of the received
// partial DAG.
func parentsOfSet(state *SyncState, frontier hashSet) hashSet {
	next := make(hashSet)
	for hash := range frontier {
		hashCopy := hash
		for _, parent := range state.parentsOf(&hashCopy) {
			next.add(parent)
		}
	}
	return next
}

// notTooDeep bounds how far back in parent depth the received DAG extends
// from the original targets. It walks state's own partial dag,
// never the backend.
func notTooDeep(state *SyncState, originalTargets []*externalapi.DomainHash, maxPossibleDepth int) *TooDeep {
	frontier := newHashSet(originalTargets...)

	for level := 1; level <= maxPossibleDepth; level++ {
		frontier = parentsOfSet(state, frontier)
		if len(frontier) == 0 {
			return nil
		}
		if level == maxPossibleDepth {
			return &TooDeep{FrontierAtLimit: frontier.toSlice(), Limit: maxPossibleDepth}
		}
	}
	return nil
}

// rankPopulation is one (rank, count) pair of the population histogram
// notTooWide partitions state.summaries into.
type rankPopulation struct {
	rank  uint64
	count int
}

// notTooWide bounds per-rank branching. Ranks are grouped by
// sorted rank order, not rank-value adjacency, so a skipped rank never
// disables the check.
func notTooWide(state *SyncState, maxBranchingFactor float64) *TooWide {
	populationByRank := make(map[uint64]int)
	for _, summary := range state.summaries {
		populationByRank[summary.Header.Rank]++
	}

	ranks := make([]rankPopulation, 0, len(populationByRank))
	for rank, count := range populationByRank {
		ranks = append(ranks, rankPopulation{rank: rank, count: count})
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].rank < ranks[j].rank })

	for i := 0; i+1 < len(ranks); i++ {
		ratio := float64(ranks[i+1].count) / float64(ranks[i].count)
		if ratio > maxBranchingFactor {
			return &TooWide{ObservedRatio: ratio, Limit: maxBranchingFactor}
		}
	}
	return nil
}

// reachable ensures summary is an ancestor of the original target set
// within maxDepthAncestorsRequest hops. It is evaluated before
// summary is appended to state, so summary can't satisfy the check merely
// by being present in state already.
func reachable(state *SyncState, summary *BlockSummary, originalTargets []*externalapi.DomainHash,
	maxDepthAncestorsRequest int) *Unreachable {

	frontier := newHashSet(originalTargets...)
	if frontier.contains(summary.BlockHash) {
		return nil
	}

	for hop := 1; hop <= maxDepthAncestorsRequest; hop++ {
		frontier = parentsOfSet(state, frontier)
		if len(frontier) == 0 {
			return &Unreachable{Summary: summary, Limit: maxDepthAncestorsRequest}
		}
		if frontier.contains(summary.BlockHash) {
			return nil
		}
	}
	return &Unreachable{Summary: summary, Limit: maxDepthAncestorsRequest}
}
