package dagsync

import "github.com/kaspanet/dagsync/domain/consensus/model/externalapi"

// topologicalEmit walks state's dag from its roots - hashes referenced as
// ancestors of something but not themselves a child of anything in this
// state - emitting each known summary before any of its children. A child
// never precedes any of its in-state parents; duplicates are possible when
// a hash is reachable via more than one parent and are left in - the
// result is a listing, not a set.
func topologicalEmit(state *SyncState) []*BlockSummary {
	isChild := make(hashSet, len(state.dag))
	for _, children := range state.dag {
		for child := range children {
			childCopy := child
			isChild.add(&childCopy)
		}
	}

	var roots []*externalapi.DomainHash
	for parent := range state.dag {
		parentCopy := parent
		if !isChild.contains(&parentCopy) {
			roots = append(roots, &parentCopy)
		}
	}

	queue := append([]*externalapi.DomainHash(nil), roots...)
	output := make([]*BlockSummary, 0, len(state.summaries))

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		if summary, ok := state.summaries[*hash]; ok {
			output = append(output, summary)
		}

		for child := range state.dag[*hash] {
			childCopy := child
			queue = append(queue, &childCopy)
		}
	}

	return output
}
