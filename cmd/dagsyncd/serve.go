package main

import (
	"context"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/storage/leveldbbackend"
)

// ancestorProducer answers a jsonpeer stream request by walking store's
// admitted blocks backward from targets, the way a real daemon would walk
// its local DAG to answer an IBD peer's request. It sends whatever it has,
// stopping at maxDepth hops or at an unknown hash - mirroring the "lazy,
// possibly incomplete" contract dagsync.PeerService documents.
func ancestorProducer(store *leveldbbackend.Backend) func(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64, send func(*dagsync.BlockSummary) error) error {

	return func(ctx context.Context, targets, known []*externalapi.DomainHash,
		maxDepth uint64, send func(*dagsync.BlockSummary) error) error {

		knownSet := make(map[externalapi.DomainHash]bool, len(known))
		for _, k := range known {
			knownSet[*k] = true
		}
		sent := make(map[externalapi.DomainHash]bool)

		frontier := make([]*externalapi.DomainHash, len(targets))
		copy(frontier, targets)

		for hop := uint64(0); hop < maxDepth && len(frontier) > 0; hop++ {
			var next []*externalapi.DomainHash
			for _, hash := range frontier {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if knownSet[*hash] || sent[*hash] {
					continue
				}

				summary, ok, err := store.Get(hash)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}

				if err := send(summary); err != nil {
					return err
				}
				sent[*hash] = true
				next = append(next, summary.ParentHashes...)
			}
			frontier = next
		}
		return nil
	}
}
