package dagsync

import (
	"context"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
)

// Backend is the local block store's view, as needed by the synchronizer.
// It is an external collaborator: the synchronizer never
// mutates the local persistent DAG itself, only reads from it and asks the
// backend to validate summaries in isolation.
type Backend interface {
	// Tips returns the current DAG tips (leaf blocks) known locally.
	Tips(ctx context.Context) ([]*externalapi.DomainHash, error)

	// Justifications returns additional locally-known hashes the peer
	// may treat as "already have, do not send ancestors of".
	Justifications(ctx context.Context) ([]*externalapi.DomainHash, error)

	// Validate performs semantic validation of a single summary in
	// isolation (signature, structural rules). Any error it returns,
	// including one caused by an internal panic recovered upstream of
	// this call, is reclassified by the synchronizer as a
	// ValidationError carrying the offending summary and this cause.
	Validate(ctx context.Context, summary *BlockSummary) error

	// NotInDAG reports whether hash is not present in the local
	// persistent DAG.
	NotInDAG(ctx context.Context, hash *externalapi.DomainHash) (bool, error)
}
