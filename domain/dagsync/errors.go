package dagsync

import (
	"fmt"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
)

// SyncError is the closed taxonomy of ways a syncDag call can fail. Every variant below implements it; callers type-switch or
// errors.As over the concrete types, the way kaspad's flows type-switch
// over blockdag.RuleError vs. unexpected errors (see
// app/protocol/flows/ibd/ibd.go).
type SyncError interface {
	error
	isSyncError()
}

// TooDeep reports that the notTooDeep admission check hit its
// configured limit before the received frontier ran dry.
type TooDeep struct {
	FrontierAtLimit []*externalapi.DomainHash
	Limit           int
}

func (e *TooDeep) Error() string {
	return fmt.Sprintf("peer response extends the DAG more than %d levels deep "+
		"from the requested targets (frontier of %d hashes at the limit)",
		e.Limit, len(e.FrontierAtLimit))
}

func (*TooDeep) isSyncError() {}

// TooWide reports that the notTooWide admission check found a
// per-rank population ratio above the configured limit.
type TooWide struct {
	ObservedRatio float64
	Limit         float64
}

func (e *TooWide) Error() string {
	return fmt.Sprintf("per-rank branching ratio %.4f exceeds the limit of %.4f",
		e.ObservedRatio, e.Limit)
}

func (*TooWide) isSyncError() {}

// Unreachable reports that a summary could not be connected back to the
// original targets within the configured hop limit.
type Unreachable struct {
	Summary *BlockSummary
	Limit   int
}

func (e *Unreachable) Error() string {
	return fmt.Sprintf("block %s is not reachable from the requested targets within %d hops",
		e.Summary.BlockHash, e.Limit)
}

func (*Unreachable) isSyncError() {}

// ValidationError reports that the backend rejected a summary, or that
// validating it panicked or otherwise failed abnormally. Cause carries the
// underlying reason; it is never nil.
type ValidationError struct {
	Summary *BlockSummary
	Cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("block %s failed validation: %s", e.Summary.BlockHash, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func (*ValidationError) isSyncError() {}

// MissingDependencies reports that, after the outer re-request loop
// settled, the peer still hadn't closed every gap in the received DAG.
// Callers may retry later, e.g. once the peer has more blocks or a
// different peer is tried.
type MissingDependencies struct {
	Hashes []*externalapi.DomainHash
}

func (e *MissingDependencies) Error() string {
	return fmt.Sprintf("peer exhausted with %d ancestor(s) still missing", len(e.Hashes))
}

func (*MissingDependencies) isSyncError() {}
