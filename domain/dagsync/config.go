package dagsync

import "github.com/pkg/errors"

// Config holds the three admission-check knobs the hosting process must
// supply. All three are required; there is no usable zero value.
type Config struct {
	// MaxPossibleDepth caps how many parent-hops of received history a
	// single syncDag call may absorb from the original targets. Must be
	// >= 1.
	MaxPossibleDepth int

	// MaxBranchingFactor caps the per-rank population growth ratio
	// allowed between adjacent observed ranks. Must be >= 1.0.
	MaxBranchingFactor float64

	// MaxDepthAncestorsRequest caps both the reachability-check hop
	// count and the maxDepth hint sent to the peer. Must be >= 1.
	MaxDepthAncestorsRequest int
}

// Validate rejects configurations outside the domain each knob requires.
func (c Config) Validate() error {
	if c.MaxPossibleDepth < 1 {
		return errors.Errorf("maxPossibleDepth must be >= 1, got %d", c.MaxPossibleDepth)
	}
	if c.MaxBranchingFactor < 1.0 {
		return errors.Errorf("maxBranchingFactor must be >= 1.0, got %f", c.MaxBranchingFactor)
	}
	if c.MaxDepthAncestorsRequest < 1 {
		return errors.Errorf("maxDepthAncestorsRequest must be >= 1, got %d", c.MaxDepthAncestorsRequest)
	}
	return nil
}
