// Package gate decides whether retrieved passages are close enough to the
// query to ground a diagnosis, and keeps statistics on those decisions.
package gate

import "fmt"

// DefaultThreshold is the distance above which retrieval is not trusted.
// Distances are squared L2 between unit vectors, so they range over [0, 4].
const DefaultThreshold = 0.7

// Fallback reasons reported to callers.
const (
	ReasonGrounded = "RAG retrieval successful"
	ReasonFallback = "No relevant sources - using LLM knowledge"
)

// Mode is the synthesis path chosen for a request.
type Mode string

const (
	ModeGrounded Mode = "grounded"
	ModeFallback Mode = "fallback"
)

// Decision is the outcome of applying the policy to one retrieval.
type Decision struct {
	Mode      Mode
	BestScore *float64 // nil when nothing was retrieved
	Reason    string
}

// Grounded reports whether the decision trusts retrieval.
func (d Decision) Grounded() bool {
	return d.Mode == ModeGrounded
}

// Policy compares the best retrieval distance against a threshold.
type Policy struct {
	threshold float64
}

// NewPolicy validates threshold.
func NewPolicy(threshold float64) (Policy, error) {
	if threshold < 0 {
		return Policy{}, fmt.Errorf("relevance threshold must be non-negative, got %v", threshold)
	}
	return Policy{threshold: threshold}, nil
}

// Threshold returns the configured cut-off.
func (p Policy) Threshold() float64 {
	return p.threshold
}

// Decide grounds the answer only when at least one passage was retrieved and
// the best distance is at or below the threshold. scores must be ascending.
func (p Policy) Decide(scores []float64) Decision {
	if len(scores) == 0 {
		return Decision{Mode: ModeFallback, Reason: ReasonFallback}
	}
	best := scores[0]
	if best > p.threshold {
		return Decision{Mode: ModeFallback, BestScore: &best, Reason: ReasonFallback}
	}
	return Decision{Mode: ModeGrounded, BestScore: &best, Reason: ReasonGrounded}
}
