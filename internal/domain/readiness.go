package domain

import "fmt"

// Readiness is the per-index media readiness state.
type Readiness int

const (
	NotRequested Readiness = iota
	Loading
	PartiallyLoaded
	Ready
	Failed
)

var readinessNames = [...]string{
	"notRequested", "loading", "partiallyLoaded", "ready", "failed",
}

func (r Readiness) String() string {
	if int(r) < len(readinessNames) {
		return readinessNames[r]
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// CanTransition reports whether moving from one readiness state to another is
// legal. Transitions are monotonic with two exceptions: Failed → Loading on
// retry, and any state → NotRequested on eviction.
func CanTransition(from, to Readiness) bool {
	if from == to {
		return true
	}
	if to == NotRequested {
		return true
	}
	if from == Failed {
		return to == Loading
	}
	if to == Failed {
		return true
	}
	return to > from
}
