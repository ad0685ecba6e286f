// Package gate implements the stabilization gate: a two-state machine that
// turns an alignment value into an approve, transform or reject outcome.
package gate

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethosgate/ethosgate/internal/models"
)

// ErrAlreadyDecided is returned when Decide is called on a decided gate.
var ErrAlreadyDecided = errors.New("gate already decided")

// State of a gate
type State int

const (
	StateEvaluating State = iota
	StateDecided
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateDecided:
		return "decided"
	default:
		return "unknown"
	}
}

// Outcome of a decided gate
type Outcome int

const (
	OutcomeApprove Outcome = iota + 1
	OutcomeTransform
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApprove:
		return "approve"
	case OutcomeTransform:
		return "transform"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Verdict maps an outcome to its decision verdict
func (o Outcome) Verdict() models.Verdict {
	switch o {
	case OutcomeApprove:
		return models.VerdictApproved
	case OutcomeTransform:
		return models.VerdictTransformed
	default:
		return models.VerdictRejected
	}
}

// Thresholds threshold and configured low, Low < Threshold
type Thresholds struct {
	threshold float64
	low       float64
}

// NewThresholds validates the ordering
func NewThresholds(threshold, low float64) (Thresholds, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return Thresholds{}, models.Configf("threshold", "must be finite, got %v", threshold)
	}
	if math.IsNaN(low) || math.IsInf(low, 0) {
		return Thresholds{}, models.Configf("configured_low", "must be finite, got %v", low)
	}
	if !(low < threshold) {
		return Thresholds{}, models.Configf("configured_low", "must be below threshold %v, got %v", threshold, low)
	}
	return Thresholds{threshold: threshold, low: low}, nil
}

func (t Thresholds) Threshold() float64 { return t.threshold }
func (t Thresholds) Low() float64       { return t.low }

// Stable iff value >= threshold
func (t Thresholds) Stable(value float64) bool {
	return value >= t.threshold
}

// Classify applies the transition rule without touching any gate state.
func (t Thresholds) Classify(value float64) Outcome {
	switch {
	case value >= t.threshold:
		return OutcomeApprove
	case value >= t.low:
		return OutcomeTransform
	default:
		return OutcomeReject
	}
}

// Gate is single-use and request-local.
type Gate struct {
	thresholds Thresholds
	state      State
	outcome    Outcome
}

// New gate in the Evaluating state
func New(t Thresholds) *Gate {
	return &Gate{thresholds: t, state: StateEvaluating}
}

// State current
func (g *Gate) State() State { return g.state }

// Outcome once decided, zero before
func (g *Gate) Outcome() Outcome { return g.outcome }

// Decide moves the gate to Decided.
func (g *Gate) Decide(value float64) (Outcome, error) {
	if g.state == StateDecided {
		return g.outcome, ErrAlreadyDecided
	}
	if math.IsNaN(value) {
		return 0, fmt.Errorf("alignment value is NaN")
	}
	g.outcome = g.thresholds.Classify(value)
	g.state = StateDecided
	return g.outcome, nil
}
