// Package pipeline runs consequence projection, constraint scoring and the
// stabilization gate, in that order, for a single action request.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/gate"
	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/projector"
	"github.com/ethosgate/ethosgate/internal/scorer"
)

// Pipeline is safe for concurrent use; it only reads its snapshot.
type Pipeline struct {
	snapshot    *config.Snapshot
	projector   *projector.Projector
	scorer      *scorer.Scorer
	thresholds  gate.Thresholds
	substituter Substituter
	clock       func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSubstituter replaces the rule-based substituter
func WithSubstituter(s Substituter) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.substituter = s
		}
	}
}

// WithClock sets the time source EvaluateContext checks the snapshot's
// validity window against
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.clock = now
		}
	}
}

// New builds a pipeline over a validated snapshot
func New(snapshot *config.Snapshot, opts ...Option) (*Pipeline, error) {
	if snapshot == nil {
		return nil, errors.New("pipeline requires a configuration snapshot")
	}

	p := &Pipeline{
		snapshot:   snapshot,
		projector:  projector.New(snapshot.Registry()),
		scorer:     snapshot.Scorer(),
		thresholds: snapshot.Thresholds(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.substituter == nil {
		sub, err := NewRuleSubstituter(snapshot.Substitutions())
		if err != nil {
			return nil, err
		}
		p.substituter = sub
	}
	return p, nil
}

// Snapshot in use
func (p *Pipeline) Snapshot() *config.Snapshot { return p.snapshot }

// Evaluate produces exactly one Decision for a well-formed request, or an
// InputError and no Decision.
func (p *Pipeline) Evaluate(req models.ActionRequest) (models.Decision, error) {
	est, err := p.projector.Project(req)
	if err != nil {
		return models.Decision{}, err
	}

	eval, err := p.scorer.Score(req, est)
	if err != nil {
		return models.Decision{}, err
	}
	eval.Stable = p.thresholds.Stable(eval.AlignmentValue)

	g := gate.New(p.thresholds)
	outcome, err := g.Decide(eval.AlignmentValue)
	if err != nil {
		return models.Decision{}, fmt.Errorf("gate: %w", err)
	}

	switch outcome {
	case gate.OutcomeApprove:
		return models.Approved(req, eval, est), nil
	case gate.OutcomeTransform:
		substitute := p.substituter.Substitute(req.Description, est)
		rationale := transformRationale(eval, est, p.thresholds.Threshold())
		return models.Transformed(req, substitute, rationale, eval, est), nil
	default:
		reason := rejectReason(eval, est, p.thresholds.Low())
		return models.Rejected(req, reason, eval, est), nil
	}
}
