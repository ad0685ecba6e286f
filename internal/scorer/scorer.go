// Package scorer combines an action and its projected consequence into a
// single alignment value over the knowledge, karma and kindness dimensions.
package scorer

import (
	"math"

	"github.com/ethosgate/ethosgate/internal/models"
)

const (
	DefaultExponent   = 2.0
	DefaultMaxBenefit = 10.0
	DefaultBenefitKey = "benefit"
)

// Weights are validated constraint weights. Karma is always negative.
type Weights struct {
	knowledge float64
	karma     float64
	kindness  float64
}

// NewWeights fails when karma is not strictly negative.
func NewWeights(knowledge, karma, kindness float64) (Weights, error) {
	names := [3]string{"knowledge", "karma", "kindness"}
	for i, w := range [3]float64{knowledge, karma, kindness} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Weights{}, models.Configf("weights."+names[i], "must be finite, got %v", w)
		}
	}
	if karma >= 0 {
		return Weights{}, models.Configf("weights.karma", "must be negative, got %v", karma)
	}
	return Weights{knowledge: knowledge, karma: karma, kindness: kindness}, nil
}

func (w Weights) Knowledge() float64 { return w.knowledge }
func (w Weights) Karma() float64     { return w.karma }
func (w Weights) Kindness() float64  { return w.kindness }

// Bounds bound the kindness input and define the catastrophic severity.
type Bounds struct {
	Exponent             float64
	CatastrophicSeverity float64
	MaxBenefit           float64
	DefaultBenefit       float64
	BenefitKey           string
}

// DefaultBounds returns the default exponent, benefit cap and benefit key for
// the given catastrophic severity.
func DefaultBounds(catastrophic float64) Bounds {
	return Bounds{
		Exponent:             DefaultExponent,
		CatastrophicSeverity: catastrophic,
		MaxBenefit:           DefaultMaxBenefit,
		BenefitKey:           DefaultBenefitKey,
	}
}

// Scorer computes EvaluationResults
type Scorer struct {
	weights Weights
	bounds  Bounds
}

// NewScorer validates that karma dominates the other two terms for every
// severity at or above the catastrophic severity. Zero values in b are taken
// as given; start from DefaultBounds for the defaults.
func NewScorer(w Weights, b Bounds) (*Scorer, error) {
	if w.karma >= 0 {
		return nil, models.Configf("weights.karma", "must be negative, got %v", w.karma)
	}
	if b.BenefitKey == "" {
		b.BenefitKey = DefaultBenefitKey
	}

	if math.IsNaN(b.Exponent) || math.IsInf(b.Exponent, 0) || b.Exponent < 1 {
		return nil, models.Configf("karma_exponent", "must be a finite number >= 1, got %v", b.Exponent)
	}
	if math.IsNaN(b.CatastrophicSeverity) || math.IsInf(b.CatastrophicSeverity, 0) || b.CatastrophicSeverity <= 0 {
		return nil, models.Configf("catastrophic_severity", "must be a finite positive number, got %v", b.CatastrophicSeverity)
	}
	if math.IsNaN(b.MaxBenefit) || math.IsInf(b.MaxBenefit, 0) || b.MaxBenefit < 0 {
		return nil, models.Configf("max_benefit", "must be a finite non-negative number, got %v", b.MaxBenefit)
	}
	if math.IsNaN(b.DefaultBenefit) || b.DefaultBenefit < 0 || b.DefaultBenefit > b.MaxBenefit {
		return nil, models.Configf("default_benefit", "must lie in [0, %v], got %v", b.MaxBenefit, b.DefaultBenefit)
	}

	sc := &Scorer{weights: w, bounds: b}
	if math.IsInf(sc.magnitude(0), 0) {
		return nil, models.Configf("weights", "knowledge and kindness contributions overflow at max_benefit %v", b.MaxBenefit)
	}

	karmaAtCatastrophe := -w.karma * math.Pow(b.CatastrophicSeverity, b.Exponent)
	ceiling := MaxPositive(w, b)
	if !(karmaAtCatastrophe > ceiling) {
		return nil, models.Configf("catastrophic_severity",
			"karma penalty %.6g at severity %v does not exceed the largest knowledge+kindness contribution %.6g",
			karmaAtCatastrophe, b.CatastrophicSeverity, ceiling)
	}

	return sc, nil
}

// CheckSeverity fails when an indicator of this severity could drive the
// alignment value out of the finite range.
func (s *Scorer) CheckSeverity(field string, severity float64) error {
	if m := s.magnitude(severity); math.IsInf(m, 0) || math.IsNaN(m) {
		return models.Configf(field, "severity %v overflows the karma penalty (weight %v, exponent %v)",
			severity, s.weights.karma, s.bounds.Exponent)
	}
	return nil
}

// magnitude bounds |knowledge| + |karma| + |kindness| at the given severity
func (s *Scorer) magnitude(severity float64) float64 {
	return math.Abs(s.weights.knowledge) +
		math.Abs(s.weights.karma)*math.Pow(severity, s.bounds.Exponent) +
		math.Abs(s.weights.kindness)*s.bounds.MaxBenefit
}

// MaxPositive is the largest value knowledge + kindness can reach.
func MaxPositive(w Weights, b Bounds) float64 {
	return math.Max(0, w.knowledge)*1.0 + math.Max(0, w.kindness)*b.MaxBenefit
}

// Weights in use
func (s *Scorer) Weights() Weights { return s.weights }

// Bounds in use
func (s *Scorer) Bounds() Bounds { return s.bounds }

// Score produces the EvaluationResult. Stable is left false; the gate owns it.
func (s *Scorer) Score(req models.ActionRequest, est models.ConsequenceEstimate) (models.EvaluationResult, error) {
	if math.IsNaN(est.Severity) || math.IsInf(est.Severity, 0) || est.Severity < 0 {
		return models.EvaluationResult{}, models.Inputf(req.ID, "severity", "must be finite and non-negative, got %v", est.Severity)
	}
	if math.IsNaN(est.Confidence) || est.Confidence < 0 || est.Confidence > 1 {
		return models.EvaluationResult{}, models.Inputf(req.ID, "confidence", "must lie in [0, 1], got %v", est.Confidence)
	}

	benefit, err := s.benefit(req)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	knowledge := s.weights.knowledge * est.Confidence
	karma := s.weights.karma * math.Pow(est.Severity, s.bounds.Exponent)
	kindness := s.weights.kindness * benefit

	return models.EvaluationResult{
		AlignmentValue: knowledge + karma + kindness,
		KnowledgeScore: knowledge,
		KarmaScore:     karma,
		KindnessScore:  kindness,
	}, nil
}

func (s *Scorer) benefit(req models.ActionRequest) (float64, error) {
	attr, ok := req.Attributes[s.bounds.BenefitKey]
	if !ok {
		return s.bounds.DefaultBenefit, nil
	}
	v, numeric := attr.Number()
	if !numeric {
		return 0, models.Inputf(req.ID, "attributes."+s.bounds.BenefitKey, "must be numeric, got %q", attr.String())
	}
	if math.IsNaN(v) || v < 0 || v > s.bounds.MaxBenefit {
		return 0, models.Inputf(req.ID, "attributes."+s.bounds.BenefitKey, "must lie in [0, %v], got %v", s.bounds.MaxBenefit, v)
	}
	return v, nil
}
