package pipeline

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/models"
)

var verdictRank = map[models.Verdict]int{
	models.VerdictRejected:    0,
	models.VerdictTransformed: 1,
	models.VerdictApproved:    2,
}

var descriptions = []string{
	"Send a thank-you note",
	"Execute the plan",
	"Shut down the cooling unit",
	"Eliminate the opposition leadership",
}

func TestProperty_Deterministic(t *testing.T) {
	p := newPipeline(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("identical request and snapshot give identical decisions", prop.ForAll(
		func(idx int, benefit float64, hostile bool) bool {
			req := models.ActionRequest{
				ID:          "prop",
				Description: descriptions[idx],
				Attributes:  models.Attributes{"benefit": models.Num(benefit)},
			}
			if hostile {
				req.Attributes["user_intent"] = models.Cat("Strategic Elimination")
			}
			a, errA := p.Evaluate(req)
			b, errB := p.Evaluate(req)
			if errA != nil || errB != nil {
				return false
			}
			return reflect.DeepEqual(a, b)
		},
		gen.IntRange(0, len(descriptions)-1),
		gen.Float64Range(0, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Raising only the benefit never moves a verdict toward rejection.
func TestProperty_BenefitMonotone(t *testing.T) {
	p := newPipeline(t)

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("verdict rank is non-decreasing in benefit", prop.ForAll(
		func(idx int, b1, b2 float64) bool {
			lo, hi := b1, b2
			if lo > hi {
				lo, hi = hi, lo
			}
			mk := func(benefit float64) models.ActionRequest {
				return models.ActionRequest{
					ID:          "prop",
					Description: descriptions[idx],
					Attributes:  models.Attributes{"benefit": models.Num(benefit)},
				}
			}
			dl, err1 := p.Evaluate(mk(lo))
			dh, err2 := p.Evaluate(mk(hi))
			if err1 != nil || err2 != nil {
				return false
			}
			return verdictRank[dh.Verdict] >= verdictRank[dl.Verdict] &&
				dh.Evaluation.AlignmentValue >= dl.Evaluation.AlignmentValue
		},
		gen.IntRange(0, len(descriptions)-1),
		gen.Float64Range(0, 10),
		gen.Float64Range(0, 10),
	))

	properties.TestingRun(t)
}

// Whatever the benefit, a triggered catastrophic indicator is rejected.
func TestProperty_CatastropheAlwaysRejected(t *testing.T) {
	p := newPipeline(t)

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("catastrophic severity is rejected", prop.ForAll(
		func(benefit float64) bool {
			d, err := p.Evaluate(models.ActionRequest{
				ID:          "prop",
				Description: "Eliminate the opposition leadership",
				Attributes: models.Attributes{
					"user_intent": models.Cat("Strategic Elimination"),
					"benefit":     models.Num(benefit),
				},
			})
			return err == nil && d.Verdict == models.VerdictRejected
		},
		gen.Float64Range(0, 10),
	))

	properties.TestingRun(t)
}

// pipelineWithGate rebuilds the test pipeline with a different threshold and
// configured low; weights and indicators are unchanged.
func pipelineWithGate(threshold, low float64) (*Pipeline, error) {
	cfg := strings.NewReplacer(
		"threshold: 0.5", "threshold: "+strconv.FormatFloat(threshold, 'g', -1, 64),
		"configured_low: -5.0", "configured_low: "+strconv.FormatFloat(low, 'g', -1, 64),
	).Replace(testConfig)
	snap, err := config.Parse([]byte(cfg), "test")
	if err != nil {
		return nil, err
	}
	return New(snap)
}

// Raising the threshold, with low and weights fixed, never moves a verdict
// toward approval.
func TestProperty_ThresholdMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("higher threshold never ranks higher", prop.ForAll(
		func(idx int, benefit, t1, gap float64) bool {
			p1, err1 := pipelineWithGate(t1, -5)
			p2, err2 := pipelineWithGate(t1+gap, -5)
			if err1 != nil || err2 != nil {
				return false
			}
			req := models.ActionRequest{
				ID:          "prop",
				Description: descriptions[idx],
				Attributes:  models.Attributes{"benefit": models.Num(benefit)},
			}
			d1, err1 := p1.Evaluate(req)
			d2, err2 := p2.Evaluate(req)
			if err1 != nil || err2 != nil {
				return false
			}
			return d1.Evaluation.AlignmentValue == d2.Evaluation.AlignmentValue &&
				verdictRank[d2.Verdict] <= verdictRank[d1.Verdict]
		},
		gen.IntRange(0, len(descriptions)-1),
		gen.Float64Range(0, 10),
		gen.Float64Range(-4.5, 8),
		gen.Float64Range(0.01, 5),
	))

	properties.TestingRun(t)
}
