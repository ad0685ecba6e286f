package projector

import (
	"regexp"
	"strings"

	"github.com/ethosgate/ethosgate/internal/models"
)

// outcome of a single indicator check
type outcome int

const (
	notEvaluable outcome = iota
	quiet
	triggered
)

// Projector evaluates the registry against requests
type Projector struct {
	registry *Registry
}

// New projector over a compiled registry
func New(registry *Registry) *Projector {
	return &Projector{registry: registry}
}

// Project computes the consequence estimate for req.
//
// Severity is the worst triggered indicator, never an aggregate. Confidence is
// the share of indicators that had enough attribute data to be evaluated.
func (p *Projector) Project(req models.ActionRequest) (models.ConsequenceEstimate, error) {
	if strings.TrimSpace(req.Description) == "" {
		return models.ConsequenceEstimate{}, models.Inputf(req.ID, "description", "must not be empty")
	}

	total := p.registry.Len()
	est := models.ConsequenceEstimate{
		Triggered: []string{},
		Total:     total,
	}
	if total == 0 {
		est.Confidence = 1.0
		return est, nil
	}

	input := req.ToMap()

	for _, ind := range p.registry.indicators {
		switch check(ind, req.Attributes, req.Description, input) {
		case triggered:
			est.Evaluated++
			est.Triggered = append(est.Triggered, ind.Name)
			if ind.Severity > est.Severity {
				est.Severity = ind.Severity
			}
		case quiet:
			est.Evaluated++
		}
	}

	if len(est.Triggered) == 0 {
		est.Severity = 0
		est.Confidence = 1.0
		return est, nil
	}

	est.Confidence = float64(est.Evaluated) / float64(total)
	return est, nil
}

func check(ind Indicator, attrs models.Attributes, description string, input map[string]interface{}) outcome {
	for _, key := range ind.Requires {
		if _, ok := attrs[key]; !ok {
			return notEvaluable
		}
	}

	if len(ind.patterns) > 0 && !matchesKeyword(description, ind.patterns) {
		return quiet
	}

	if ind.program == nil {
		return triggered
	}

	out, _, err := ind.program.Eval(map[string]interface{}{
		"input": input,
	})
	if err != nil {
		// missing keys and type mismatches both mean the data was not there
		return notEvaluable
	}
	passed, ok := out.Value().(bool)
	if !ok {
		return notEvaluable
	}
	if passed {
		return triggered
	}
	return quiet
}

func matchesKeyword(description string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}
