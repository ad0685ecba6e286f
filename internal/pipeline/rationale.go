package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethosgate/ethosgate/internal/models"
)

// fixed precision keeps rationales bit-identical across runs
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatTriggered(names []string) string {
	if len(names) == 0 {
		return "no risk indicator triggered"
	}
	return "triggered: " + strings.Join(names, ", ")
}

func transformRationale(eval models.EvaluationResult, est models.ConsequenceEstimate, threshold float64) string {
	shortfall := threshold - eval.AlignmentValue
	return fmt.Sprintf("alignment value %s is %s below threshold %s; %s (confidence %s)",
		formatValue(eval.AlignmentValue),
		formatValue(shortfall),
		formatValue(threshold),
		formatTriggered(est.Triggered),
		formatValue(est.Confidence))
}

// contributor is a named sub-score
type contributor struct {
	name  string
	score float64
}

// dominantNegative returns the most negative sub-score. Karma wins ties.
func dominantNegative(eval models.EvaluationResult) (contributor, bool) {
	candidates := []contributor{
		{"karma", eval.KarmaScore},
		{"knowledge", eval.KnowledgeScore},
		{"kindness", eval.KindnessScore},
	}
	best := contributor{}
	found := false
	for _, c := range candidates {
		if c.score < 0 && (!found || c.score < best.score) {
			best = c
			found = true
		}
	}
	return best, found
}

func rejectReason(eval models.EvaluationResult, est models.ConsequenceEstimate, low float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "alignment value %s is below configured low %s; ",
		formatValue(eval.AlignmentValue), formatValue(low))
	if c, ok := dominantNegative(eval); ok {
		fmt.Fprintf(&sb, "dominant negative contributor: %s (%s); ", c.name, formatValue(c.score))
	} else {
		sb.WriteString("no negative contributor; ")
	}
	sb.WriteString(formatTriggered(est.Triggered))
	return sb.String()
}
