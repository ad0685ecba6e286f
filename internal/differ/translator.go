package differ

import (
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/ethosgate/ethosgate/internal/models"
)

// SeverityLevel 0=info, 1=moderate, 2=critical
type SeverityLevel int

const (
	SeveritySafe SeverityLevel = iota
	SeverityModerate
	SeverityCritical
)

// Change is one human-readable difference between two decisions
type Change struct {
	Path     string        `json:"path"`
	Message  string        `json:"message"`
	Severity SeverityLevel `json:"-"`
	Level    string        `json:"severity"`
}

// Translate turns a decision patch into changes, one per distinct message.
// base and candidate supply the values the patch refers to.
func Translate(patch jsondiff.Patch, base, candidate models.Decision) []Change {
	if len(patch) == 0 {
		return nil
	}

	var changes []Change
	seen := make(map[string]bool)
	for _, op := range patch {
		c, ok := translateOperation(op, base, candidate)
		if !ok || seen[c.Message] {
			continue
		}
		seen[c.Message] = true
		c.Level = SeverityString(c.Severity)
		changes = append(changes, c)
	}
	return changes
}

func translateOperation(op jsondiff.Operation, base, candidate models.Decision) (Change, bool) {
	path := op.Path
	switch {
	case path == "/verdict":
		return Change{Path: path, Severity: SeverityCritical,
			Message: fmt.Sprintf("verdict changed from %s to %s", base.Verdict, candidate.Verdict)}, true
	case path == "/action":
		return Change{Path: path, Severity: SeverityModerate,
			Message: fmt.Sprintf("action changed to %q", candidate.Action)}, true
	case path == "/evaluation/alignment_value":
		return Change{Path: path, Severity: SeverityModerate,
			Message: fmt.Sprintf("alignment value moved from %s to %s",
				formatFloat(base.Evaluation.AlignmentValue), formatFloat(candidate.Evaluation.AlignmentValue))}, true
	case path == "/evaluation/stable":
		return Change{Path: path, Severity: SeverityModerate,
			Message: fmt.Sprintf("stability changed to %t", candidate.Evaluation.Stable)}, true
	case strings.HasPrefix(path, "/evaluation/"):
		name := strings.TrimSuffix(strings.TrimPrefix(path, "/evaluation/"), "_score")
		return Change{Path: path, Severity: SeveritySafe,
			Message: fmt.Sprintf("%s sub-score changed", name)}, true
	case strings.HasPrefix(path, "/estimate/triggered"):
		return Change{Path: "/estimate/triggered", Severity: SeverityModerate,
			Message: fmt.Sprintf("triggered indicators changed from [%s] to [%s]",
				strings.Join(base.Estimate.Triggered, ", "), strings.Join(candidate.Estimate.Triggered, ", "))}, true
	case path == "/estimate/severity":
		return Change{Path: path, Severity: SeverityModerate,
			Message: fmt.Sprintf("projected severity moved from %s to %s",
				formatFloat(base.Estimate.Severity), formatFloat(candidate.Estimate.Severity))}, true
	case strings.HasPrefix(path, "/estimate/"):
		return Change{Path: path, Severity: SeveritySafe,
			Message: "projection coverage changed"}, true
	case path == "/rationale":
		return Change{Path: path, Severity: SeveritySafe, Message: "rationale updated"}, true
	default:
		return Change{}, false
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
