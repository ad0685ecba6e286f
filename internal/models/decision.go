package models

// ConsequenceEstimate projected harm for one request
type ConsequenceEstimate struct {
	Severity   float64  `json:"severity"`
	Confidence float64  `json:"confidence"`
	Triggered  []string `json:"triggered"`
	Evaluated  int      `json:"evaluated"`
	Total      int      `json:"total"`
}

// EvaluationResult scalar alignment value plus its parts
type EvaluationResult struct {
	AlignmentValue float64 `json:"alignment_value"`
	KnowledgeScore float64 `json:"knowledge_score"`
	KarmaScore     float64 `json:"karma_score"`
	KindnessScore  float64 `json:"kindness_score"`
	Stable         bool    `json:"stable"`
}

// Verdict of the gate
type Verdict string

const (
	VerdictApproved    Verdict = "APPROVED"
	VerdictTransformed Verdict = "TRANSFORMED"
	VerdictRejected    Verdict = "REJECTED"
)

// Decision is the terminal output of one pipeline run.
//
// Action holds the original description for APPROVED, the substitute action
// for TRANSFORMED and is empty for REJECTED.
type Decision struct {
	RequestID  string              `json:"request_id"`
	Verdict    Verdict             `json:"verdict"`
	Action     string              `json:"action,omitempty"`
	Rationale  string              `json:"rationale,omitempty"`
	Evaluation EvaluationResult    `json:"evaluation"`
	Estimate   ConsequenceEstimate `json:"estimate"`
}

// Approved decision carrying the original action
func Approved(req ActionRequest, eval EvaluationResult, est ConsequenceEstimate) Decision {
	return Decision{
		RequestID:  req.ID,
		Verdict:    VerdictApproved,
		Action:     req.Description,
		Evaluation: eval,
		Estimate:   cloneEstimate(est),
	}
}

// Transformed decision carrying a substitute action and rationale
func Transformed(req ActionRequest, substitute, rationale string, eval EvaluationResult, est ConsequenceEstimate) Decision {
	return Decision{
		RequestID:  req.ID,
		Verdict:    VerdictTransformed,
		Action:     substitute,
		Rationale:  rationale,
		Evaluation: eval,
		Estimate:   cloneEstimate(est),
	}
}

// Rejected decision carrying a reason
func Rejected(req ActionRequest, reason string, eval EvaluationResult, est ConsequenceEstimate) Decision {
	return Decision{
		RequestID:  req.ID,
		Verdict:    VerdictRejected,
		Rationale:  reason,
		Evaluation: eval,
		Estimate:   cloneEstimate(est),
	}
}

func cloneEstimate(est ConsequenceEstimate) ConsequenceEstimate {
	out := est
	out.Triggered = append([]string{}, est.Triggered...)
	return out
}
