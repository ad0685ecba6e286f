package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/pipeline"
	"github.com/ethosgate/ethosgate/internal/seal"
)

// OutputSchemaVersion of the JSON documents printed by evaluate and batch
const OutputSchemaVersion = "1.0"

const (
	formatText = "text"
	formatJSON = "json"
)

func validateFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("invalid format: %s (use text or json)", format)
	}
	return nil
}

// EvaluateOutput is the JSON document printed by evaluate
type EvaluateOutput struct {
	SchemaVersion string          `json:"schema_version"`
	Config        string          `json:"config"`
	Decision      models.Decision `json:"decision"`
	Seal          *seal.Seal      `json:"seal,omitempty"`
}

// BatchOutput is the JSON document printed by batch
type BatchOutput struct {
	SchemaVersion string       `json:"schema_version"`
	Config        string       `json:"config"`
	Summary       BatchSummary `json:"summary"`
	Results       []BatchItem  `json:"results"`
}

// BatchSummary counts verdicts
type BatchSummary struct {
	Approved    int `json:"approved"`
	Transformed int `json:"transformed"`
	Rejected    int `json:"rejected"`
	Errors      int `json:"errors"`
	Total       int `json:"total"`
}

// BatchItem is one request's outcome
type BatchItem struct {
	RequestID string           `json:"request_id"`
	Config    string           `json:"config,omitempty"`
	Decision  *models.Decision `json:"decision,omitempty"`
	Digest    string           `json:"digest,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func summarize(results []pipeline.Result) BatchSummary {
	var s BatchSummary
	for _, r := range results {
		s.Total++
		if r.Err != nil {
			s.Errors++
			continue
		}
		switch r.Decision.Verdict {
		case models.VerdictApproved:
			s.Approved++
		case models.VerdictTransformed:
			s.Transformed++
		case models.VerdictRejected:
			s.Rejected++
		}
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func verdictColor(v models.Verdict) string {
	switch v {
	case models.VerdictApproved:
		return colorGreen
	case models.VerdictTransformed:
		return colorYellow
	case models.VerdictRejected:
		return colorRed
	default:
		return colorReset
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// printDecision renders one decision for humans. digest may be empty.
func printDecision(w io.Writer, d models.Decision, digest string) {
	fmt.Fprintf(w, "%s[%s]%s %s\n", verdictColor(d.Verdict), d.Verdict, colorReset, d.RequestID)
	if d.Action != "" {
		fmt.Fprintf(w, "  Action:     %s\n", d.Action)
	}
	ev := d.Evaluation
	fmt.Fprintf(w, "  Alignment:  %s (knowledge %s, karma %s, kindness %s)\n",
		num(ev.AlignmentValue), num(ev.KnowledgeScore), num(ev.KarmaScore), num(ev.KindnessScore))
	est := d.Estimate
	fmt.Fprintf(w, "  Estimate:   severity %s, confidence %s (%d/%d indicators evaluable)\n",
		num(est.Severity), num(est.Confidence), est.Evaluated, est.Total)
	triggered := "-"
	if len(est.Triggered) > 0 {
		triggered = strings.Join(est.Triggered, ", ")
	}
	fmt.Fprintf(w, "  Triggered:  %s\n", triggered)
	if d.Rationale != "" {
		fmt.Fprintf(w, "  Rationale:  %s\n", d.Rationale)
	}
	if digest != "" {
		fmt.Fprintf(w, "  Seal:       %s\n", digest)
	}
}

func printBatchSummary(w io.Writer, s BatchSummary) {
	fmt.Fprintf(w, "\n%d requests: %s%d approved%s, %s%d transformed%s, %s%d rejected%s, %d errors\n",
		s.Total,
		colorGreen, s.Approved, colorReset,
		colorYellow, s.Transformed, colorReset,
		colorRed, s.Rejected, colorReset,
		s.Errors)
}
