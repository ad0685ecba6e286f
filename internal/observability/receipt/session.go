package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability"
)

// MaxErrorLength bounds error strings in receipts
const MaxErrorLength = 2048

// Session tracks one command invocation
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithConfig records the snapshot; for file sources the file hash is included
func WithConfig(name, source string) Option {
	return func(r *Receipt) {
		ref := &ConfigRef{Name: name, Source: source}
		if hash, err := computeSHA256(source); err == nil {
			ref.SHA256 = hash
		}
		r.Config = ref
	}
}

// WithDecision appends a decision summary; digest may be empty
func WithDecision(d models.Decision, digest string, attrs models.Attributes) Option {
	return func(r *Receipt) {
		r.Decisions = append(r.Decisions, SummarizeDecision(d, digest, attrs))
	}
}

// WithFailedRequest records a request that produced no decision
func WithFailedRequest(requestID string, err error) Option {
	return func(r *Receipt) {
		r.Decisions = append(r.Decisions, DecisionSummary{
			RequestID: requestID,
			Error:     truncateError(err.Error()),
		})
	}
}

// WithDrift option
func WithDrift(critical, moderate, info int, summary string) Option {
	return func(r *Receipt) {
		r.Drift = &DriftSummary{
			Critical: critical,
			Moderate: moderate,
			Info:     info,
			Summary:  summary,
		}
	}
}

// SummarizeDecision builds the audit view; sensitive attribute values are redacted
func SummarizeDecision(d models.Decision, digest string, attrs models.Attributes) DecisionSummary {
	s := DecisionSummary{
		RequestID:      d.RequestID,
		Verdict:        string(d.Verdict),
		AlignmentValue: d.Evaluation.AlignmentValue,
		Digest:         digest,
	}
	if len(d.Estimate.Triggered) > 0 {
		s.Triggered = append([]string(nil), d.Estimate.Triggered...)
	}
	if len(attrs) > 0 {
		plain := make(map[string]string, len(attrs))
		for k, v := range attrs {
			plain[k] = v.String()
		}
		s.Attributes = RedactAttributes(plain)
	}
	return s
}

// Finish writes the receipt if a writer is configured
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		return nil
	}

	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.UTC().Format(time.RFC3339Nano),
		TsEnd:         time.Now().UTC().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
		Result:        Result{Status: "success"},
	}
	if err != nil {
		r.Result = Result{Status: "fail", Error: truncateError(err.Error())}
	}

	for _, opt := range opts {
		opt(&r)
	}

	if werr := w.Write(r); werr != nil {
		return fmt.Errorf("receipt: %w", werr)
	}
	return nil
}

func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
