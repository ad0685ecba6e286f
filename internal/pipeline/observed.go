package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/observability/otel"
)

// EvaluateContext wraps Evaluate with a span and a decision event.
// The context and the snapshot's validity window are only checked before
// evaluation starts.
func (p *Pipeline) EvaluateContext(ctx context.Context, req models.ActionRequest) (models.Decision, error) {
	if err := ctx.Err(); err != nil {
		return models.Decision{}, err
	}
	if p.snapshot.Expired(p.clock()) {
		return models.Decision{}, fmt.Errorf("configuration %s (valid until %s): %w",
			p.snapshot.Name(), p.snapshot.ValidUntil().Format(time.RFC3339), config.ErrSnapshotExpired)
	}

	ctx, span := otel.StartSpan(ctx, "ethosgate.evaluate",
		attribute.String("ethosgate.request_id", req.ID),
		attribute.String("ethosgate.config", p.snapshot.Name()),
	)
	defer span.End()

	start := time.Now()
	d, err := p.Evaluate(req)
	elapsed := time.Since(start)

	log := logging.From(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		kind := "internal"
		if errors.Is(err, models.ErrInput) {
			kind = "input"
		}
		log.Event(ctx, "evaluate.error", map[string]any{
			"request_id": req.ID,
			"error":      err.Error(),
			"kind":       kind,
		})
		return models.Decision{}, err
	}

	span.SetAttributes(
		attribute.String("ethosgate.verdict", string(d.Verdict)),
		attribute.Float64("ethosgate.alignment_value", d.Evaluation.AlignmentValue),
		attribute.Float64("ethosgate.severity", d.Estimate.Severity),
		attribute.Float64("ethosgate.confidence", d.Estimate.Confidence),
		attribute.StringSlice("ethosgate.triggered", d.Estimate.Triggered),
	)
	span.SetStatus(codes.Ok, "")

	log.Event(ctx, "decision", map[string]any{
		"request_id":      d.RequestID,
		"verdict":         string(d.Verdict),
		"alignment_value": d.Evaluation.AlignmentValue,
		"triggered":       d.Estimate.Triggered,
		"config":          p.snapshot.Name(),
		"duration_ms":     elapsed.Milliseconds(),
	})
	return d, nil
}
