// Package differ evaluates requests under two configuration snapshots and
// reports how the decisions drift.
package differ

import (
	"context"
	"fmt"

	"github.com/wI2L/jsondiff"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/pipeline"
)

// DiffType of one request
type DiffType string

const (
	DiffTypeChanged  DiffType = "changed"
	DiffTypeNoChange DiffType = "no_change"
	DiffTypeError    DiffType = "error"
)

// RequestDiff compares one request's decisions
type RequestDiff struct {
	RequestID    string           `json:"request_id"`
	DiffType     DiffType         `json:"diff_type"`
	Base         *models.Decision `json:"base,omitempty"`
	Candidate    *models.Decision `json:"candidate,omitempty"`
	BaseError    string           `json:"base_error,omitempty"`
	CandError    string           `json:"candidate_error,omitempty"`
	Patch        jsondiff.Patch   `json:"patch,omitempty"`
	Translations []Change         `json:"changes,omitempty"`
}

// Result over a request set
type Result struct {
	BaseConfig      string        `json:"base_config"`
	CandidateConfig string        `json:"candidate_config"`
	HasChanges      bool          `json:"has_changes"`
	Requests        []RequestDiff `json:"requests"`
}

// Counts by severity
func (r *Result) Counts() (critical, moderate, info int) {
	for _, rd := range r.Requests {
		for _, c := range rd.Translations {
			switch c.Severity {
			case SeverityCritical:
				critical++
			case SeverityModerate:
				moderate++
			default:
				info++
			}
		}
	}
	return critical, moderate, info
}

// Engine compares two pipelines
type Engine struct {
	base      *pipeline.Pipeline
	candidate *pipeline.Pipeline
}

func NewEngine(base, candidate *pipeline.Pipeline) *Engine {
	return &Engine{base: base, candidate: candidate}
}

// Compare evaluates every request under both pipelines
func (e *Engine) Compare(ctx context.Context, reqs []models.ActionRequest) (*Result, error) {
	result := &Result{
		BaseConfig:      e.base.Snapshot().Name(),
		CandidateConfig: e.candidate.Snapshot().Name(),
		Requests:        make([]RequestDiff, 0, len(reqs)),
	}

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rd, err := e.compareOne(ctx, req)
		if err != nil {
			return nil, err
		}
		if rd.DiffType != DiffTypeNoChange {
			result.HasChanges = true
		}
		result.Requests = append(result.Requests, rd)
	}
	return result, nil
}

func (e *Engine) compareOne(ctx context.Context, req models.ActionRequest) (RequestDiff, error) {
	rd := RequestDiff{RequestID: req.ID}

	bd, berr := e.base.EvaluateContext(ctx, req)
	cd, cerr := e.candidate.EvaluateContext(ctx, req)
	if berr != nil || cerr != nil {
		if berr != nil {
			rd.BaseError = berr.Error()
		} else {
			rd.Base = &bd
		}
		if cerr != nil {
			rd.CandError = cerr.Error()
		} else {
			rd.Candidate = &cd
		}
		// both sides rejecting the input the same way is not drift
		if berr != nil && cerr != nil && rd.BaseError == rd.CandError {
			rd.DiffType = DiffTypeNoChange
			return rd, nil
		}
		msg := "request is evaluable under only one configuration"
		if berr != nil && cerr != nil {
			msg = "request fails differently under the two configurations"
		}
		rd.DiffType = DiffTypeError
		rd.Translations = []Change{{
			Path:     "/",
			Message:  msg,
			Severity: SeverityCritical,
			Level:    SeverityString(SeverityCritical),
		}}
		return rd, nil
	}

	rd.Base, rd.Candidate = &bd, &cd
	patch, err := jsondiff.Compare(bd, cd)
	if err != nil {
		return rd, fmt.Errorf("diff decisions for %s: %w", req.ID, err)
	}
	if len(patch) == 0 {
		rd.DiffType = DiffTypeNoChange
		return rd, nil
	}

	rd.DiffType = DiffTypeChanged
	rd.Patch = patch
	rd.Translations = Translate(patch, bd, cd)
	return rd, nil
}
