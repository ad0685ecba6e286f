package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ethosgate/ethosgate/internal/models"
)

// Result of one request in a batch; exactly one of Decision or Err is meaningful
type Result struct {
	Request  models.ActionRequest
	Decision models.Decision
	Config   string
	Err      error
}

// Source hands out the pipeline for the next request. A host that refreshes
// its configuration returns a new pipeline once the old snapshot expires.
type Source interface {
	Pipeline() (*Pipeline, error)
}

// Pipeline makes a fixed pipeline its own Source
func (p *Pipeline) Pipeline() (*Pipeline, error) { return p, nil }

// EvaluateBatch evaluates independent requests concurrently. Results keep
// input order. Per-request input errors are reported in Result.Err; only
// context cancellation aborts the batch.
func (p *Pipeline) EvaluateBatch(ctx context.Context, reqs []models.ActionRequest, parallelism int) ([]Result, error) {
	return EvaluateBatchFrom(ctx, p, reqs, parallelism)
}

// EvaluateBatchFrom is EvaluateBatch with the pipeline fetched from src for
// every request. A Source error is reported for that request only.
func EvaluateBatchFrom(ctx context.Context, src Source, reqs []models.ActionRequest, parallelism int) ([]Result, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, req := range reqs {
		results[i].Request = req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := src.Pipeline()
			if err != nil {
				results[i].Err = err
				return nil
			}
			d, err := p.EvaluateContext(gctx, req)
			results[i].Decision = d
			results[i].Config = p.snapshot.Name()
			results[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// a cancelled parent may have stopped scheduling before any goroutine saw it
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
