package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/layerforge/internal/model"
)

// Composer turns a fixed draw into an artifact
type Composer interface {
	Compose(ctx context.Context, draw model.DrawResult) (*model.Artifact, error)
}

// Sink receives finished artifacts, each in its own slot
type Sink interface {
	Put(a *model.Artifact) error
}

// ComposeJob composites one draw and stores the artifact
type ComposeJob struct {
	Draw     model.DrawResult
	Composer Composer
	Sink     Sink
}

// Execute runs the job
func (j *ComposeJob) Execute(ctx context.Context) Result {
	artifact, err := j.Composer.Compose(ctx, j.Draw)
	if err == nil {
		err = j.Sink.Put(artifact)
	}
	return &ComposeResult{Number: j.Draw.Number, Artifact: artifact, Error: err}
}

// ComposeResult is the outcome of a ComposeJob
type ComposeResult struct {
	Number   int
	Artifact *model.Artifact
	Error    error
}

// GetError returns the job error
func (r *ComposeResult) GetError() error {
	return r.Error
}

// ComposeBatch composites already-drawn combinations concurrently
type ComposeBatch struct {
	composer    Composer
	concurrency int
}

// NewComposeBatch creates a batch compositor
func NewComposeBatch(composer Composer, concurrency int) *ComposeBatch {
	return &ComposeBatch{
		composer:    composer,
		concurrency: concurrency,
	}
}

// Process composites every draw into sink. Remaining jobs are canceled once
// any job fails; the reported error is the lowest-numbered failure that is not
// itself a cancellation.
func (b *ComposeBatch) Process(ctx context.Context, draws []model.DrawResult, sink Sink) ([]*ComposeResult, error) {
	if len(draws) == 0 {
		return []*ComposeResult{}, nil
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := NewResultCollector()
	pool := NewPool(batchCtx, b.concurrency)
	jobs := make([]Job, len(draws))
	for i, d := range draws {
		jobs[i] = &failFastJob{
			inner:    &ComposeJob{Draw: d, Composer: b.composer, Sink: sink},
			cancel:   cancel,
			failures: failures,
		}
	}

	results := pool.Run(jobs)

	composed := make([]*ComposeResult, 0, len(results))
	for _, result := range results {
		composed = append(composed, result.(*ComposeResult))
	}
	sort.Slice(composed, func(i, j int) bool {
		return composed[i].Number < composed[j].Number
	})

	// Failed results can be dropped by the pool once the batch is canceled
	if err := firstFailure(failures.Results()); err != nil {
		return composed, err
	}
	if err := ctx.Err(); err != nil {
		return composed, err
	}
	if len(composed) != len(draws) {
		return composed, fmt.Errorf("composed %d of %d artifacts", len(composed), len(draws))
	}

	return composed, nil
}

func firstFailure(failures []Result) error {
	var first, firstCanceled *ComposeResult
	for _, f := range failures {
		r := f.(*ComposeResult)
		if errors.Is(r.Error, context.Canceled) {
			if firstCanceled == nil || r.Number < firstCanceled.Number {
				firstCanceled = r
			}
			continue
		}
		if first == nil || r.Number < first.Number {
			first = r
		}
	}
	if first == nil {
		first = firstCanceled
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("artifact %d: %w", first.Number, first.Error)
}

// failFastJob records a failure and cancels the batch
type failFastJob struct {
	inner    Job
	cancel   context.CancelFunc
	failures *ResultCollector
}

func (j *failFastJob) Execute(ctx context.Context) Result {
	result := j.inner.Execute(ctx)
	if result.GetError() != nil {
		j.failures.Add(result)
		j.cancel()
	}
	return result
}
