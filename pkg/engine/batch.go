package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/o3go/o3go/pkg/command"
)

// Job builds one model against a fresh engine.
type Job struct {
	// Name identifies the job in results, e.g. the script path.
	Name string

	// Build drives the engine, typically through a session whose backend
	// invokes it.
	Build func(ctx context.Context, e *Engine) error
}

// JobResult is the outcome of one job.
type JobResult struct {
	Name     string
	Engine   *Engine
	Summary  Summary
	Err      error
	Duration time.Duration
}

// Batch checks many models concurrently, each on its own engine.
type Batch struct {
	// maxParallel is the maximum number of concurrent workers
	maxParallel int

	// opts configure every engine the batch creates
	opts []Option
}

// NewBatch creates a batch runner. maxParallel <= 0 defaults to 4 workers.
func NewBatch(maxParallel int, opts ...Option) *Batch {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Batch{maxParallel: maxParallel, opts: opts}
}

// Run executes the jobs and returns their results in job order. Jobs not
// started before ctx is done report the context error.
func (b *Batch) Run(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workerCount := b.maxParallel
	if len(jobs) < workerCount {
		workerCount = len(jobs)
	}

	workQueue := make(chan int, len(jobs))
	for i := range jobs {
		workQueue <- i
	}
	close(workQueue)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workQueue {
				// each index is written by exactly one worker
				results[i] = b.runJob(ctx, jobs[i])
			}
		}()
	}
	wg.Wait()

	return results
}

func (b *Batch) runJob(ctx context.Context, job Job) (res JobResult) {
	res.Name = job.Name
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	eng := New(b.opts...)
	res.Engine = eng
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		res.Summary = eng.Summary()
		res.Duration = time.Since(start)
	}()

	res.Err = job.Build(ctx, eng)
	return res
}

// Failed returns the results that ended in an error.
func Failed(results []JobResult) []JobResult {
	var out []JobResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Unused lists entities nothing references in the categories where that
// usually means a modelling slip.
func (r JobResult) Unused() []Key {
	if r.Engine == nil {
		return nil
	}
	return r.Engine.Graph().Unreferenced(
		command.CategoryUniaxialMaterial,
		command.CategoryNDMaterial,
		command.CategorySection,
		command.CategoryTimeSeries,
		command.CategoryGeomTransf,
	)
}
