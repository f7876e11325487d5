package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/o3go/o3go/pkg/command"
)

func invokeAll(ctx context.Context, e *Engine, steps []step) error {
	for _, s := range steps {
		if _, err := e.Invoke(ctx, s.cmd, s.tokens); err != nil {
			return err
		}
	}
	return nil
}

// TestBatchRun tests that jobs run on separate engines and keep their order
func TestBatchRun(t *testing.T) {
	var jobs []Job
	for i := 1; i <= 6; i++ {
		n := i
		jobs = append(jobs, Job{
			Name: fmt.Sprintf("model-%d", n),
			Build: func(ctx context.Context, e *Engine) error {
				steps := []step{model2D()}
				for tag := 1; tag <= n; tag++ {
					steps = append(steps, step{cmd: "node", tokens: []command.Token{I(tag), F(float64(tag)), F(0)}})
				}
				if n == 4 {
					steps = append(steps, step{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}})
				}
				return invokeAll(ctx, e, steps)
			},
		})
	}

	results := NewBatch(3, WithSchemas(testSchemas())).Run(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.Name != jobs[i].Name {
			t.Errorf("result %d name = %s, want %s", i, r.Name, jobs[i].Name)
		}
		if got := r.Summary.Counts[command.CategoryNode]; got != i+1 {
			t.Errorf("%s: %d nodes, want %d", r.Name, got, i+1)
		}
	}

	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "model-4" || !command.IsEngineInvocation(failed[0].Err) {
		t.Errorf("failed = %+v", failed)
	}
}

// TestBatchParallelism tests that no more than maxParallel jobs run at once
func TestBatchParallelism(t *testing.T) {
	var running, peak atomic.Int32
	job := Job{Build: func(ctx context.Context, e *Engine) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}}

	NewBatch(2).Run(context.Background(), []Job{job, job, job, job, job})
	if p := peak.Load(); p > 2 || p == 0 {
		t.Errorf("peak concurrency = %d, want 1 or 2", p)
	}
}

// TestBatchCancelAndPanic tests cancelled contexts and panicking jobs
func TestBatchCancelAndPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewBatch(1).Run(ctx, []Job{{Name: "late", Build: func(context.Context, *Engine) error { return nil }}})
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", results[0].Err)
	}

	results = NewBatch(0).Run(context.Background(), []Job{{Name: "boom", Build: func(context.Context, *Engine) error { panic("bad script") }}})
	if results[0].Err == nil {
		t.Errorf("panic not reported")
	}

	if got := NewBatch(2).Run(context.Background(), nil); len(got) != 0 {
		t.Errorf("empty batch returned %d results", len(got))
	}
}

// TestJobResultUnused tests the unreferenced entity report
func TestJobResultUnused(t *testing.T) {
	results := NewBatch(1, WithSchemas(testSchemas())).Run(context.Background(), []Job{{
		Name: "truss",
		Build: func(ctx context.Context, e *Engine) error {
			return invokeAll(ctx, e, []step{
				model2D(),
				{cmd: "node", tokens: []command.Token{I(1), F(0), F(0)}},
				{cmd: "node", tokens: []command.Token{I(2), F(1), F(0)}},
				{cmd: "uniaxialMaterial", tokens: []command.Token{S("Elastic"), I(1), F(3000), F(0)}},
				{cmd: "uniaxialMaterial", tokens: []command.Token{S("Elastic"), I(2), F(3000), F(0)}},
				{cmd: "element", tokens: []command.Token{S("Truss"), I(1), I(1), I(2), F(1), I(1)}},
			})
		},
	}})

	if results[0].Err != nil {
		t.Fatalf("build failed: %v", results[0].Err)
	}
	unused := results[0].Unused()
	if len(unused) != 1 || unused[0] != (Key{Category: command.CategoryUniaxialMaterial, Tag: 2}) {
		t.Errorf("Unused() = %v", unused)
	}
	if (JobResult{}).Unused() != nil {
		t.Errorf("result without engine reported entities")
	}
}
