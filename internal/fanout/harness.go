// Package fanout runs identical dispatch requests concurrently, each as its
// own isolated job: one job's failure never affects another's outcome, and
// jobs complete in whatever order their GPU planning and chat streams land.
package fanout

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/leoho0722/gpu-delegater/internal/inference/chat"
	"github.com/leoho0722/gpu-delegater/internal/inference/orchestrator"
)

// Runner is the boundary the harness drives each job through; satisfied by
// *orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (<-chan chat.Chunk, error)
}

// Job is one fan-out unit of work: a job ID plus the chunk channel or error
// that resulted from running it.
type Job struct {
	ID     string
	Chunks <-chan chat.Chunk
	Err    error
}

// Harness launches N identical requests against a Runner concurrently.
type Harness struct {
	runner Runner
	logger klog.Logger
}

// New builds a Harness around the given Runner.
func New(runner Runner) *Harness {
	return &Harness{runner: runner, logger: klog.NewKlogr().WithName("fanout")}
}

// Run launches n copies of req concurrently and returns one Job per copy, in
// the order they were launched. Each job carries its own ID and outcome;
// one job failing does not cancel or affect the others.
func (h *Harness) Run(ctx context.Context, req orchestrator.Request, n int) []Job {
	jobs := make([]Job, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		jobs[i].ID = uuid.New().String()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := jobs[i].ID
			chunks, err := h.runner.Run(ctx, req)
			if err != nil {
				h.logger.Info("fan-out job failed", "job_id", id, "error", err.Error())
				jobs[i].Err = err
				return
			}
			jobs[i].Chunks = chunks
		}(i)
	}

	wg.Wait()
	return jobs
}
