package thumbnail

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-figure/engine/loader"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"
)

// Job is one thumbnail request in a batch.
type Job struct {
	// Name identifies the job in results and logs, usually the output file stem.
	Name   string
	Source loader.Source
	Colors map[string]string
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Job    Job
	Result Result
	Err    error
}

func (t *thumbnailer) RenderBatch(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	pool := worker.NewDynamicWorkerPool(min(t.workers, len(jobs)), len(jobs), time.Second)

	// pool.Wait only returns once workers idle out, so completion is tracked here
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				res, err := t.Render(ctx, job.Source, job.Colors)
				results[i] = JobResult{Job: job, Result: res, Err: err}
				return nil, err
			},
		})
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	t.logger.Info("thumbnail batch done", zap.Int("jobs", len(jobs)), zap.Int("failed", failed))
	return results
}
