package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// Executor runs one claimed job to a terminal status.
type Executor interface {
	Run(ctx context.Context, jobID string) error
}

// QueueDispatcher enqueues follow-up jobs through the row store; the polling
// worker picks them up on its next pass.
type QueueDispatcher struct {
	Store Store
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, userID, fileID string, kind constants.JobKind, meta map[string]any) (string, error) {
	return d.Store.EnqueueJob(ctx, userID, fileID, kind, meta)
}

// Worker polls the jobs table and fans queued jobs out to a bounded set of
// goroutines. Each job kind routes to its executor; a panic or unexpected
// error inside an executor fails that job without taking the worker down.
type Worker struct {
	Store        Store
	Extract      Executor
	Anomaly      Executor
	Housekeeping Executor

	Concurrency  int
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Run polls until the context is cancelled. It returns after in-flight jobs
// finish.
func (w *Worker) Run(ctx context.Context) error {
	concurrency := w.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	interval := w.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	log := w.logger()
	log.Info("worker.start", "concurrency", concurrency, "poll_interval", interval.String())

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jobs, err := w.Store.NextQueuedJobs(ctx, concurrency)
		if err != nil {
			log.Error("worker.poll.failed", "error", err)
		}
		for _, job := range jobs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			}
			wg.Add(1)
			go func(job repository.Job) {
				defer wg.Done()
				defer func() { <-sem }()
				w.runOne(ctx, job)
			}(job)
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info("worker.stop")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runOne executes a single job, converting panics and executor errors into a
// failed terminal status so the row never sticks in running.
func (w *Worker) runOne(ctx context.Context, job repository.Job) {
	log := w.logger().With("job_id", job.ID, "kind", job.Kind)
	// Terminal writes must land even when the worker context is already
	// cancelled, or interrupted jobs stick in running.
	failCtx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker.job.panic", "panic", fmt.Sprintf("%v", r))
			if err := w.Store.FailJob(failCtx, job.ID, "Internal worker error"); err != nil {
				log.Error("worker.job.fail_mark_failed", "error", err)
			}
		}
	}()

	exec := w.executorFor(job.Kind)
	if exec == nil {
		log.Error("worker.job.unroutable")
		if err := w.Store.FailJob(failCtx, job.ID, fmt.Sprintf("No executor for job kind %q", job.Kind)); err != nil {
			log.Error("worker.job.fail_mark_failed", "error", err)
		}
		return
	}
	if err := exec.Run(ctx, job.ID); err != nil {
		log.Error("worker.job.failed", "error", err)
		if ferr := w.Store.FailJob(failCtx, job.ID, "Job failed: "+err.Error()); ferr != nil {
			log.Error("worker.job.fail_mark_failed", "error", ferr)
		}
	}
}

func (w *Worker) executorFor(kind constants.JobKind) Executor {
	switch kind {
	case constants.JobExtract:
		return w.Extract
	case constants.JobDetectAnomalies:
		return w.Anomaly
	case constants.JobDossier, constants.JobExportAll, constants.JobDeleteAll, constants.JobHRPack:
		return w.Housekeeping
	}
	return nil
}
