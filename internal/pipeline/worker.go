package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/docrank/internal/logger"
)

// Worker processes queued analysis jobs.
type Worker struct {
	runner *Runner
	log    *slog.Logger
}

func NewWorker(runner *Runner, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{runner: runner, log: log}
}

// Process runs the job to completion and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	ctx = logger.WithRunID(ctx, job.ID)
	w.log.InfoContext(ctx, "run started", "documents", len(job.Inputs()))

	rep, err := w.runner.RunObserved(ctx, job.Config(), job.Inputs(), job)
	if err != nil {
		phase := job.Snapshot().Phase
		switch {
		case errors.Is(err, ErrEmbeddingTimeout):
			w.log.ErrorContext(ctx, "run timed out", "phase", phase, "error", err)
		case errors.Is(err, context.Canceled):
			w.log.WarnContext(ctx, "run cancelled", "phase", phase)
		default:
			w.log.ErrorContext(ctx, "run failed", "phase", phase, "error", err)
		}
		job.Fail(phase, err)
		return
	}

	job.Finish(rep)
	w.log.InfoContext(ctx, "run finished", "status", job.Snapshot().Status, "ranked", len(rep.ExtractedSections))
}
