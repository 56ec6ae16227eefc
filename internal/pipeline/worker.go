package pipeline

import (
	"context"
	"log/slog"
)

// Worker runs one job through extract, generate and publish.
type Worker struct {
	svc *Service
	log *slog.Logger
}

func NewWorker(svc *Service, log *slog.Logger) *Worker {
	return &Worker{svc: svc, log: log}
}

// Process runs the full pipeline for a job. Failures are recorded on the
// job; provider error details only go to the log.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID, "filename", job.Filename)

	job.SetStatus(StatusExtracting, "extracting")
	text, err := w.svc.Extract(ctx, job.Input())
	if err != nil {
		log.Error("text recognition failed", "error", err)
		job.Fail("extracting", "text recognition failed")
		return
	}

	job.SetStatus(StatusGenerating, "generating")
	out := w.svc.Generate(ctx, text, job.Options)
	if out.IsFailed() {
		log.Warn("outline generation fell back")
	}

	job.SetStatus(StatusPublishing, "publishing")
	rec, err := w.svc.Publish(ctx, job.UserID, out, job.Options)
	if err != nil {
		log.Error("publish failed", "error", err)
		job.Fail("publishing", "map upload failed")
		return
	}

	job.Complete(rec.ID, rec.URL, rec.Title, out.IsFailed())
	log.Info("job completed", "map_id", rec.ID.String(), "title", rec.Title)
}
