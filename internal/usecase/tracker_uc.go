package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/metrics"
)

// JobTracker owns every status/progress mutation of a processing job and
// echoes each persisted update as an event. All operations degrade to a log
// line when the job id no longer resolves: retention may remove job records
// out-of-band and a late progress update must not crash a stage.
type JobTracker struct {
	jobs repository.ProcessingJobRepository
	docs repository.DocumentRepository
	bus  adapter.EventPublisher
	log  *zerolog.Logger
	now  func() time.Time
}

func NewJobTracker(
	jobs repository.ProcessingJobRepository,
	docs repository.DocumentRepository,
	bus adapter.EventPublisher,
	log *zerolog.Logger,
) *JobTracker {
	return &JobTracker{jobs: jobs, docs: docs, bus: bus, log: log, now: time.Now}
}

func (t *JobTracker) load(ctx context.Context, jobID string) *model.ProcessingJob {
	job, err := t.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		t.log.Warn().Err(err).Str("job_id", jobID).Msg("job not found, skipping update")
		return nil
	}
	return job
}

// userID looks up the document owner for event filtering.
func (t *JobTracker) userID(ctx context.Context, documentID string) string {
	doc, err := t.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return ""
	}
	return doc.UserID
}

func (t *JobTracker) payload(ctx context.Context, job *model.ProcessingJob) map[string]any {
	return map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"job_type":    string(job.JobType),
		"status":      string(job.Status),
		"progress":    job.Progress,
		"user_id":     t.userID(ctx, job.DocumentID),
	}
}

// Start marks the job processing with progress 0, stamping started_at on the
// first transition only.
func (t *JobTracker) Start(ctx context.Context, jobID string) {
	job := t.load(ctx, jobID)
	if job == nil || job.Terminal() {
		return
	}
	job.Status = model.JobStatusProcessing
	job.Progress = 0
	if job.StartedAt == nil {
		now := t.now()
		job.StartedAt = &now
	}
	if err := t.jobs.Save(ctx, nil, job); err != nil {
		t.log.Error().Err(err).Str("job_id", jobID).Msg("failed to persist job start")
		return
	}
	t.bus.Publish(ctx, "job.started", t.payload(ctx, job))
}

// UpdateProgress clamps percent to [0,100] and keeps progress monotone while
// the job is processing. The optional status ("" to keep) follows the same
// started_at rule as Start.
func (t *JobTracker) UpdateProgress(ctx context.Context, jobID string, percent int, status model.JobStatus) {
	job := t.load(ctx, jobID)
	if job == nil || job.Terminal() {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	if job.Status == model.JobStatusProcessing && percent < job.Progress {
		percent = job.Progress
	}
	job.Progress = percent
	if status != "" {
		job.Status = status
	}
	if job.Status == model.JobStatusProcessing && job.StartedAt == nil {
		now := t.now()
		job.StartedAt = &now
	}
	if err := t.jobs.Save(ctx, nil, job); err != nil {
		t.log.Error().Err(err).Str("job_id", jobID).Msg("failed to persist job progress")
		return
	}
	t.bus.Publish(ctx, "job.progress", t.payload(ctx, job))
}

// Complete lands the job at exactly 100 with its result payload.
func (t *JobTracker) Complete(ctx context.Context, jobID string, result map[string]any) {
	job := t.load(ctx, jobID)
	if job == nil || job.Terminal() {
		return
	}
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	if job.CompletedAt == nil {
		now := t.now()
		job.CompletedAt = &now
	}
	if result != nil {
		job.ResultData = result
	}
	if err := t.jobs.Save(ctx, nil, job); err != nil {
		t.log.Error().Err(err).Str("job_id", jobID).Msg("failed to persist job completion")
		return
	}
	metrics.IncJob(string(job.JobType), string(job.Status))
	data := t.payload(ctx, job)
	data["result_data"] = result
	t.bus.Publish(ctx, "job.completed", data)
}

// Fail records the terminal failure with a human-readable message.
func (t *JobTracker) Fail(ctx context.Context, jobID string, message string) {
	job := t.load(ctx, jobID)
	if job == nil || job.Terminal() {
		return
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = message
	if job.CompletedAt == nil {
		now := t.now()
		job.CompletedAt = &now
	}
	if err := t.jobs.Save(ctx, nil, job); err != nil {
		t.log.Error().Err(err).Str("job_id", jobID).Msg("failed to persist job failure")
		return
	}
	metrics.IncJob(string(job.JobType), string(job.Status))
	data := t.payload(ctx, job)
	data["error_message"] = message
	t.bus.Publish(ctx, "job.failed", data)
}

// RecordRetry puts the job back in the queue after a transient failure,
// keeping an informational message on the record. Status and progress are
// left to the requeue; the next attempt starts the lifecycle over.
func (t *JobTracker) RecordRetry(ctx context.Context, jobID string, message string, delay time.Duration) {
	job := t.load(ctx, jobID)
	if job == nil || job.Terminal() {
		return
	}
	if err := t.jobs.Requeue(ctx, jobID, message, delay); err != nil {
		t.log.Error().Err(err).Str("job_id", jobID).Msg("failed to requeue job")
		return
	}
	metrics.IncJobRetry(string(job.JobType))
}
