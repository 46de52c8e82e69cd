package repository

import (
	"context"
	"time"

	"docstream/internal/domain/model"
)

// ProcessingJobRepository is the durable job record store.
type ProcessingJobRepository interface {
	// Create inserts a pending job for a document and returns it.
	Create(ctx context.Context, tx Tx, documentID string, jobType model.JobType) (*model.ProcessingJob, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.ProcessingJob, error)
	FindByDocument(ctx context.Context, tx Tx, documentID string) ([]*model.ProcessingJob, error)
	Save(ctx context.Context, tx Tx, job *model.ProcessingJob) error
	// FetchAndMarkProcessing claims the oldest runnable pending job, marks it
	// processing and returns it. domain.ErrNotFound when the queue is empty.
	FetchAndMarkProcessing(ctx context.Context) (*model.ProcessingJob, error)
	// Requeue puts a job back to pending after a transient failure, bumping
	// Attempts, recording an informational error message and holding the job
	// out of the queue for the given delay.
	Requeue(ctx context.Context, jobID string, message string, delay time.Duration) error
}
