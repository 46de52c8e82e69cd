package worker

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
)

var _ adapter.JobDispatcher = (*QueueDispatcher)(nil)

// QueueDispatcher is the dispatcher for the polling runtime: a created job
// already sits in the table as pending, so dispatch mints the task handle
// and logs the handoff.
type QueueDispatcher struct {
	log *zerolog.Logger
}

func NewQueueDispatcher(log *zerolog.Logger) *QueueDispatcher {
	return &QueueDispatcher{log: log}
}

func (d *QueueDispatcher) Dispatch(_ context.Context, job *model.ProcessingJob) (string, error) {
	taskID := ulid.Make().String()
	d.log.Debug().Str("job_id", job.ID).Str("job_type", string(job.JobType)).
		Str("task_id", taskID).Msg("job queued for processing")
	return taskID, nil
}
