package adapter

import (
	"context"

	"docstream/internal/domain/model"
)

// JobDispatcher hands a freshly created pending job to the execution runtime
// and returns the runtime's opaque task handle, recorded on the job as its
// external task id. The default runtime claims pending jobs from the job
// table itself, so its dispatcher only mints the handle; the port exists so
// chained dispatch stays an explicit collaborator rather than a hidden
// import.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *model.ProcessingJob) (taskID string, err error)
}
