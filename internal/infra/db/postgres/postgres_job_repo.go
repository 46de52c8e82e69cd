package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/repository"
)

var _ repository.ProcessingJobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool       *pgxpool.Pool
	tm         repository.TransactionManager
	maxRetries int
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager, maxRetries int) *jobRepo {
	return &jobRepo{pool: pool, tm: tm, maxRetries: maxRetries}
}

const jobColumns = `id, document_id, job_type, status, progress, error_message,
external_task_id, attempts, result_data, created_at, started_at, completed_at, updated_at`

func scanJob(row pgx.Row) (*model.ProcessingJob, error) {
	var j model.ProcessingJob
	var jobType, status string
	var errMsg, extTaskID *string
	var resultData []byte
	err := row.Scan(
		&j.ID, &j.DocumentID, &jobType, &status, &j.Progress, &errMsg,
		&extTaskID, &j.Attempts, &resultData, &j.CreatedAt, &j.StartedAt,
		&j.CompletedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, translateScan(err)
	}
	j.JobType = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if extTaskID != nil {
		j.ExternalTaskID = *extTaskID
	}
	if len(resultData) > 0 {
		_ = json.Unmarshal(resultData, &j.ResultData)
	}
	return &j, nil
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, documentID string, jobType model.JobType) (*model.ProcessingJob, error) {
	now := time.Now()
	job := &model.ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		JobType:    jobType,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const q = `
INSERT INTO processing_jobs (id, document_id, job_type, status, progress, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, $5, $5);`
	if _, err := execSQL(ctx, r.pool, tx, q, job.ID, job.DocumentID, job.JobType, job.Status, now); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.ProcessingJob, error) {
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM processing_jobs WHERE document_id = $1 ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	job.UpdatedAt = time.Now()
	var resultData []byte
	if job.ResultData != nil {
		b, err := json.Marshal(job.ResultData)
		if err != nil {
			return err
		}
		resultData = b
	}
	const q = `
UPDATE processing_jobs SET
  status = $2,
  progress = $3,
  error_message = NULLIF($4, ''),
  external_task_id = COALESCE(external_task_id, NULLIF($5, '')),
  attempts = $6,
  result_data = COALESCE($7, result_data),
  started_at = COALESCE(started_at, $8),
  completed_at = COALESCE(completed_at, $9),
  updated_at = $10
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Status, job.Progress, job.ErrorMessage, job.ExternalTaskID,
		job.Attempts, resultData, job.StartedAt, job.CompletedAt, job.UpdatedAt)
	return err
}

func (r *jobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.ProcessingJob, error) {
	var job *model.ProcessingJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + jobColumns + `
FROM processing_jobs
WHERE status = 'pending'
  AND (next_attempt_at IS NULL OR next_attempt_at <= now())
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}

		// Mark the job processing so no other worker picks it up.
		fetched.Status = model.JobStatusProcessing
		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}
		job = fetched
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) Requeue(ctx context.Context, jobID string, message string, delay time.Duration) error {
	const q = `
UPDATE processing_jobs SET
  status = 'pending',
  attempts = attempts + 1,
  error_message = $2,
  next_attempt_at = now() + make_interval(secs => $3),
  updated_at = now()
WHERE id = $1 AND status = 'processing';`
	_, err := execSQL(ctx, r.pool, nil, q, jobID, message, delay.Seconds())
	return err
}
