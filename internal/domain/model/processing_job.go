package model

import "time"

type JobType string

const (
	JobTypeOCR          JobType = "ocr"
	JobTypeAIAnalysis   JobType = "ai_analysis"
	JobTypeOrganization JobType = "file_organization"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProcessingJob is one durable unit of asynchronous work against one document.
// StartedAt is set exactly once on the first transition into processing,
// CompletedAt exactly once on the transition into a terminal status.
type ProcessingJob struct {
	ID             string
	DocumentID     string
	JobType        JobType
	Status         JobStatus
	Progress       int // 0-100, non-decreasing while processing
	ErrorMessage   string
	ExternalTaskID string // opaque handle for cancellation, set at most once
	Attempts       int
	ResultData     map[string]any
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// Terminal reports whether the pipeline may still mutate this job.
func (j *ProcessingJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
