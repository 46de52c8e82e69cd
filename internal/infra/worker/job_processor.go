package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/metrics"
	"docstream/internal/usecase"
)

// JobProcessor claims pending jobs from the durable queue and routes them
// to the stage for their job type. A transient failure goes back to pending
// with a fixed backoff until the attempt limit is reached; everything else
// fails the job terminally.
type JobProcessor struct {
	jobs       repository.ProcessingJobRepository
	extraction *usecase.ExtractionUseCase
	classify   *usecase.ClassificationUseCase
	organize   *usecase.OrganizeUseCase
	tracker    *usecase.JobTracker
	log        *zerolog.Logger

	pollEvery  time.Duration
	maxRetries int
	retryDelay time.Duration
}

func NewJobProcessor(
	jobs repository.ProcessingJobRepository,
	extraction *usecase.ExtractionUseCase,
	classify *usecase.ClassificationUseCase,
	organize *usecase.OrganizeUseCase,
	tracker *usecase.JobTracker,
	log *zerolog.Logger,
	pollEvery time.Duration,
	maxRetries int,
	retryDelay time.Duration,
) *JobProcessor {
	if pollEvery <= 0 {
		pollEvery = 500 * time.Millisecond
	}
	return &JobProcessor{
		jobs:       jobs,
		extraction: extraction,
		classify:   classify,
		organize:   organize,
		tracker:    tracker,
		log:        log,
		pollEvery:  pollEvery,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Start runs the claim loop. This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.FetchAndMarkProcessing(ctx)
	if err != nil {
		if err != domain.ErrNotFound {
			p.log.Error().Err(err).Msg("failed to fetch job")
		}
		return
	}

	p.log.Info().Str("job_id", job.ID).Str("document_id", job.DocumentID).
		Str("job_type", string(job.JobType)).Int("attempts", job.Attempts).Msg("processing job")
	start := time.Now()

	err = p.handleJob(ctx, job)
	metrics.ObserveJobDuration(string(job.JobType), time.Since(start).Seconds())
	if err == nil {
		p.log.Info().Str("job_id", job.ID).Dur("duration", time.Since(start)).Msg("job finished")
		return
	}

	if domain.Retryable(err) && job.Attempts < p.maxRetries {
		p.log.Warn().Err(err).Str("job_id", job.ID).Int("attempt", job.Attempts+1).
			Msg("job failed, requeueing")
		p.tracker.RecordRetry(context.Background(), job.ID, fmt.Sprintf("Retrying: %v", err), p.retryDelay)
		return
	}

	p.log.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
	p.tracker.Fail(context.Background(), job.ID, err.Error())
}

func (p *JobProcessor) handleJob(ctx context.Context, job *model.ProcessingJob) error {
	switch job.JobType {
	case model.JobTypeOCR:
		return p.extraction.Run(ctx, job.ID, job.DocumentID)
	case model.JobTypeAIAnalysis:
		return p.classify.Run(ctx, job.ID, job.DocumentID)
	case model.JobTypeOrganization:
		return p.organize.Run(ctx, job.ID, job.DocumentID)
	default:
		return fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidArgument, job.JobType)
	}
}
