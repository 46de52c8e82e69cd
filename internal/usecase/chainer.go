package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
)

// PipelineChainer enqueues the analysis stage after extraction succeeds.
// When no provider is configured the chain stops silently: extraction alone
// is a complete pipeline for installations without an AI backend.
type PipelineChainer struct {
	jobs       repository.ProcessingJobRepository
	dispatcher adapter.JobDispatcher
	settings   *SettingsUseCase
	log        *zerolog.Logger
}

func NewPipelineChainer(
	jobs repository.ProcessingJobRepository,
	dispatcher adapter.JobDispatcher,
	settings *SettingsUseCase,
	log *zerolog.Logger,
) *PipelineChainer {
	return &PipelineChainer{jobs: jobs, dispatcher: dispatcher, settings: settings, log: log}
}

// ChainAnalysis creates and dispatches an ai_analysis job for the document.
// Failures are logged, never propagated: a broken chain must not fail the
// extraction job that already completed.
func (c *PipelineChainer) ChainAnalysis(ctx context.Context, documentID string) {
	provider := strings.ToLower(c.settings.Resolve(ctx).Provider)
	if provider == "" || provider == "none" {
		c.log.Debug().Str("document_id", documentID).Msg("no AI provider configured, skipping analysis chain")
		return
	}
	job, err := c.jobs.Create(ctx, nil, documentID, model.JobTypeAIAnalysis)
	if err != nil {
		c.log.Error().Err(err).Str("document_id", documentID).Msg("failed to create analysis job")
		return
	}
	taskID, err := c.dispatcher.Dispatch(ctx, job)
	if err != nil {
		c.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to dispatch analysis job")
		return
	}
	if taskID != "" && job.ExternalTaskID == "" {
		job.ExternalTaskID = taskID
		if err := c.jobs.Save(ctx, nil, job); err != nil {
			c.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record external task id")
		}
	}
}
