package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/metrics"
)

const pauseCheckInterval = 2 * time.Second

// BatchUseCase reprocesses a set of documents through one stage, honoring
// the externally shared pause/cancel/skip signals. At most one run is active
// per installation; a second request is rejected immediately, never queued.
type BatchUseCase struct {
	docs       repository.DocumentRepository
	extraction *ExtractionUseCase
	classify   *ClassificationUseCase
	signals    repository.BatchSignalRepository
	locker     repository.RunLocker
	bus        adapter.EventPublisher
	log        *zerolog.Logger

	uploadDir string
	lockTTL   time.Duration
	pauseWait time.Duration
}

func NewBatchUseCase(
	docs repository.DocumentRepository,
	extraction *ExtractionUseCase,
	classify *ClassificationUseCase,
	signals repository.BatchSignalRepository,
	locker repository.RunLocker,
	bus adapter.EventPublisher,
	log *zerolog.Logger,
	uploadDir string,
	lockTTL time.Duration,
) *BatchUseCase {
	if lockTTL <= 0 {
		lockTTL = 24 * time.Hour
	}
	return &BatchUseCase{
		docs:       docs,
		extraction: extraction,
		classify:   classify,
		signals:    signals,
		locker:     locker,
		bus:        bus,
		log:        log,
		uploadDir:  uploadDir,
		lockTTL:    lockTTL,
		pauseWait:  pauseCheckInterval,
	}
}

// NewRunID mints a sortable batch run identifier.
func NewRunID() string { return ulid.Make().String() }

// Pause, Resume, Cancel and SkipCurrent are the control-plane entry points.
// They only flip shared signals; the running loop observes them.

func (u *BatchUseCase) Pause(ctx context.Context, runID string) error {
	return u.signals.SetPaused(ctx, runID, true)
}

func (u *BatchUseCase) Resume(ctx context.Context, runID string) error {
	return u.signals.SetPaused(ctx, runID, false)
}

func (u *BatchUseCase) Cancel(ctx context.Context, runID string) error {
	return u.signals.SetCancelled(ctx, runID)
}

func (u *BatchUseCase) SkipCurrent(ctx context.Context, runID string) error {
	return u.signals.SetSkip(ctx, runID)
}

// ActiveRun reports the run currently holding the single-flight guard.
func (u *BatchUseCase) ActiveRun(ctx context.Context) (string, error) {
	return u.locker.ActiveRun(ctx)
}

// Run processes documentIDs in order through the stage selected by jobType.
// It returns the final stats; domain.ErrBatchActive when another run holds
// the guard.
func (u *BatchUseCase) Run(ctx context.Context, runID, userID string, jobType model.JobType, documentIDs []string) (*model.BatchStats, error) {
	stats := &model.BatchStats{Total: len(documentIDs)}

	holder, err := u.locker.TryAcquire(ctx, runID, u.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrBatchActive) {
			u.log.Warn().Str("run_id", runID).Str("holder", holder).
				Msg("batch run rejected, another run is active")
			metrics.IncBatchRun("blocked")
			u.publishTerminal(ctx, "reprocess.completed", runID, userID, stats, "blocked",
				fmt.Sprintf("Another batch run (%s) is already active", holder))
			return stats, err
		}
		return stats, err
	}
	defer func() {
		if err := u.signals.Cleanup(ctx, runID); err != nil {
			u.log.Warn().Err(err).Str("run_id", runID).Msg("signal cleanup failed")
		}
		if err := u.locker.Release(ctx, runID); err != nil {
			u.log.Warn().Err(err).Str("run_id", runID).Msg("lock release failed")
		}
	}()

	u.log.Info().Str("run_id", runID).Str("job_type", string(jobType)).
		Int("total", stats.Total).Msg("batch run started")

	cancelled := false
	for _, id := range documentIDs {
		if ctx.Err() != nil || u.signals.IsCancelled(ctx, runID) {
			cancelled = true
			break
		}
		if stopped := u.waitWhilePaused(ctx, runID, userID, stats); stopped {
			cancelled = true
			break
		}

		name, outcome := u.processOne(ctx, runID, id, jobType)
		stats.Record(name, outcome)
		metrics.IncBatchDocument(outcomeLabel(outcome.Kind))

		u.publishProgress(ctx, runID, userID, stats, name, false)
	}

	if cancelled {
		metrics.IncBatchRun("cancelled")
		u.publishTerminal(ctx, "reprocess.cancelled", runID, userID, stats, "cancelled", "")
		u.log.Info().Str("run_id", runID).Int("processed", stats.Processed).Msg("batch run cancelled")
		return stats, nil
	}
	metrics.IncBatchRun("completed")
	u.publishTerminal(ctx, "reprocess.completed", runID, userID, stats, "completed", "")
	u.log.Info().Str("run_id", runID).Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).Msg("batch run completed")
	return stats, nil
}

// waitWhilePaused blocks while the pause flag is set, emitting a paused
// progress event per check. Returns true when cancellation arrived while
// paused.
func (u *BatchUseCase) waitWhilePaused(ctx context.Context, runID, userID string, stats *model.BatchStats) bool {
	for u.signals.IsPaused(ctx, runID) {
		if u.signals.IsCancelled(ctx, runID) {
			return true
		}
		u.publishProgress(ctx, runID, userID, stats, "", true)
		select {
		case <-ctx.Done():
			return true
		case <-time.After(u.pauseWait):
		}
	}
	return false
}

func (u *BatchUseCase) processOne(ctx context.Context, runID, documentID string, jobType model.JobType) (string, model.DocumentOutcome) {
	doc, err := u.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since the run was requested; not an error.
			return documentID, model.Skipped("")
		}
		return documentID, model.Failed(err.Error())
	}
	name := doc.DisplayName()

	if _, err := os.Stat(filepath.Join(u.uploadDir, doc.FilePath)); err != nil {
		return name, model.Skipped("File not found on disk")
	}

	// A stale skip flag from the previous document must not kill this one.
	if err := u.signals.ClearSkip(ctx, runID); err != nil {
		u.log.Warn().Err(err).Str("run_id", runID).Msg("could not clear skip flag")
	}

	var outcome model.DocumentOutcome
	switch jobType {
	case model.JobTypeOCR:
		outcome = u.extraction.RunForDocument(ctx, doc, runID)
	case model.JobTypeAIAnalysis:
		outcome = u.classify.RunForDocument(ctx, doc)
	default:
		outcome = model.Failed(fmt.Sprintf("unsupported job type %q", jobType))
	}

	if outcome.Kind == model.OutcomeSkipped {
		// The signal fired for this document; consume it.
		if err := u.signals.ClearSkip(ctx, runID); err != nil {
			u.log.Warn().Err(err).Str("run_id", runID).Msg("could not clear skip flag")
		}
	}
	return name, outcome
}

func (u *BatchUseCase) publishProgress(ctx context.Context, runID, userID string, stats *model.BatchStats, current string, paused bool) {
	status := "processing"
	if paused {
		status = "paused"
	}
	u.bus.Publish(ctx, "reprocess.progress", map[string]any{
		"task_id":          runID,
		"user_id":          userID,
		"current":          stats.Processed,
		"total":            stats.Total,
		"succeeded":        stats.Succeeded,
		"failed":           stats.Failed,
		"skipped":          stats.Skipped,
		"current_document": current,
		"paused":           paused,
		"status":           status,
	})
}

func (u *BatchUseCase) publishTerminal(ctx context.Context, event, runID, userID string, stats *model.BatchStats, status, message string) {
	data := map[string]any{
		"task_id":   runID,
		"user_id":   userID,
		"status":    status,
		"processed": stats.Processed,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
		"total":     stats.Total,
		"errors":    stats.Errors,
	}
	if message != "" {
		data["message"] = message
	}
	u.bus.Publish(ctx, event, data)
}

func outcomeLabel(kind model.OutcomeKind) string {
	switch kind {
	case model.OutcomeSucceeded:
		return "succeeded"
	case model.OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}
