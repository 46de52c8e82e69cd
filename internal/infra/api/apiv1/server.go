package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/usecase"
)

// Server exposes the pipeline control plane: enqueueing single documents,
// driving batch runs and their pause/resume/skip/cancel signals, job status
// reads and the runtime AI settings.
type Server struct {
	jobs       repository.ProcessingJobRepository
	dispatcher adapter.JobDispatcher
	batch      *usecase.BatchUseCase
	settings   *usecase.SettingsUseCase
	log        *zerolog.Logger
}

func NewServer(
	jobs repository.ProcessingJobRepository,
	dispatcher adapter.JobDispatcher,
	batch *usecase.BatchUseCase,
	settings *usecase.SettingsUseCase,
	log *zerolog.Logger,
) *Server {
	return &Server{jobs: jobs, dispatcher: dispatcher, batch: batch, settings: settings, log: log}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents/{documentID}/process", s.handleEnqueue)
		r.Get("/documents/{documentID}/jobs", s.handleDocumentJobs)
		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Post("/reprocess", s.handleStartBatch)
		r.Get("/reprocess/active", s.handleActiveRun)
		r.Post("/reprocess/{runID}/pause", s.signalHandler(s.batch.Pause))
		r.Post("/reprocess/{runID}/resume", s.signalHandler(s.batch.Resume))
		r.Post("/reprocess/{runID}/skip", s.signalHandler(s.batch.SkipCurrent))
		r.Post("/reprocess/{runID}/cancel", s.signalHandler(s.batch.Cancel))

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Delete("/settings", s.handleResetSettings)
		r.Post("/settings/test", s.handleTestSettings)
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	var body struct {
		JobType string `json:"job_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	jobType := model.JobType(body.JobType)
	switch jobType {
	case model.JobTypeOCR, model.JobTypeAIAnalysis, model.JobTypeOrganization:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown job_type")
		return
	}
	job, err := s.jobs.Create(r.Context(), nil, documentID, jobType)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if taskID, derr := s.dispatcher.Dispatch(r.Context(), job); derr != nil {
		s.log.Error().Err(derr).Str("job_id", job.ID).Msg("dispatch failed")
	} else if taskID != "" && job.ExternalTaskID == "" {
		job.ExternalTaskID = taskID
		if serr := s.jobs.Save(r.Context(), nil, job); serr != nil {
			s.log.Warn().Err(serr).Str("job_id", job.ID).Msg("failed to record external task id")
		}
	}
	s.writeJSON(w, http.StatusAccepted, jobResponse(job))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.FindByID(r.Context(), nil, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleDocumentJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.FindByDocument(r.Context(), nil, chi.URLParam(r, "documentID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobResponse(j))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocumentIDs []string `json:"document_ids"`
		JobType     string   `json:"job_type"`
		UserID      string   `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.DocumentIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "document_ids is required")
		return
	}
	jobType := model.JobType(body.JobType)
	if jobType == "" {
		jobType = model.JobTypeOCR
	}
	if jobType != model.JobTypeOCR && jobType != model.JobTypeAIAnalysis {
		s.writeError(w, http.StatusBadRequest, "job_type must be ocr or ai_analysis")
		return
	}

	runID := usecase.NewRunID()
	go func() {
		// Detached from the request; progress flows through events.
		ctx := context.Background()
		if _, err := s.batch.Run(ctx, runID, body.UserID, jobType, body.DocumentIDs); err != nil &&
			!errors.Is(err, domain.ErrBatchActive) {
			s.log.Error().Err(err).Str("run_id", runID).Msg("batch run failed")
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": runID,
		"total":   len(body.DocumentIDs),
	})
}

func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.batch.ActiveRun(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"task_id": runID,
		"active":  runID != "",
	})
}

func (s *Server) signalHandler(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "runID")); err != nil {
			s.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.settings.View(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.Update(r.Context(), values); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Reset(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.TestConnection(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func jobResponse(job *model.ProcessingJob) map[string]any {
	return map[string]any{
		"job_id":        job.ID,
		"document_id":   job.DocumentID,
		"job_type":      string(job.JobType),
		"status":        string(job.Status),
		"progress":      job.Progress,
		"error_message": job.ErrorMessage,
		"attempts":      job.Attempts,
		"task_id":       job.ExternalTaskID,
		"result_data":   job.ResultData,
		"created_at":    job.CreatedAt,
		"started_at":    job.StartedAt,
		"completed_at":  job.CompletedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBatchActive):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotConfigured), errors.Is(err, domain.ErrMissingCredential):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
