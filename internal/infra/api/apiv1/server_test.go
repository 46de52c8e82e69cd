//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"docstream/internal/config"
	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/api/apiv1"
	"docstream/internal/infra/security"
	"docstream/internal/usecase"
)

// ---------------- in-memory infra mocks ----------------

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ProcessingJob
	seq  int
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: map[string]*model.ProcessingJob{}} }

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, documentID string, jobType model.JobType) (*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job := &model.ProcessingJob{
		ID: fmt.Sprintf("job-%d", m.seq), DocumentID: documentID,
		JobType: jobType, Status: model.JobStatusPending, CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *memJobRepo) FindByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ProcessingJob
	for _, j := range m.jobs {
		if j.DocumentID == documentID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	return nil
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.ProcessingJob, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) Requeue(ctx context.Context, jobID, message string, delay time.Duration) error {
	return nil
}

type memSettingRepo struct {
	mu       sync.Mutex
	settings map[string]*repository.AppSetting
}

func (m *memSettingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*repository.AppSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *memSettingRepo) Upsert(ctx context.Context, tx repository.Tx, setting *repository.AppSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[setting.Key] = setting
	return nil
}

func (m *memSettingRepo) DeleteKeys(ctx context.Context, tx repository.Tx, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.settings, k)
	}
	return nil
}

type stubSignals struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubSignals) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}

func (s *stubSignals) SetPaused(ctx context.Context, runID string, paused bool) error {
	return s.record(fmt.Sprintf("pause:%s:%v", runID, paused))
}
func (s *stubSignals) IsPaused(ctx context.Context, runID string) bool { return false }

func (s *stubSignals) SetCancelled(ctx context.Context, runID string) error {
	return s.record("cancel:" + runID)
}

func (s *stubSignals) IsCancelled(ctx context.Context, runID string) bool { return false }

func (s *stubSignals) SetSkip(ctx context.Context, runID string) error {
	return s.record("skip:" + runID)
}

func (s *stubSignals) ShouldSkip(ctx context.Context, runID string) bool { return false }
func (s *stubSignals) ClearSkip(ctx context.Context, runID string) error { return nil }
func (s *stubSignals) Cleanup(ctx context.Context, runID string) error   { return nil }

type stubDispatcher struct{ taskID string }

func (d *stubDispatcher) Dispatch(ctx context.Context, job *model.ProcessingJob) (string, error) {
	return d.taskID, nil
}

type stubLocker struct{ holder string }

func (l *stubLocker) TryAcquire(ctx context.Context, runID string, ttl time.Duration) (string, error) {
	if l.holder != "" {
		return l.holder, domain.ErrBatchActive
	}
	return runID, nil
}
func (l *stubLocker) Release(ctx context.Context, runID string) error { return nil }
func (l *stubLocker) ActiveRun(ctx context.Context) (string, error)   { return l.holder, nil }

// ---------------- test helpers ----------------

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type fixture struct {
	router  *chi.Mux
	jobs    *memJobRepo
	signals *stubSignals
	locker  *stubLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	jobs := newMemJobRepo()
	signals := &stubSignals{}
	locker := &stubLocker{}

	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("encryption: %v", err)
	}
	settings := usecase.NewSettingsUseCase(
		&memSettingRepo{settings: map[string]*repository.AppSetting{}},
		enc, config.AIConfig{Provider: "none"}, newLogger())
	batch := usecase.NewBatchUseCase(
		nil, nil, nil, signals, locker, noopBus{}, newLogger(), t.TempDir(), time.Hour)

	r := chi.NewRouter()
	dispatcher := &stubDispatcher{taskID: "task-1"}
	apiv1.NewServer(jobs, dispatcher, batch, settings, newLogger()).RegisterRoutes(r)
	return &fixture{router: r, jobs: jobs, signals: signals, locker: locker}
}

type noopBus struct{}

func (noopBus) Publish(ctx context.Context, event string, data map[string]any) {}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// ---------------- tests ----------------

func TestEnqueueAndReadJob(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/documents/doc-1/process",
		map[string]string{"job_type": "ocr"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	jobID := created["job_id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var job map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &job)
	if job["status"] != "pending" || job["document_id"] != "doc-1" {
		t.Errorf("job = %v", job)
	}
	if job["task_id"] != "task-1" {
		t.Errorf("task_id = %v, want task-1", job["task_id"])
	}
}

func TestEnqueueRejectsUnknownJobType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/documents/doc-1/process",
		map[string]string{"job_type": "mining"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/jobs/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBatchSignalEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"pause", "resume", "skip", "cancel"} {
		rec := f.do(t, http.MethodPost, "/api/v1/reprocess/run-1/"+path, nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
	want := []string{"pause:run-1:true", "pause:run-1:false", "skip:run-1", "cancel:run-1"}
	if len(f.signals.calls) != len(want) {
		t.Fatalf("calls = %v", f.signals.calls)
	}
	for i, call := range want {
		if f.signals.calls[i] != call {
			t.Errorf("call %d = %q, want %q", i, f.signals.calls[i], call)
		}
	}
}

func TestActiveRunEndpoint(t *testing.T) {
	f := newFixture(t)
	f.locker.holder = "run-42"

	rec := f.do(t, http.MethodGet, "/api/v1/reprocess/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["task_id"] != "run-42" || body["active"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestStartBatchValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/reprocess", map[string]any{"document_ids": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/reprocess", map[string]any{
		"document_ids": []string{"d1"}, "job_type": "file_organization",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("organization batch: status = %d", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/settings", map[string]string{
		"ai_provider": "openai",
		"ai_api_key":  "sk-secret",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put: status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	var view map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	if view["ai_provider"] != "openai" {
		t.Errorf("provider = %q", view["ai_provider"])
	}
	if view["ai_api_key"] == "sk-secret" || view["ai_api_key"] == "" {
		t.Errorf("secret not masked: %q", view["ai_api_key"])
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/settings", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/settings", nil)
	var cleared map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &cleared)
	if len(cleared) != 0 {
		t.Errorf("settings not cleared: %v", cleared)
	}
}
