//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---------------- in-memory repositories ----------------

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ProcessingJob
	seq  int

	requeued []string
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*model.ProcessingJob{}}
}

func (m *memJobRepo) Create(ctx context.Context, tx repository.Tx, documentID string, jobType model.JobType) (*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job := &model.ProcessingJob{
		ID:         fmt.Sprintf("job-%d", m.seq),
		DocumentID: documentID,
		JobType:    jobType,
		Status:     model.JobStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
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
	cp := *job
	return &cp, nil
}

func (m *memJobRepo) FindByDocument(ctx context.Context, tx repository.Tx, documentID string) ([]*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ProcessingJob
	for _, j := range m.jobs {
		if j.DocumentID == documentID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == model.JobStatusPending {
			j.Status = model.JobStatusProcessing
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) Requeue(ctx context.Context, jobID, message string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok {
		j.Status = model.JobStatusPending
		j.Attempts++
		j.ErrorMessage = message
	}
	m.requeued = append(m.requeued, jobID)
	return nil
}

type memDocRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document

	savedText     int
	savedAnalysis int
	refreshed     int
}

func newMemDocRepo(docs ...*model.Document) *memDocRepo {
	m := &memDocRepo{docs: map[string]*model.Document{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocRepo) SaveText(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedText++
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocRepo) SaveAnalysis(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedAnalysis++
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocRepo) SavePath(ctx context.Context, tx repository.Tx, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocRepo) RefreshSearchIndex(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed++
	return nil
}

func (m *memDocRepo) get(id string) *model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

type memTagRepo struct {
	mu       sync.Mutex
	tags     map[string]*model.Tag // userID/name -> tag
	attached map[string][]string   // documentID -> tag names
	seq      int
}

func newMemTagRepo() *memTagRepo {
	return &memTagRepo{tags: map[string]*model.Tag{}, attached: map[string][]string{}}
}

func (m *memTagRepo) FindOrCreate(ctx context.Context, tx repository.Tx, userID, name string) (*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + name
	if tag, ok := m.tags[key]; ok {
		return tag, nil
	}
	m.seq++
	tag := &model.Tag{ID: fmt.Sprintf("tag-%d", m.seq), Name: name, Color: model.DefaultTagColor, UserID: userID}
	m.tags[key] = tag
	return tag, nil
}

func (m *memTagRepo) Attach(ctx context.Context, tx repository.Tx, documentID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached[documentID] = append(m.attached[documentID], tagID)
	return nil
}

type memSettingRepo struct {
	mu       sync.Mutex
	settings map[string]*repository.AppSetting
}

func newMemSettingRepo() *memSettingRepo {
	return &memSettingRepo{settings: map[string]*repository.AppSetting{}}
}

func (m *memSettingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*repository.AppSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSettingRepo) Upsert(ctx context.Context, tx repository.Tx, setting *repository.AppSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *setting
	m.settings[setting.Key] = &cp
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

func (m *memSettingRepo) set(key, value string, secret bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = &repository.AppSetting{Key: key, Value: value, IsSecret: secret}
}

// ---------------- fake adapters ----------------

type publishedEvent struct {
	event string
	data  map[string]any
}

type fakeBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *fakeBus) Publish(ctx context.Context, event string, data map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{event: event, data: data})
}

func (b *fakeBus) byName(name string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeSignals struct {
	mu             sync.Mutex
	paused         map[string]bool
	cancelled      map[string]bool
	skip           map[string]bool
	clearSkipCalls int

	// cancelAfterChecks flips the cancel flag after this many IsCancelled
	// reads; 0 disables.
	cancelAfterChecks int
	cancelChecks      int
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{paused: map[string]bool{}, cancelled: map[string]bool{}, skip: map[string]bool{}}
}

func (s *fakeSignals) SetPaused(ctx context.Context, runID string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[runID] = paused
	return nil
}

func (s *fakeSignals) IsPaused(ctx context.Context, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[runID]
}

func (s *fakeSignals) SetCancelled(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[runID] = true
	return nil
}

func (s *fakeSignals) IsCancelled(ctx context.Context, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelChecks++
	if s.cancelAfterChecks > 0 && s.cancelChecks > s.cancelAfterChecks {
		return true
	}
	return s.cancelled[runID]
}

func (s *fakeSignals) SetSkip(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip[runID] = true
	return nil
}

func (s *fakeSignals) ShouldSkip(ctx context.Context, runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip[runID]
}

func (s *fakeSignals) ClearSkip(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip[runID] = false
	s.clearSkipCalls++
	return nil
}

func (s *fakeSignals) Cleanup(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, runID)
	delete(s.cancelled, runID)
	delete(s.skip, runID)
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	holder   string
	released int
}

func (l *fakeLocker) TryAcquire(ctx context.Context, runID string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != runID {
		return l.holder, domain.ErrBatchActive
	}
	l.holder = runID
	return runID, nil
}

func (l *fakeLocker) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
	}
	l.released++
	return nil
}

func (l *fakeLocker) ActiveRun(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder, nil
}

type fakePDF struct {
	ExtractTextFunc func(path string) (string, int, error)
	RenderPagesFunc func(path string, maxPages, dpi int) ([]string, error)
}

func (f *fakePDF) ExtractText(path string) (string, int, error) {
	return f.ExtractTextFunc(path)
}

func (f *fakePDF) PageCount(path string) (int, error) { return 1, nil }

func (f *fakePDF) RenderPages(path string, maxPages, dpi int) ([]string, error) {
	if f.RenderPagesFunc == nil {
		return nil, fmt.Errorf("no render configured")
	}
	return f.RenderPagesFunc(path, maxPages, dpi)
}

type fakeRecognizer struct {
	RecognizeFunc func(ctx context.Context, path string) (string, error)
}

func (f *fakeRecognizer) RecognizeImage(ctx context.Context, path string) (string, error) {
	if f.RecognizeFunc == nil {
		return "", nil
	}
	return f.RecognizeFunc(ctx, path)
}

type fakeProcess struct {
	mu     sync.Mutex
	waits  []struct {
		finished bool
		err      error
	}
	killed bool
}

func (p *fakeProcess) Wait(interval time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waits) == 0 {
		return true, nil
	}
	next := p.waits[0]
	p.waits = p.waits[1:]
	return next.finished, next.err
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	return nil
}

func finishWith(err error) *fakeProcess {
	return &fakeProcess{waits: []struct {
		finished bool
		err      error
	}{{finished: true, err: err}}}
}

type fakeRunner struct {
	mu      sync.Mutex
	proc    *fakeProcess
	started int
	err     error
}

func (r *fakeRunner) Start(ctx context.Context, inputPath, outputPath string) (adapter.RecognitionProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	if r.err != nil {
		return nil, r.err
	}
	if r.proc == nil {
		r.proc = finishWith(nil)
	}
	return r.proc, nil
}

type fakeAnalyzer struct {
	name       string
	TextFunc   func(ctx context.Context, req adapter.TextRequest) (string, error)
	ImagesFunc func(ctx context.Context, req adapter.ImageRequest) (string, error)
	PingFunc   func(ctx context.Context) error

	textCalls   int
	imagesCalls int
}

func (f *fakeAnalyzer) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, req adapter.TextRequest) (string, error) {
	f.textCalls++
	if f.TextFunc == nil {
		return `{"document_type":"other"}`, nil
	}
	return f.TextFunc(ctx, req)
}

func (f *fakeAnalyzer) AnalyzeImages(ctx context.Context, req adapter.ImageRequest) (string, error) {
	f.imagesCalls++
	if f.ImagesFunc == nil {
		return `{"document_type":"other"}`, nil
	}
	return f.ImagesFunc(ctx, req)
}

func (f *fakeAnalyzer) Ping(ctx context.Context) error {
	if f.PingFunc == nil {
		return nil
	}
	return f.PingFunc(ctx)
}
