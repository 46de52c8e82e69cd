//go:build !integration

package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docstream/internal/config"
	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/infra/adapters/ai"
	"docstream/internal/infra/security"
)

type classifyFixture struct {
	uc       *ClassificationUseCase
	jobs     *memJobRepo
	docs     *memDocRepo
	tags     *memTagRepo
	bus      *fakeBus
	analyzer *fakeAnalyzer
	pdf      *fakePDF
	dir      string
}

func newClassifyFixture(t *testing.T, doc *model.Document) *classifyFixture {
	t.Helper()
	dir := t.TempDir()
	if doc.FilePath != "" {
		if err := os.WriteFile(filepath.Join(dir, doc.FilePath), []byte("raw"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("encryption: %v", err)
	}
	settings := NewSettingsUseCase(newMemSettingRepo(), enc, config.AIConfig{
		Provider:      "openai",
		APIKey:        "test-key",
		MaxTextLength: 4000,
		Timeout:       time.Second,
		MaxPages:      2,
		VisionDPI:     72,
	}, testLogger())

	f := &classifyFixture{
		jobs:     newMemJobRepo(),
		docs:     newMemDocRepo(doc),
		tags:     newMemTagRepo(),
		bus:      &fakeBus{},
		analyzer: &fakeAnalyzer{name: "openai"},
		pdf:      &fakePDF{},
		dir:      dir,
	}
	tracker := NewJobTracker(f.jobs, f.docs, f.bus, testLogger())
	f.uc = NewClassificationUseCase(f.docs, f.tags, tracker, settings, f.pdf, f.bus, testLogger(), dir)
	f.uc.factory = func(cfg ai.Config) (adapter.DocumentAnalyzer, error) { return f.analyzer, nil }
	return f
}

func textDoc() *model.Document {
	return &model.Document{
		ID:          "doc-1",
		UserID:      "user-1",
		Filename:    "scan.pdf",
		FilePath:    "scan.pdf",
		MimeType:    "application/pdf",
		ContentText: "ACME Electric. Amount due: $120. Due date 2026-04-01.",
	}
}

func TestClassifyTextPathPreferred(t *testing.T) {
	f := newClassifyFixture(t, textDoc())
	f.analyzer.TextFunc = func(ctx context.Context, req adapter.TextRequest) (string, error) {
		return `{"suggested_name":"ACME Electric April","document_type":"bill",
			"suggested_tags":["utilities","electric"],
			"extracted_metadata":{"due_date":"2026-04-01"},"confidence_score":0.92}`, nil
	}

	job, _ := f.jobs.Create(context.Background(), nil, "doc-1", model.JobTypeAIAnalysis)
	if err := f.uc.Run(context.Background(), job.ID, "doc-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.analyzer.textCalls != 1 || f.analyzer.imagesCalls != 0 {
		t.Errorf("calls text=%d images=%d, want 1/0", f.analyzer.textCalls, f.analyzer.imagesCalls)
	}
	doc := f.docs.get("doc-1")
	if doc.AIGeneratedName != "ACME Electric April" || doc.DocumentType != "bill" {
		t.Errorf("analysis not applied: %+v", doc)
	}
	if doc.BillStatus != model.BillStatusUnpaid {
		t.Errorf("bill status = %q, want unpaid", doc.BillStatus)
	}
	if doc.BillDueDate == nil || doc.BillDueDate.Format("2006-01-02") != "2026-04-01" {
		t.Errorf("due date = %v", doc.BillDueDate)
	}
	if got := len(f.tags.attached["doc-1"]); got != 2 {
		t.Errorf("attached tags = %d, want 2", got)
	}
	if len(f.bus.byName("document.updated")) != 1 {
		t.Error("missing document.updated event")
	}
}

func TestClassifyVisionFallbackWhenNoText(t *testing.T) {
	doc := textDoc()
	doc.ContentText = "   "
	f := newClassifyFixture(t, doc)
	f.pdf.RenderPagesFunc = func(path string, maxPages, dpi int) ([]string, error) {
		if maxPages != 2 || dpi != 72 {
			t.Errorf("render called with maxPages=%d dpi=%d", maxPages, dpi)
		}
		return []string{"cGFnZTE=", "cGFnZTI="}, nil
	}
	f.analyzer.ImagesFunc = func(ctx context.Context, req adapter.ImageRequest) (string, error) {
		if len(req.Images) != 2 {
			t.Errorf("images = %d, want 2", len(req.Images))
		}
		return `{"document_type":"receipt","confidence_score":0.5}`, nil
	}

	outcome := f.uc.RunForDocument(context.Background(), doc)
	if outcome.Kind != model.OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
	if f.analyzer.textCalls != 0 || f.analyzer.imagesCalls != 1 {
		t.Errorf("calls text=%d images=%d, want 0/1", f.analyzer.textCalls, f.analyzer.imagesCalls)
	}
	if f.docs.get("doc-1").DocumentType != "receipt" {
		t.Error("vision result not applied")
	}
}

func TestClassifyLeavingBillableClearsBillFields(t *testing.T) {
	doc := textDoc()
	doc.DocumentType = "bill"
	doc.BillStatus = model.BillStatusUnpaid
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	doc.BillDueDate = &due
	f := newClassifyFixture(t, doc)
	f.analyzer.TextFunc = func(ctx context.Context, req adapter.TextRequest) (string, error) {
		return `{"document_type":"correspondence","confidence_score":0.8}`, nil
	}

	outcome := f.uc.RunForDocument(context.Background(), doc)
	if outcome.Kind != model.OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
	saved := f.docs.get("doc-1")
	if saved.DocumentType != "correspondence" {
		t.Fatalf("type = %s", saved.DocumentType)
	}
	if saved.BillStatus != "" || saved.BillDueDate != nil || saved.BillPaidAt != nil {
		t.Errorf("bill fields not cleared: status=%q due=%v paid=%v",
			saved.BillStatus, saved.BillDueDate, saved.BillPaidAt)
	}
}

func TestClassifyLeavingBillableKeepsPaidBill(t *testing.T) {
	doc := textDoc()
	doc.DocumentType = "bill"
	doc.BillStatus = model.BillStatusPaid
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	doc.BillDueDate = &due
	paid := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	doc.BillPaidAt = &paid
	f := newClassifyFixture(t, doc)
	f.analyzer.TextFunc = func(ctx context.Context, req adapter.TextRequest) (string, error) {
		return `{"document_type":"correspondence","confidence_score":0.8}`, nil
	}

	outcome := f.uc.RunForDocument(context.Background(), doc)
	if outcome.Kind != model.OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
	saved := f.docs.get("doc-1")
	if saved.DocumentType != "correspondence" {
		t.Fatalf("type = %s", saved.DocumentType)
	}
	if saved.BillStatus != model.BillStatusPaid {
		t.Errorf("paid status lost: %q", saved.BillStatus)
	}
	if saved.BillDueDate == nil || !saved.BillDueDate.Equal(due) {
		t.Errorf("due date lost: %v", saved.BillDueDate)
	}
	if saved.BillPaidAt == nil || !saved.BillPaidAt.Equal(paid) {
		t.Errorf("paid-at lost: %v", saved.BillPaidAt)
	}
}

func TestClassifyPaidStatusIsNeverReopened(t *testing.T) {
	doc := textDoc()
	doc.DocumentType = "bill"
	doc.BillStatus = model.BillStatusPaid
	f := newClassifyFixture(t, doc)
	f.analyzer.TextFunc = func(ctx context.Context, req adapter.TextRequest) (string, error) {
		return `{"document_type":"bill","confidence_score":0.9}`, nil
	}

	if outcome := f.uc.RunForDocument(context.Background(), doc); outcome.Kind != model.OutcomeSucceeded {
		t.Fatalf("outcome = %+v", outcome)
	}
	if f.docs.get("doc-1").BillStatus != model.BillStatusPaid {
		t.Error("paid bill was reopened")
	}
}

func TestClassifyMalformedResponseFailsFast(t *testing.T) {
	f := newClassifyFixture(t, textDoc())
	f.analyzer.TextFunc = func(ctx context.Context, req adapter.TextRequest) (string, error) {
		return "certainly! here is my analysis", nil
	}

	job, _ := f.jobs.Create(context.Background(), nil, "doc-1", model.JobTypeAIAnalysis)
	err := f.uc.Run(context.Background(), job.ID, "doc-1")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("malformed responses must not be retried")
	}
	if f.docs.savedAnalysis != 0 {
		t.Error("document mutated despite parse failure")
	}
}

func TestClassifyNoTextNoVisionPath(t *testing.T) {
	doc := textDoc()
	doc.ContentText = ""
	doc.MimeType = "application/zip"
	doc.Filename = "a.zip"
	doc.FilePath = "a.zip"
	f := newClassifyFixture(t, doc)

	outcome := f.uc.RunForDocument(context.Background(), doc)
	if outcome.Kind != model.OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", outcome)
	}
}

func TestClassifyUnconfiguredProvider(t *testing.T) {
	f := newClassifyFixture(t, textDoc())
	f.uc.factory = ai.FromConfig
	f.uc.settings = NewSettingsUseCase(newMemSettingRepo(), nil, config.AIConfig{Provider: "none"}, testLogger())

	job, _ := f.jobs.Create(context.Background(), nil, "doc-1", model.JobTypeAIAnalysis)
	err := f.uc.Run(context.Background(), job.ID, "doc-1")
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
