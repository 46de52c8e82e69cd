//go:build !integration

package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
)

func newOrganizeFixture(t *testing.T, doc *model.Document) (*OrganizeUseCase, *memJobRepo, *memDocRepo, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, doc.FilePath), []byte("raw"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	jobs := newMemJobRepo()
	docs := newMemDocRepo(doc)
	tracker := NewJobTracker(jobs, docs, &fakeBus{}, testLogger())
	uc := NewOrganizeUseCase(docs, tracker, &fakeBus{}, testLogger(), dir)
	return uc, jobs, docs, dir
}

func TestOrganizeRenamesAfterGeneratedName(t *testing.T) {
	doc := &model.Document{
		ID: "doc-1", UserID: "user-1",
		Filename: "upload-8f3a.pdf", FilePath: "upload-8f3a.pdf",
		AIGeneratedName: "ACME Bill: March/2026",
	}
	uc, jobs, docs, dir := newOrganizeFixture(t, doc)

	job, _ := jobs.Create(context.Background(), nil, "doc-1", model.JobTypeOrganization)
	if err := uc.Run(context.Background(), job.ID, "doc-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	saved := docs.get("doc-1")
	want := "ACME Bill_ March_2026.pdf"
	if saved.Filename != want {
		t.Errorf("filename = %q, want %q", saved.Filename, want)
	}
	if _, err := os.Stat(filepath.Join(dir, saved.FilePath)); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "upload-8f3a.pdf")); !os.IsNotExist(err) {
		t.Error("original file still present")
	}
}

func TestOrganizeResolvesCollisions(t *testing.T) {
	doc := &model.Document{
		ID: "doc-1", UserID: "user-1",
		Filename: "upload.pdf", FilePath: "upload.pdf",
		AIGeneratedName: "Receipt",
	}
	uc, jobs, docs, dir := newOrganizeFixture(t, doc)
	for _, taken := range []string{"Receipt.pdf", "Receipt-2.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, taken), []byte("other"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	job, _ := jobs.Create(context.Background(), nil, "doc-1", model.JobTypeOrganization)
	if err := uc.Run(context.Background(), job.ID, "doc-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := docs.get("doc-1").Filename; got != "Receipt-3.pdf" {
		t.Errorf("filename = %q, want Receipt-3.pdf", got)
	}
}

func TestOrganizeRequiresGeneratedName(t *testing.T) {
	doc := &model.Document{
		ID: "doc-1", UserID: "user-1",
		Filename: "upload.pdf", FilePath: "upload.pdf",
	}
	uc, jobs, _, _ := newOrganizeFixture(t, doc)

	job, _ := jobs.Create(context.Background(), nil, "doc-1", model.JobTypeOrganization)
	err := uc.Run(context.Background(), job.ID, "doc-1")
	if err == nil {
		t.Fatal("expected error for missing generated name")
	}
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unexpected error: %v", err)
	}
}
