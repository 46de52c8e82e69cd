package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
)

// OrganizeUseCase renames a document's stored file after its AI-generated
// name, keeping the original extension and resolving collisions with a
// numeric suffix.
type OrganizeUseCase struct {
	docs    repository.DocumentRepository
	tracker *JobTracker
	bus     adapter.EventPublisher
	log     *zerolog.Logger

	uploadDir string
}

func NewOrganizeUseCase(
	docs repository.DocumentRepository,
	tracker *JobTracker,
	bus adapter.EventPublisher,
	log *zerolog.Logger,
	uploadDir string,
) *OrganizeUseCase {
	return &OrganizeUseCase{docs: docs, tracker: tracker, bus: bus, log: log, uploadDir: uploadDir}
}

func (u *OrganizeUseCase) Run(ctx context.Context, jobID, documentID string) error {
	u.tracker.Start(ctx, jobID)

	doc, err := u.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc.AIGeneratedName == "" {
		return fmt.Errorf("%w: document has no generated name", domain.ErrInvalidArgument)
	}
	u.tracker.UpdateProgress(ctx, jobID, 20, "")

	oldPath := filepath.Join(u.uploadDir, doc.FilePath)
	base := sanitizeFilename(doc.AIGeneratedName)
	ext := filepath.Ext(doc.Filename)
	newName := base + ext
	newRel := filepath.Join(filepath.Dir(doc.FilePath), newName)
	newPath := filepath.Join(u.uploadDir, newRel)

	// Collision handling: name-2, name-3, ...
	for n := 2; ; n++ {
		if newPath == oldPath {
			break
		}
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			break
		}
		newName = fmt.Sprintf("%s-%d%s", base, n, ext)
		newRel = filepath.Join(filepath.Dir(doc.FilePath), newName)
		newPath = filepath.Join(u.uploadDir, newRel)
	}
	u.tracker.UpdateProgress(ctx, jobID, 50, "")

	if newPath != oldPath {
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("rename file: %w", err)
		}
		doc.Filename = newName
		doc.FilePath = newRel
		if err := u.docs.SavePath(ctx, nil, doc); err != nil {
			// Move back so the record keeps pointing at a real file.
			if rerr := os.Rename(newPath, oldPath); rerr != nil {
				u.log.Error().Err(rerr).Str("document_id", doc.ID).
					Msg("could not restore original path after failed save")
			}
			return fmt.Errorf("save path: %w", err)
		}
	}
	u.tracker.UpdateProgress(ctx, jobID, 90, "")

	u.tracker.Complete(ctx, jobID, map[string]any{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"file_path":   doc.FilePath,
	})
	u.bus.Publish(ctx, "document.updated", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"fields":      []string{"filename", "file_path"},
	})
	return nil
}

// sanitizeFilename keeps letters, digits, spaces, hyphens and underscores,
// collapsing runs of anything else into a single underscore.
func sanitizeFilename(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), " _")
	if out == "" {
		out = "document"
	}
	return out
}
