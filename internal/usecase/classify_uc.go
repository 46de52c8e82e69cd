package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docstream/internal/domain"
	"docstream/internal/domain/model"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/adapters/ai"
	"docstream/internal/infra/metrics"
)

// ClassificationUseCase runs the analysis stage: resolve the configured
// provider, send the extracted text (or rendered pages when there is none),
// parse the structured judgment and apply its side effects to the document.
type ClassificationUseCase struct {
	docs     repository.DocumentRepository
	tags     repository.TagRepository
	tracker  *JobTracker
	settings *SettingsUseCase
	pdf      adapter.PDFToolkit
	bus      adapter.EventPublisher
	log      *zerolog.Logger

	uploadDir string
	// factory is swappable in tests; the default builds real provider adapters.
	factory func(ai.Config) (adapter.DocumentAnalyzer, error)
}

func NewClassificationUseCase(
	docs repository.DocumentRepository,
	tags repository.TagRepository,
	tracker *JobTracker,
	settings *SettingsUseCase,
	pdf adapter.PDFToolkit,
	bus adapter.EventPublisher,
	log *zerolog.Logger,
	uploadDir string,
) *ClassificationUseCase {
	return &ClassificationUseCase{
		docs:      docs,
		tags:      tags,
		tracker:   tracker,
		settings:  settings,
		pdf:       pdf,
		bus:       bus,
		log:       log,
		uploadDir: uploadDir,
		factory:   ai.FromConfig,
	}
}

// Run executes the stage for a queued job.
func (u *ClassificationUseCase) Run(ctx context.Context, jobID, documentID string) error {
	u.tracker.Start(ctx, jobID)

	doc, err := u.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	u.tracker.UpdateProgress(ctx, jobID, 10, "")

	result, err := u.analyze(ctx, doc)
	if err != nil {
		return err
	}
	u.tracker.UpdateProgress(ctx, jobID, 80, "")

	changed, err := u.apply(ctx, doc, result)
	if err != nil {
		return err
	}

	u.tracker.Complete(ctx, jobID, map[string]any{
		"document_id":      doc.ID,
		"suggested_name":   result.SuggestedName,
		"document_type":    result.DocumentType,
		"suggested_tags":   result.SuggestedTags,
		"confidence_score": result.ConfidenceScore,
	})
	u.bus.Publish(ctx, "document.updated", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"fields":      changed,
	})
	return nil
}

// RunForDocument executes the stage synchronously inside a batch run.
func (u *ClassificationUseCase) RunForDocument(ctx context.Context, doc *model.Document) model.DocumentOutcome {
	result, err := u.analyze(ctx, doc)
	if err != nil {
		return model.Failed(err.Error())
	}
	changed, err := u.apply(ctx, doc, result)
	if err != nil {
		return model.Failed(err.Error())
	}
	u.bus.Publish(ctx, "document.updated", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"fields":      changed,
	})
	return model.Succeeded()
}

// analyze prefers the text path whenever extraction produced any text and
// falls back to vision only otherwise.
func (u *ClassificationUseCase) analyze(ctx context.Context, doc *model.Document) (*model.AnalysisResult, error) {
	settings := u.settings.Resolve(ctx)
	analyzer, err := u.factory(settings.ProviderConfig())
	if err != nil {
		return nil, err
	}

	var raw string
	if strings.TrimSpace(doc.ContentText) != "" {
		raw, err = u.callText(ctx, analyzer, doc)
	} else {
		raw, err = u.callVision(ctx, analyzer, doc, settings)
	}
	if err != nil {
		return nil, err
	}

	result, known, perr := model.ParseAnalysis(raw)
	if perr != nil {
		return nil, fmt.Errorf("provider %s: %w", analyzer.Name(), perr)
	}
	if !known {
		u.log.Warn().Str("document_id", doc.ID).Str("provider", analyzer.Name()).
			Msg("provider returned an unknown document type, using other")
	}
	return result, nil
}

func (u *ClassificationUseCase) callText(ctx context.Context, analyzer adapter.DocumentAnalyzer, doc *model.Document) (string, error) {
	started := time.Now()
	raw, err := analyzer.AnalyzeText(ctx, adapter.TextRequest{
		Text:             doc.ContentText,
		OriginalFilename: doc.DisplayName(),
	})
	metrics.ObserveAICall(analyzer.Name(), "text", int(time.Since(started).Milliseconds()), err == nil)
	if err != nil {
		return "", fmt.Errorf("text analysis: %w", err)
	}
	return raw, nil
}

func (u *ClassificationUseCase) callVision(ctx context.Context, analyzer adapter.DocumentAnalyzer, doc *model.Document, settings AISettings) (string, error) {
	images, err := u.renderForVision(doc, settings)
	if err != nil {
		return "", err
	}
	metrics.IncVisionFallback(analyzer.Name())
	u.log.Info().Str("document_id", doc.ID).Int("pages", len(images)).
		Msg("no extracted text, using vision fallback")

	started := time.Now()
	raw, err := analyzer.AnalyzeImages(ctx, adapter.ImageRequest{
		Images:           images,
		OriginalFilename: doc.DisplayName(),
	})
	metrics.ObserveAICall(analyzer.Name(), "vision", int(time.Since(started).Milliseconds()), err == nil)
	if err != nil {
		return "", fmt.Errorf("vision analysis: %w", err)
	}
	return raw, nil
}

func (u *ClassificationUseCase) renderForVision(doc *model.Document, settings AISettings) ([]string, error) {
	path := filepath.Join(u.uploadDir, doc.FilePath)
	mime := strings.ToLower(doc.MimeType)
	switch {
	case mime == "application/pdf":
		images, err := u.pdf.RenderPages(path, settings.MaxPages, settings.VisionDPI)
		if err != nil {
			return nil, fmt.Errorf("render pages: %w", err)
		}
		return images, nil
	case strings.HasPrefix(mime, "image/"):
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableInput, err)
		}
		return []string{base64.StdEncoding.EncodeToString(b)}, nil
	default:
		return nil, fmt.Errorf("%w: no text and mime type %s has no vision path",
			domain.ErrNoAnalysisPossible, doc.MimeType)
	}
}

// apply writes the judgment to the document and returns the list of changed
// fields for the update event.
func (u *ClassificationUseCase) apply(ctx context.Context, doc *model.Document, result *model.AnalysisResult) ([]string, error) {
	var changed []string

	if result.SuggestedName != "" && result.SuggestedName != doc.AIGeneratedName {
		doc.AIGeneratedName = result.SuggestedName
		changed = append(changed, "ai_generated_name")
	}
	if result.DocumentType != doc.DocumentType {
		doc.DocumentType = result.DocumentType
		changed = append(changed, "document_type")
	}
	if len(result.ExtractedMetadata) > 0 {
		doc.AIMetadata = result.ExtractedMetadata
		changed = append(changed, "ai_metadata")
	}

	changed = append(changed, u.applyBillTracking(doc, result)...)

	if err := u.docs.SaveAnalysis(ctx, nil, doc); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	if len(result.SuggestedTags) > 0 {
		if err := u.attachTags(ctx, doc, result.SuggestedTags); err != nil {
			return nil, err
		}
		changed = append(changed, "tags")
	}

	if err := u.docs.RefreshSearchIndex(ctx, nil, doc.ID); err != nil {
		u.log.Warn().Err(err).Str("document_id", doc.ID).Msg("search index refresh failed")
	}
	return changed, nil
}

// applyBillTracking keeps the bill fields consistent with the document type.
// Paid and dismissed statuses are user decisions and are never reopened or
// cleared by a re-run; leaving the billable categories only closes an open
// unpaid bill.
func (u *ClassificationUseCase) applyBillTracking(doc *model.Document, result *model.AnalysisResult) []string {
	var changed []string
	if model.Billable(doc.DocumentType) {
		if doc.BillStatus != model.BillStatusPaid && doc.BillStatus != model.BillStatusDismissed {
			if doc.BillStatus != model.BillStatusUnpaid {
				doc.BillStatus = model.BillStatusUnpaid
				changed = append(changed, "bill_status")
			}
		}
		if raw, ok := result.ExtractedMetadata["due_date"].(string); ok && raw != "" {
			if due, err := time.Parse("2006-01-02", raw); err == nil {
				doc.BillDueDate = &due
				changed = append(changed, "bill_due_date")
			} else {
				u.log.Debug().Str("document_id", doc.ID).Str("due_date", raw).
					Msg("unparseable due date in analysis metadata")
			}
		}
		return changed
	}
	if doc.BillStatus == model.BillStatusUnpaid {
		doc.BillStatus = ""
		doc.BillDueDate = nil
		changed = append(changed, "bill_status")
	}
	return changed
}

func (u *ClassificationUseCase) attachTags(ctx context.Context, doc *model.Document, names []string) error {
	for _, name := range names {
		tag, err := u.tags.FindOrCreate(ctx, nil, doc.UserID, name)
		if err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
		if err := u.tags.Attach(ctx, nil, doc.ID, tag.ID); err != nil {
			return fmt.Errorf("attach tag %q: %w", name, err)
		}
	}
	return nil
}
