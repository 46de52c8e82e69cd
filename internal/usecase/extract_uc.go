package usecase

import (
	"context"
	"errors"
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
	"docstream/internal/infra/metrics"
	"docstream/internal/infra/ocr"
)

// errSkipRequested is internal control flow: a batch skip signal arrived
// while the recognition subprocess was running.
var errSkipRequested = errors.New("skip requested")

type extraction struct {
	text  string
	pages int
}

// progressFn reports an intermediate phase percentage. Batch runs pass nil;
// queue-driven runs report through the job tracker.
type progressFn func(percent int)

// ExtractionUseCase runs the text extraction stage. PDFs try the embedded
// text layer first and only fall back to the external recognition
// subprocess when the fast read comes back empty; images go through the
// recognizer; plain text formats are read directly. Everything else
// completes with no extractable content.
type ExtractionUseCase struct {
	docs    repository.DocumentRepository
	tracker *JobTracker
	pdf     adapter.PDFToolkit
	images  adapter.ImageRecognizer
	runner  adapter.RecognitionRunner
	signals repository.BatchSignalRepository
	chainer *PipelineChainer
	log     *zerolog.Logger

	uploadDir    string
	pollInterval time.Duration
}

func NewExtractionUseCase(
	docs repository.DocumentRepository,
	tracker *JobTracker,
	pdf adapter.PDFToolkit,
	images adapter.ImageRecognizer,
	runner adapter.RecognitionRunner,
	signals repository.BatchSignalRepository,
	chainer *PipelineChainer,
	log *zerolog.Logger,
	uploadDir string,
	pollInterval time.Duration,
) *ExtractionUseCase {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &ExtractionUseCase{
		docs:         docs,
		tracker:      tracker,
		pdf:          pdf,
		images:       images,
		runner:       runner,
		signals:      signals,
		chainer:      chainer,
		log:          log,
		uploadDir:    uploadDir,
		pollInterval: pollInterval,
	}
}

// Run executes the stage for a queued job, reporting lifecycle and progress
// through the tracker. The returned error is the queue's signal to retry or
// fail the job.
func (u *ExtractionUseCase) Run(ctx context.Context, jobID, documentID string) error {
	u.tracker.Start(ctx, jobID)

	doc, err := u.docs.FindByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	u.tracker.UpdateProgress(ctx, jobID, 10, "")

	report := func(percent int) { u.tracker.UpdateProgress(ctx, jobID, percent, "") }
	res, err := u.extract(ctx, doc, "", report)
	if err != nil {
		return err
	}
	u.tracker.UpdateProgress(ctx, jobID, 80, "")

	if err := u.persist(ctx, doc, res.text); err != nil {
		return err
	}
	u.tracker.UpdateProgress(ctx, jobID, 90, "")

	u.tracker.Complete(ctx, jobID, map[string]any{
		"document_id":     doc.ID,
		"pages_processed": res.pages,
		"text_length":     len(res.text),
		"text_extracted":  strings.TrimSpace(res.text) != "",
	})

	if u.chainer != nil {
		u.chainer.ChainAnalysis(ctx, doc.ID)
	}
	return nil
}

// RunForDocument executes the stage synchronously inside a batch run and
// folds the result into a tri-state outcome. runID enables the in-flight
// skip signal.
func (u *ExtractionUseCase) RunForDocument(ctx context.Context, doc *model.Document, runID string) model.DocumentOutcome {
	res, err := u.extract(ctx, doc, runID, nil)
	if err != nil {
		if errors.Is(err, errSkipRequested) {
			return model.Skipped("Skipped by user")
		}
		return model.Failed(err.Error())
	}
	if err := u.persist(ctx, doc, res.text); err != nil {
		return model.Failed(err.Error())
	}
	return model.Succeeded()
}

func (u *ExtractionUseCase) persist(ctx context.Context, doc *model.Document, text string) error {
	doc.ContentText = text
	now := time.Now()
	doc.ProcessedDate = &now
	if err := u.docs.SaveText(ctx, nil, doc); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	if err := u.docs.RefreshSearchIndex(ctx, nil, doc.ID); err != nil {
		u.log.Warn().Err(err).Str("document_id", doc.ID).Msg("search index refresh failed")
	}
	return nil
}

func (u *ExtractionUseCase) extract(ctx context.Context, doc *model.Document, runID string, report progressFn) (extraction, error) {
	if report == nil {
		report = func(int) {}
	}
	path := filepath.Join(u.uploadDir, doc.FilePath)
	mime := strings.ToLower(doc.MimeType)

	switch {
	case mime == "application/pdf":
		return u.extractPDF(ctx, doc, path, runID, report)
	case strings.HasPrefix(mime, "image/"):
		text, err := u.images.RecognizeImage(ctx, path)
		if err != nil {
			u.log.Warn().Err(err).Str("document_id", doc.ID).Msg("image recognition failed")
			return extraction{pages: 1}, nil
		}
		return extraction{text: text, pages: 1}, nil
	case strings.HasPrefix(mime, "text/"):
		b, err := os.ReadFile(path)
		if err != nil {
			return extraction{}, fmt.Errorf("%w: %v", domain.ErrUnreadableInput, err)
		}
		return extraction{text: string(b), pages: 1}, nil
	default:
		u.log.Info().Str("document_id", doc.ID).Str("mime_type", doc.MimeType).
			Msg("no extractable content for mime type")
		return extraction{}, nil
	}
}

func (u *ExtractionUseCase) extractPDF(ctx context.Context, doc *model.Document, path, runID string, report progressFn) (extraction, error) {
	text, pages, err := u.pdf.ExtractText(path)
	if err != nil {
		return extraction{}, err
	}
	if strings.TrimSpace(text) != "" {
		metrics.IncOCRPath("embedded", "success")
		return extraction{text: text, pages: pages}, nil
	}
	report(20)

	// No embedded text layer, run the external recognizer against a
	// temporary output so a killed run never touches the original.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ocr-*.pdf")
	if err != nil {
		return extraction{}, fmt.Errorf("create recognition output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	proc, err := u.runner.Start(ctx, path, tmpPath)
	if err != nil {
		metrics.IncOCRPath("subprocess", "error")
		return extraction{}, fmt.Errorf("start recognition: %w", err)
	}

	started := time.Now()
	priorText := false
	for {
		if ctx.Err() != nil {
			_ = proc.Kill()
			return extraction{}, ctx.Err()
		}
		if runID != "" && u.signals.ShouldSkip(ctx, runID) {
			_ = proc.Kill()
			metrics.IncOCRPath("subprocess", "skipped")
			u.log.Info().Str("document_id", doc.ID).Str("run_id", runID).
				Msg("recognition subprocess killed by skip signal")
			return extraction{}, errSkipRequested
		}
		finished, werr := proc.Wait(u.pollInterval)
		if !finished {
			continue
		}
		metrics.ObserveOCRSubprocess(time.Since(started).Seconds())
		if werr == nil {
			break
		}
		if errors.Is(werr, ocr.ErrPriorText) {
			priorText = true
			break
		}
		metrics.IncOCRPath("subprocess", "error")
		return extraction{}, fmt.Errorf("recognition subprocess: %w", werr)
	}
	report(50)

	if priorText {
		// The recognizer found an existing text layer our fast read missed.
		text, pages, err = u.pdf.ExtractText(path)
		if err != nil {
			return extraction{}, err
		}
		metrics.IncOCRPath("prior", "success")
		return extraction{text: text, pages: pages}, nil
	}

	text, pages, err = u.pdf.ExtractText(tmpPath)
	if err != nil {
		return extraction{}, fmt.Errorf("read recognized output: %w", err)
	}
	report(60)
	if err := os.Rename(tmpPath, path); err != nil {
		u.log.Warn().Err(err).Str("document_id", doc.ID).
			Msg("could not replace original with recognized copy")
	}
	metrics.IncOCRPath("subprocess", "success")
	return extraction{text: text, pages: pages}, nil
}
