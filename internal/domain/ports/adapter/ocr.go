package adapter

import (
	"context"
	"time"
)

// PDFToolkit wraps the fast, in-process PDF operations: embedded-text read,
// page counting and page rendering for the vision fallback.
type PDFToolkit interface {
	// ExtractText returns the embedded text of every page that has any,
	// joined by blank lines, plus the page count. Encrypted or corrupt files
	// return domain.ErrUnreadableInput.
	ExtractText(path string) (text string, pages int, err error)
	PageCount(path string) (int, error)
	// RenderPages renders up to maxPages pages at the given DPI and returns
	// them as base64-encoded PNGs.
	RenderPages(path string, maxPages, dpi int) ([]string, error)
}

// ImageRecognizer runs text recognition against a single image file.
type ImageRecognizer interface {
	RecognizeImage(ctx context.Context, path string) (string, error)
}

// RecognitionProcess is one running external recognition subprocess.
type RecognitionProcess interface {
	// Wait blocks up to interval. finished is false on a poll timeout; err
	// carries the subprocess failure once finished.
	Wait(interval time.Duration) (finished bool, err error)
	// Kill hard-stops the subprocess. Used when a skip signal is observed.
	Kill() error
}

// RecognitionRunner starts the external recognition subprocess, writing a
// recognized copy of inputPath to outputPath.
type RecognitionRunner interface {
	Start(ctx context.Context, inputPath, outputPath string) (RecognitionProcess, error)
}
