package ocr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"

	"docstream/internal/domain"
	"docstream/internal/domain/ports/adapter"
)

var _ adapter.PDFToolkit = (*FitzToolkit)(nil)

// FitzToolkit does the in-process PDF work through MuPDF: embedded-text
// reads, page counts, and page rendering for the vision fallback.
type FitzToolkit struct{}

func NewFitzToolkit() *FitzToolkit { return &FitzToolkit{} }

func (t *FitzToolkit) open(path string) (*fitz.Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		// MuPDF refuses encrypted and structurally broken files at open time.
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableInput, err)
	}
	return doc, nil
}

func (t *FitzToolkit) ExtractText(path string) (string, int, error) {
	doc, err := t.open(path)
	if err != nil {
		return "", 0, err
	}
	defer doc.Close()

	pages := doc.NumPage()
	var parts []string
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue // a single bad page should not lose the rest
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}

func (t *FitzToolkit) PageCount(path string) (int, error) {
	doc, err := t.open(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func (t *FitzToolkit) RenderPages(path string, maxPages, dpi int) ([]string, error) {
	doc, err := t.open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	count := doc.NumPage()
	if maxPages > 0 && count > maxPages {
		count = maxPages
	}
	images := make([]string, 0, count)
	for i := 0; i < count; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i, err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return images, nil
}
