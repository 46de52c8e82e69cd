package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"docstream/internal/domain/ports/adapter"
)

var _ adapter.ImageRecognizer = (*TesseractRecognizer)(nil)

// TesseractRecognizer runs single-image text recognition in-process.
// Best-effort: an empty result is not an error.
type TesseractRecognizer struct {
	languages []string
}

// NewTesseractRecognizer accepts the "eng+fra" language convention.
func NewTesseractRecognizer(language string) *TesseractRecognizer {
	langs := strings.Split(language, "+")
	if len(langs) == 0 || langs[0] == "" {
		langs = []string{"eng"}
	}
	return &TesseractRecognizer{languages: langs}
}

func (r *TesseractRecognizer) RecognizeImage(ctx context.Context, path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return "", err
	}
	if err := client.SetImage(path); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
