package adapter

import "context"

// TextRequest carries the extracted text path inputs for one analysis call.
type TextRequest struct {
	Text             string
	OriginalFilename string
}

// ImageRequest carries the vision fallback inputs: base64-encoded PNG pages.
type ImageRequest struct {
	Images           []string
	OriginalFilename string
}

// DocumentAnalyzer is the port for one AI provider. Implementations build the
// provider-specific call shape and return the raw response body; parsing into
// a structured result happens in the classification stage, uniformly.
type DocumentAnalyzer interface {
	// Name returns the provider identifier ("openai", "anthropic", ...).
	Name() string
	AnalyzeText(ctx context.Context, req TextRequest) (string, error)
	AnalyzeImages(ctx context.Context, req ImageRequest) (string, error)
	// Ping performs a minimal round-trip for the connectivity self-test.
	Ping(ctx context.Context) error
}
