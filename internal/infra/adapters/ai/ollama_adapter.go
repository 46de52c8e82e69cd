package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"docstream/internal/domain/ports/adapter"
)

var _ adapter.DocumentAnalyzer = (*OllamaAdapter)(nil)

// OllamaAdapter talks to a local Ollama server through its OpenAI-compatible
// API. Base URL defaults to http://localhost:11434/v1; the bearer token is a
// fixed placeholder because Ollama ignores it.
type OllamaAdapter struct {
	base        string
	model       string
	visionModel string
	maxText     int
	client      *http.Client
}

func NewOllamaAdapter(cfg Config) *OllamaAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = "granite3.2-vision"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaAdapter{
		base:        base,
		model:       model,
		visionModel: visionModel,
		maxText:     cfg.MaxTextLength,
		client:      &http.Client{Timeout: timeout},
	}
}

func (o *OllamaAdapter) Name() string { return "ollama" }

func (o *OllamaAdapter) AnalyzeText(ctx context.Context, req adapter.TextRequest) (string, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserMessage(req.Text, req.OriginalFilename, o.maxText)},
		},
		Temperature:    0.2,
		ResponseFormat: jsonObjectFormat,
	}
	return completeOpenAIStyle(ctx, o.client, o.base, "ollama", body)
}

func (o *OllamaAdapter) AnalyzeImages(ctx context.Context, req adapter.ImageRequest) (string, error) {
	content := []map[string]any{
		{"type": "text", "text": "Original filename: " + req.OriginalFilename},
	}
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url":    "data:image/png;base64," + img,
				"detail": "high",
			},
		})
	}
	body := chatRequest{
		Model: o.visionModel,
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: content},
		},
		Temperature:    0.2,
		ResponseFormat: jsonObjectFormat,
	}
	return completeOpenAIStyle(ctx, o.client, o.base, "ollama", body)
}

func (o *OllamaAdapter) Ping(ctx context.Context) error {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "user", Content: "Reply with OK"},
		},
		Temperature: 0,
		MaxTokens:   4,
	}
	_, err := completeOpenAIStyle(ctx, o.client, o.base, "ollama", body)
	return err
}
