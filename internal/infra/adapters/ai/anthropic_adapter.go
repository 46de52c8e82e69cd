package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docstream/internal/domain/ports/adapter"
)

var _ adapter.DocumentAnalyzer = (*AnthropicAdapter)(nil)

// AnthropicAdapter implements adapter.DocumentAnalyzer against the Messages
// API. The system prompt rides in the top-level system parameter; images are
// base64 content blocks.
type AnthropicAdapter struct {
	apiKey      string
	base        string
	model       string
	visionModel string
	maxText     int
	client      *http.Client
}

const anthropicVersion = "2023-06-01"

func NewAnthropicAdapter(cfg Config) *AnthropicAdapter {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = model
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.anthropic.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicAdapter{
		apiKey:      cfg.APIKey,
		base:        strings.TrimRight(base, "/"),
		model:       model,
		visionModel: visionModel,
		maxText:     cfg.MaxTextLength,
		client:      &http.Client{Timeout: timeout},
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) AnalyzeText(ctx context.Context, req adapter.TextRequest) (string, error) {
	body := map[string]any{
		"model":       a.model,
		"max_tokens":  1024,
		"system":      systemPrompt,
		"temperature": 0.2,
		"messages": []map[string]any{
			{"role": "user", "content": buildUserMessage(req.Text, req.OriginalFilename, a.maxText)},
		},
	}
	return a.message(ctx, body)
}

func (a *AnthropicAdapter) AnalyzeImages(ctx context.Context, req adapter.ImageRequest) (string, error) {
	content := []map[string]any{
		{"type": "text", "text": "Original filename: " + req.OriginalFilename},
	}
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": "image/png",
				"data":       img,
			},
		})
	}
	body := map[string]any{
		"model":       a.visionModel,
		"max_tokens":  1024,
		"system":      visionSystemPrompt,
		"temperature": 0.2,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	return a.message(ctx, body)
}

func (a *AnthropicAdapter) Ping(ctx context.Context) error {
	body := map[string]any{
		"model":      a.model,
		"max_tokens": 4,
		"messages": []map[string]any{
			{"role": "user", "content": "Reply with OK"},
		},
	}
	_, err := a.message(ctx, body)
	return err
}

func (a *AnthropicAdapter) message(ctx context.Context, body map[string]any) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text, nil
		}
	}
	return "", errors.New("no text content block")
}
