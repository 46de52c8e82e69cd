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

// Compile-time assurance this adapter satisfies the port
var _ adapter.DocumentAnalyzer = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.DocumentAnalyzer using the Chat
// Completions API with response_format=json_object.
type OpenAIAdapter struct {
	apiKey      string
	base        string // e.g., https://api.openai.com/v1
	model       string
	visionModel string
	maxText     int
	client      *http.Client
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = "gpt-4o"
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIAdapter{
		apiKey:      cfg.APIKey,
		base:        strings.TrimRight(base, "/"),
		model:       model,
		visionModel: visionModel,
		maxText:     cfg.MaxTextLength,
		client:      &http.Client{Timeout: timeout},
	}
}

func (o *OpenAIAdapter) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or content-part list for vision
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
	MaxTokens int `json:"max_tokens,omitempty"`
}

var jsonObjectFormat = &struct {
	Type string `json:"type"`
}{Type: "json_object"}

func (o *OpenAIAdapter) AnalyzeText(ctx context.Context, req adapter.TextRequest) (string, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserMessage(req.Text, req.OriginalFilename, o.maxText)},
		},
		Temperature:    0.2,
		ResponseFormat: jsonObjectFormat,
	}
	return o.complete(ctx, body)
}

func (o *OpenAIAdapter) AnalyzeImages(ctx context.Context, req adapter.ImageRequest) (string, error) {
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
	return o.complete(ctx, body)
}

func (o *OpenAIAdapter) Ping(ctx context.Context) error {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "user", Content: "Reply with OK"},
		},
		Temperature: 0,
		MaxTokens:   4,
	}
	_, err := o.complete(ctx, body)
	return err
}

func (o *OpenAIAdapter) complete(ctx context.Context, body chatRequest) (string, error) {
	return completeOpenAIStyle(ctx, o.client, o.base, o.apiKey, body)
}

// completeOpenAIStyle posts a chat completion to any OpenAI-compatible
// endpoint and returns the first non-empty choice. Shared with the Ollama
// adapter, which speaks the same dialect.
func completeOpenAIStyle(ctx context.Context, client *http.Client, base, apiKey string, body chatRequest) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completions http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}
