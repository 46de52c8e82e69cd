package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"google.golang.org/genai"

	"docstream/internal/domain/ports/adapter"
)

var _ adapter.DocumentAnalyzer = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.DocumentAnalyzer using the official SDK.
// The JSON-object contract is enforced through ResponseMIMEType.
type GeminiAdapter struct {
	client      *genai.Client
	model       string
	visionModel string
	maxText     int
	timeout     time.Duration
}

func NewGeminiAdapter(cfg Config) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiAdapter{
		client:      c,
		model:       model,
		visionModel: visionModel,
		maxText:     cfg.MaxTextLength,
		timeout:     timeout,
	}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) AnalyzeText(ctx context.Context, req adapter.TextRequest) (string, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: buildUserMessage(req.Text, req.OriginalFilename, g.maxText)}},
	}}
	return g.generate(ctx, g.model, systemPrompt, contents)
}

func (g *GeminiAdapter) AnalyzeImages(ctx context.Context, req adapter.ImageRequest) (string, error) {
	parts := []*genai.Part{{Text: "Original filename: " + req.OriginalFilename}}
	for _, img := range req.Images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return "", err
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: raw},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	return g.generate(ctx, g.visionModel, visionSystemPrompt, contents)
}

func (g *GeminiAdapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: "Reply with OK"}},
	}}
	_, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: 4,
	})
	return err
}

func (g *GeminiAdapter) generate(ctx context.Context, model, system string, contents []*genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr[float32](0.2),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.New("gemini: no candidate text")
}
