package ai

import (
	"fmt"
	"strings"
	"time"

	"docstream/internal/domain"
	"docstream/internal/domain/ports/adapter"
)

// Config is the resolved provider configuration for one analysis call.
// It comes from the settings service (DB-first with config fallback), not
// from process-wide state, so a settings change takes effect on the next job.
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	VisionModel   string
	BaseURL       string
	MaxTextLength int
	Timeout       time.Duration
}

// FromConfig selects the provider adapter by identifier. "none" and unknown
// identifiers are configuration errors, never retried.
func FromConfig(cfg Config) (adapter.DocumentAnalyzer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "none":
		return nil, domain.ErrNotConfigured
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider openai", domain.ErrMissingCredential)
		}
		return NewOpenAIAdapter(cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider anthropic", domain.ErrMissingCredential)
		}
		return NewAnthropicAdapter(cfg), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider gemini", domain.ErrMissingCredential)
		}
		return NewGeminiAdapter(cfg)
	case "ollama":
		// Local model, no credential required.
		return NewOllamaAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrNotConfigured, cfg.Provider)
	}
}
