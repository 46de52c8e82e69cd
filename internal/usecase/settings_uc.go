package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"docstream/internal/config"
	"docstream/internal/domain"
	"docstream/internal/domain/ports/adapter"
	"docstream/internal/domain/ports/repository"
	"docstream/internal/infra/adapters/ai"
	"docstream/internal/infra/security"
)

const (
	settingsCacheTTL = 5 * time.Minute
	pingTimeoutCap   = 10 * time.Second
	maskedValue      = "********"
)

// aiSettingKeys are the keys resolvable through the settings store, in
// definition order for Reset.
var aiSettingKeys = []string{
	"ai_provider",
	"ai_api_key",
	"ai_model",
	"ai_base_url",
	"ai_vision_model",
	"ai_max_text_length",
	"ai_timeout_seconds",
	"ai_max_pages",
	"ai_vision_dpi",
}

// AISettings is the effective provider configuration after merging the DB
// overrides with the static config fallback.
type AISettings struct {
	Provider      string
	APIKey        string
	Model         string
	VisionModel   string
	BaseURL       string
	MaxTextLength int
	Timeout       time.Duration
	MaxPages      int
	VisionDPI     int
}

// ProviderConfig narrows to what an analyzer adapter needs.
func (s AISettings) ProviderConfig() ai.Config {
	return ai.Config{
		Provider:      s.Provider,
		APIKey:        s.APIKey,
		Model:         s.Model,
		VisionModel:   s.VisionModel,
		BaseURL:       s.BaseURL,
		MaxTextLength: s.MaxTextLength,
		Timeout:       s.Timeout,
	}
}

type cachedSetting struct {
	value     string
	found     bool
	fetchedAt time.Time
}

// SettingsUseCase resolves runtime settings DB-first with the static config
// as fallback, caching each key for a short TTL so per-job resolution does
// not hammer the settings table. Secret values (the api key) are stored
// encrypted and never returned unmasked to callers outside resolution.
type SettingsUseCase struct {
	repo     repository.SettingRepository
	enc      *security.EncryptionService
	fallback config.AIConfig
	factory  func(ai.Config) (adapter.DocumentAnalyzer, error)
	log      *zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedSetting
	now   func() time.Time
}

func NewSettingsUseCase(
	repo repository.SettingRepository,
	enc *security.EncryptionService,
	fallback config.AIConfig,
	log *zerolog.Logger,
) *SettingsUseCase {
	return &SettingsUseCase{
		repo:     repo,
		enc:      enc,
		fallback: fallback,
		factory:  ai.FromConfig,
		log:      log,
		cache:    make(map[string]cachedSetting),
		now:      time.Now,
	}
}

// lookup returns the stored value for key, consulting the TTL cache first.
// The second return reports whether the key exists in the store at all;
// a missing key is cached too, so repeated fallback reads stay cheap.
func (s *SettingsUseCase) lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	entry, ok := s.cache[key]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetchedAt) < settingsCacheTTL {
		return entry.value, entry.found, nil
	}

	setting, err := s.repo.Get(ctx, nil, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return "", false, err
		}
		s.store(key, "", false)
		return "", false, nil
	}
	value := setting.Value
	if setting.IsSecret && value != "" {
		value, err = s.enc.Decrypt(value)
		if err != nil {
			return "", false, fmt.Errorf("decrypt setting %s: %w", key, err)
		}
	}
	s.store(key, value, true)
	return value, true, nil
}

func (s *SettingsUseCase) store(key, value string, found bool) {
	s.mu.Lock()
	s.cache[key] = cachedSetting{value: value, found: found, fetchedAt: s.now()}
	s.mu.Unlock()
}

// ClearCache drops all cached entries so the next resolution hits the store.
func (s *SettingsUseCase) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]cachedSetting)
	s.mu.Unlock()
}

func (s *SettingsUseCase) resolveString(ctx context.Context, key, fallback string) string {
	value, found, err := s.lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("setting lookup failed, using fallback")
		return fallback
	}
	if !found || value == "" {
		return fallback
	}
	return value
}

func (s *SettingsUseCase) resolveInt(ctx context.Context, key string, fallback int) int {
	raw := s.resolveString(ctx, key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", raw).Msg("setting is not an integer, using fallback")
		return fallback
	}
	return n
}

// Resolve builds the effective AI settings for the next analysis call.
func (s *SettingsUseCase) Resolve(ctx context.Context) AISettings {
	out := AISettings{
		Provider:      s.resolveString(ctx, "ai_provider", s.fallback.Provider),
		APIKey:        s.resolveString(ctx, "ai_api_key", s.fallback.APIKey),
		Model:         s.resolveString(ctx, "ai_model", s.fallback.Model),
		VisionModel:   s.resolveString(ctx, "ai_vision_model", s.fallback.VisionModel),
		BaseURL:       s.resolveString(ctx, "ai_base_url", s.fallback.BaseURL),
		MaxTextLength: s.resolveInt(ctx, "ai_max_text_length", s.fallback.MaxTextLength),
		MaxPages:      s.resolveInt(ctx, "ai_max_pages", s.fallback.MaxPages),
		VisionDPI:     s.resolveInt(ctx, "ai_vision_dpi", s.fallback.VisionDPI),
	}
	seconds := s.resolveInt(ctx, "ai_timeout_seconds", int(s.fallback.Timeout/time.Second))
	out.Timeout = time.Duration(seconds) * time.Second
	if out.Timeout <= 0 {
		out.Timeout = 60 * time.Second
	}
	return out
}

// View returns the stored overrides for display, masking secret values.
func (s *SettingsUseCase) View(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(aiSettingKeys))
	for _, key := range aiSettingKeys {
		setting, err := s.repo.Get(ctx, nil, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if setting.IsSecret && setting.Value != "" {
			out[key] = maskedValue
			continue
		}
		out[key] = setting.Value
	}
	return out, nil
}

// Update upserts the given overrides. The api key is encrypted before it is
// stored; submitting the masked placeholder leaves the stored secret intact.
func (s *SettingsUseCase) Update(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		secret := key == "ai_api_key"
		if secret {
			if value == maskedValue {
				continue
			}
			if value != "" {
				encrypted, err := s.enc.Encrypt(value)
				if err != nil {
					return fmt.Errorf("encrypt %s: %w", key, err)
				}
				value = encrypted
			}
		}
		setting := &repository.AppSetting{Key: key, Value: value, IsSecret: secret}
		if err := s.repo.Upsert(ctx, nil, setting); err != nil {
			return err
		}
	}
	s.ClearCache()
	return nil
}

// Reset removes all stored overrides, reverting to the static config.
func (s *SettingsUseCase) Reset(ctx context.Context) error {
	if err := s.repo.DeleteKeys(ctx, nil, aiSettingKeys); err != nil {
		return err
	}
	s.ClearCache()
	return nil
}

// TestConnection builds the currently configured analyzer and pings it with
// a short deadline regardless of the configured call timeout.
func (s *SettingsUseCase) TestConnection(ctx context.Context) error {
	settings := s.Resolve(ctx)
	cfg := settings.ProviderConfig()
	if cfg.Timeout <= 0 || cfg.Timeout > pingTimeoutCap {
		cfg.Timeout = pingTimeoutCap
	}
	analyzer, err := s.factory(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeoutCap)
	defer cancel()
	return analyzer.Ping(ctx)
}
