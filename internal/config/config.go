package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // control-signal key TTL
}

type AIConfig struct {
	Provider      string        `yaml:"provider"` // openai|anthropic|gemini|ollama|none
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"` // ollama / openai-compatible gateways
	VisionModel   string        `yaml:"vision_model"`
	MaxTextLength int           `yaml:"max_text_length"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPages      int           `yaml:"max_pages"`  // vision fallback page cap
	VisionDPI     int           `yaml:"vision_dpi"` // vision fallback render resolution
}

type OCRConfig struct {
	Language     string        `yaml:"language"` // "eng" or "eng+fra"
	DPI          int           `yaml:"dpi"`
	PollInterval time.Duration `yaml:"poll_interval"` // subprocess skip-check granularity
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

type WorkerConfig struct {
	Count      int           `yaml:"count"`
	PollEvery  time.Duration `yaml:"poll_every"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	OCR      OCRConfig      `yaml:"ocr"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Storage.UploadDir == "" {
		return nil, errors.New("storage.upload_dir is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "none"
	}
	if cfg.AI.MaxTextLength <= 0 {
		cfg.AI.MaxTextLength = 4000
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.MaxPages <= 0 {
		cfg.AI.MaxPages = 5
	}
	if cfg.AI.VisionDPI <= 0 {
		cfg.AI.VisionDPI = 150
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.OCR.DPI <= 0 {
		cfg.OCR.DPI = 300
	}
	if cfg.OCR.PollInterval <= 0 {
		cfg.OCR.PollInterval = 2 * time.Second
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.PollEvery <= 0 {
		cfg.Worker.PollEvery = 500 * time.Millisecond
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryDelay <= 0 {
		cfg.Worker.RetryDelay = 30 * time.Second
	}
}
