// Package config loads engine settings from defaults, an optional TOML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App    AppConfig    `toml:"app"`
	Log    LogConfig    `toml:"log"`
	AWS    AWSConfig    `toml:"aws"`
	Store  StoreConfig  `toml:"store"`
	Index  IndexConfig  `toml:"index"`
	Blob   BlobConfig   `toml:"blob"`
	LLM    LLMConfig    `toml:"llm"`
	Redis  RedisConfig  `toml:"redis"`
	Report ReportConfig `toml:"report"`
	Engine EngineConfig `toml:"engine"`
	Mail   MailConfig   `toml:"mail"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// File enables a rotated JSON log file in addition to stdout.
	File string `toml:"file"`
}

type AWSConfig struct {
	Region      string `toml:"region"`
	ParamPrefix string `toml:"param_prefix"`
	// Vision enables Rekognition image descriptions.
	Vision bool `toml:"vision"`
}

type StoreConfig struct {
	// Table is the DynamoDB sessions table. Empty selects the in-memory store.
	Table string `toml:"table"`
}

type IndexConfig struct {
	Path string `toml:"path"`
	TopK int    `toml:"top_k"`
}

type BlobConfig struct {
	Bucket  string `toml:"bucket"`
	BaseURL string `toml:"base_url"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// APIKeyParam names an SSM parameter holding {"token": "..."}; used when
	// APIKey is empty.
	APIKeyParam string  `toml:"api_key_param"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type RedisConfig struct {
	// Addr selects the Redis pending-report store; empty keeps reports in memory.
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type ReportConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

type EngineConfig struct {
	HistoryWindow     int `toml:"history_window"`
	MaxNoteChars      int `toml:"max_note_chars"`
	ChunkSize         int `toml:"chunk_size"`
	IDAttempts        int `toml:"id_attempts"`
	IDBackoffMillis   int `toml:"id_backoff_ms"`
	IngestConcurrency int `toml:"ingest_concurrency"`
}

type MailConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	From      string `toml:"from"`
	ContactTo string `toml:"contact_to"`
}

// Load builds the configuration. A missing config file is not an error; a
// malformed one is.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", configPath, err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

func (c *Config) ReportTTL() time.Duration {
	return time.Duration(c.Report.TTLSeconds) * time.Second
}

func (c *Config) IDBackoff() time.Duration {
	return time.Duration(c.Engine.IDBackoffMillis) * time.Millisecond
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("config: app.port %d out of range", c.App.Port)
	}
	if c.Index.Path == "" {
		return errors.New("config: index.path must not be empty")
	}
	if c.Engine.ChunkSize <= 0 {
		return errors.New("config: engine.chunk_size must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "assistant-engine",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Log: LogConfig{Level: "info"},
		AWS: AWSConfig{
			ParamPrefix: "/assistant-engine",
		},
		Index: IndexConfig{
			Path: "data/index.db",
			TopK: 3,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyParam: "openai-token",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Report: ReportConfig{TTLSeconds: 3600},
		Engine: EngineConfig{
			HistoryWindow:     20,
			MaxNoteChars:      12000,
			ChunkSize:         1000,
			IDAttempts:        5,
			IDBackoffMillis:   50,
			IngestConcurrency: 4,
		},
		Mail: MailConfig{Port: 587},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.AWS.Region = getEnv("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.ParamPrefix = getEnv("PARAM_PREFIX", cfg.AWS.ParamPrefix)
	cfg.AWS.Vision = getEnvAsBool("VISION_ENABLED", cfg.AWS.Vision)

	cfg.Store.Table = getEnv("SESSIONS_TABLE", cfg.Store.Table)

	cfg.Index.Path = getEnv("INDEX_PATH", cfg.Index.Path)
	cfg.Index.TopK = getEnvAsInt("INDEX_TOP_K", cfg.Index.TopK)

	cfg.Blob.Bucket = getEnv("BLOB_BUCKET", cfg.Blob.Bucket)
	cfg.Blob.BaseURL = getEnv("BLOB_BASE_URL", cfg.Blob.BaseURL)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.APIKeyParam = getEnv("LLM_API_KEY_PARAM", cfg.LLM.APIKeyParam)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Report.TTLSeconds = getEnvAsInt("REPORT_TTL_SECONDS", cfg.Report.TTLSeconds)

	cfg.Engine.HistoryWindow = getEnvAsInt("HISTORY_WINDOW", cfg.Engine.HistoryWindow)
	cfg.Engine.MaxNoteChars = getEnvAsInt("MAX_NOTE_CHARS", cfg.Engine.MaxNoteChars)
	cfg.Engine.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.Engine.ChunkSize)
	cfg.Engine.IDAttempts = getEnvAsInt("ID_ATTEMPTS", cfg.Engine.IDAttempts)
	cfg.Engine.IDBackoffMillis = getEnvAsInt("ID_BACKOFF_MS", cfg.Engine.IDBackoffMillis)
	cfg.Engine.IngestConcurrency = getEnvAsInt("INGEST_CONCURRENCY", cfg.Engine.IngestConcurrency)

	cfg.Mail.Host = getEnv("SMTP_HOST", cfg.Mail.Host)
	cfg.Mail.Port = getEnvAsInt("SMTP_PORT", cfg.Mail.Port)
	cfg.Mail.Username = getEnv("SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnv("SMTP_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnv("MAIL_FROM", cfg.Mail.From)
	cfg.Mail.ContactTo = getEnv("CONTACT_TO", cfg.Mail.ContactTo)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
