package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Generation providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Host     string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"SERVER_HTTP_PORT" default:"3000"`

	Environment string `envconfig:"SERVER_ENV" default:"development"`

	// Timeouts. Write timeout covers transcription polling plus generation.
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10m"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	TranscriptionConfig
	GenerationConfig

	// Uploads
	UploadDir      string `envconfig:"UPLOAD_DIR"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`

	// Redis
	RedisURL  string        `envconfig:"REDIS_URL"`
	ResultTTL time.Duration `envconfig:"RESULT_TTL" default:"24h"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Cloudflare R2
	CloudflareAccessKeyID string `envconfig:"CLOUDFLARE_ACCESS_KEY_ID"`
	CloudflareSecretKey   string `envconfig:"CLOUDFLARE_SECRET_ACCESS_KEY"`
	CloudflareR2Endpoint  string `envconfig:"CLOUDFLARE_R2_ENDPOINT"`
	CloudflarePublicURL   string `envconfig:"CLOUDFLARE_PUBLIC_URL"`
	CloudflareBucketName  string `envconfig:"CLOUDFLARE_BUCKET_NAME"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CORSAllowedMethods []string `envconfig:"CORS_ALLOWED_METHODS" default:"GET,POST,OPTIONS"`
	CORSAllowedHeaders []string `envconfig:"CORS_ALLOWED_HEADERS" default:"Accept,Content-Type,X-Request-ID"`
}

// TranscriptionConfig configures the speech-to-text job API.
type TranscriptionConfig struct {
	APIKey  string `envconfig:"ASSEMBLYAI_API_KEY"`
	BaseURL string `envconfig:"ASSEMBLYAI_BASE_URL" default:"https://api.assemblyai.com"`

	PollInterval time.Duration `envconfig:"TRANSCRIPTION_POLL_INTERVAL" default:"3s"`
	// MaxPollAttempts bounds polling for open transcription requests.
	MaxPollAttempts int `envconfig:"TRANSCRIPTION_MAX_POLL_ATTEMPTS" default:"10"`
	// ReadingMaxPollAttempts bounds polling for reading assessments; 0 keeps
	// polling until the job is terminal or Timeout expires.
	ReadingMaxPollAttempts int           `envconfig:"READING_MAX_POLL_ATTEMPTS" default:"0"`
	Timeout                time.Duration `envconfig:"TRANSCRIPTION_TIMEOUT" default:"5m"`
}

// GenerationConfig configures the language model endpoint.
type GenerationConfig struct {
	Provider string        `envconfig:"GENERATION_PROVIDER" default:"ollama"`
	Timeout  time.Duration `envconfig:"GENERATION_TIMEOUT" default:"120s"`

	OllamaBaseURL    string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel      string `envconfig:"OLLAMA_MODEL" default:"mistral"`
	OllamaJSONFormat bool   `envconfig:"OLLAMA_JSON_FORMAT" default:"false"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.GenerationConfig.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationConfig.Provider)
	}
	if c.TranscriptionConfig.PollInterval <= 0 {
		return fmt.Errorf("TRANSCRIPTION_POLL_INTERVAL must be positive")
	}
	if c.TranscriptionConfig.MaxPollAttempts <= 0 {
		return fmt.Errorf("TRANSCRIPTION_MAX_POLL_ATTEMPTS must be positive")
	}
	if c.TranscriptionConfig.ReadingMaxPollAttempts < 0 {
		return fmt.Errorf("READING_MAX_POLL_ATTEMPTS must not be negative")
	}
	return nil
}

// HTTPAddress returns the HTTP server address.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// R2Enabled reports whether every Cloudflare R2 setting is present.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccessKeyID != "" && c.CloudflareSecretKey != "" &&
		c.CloudflareR2Endpoint != "" && c.CloudflareBucketName != ""
}
