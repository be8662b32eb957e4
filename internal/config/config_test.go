package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // keep a developer .env out of the test

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTPPort)
	assert.Equal(t, "https://api.assemblyai.com", cfg.TranscriptionConfig.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.TranscriptionConfig.PollInterval)
	assert.Equal(t, 10, cfg.TranscriptionConfig.MaxPollAttempts)
	assert.Equal(t, 0, cfg.TranscriptionConfig.ReadingMaxPollAttempts)
	assert.Equal(t, ProviderOllama, cfg.GenerationConfig.Provider)
	assert.Equal(t, "mistral", cfg.GenerationConfig.OllamaModel)
	assert.Equal(t, 120*time.Second, cfg.GenerationConfig.Timeout)
	assert.NotEmpty(t, cfg.UploadDir)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.CORSAllowedMethods)
	assert.False(t, cfg.R2Enabled())
	assert.Equal(t, "0.0.0.0:3000", cfg.HTTPAddress())
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_HTTP_PORT", "8080")
	t.Setenv("ASSEMBLYAI_API_KEY", "key")
	t.Setenv("TRANSCRIPTION_MAX_POLL_ATTEMPTS", "20")
	t.Setenv("READING_MAX_POLL_ATTEMPTS", "40")
	t.Setenv("GENERATION_PROVIDER", "openai")
	t.Setenv("GENERATION_TIMEOUT", "30s")
	t.Setenv("UPLOAD_DIR", "/var/tmp/uploads")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "key", cfg.TranscriptionConfig.APIKey)
	assert.Equal(t, 20, cfg.TranscriptionConfig.MaxPollAttempts)
	assert.Equal(t, 40, cfg.TranscriptionConfig.ReadingMaxPollAttempts)
	assert.Equal(t, ProviderOpenAI, cfg.GenerationConfig.Provider)
	assert.Equal(t, 30*time.Second, cfg.GenerationConfig.Timeout)
	assert.Equal(t, "/var/tmp/uploads", cfg.UploadDir)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown provider":  {"GENERATION_PROVIDER": "llamafile"},
		"zero poll limit":   {"TRANSCRIPTION_MAX_POLL_ATTEMPTS": "0"},
		"negative reading":  {"READING_MAX_POLL_ATTEMPTS": "-1"},
		"zero interval":     {"TRANSCRIPTION_POLL_INTERVAL": "0s"},
		"unparsable number": {"SERVER_HTTP_PORT": "http"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestR2Enabled(t *testing.T) {
	cfg := &Config{
		CloudflareAccessKeyID: "id",
		CloudflareSecretKey:   "secret",
		CloudflareR2Endpoint:  "https://acct.r2.cloudflarestorage.com",
	}
	assert.False(t, cfg.R2Enabled())

	cfg.CloudflareBucketName = "recordings"
	assert.True(t, cfg.R2Enabled())
}
