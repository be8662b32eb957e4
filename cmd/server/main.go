package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/windfall/speakscore/internal/client"
	"github.com/windfall/speakscore/internal/config"
	"github.com/windfall/speakscore/internal/handler/http"
	"github.com/windfall/speakscore/internal/logger"
	"github.com/windfall/speakscore/internal/repository"
	"github.com/windfall/speakscore/internal/server"
	"github.com/windfall/speakscore/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log := logger.NewWithFields(cfg.LogLevel, cfg.LogFormat, map[string]interface{}{
		"service": "speakscore",
	})
	log.Info().Str("env", cfg.Environment).Msg("Starting speakscore")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transcription
	if cfg.TranscriptionConfig.APIKey == "" {
		log.Warn().Msg("ASSEMBLYAI_API_KEY not set, transcription requests will fail")
	}
	transcriber := client.NewAssemblyAIClient(cfg.TranscriptionConfig.BaseURL, cfg.TranscriptionConfig.APIKey)

	// Generation
	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.GenerationConfig.Provider).Msg("Failed to initialize generation client")
	}
	log.Info().Str("provider", cfg.GenerationConfig.Provider).Msg("Generation client initialized")

	readiness := map[string]http.Pinger{}

	// Initialize Redis client
	var results service.ResultStore
	var redisClient *client.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client")
		} else {
			log.Info().Msg("Redis client initialized")
			results = service.NewRedisResultStore(redisClient, cfg.ResultTTL)
			readiness["redis"] = redisClient
		}
	}

	// Initialize Cloudflare R2 Client (using S3 protocol)
	var archive service.AudioArchive
	if cfg.R2Enabled() {
		cloudflareClient, err := client.NewCloudflareClient(ctx,
			cfg.CloudflareAccessKeyID,
			cfg.CloudflareSecretKey,
			cfg.CloudflareR2Endpoint,
			cfg.CloudflareBucketName,
			cfg.CloudflarePublicURL,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Cloudflare client")
		} else {
			log.Info().Msg("Cloudflare R2 client initialized, recordings will be archived")
			archive = cloudflareClient
		}
	}

	// Initialize Postgres Client
	var userRepo repository.UserRepository = repository.NewInMemoryUserRepository()
	var postgresClient *client.PostgresClient
	if cfg.DatabaseURL != "" {
		postgresClient, err = client.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Postgres client, using in-memory user store")
		} else {
			log.Info().Msg("Postgres client initialized")
			userRepo = repository.NewPostgresUserRepository(postgresClient)
			readiness["postgres"] = postgresClient
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory user store")
	}

	// Initialize services
	assessmentService := service.NewAssessmentService(transcriber, generator, archive, results, service.AssessmentConfig{
		UploadDir:            cfg.UploadDir,
		PollInterval:         cfg.TranscriptionConfig.PollInterval,
		TranscribeMaxPolls:   cfg.TranscriptionConfig.MaxPollAttempts,
		ReadingMaxPolls:      cfg.TranscriptionConfig.ReadingMaxPollAttempts,
		TranscriptionTimeout: cfg.TranscriptionConfig.Timeout,
		GenerationTimeout:    cfg.GenerationConfig.Timeout,
	}, log)
	userService := service.NewUserService(userRepo)

	// Initialize handlers
	healthHandler := http.NewHealthHandler(readiness)
	assessmentHandler := http.NewAssessmentHandler(log, assessmentService, cfg.MaxUploadBytes)
	userHandler := http.NewUserHandler(log, userService)

	// Initialize HTTP server
	router := server.NewRouter(cfg, log, healthHandler, assessmentHandler, userHandler)
	httpServer := server.NewHTTPServer(cfg, log, router)

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	log.Info().
		Str("http_addr", cfg.HTTPAddress()).
		Str("upload_dir", cfg.UploadDir).
		Msg("Servers started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Close clients
	closeClients(log, redisClient, postgresClient)

	log.Info().Msg("Server stopped")
}

// newGenerator builds the client for the configured generation provider.
func newGenerator(ctx context.Context, cfg *config.Config) (service.Generator, error) {
	gen := cfg.GenerationConfig
	switch gen.Provider {
	case config.ProviderOllama:
		ollamaClient, err := client.NewOllamaClient(gen.OllamaBaseURL, gen.OllamaModel, gen.Timeout)
		if err != nil {
			return nil, err
		}
		return ollamaClient.WithJSONFormat(gen.OllamaJSONFormat), nil
	case config.ProviderOpenAI:
		return client.NewOpenAIClient(gen.OpenAIAPIKey, gen.OpenAIBaseURL).WithModel(gen.OpenAIModel), nil
	case config.ProviderGemini:
		if gen.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		geminiClient, err := client.NewGeminiClient(ctx, gen.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return geminiClient.WithModel(gen.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", gen.Provider)
	}
}

func closeClients(log zerolog.Logger, redisClient *client.RedisClient, postgresClient *client.PostgresClient) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	if postgresClient != nil {
		postgresClient.Close()
	}
}
