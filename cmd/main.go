package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/adapters/ffmpeg"
	"github.com/satriahrh/voicemap/server/adapters/llm"
	"github.com/satriahrh/voicemap/server/adapters/mongo"
	"github.com/satriahrh/voicemap/server/adapters/sqlite"
	"github.com/satriahrh/voicemap/server/adapters/stt"
	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/api"
	"github.com/satriahrh/voicemap/server/internal/config"
	"github.com/satriahrh/voicemap/server/internal/metrics"
	"github.com/satriahrh/voicemap/server/internal/settings"
	"github.com/satriahrh/voicemap/server/internal/tasks"
	"github.com/satriahrh/voicemap/server/internal/websocket"
	"github.com/satriahrh/voicemap/server/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewProduction()
	if cfg.Logging.Development {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize adapters
	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	speechToText, err := newSpeechToText(ctx, cfg.STT, logger)
	if err != nil {
		logger.Fatal("Failed to create speech-to-text", zap.String("provider", cfg.STT.Provider), zap.Error(err))
	}
	if c, ok := speechToText.(io.Closer); ok {
		defer c.Close()
	}

	model, err := newLLM(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize usecase services
	settingsService := settings.NewService(store, logger)
	executor := tasks.NewExecutor(cfg.Tasks.MaxConcurrent, cfg.Tasks.Timeout, m, logger)
	repairer := usecase.NewJSONRepairer(model, cfg.LLM.MaxRepairAttempts, cfg.LLM.Timeout, m, logger)
	analysis := usecase.NewAnalysisService(store, model, repairer, settingsService, executor, cfg.LLM.Timeout, m, logger)

	opts := []usecase.TranscriptionOption{
		usecase.WithTranscriptionTimeout(cfg.STT.Timeout),
		usecase.WithTranscriptionMetrics(m),
	}
	if cfg.STT.TempDir != "" {
		opts = append(opts, usecase.WithTempDir(cfg.STT.TempDir))
	}
	transcoder := ffmpeg.NewTranscoder(cfg.STT.FFmpegPath, logger)
	if transcoder.Available() {
		opts = append(opts, usecase.WithTranscoder(transcoder))
	} else {
		logger.Warn("ffmpeg not found, compressed audio will only be sent as-is", zap.String("binary", cfg.STT.FFmpegPath))
	}
	transcription := usecase.NewTranscriptionService(speechToText, settingsService, logger, opts...)

	// Initialize WebSocket hub
	hub := websocket.NewHub(store, transcription, analysis, settingsService, websocket.Config{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		StoreTimeout:   cfg.Storage.Timeout,
		PongWait:       cfg.WebSocket.PongWait,
	}, m, logger)
	analysis.SetNotifier(hub)

	backfill := usecase.NewBackfillService(store, analysis, cfg.Backfill.Interval, logger)
	if cfg.Backfill.Enabled {
		backfill.Start()
	}
	reaper := websocket.NewSessionCleanupService(hub, cfg.WebSocket.InactiveTimeout, cfg.WebSocket.CleanupInterval, logger)
	reaper.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	api.InitRoutes(e, api.NewHandler(store, settingsService, analysis, backfill, hub, reaper, metricsHandler, logger))

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("stt", cfg.STT.Provider),
		zap.String("llm", cfg.LLM.Provider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.CloseAll()
	reaper.Stop()
	backfill.Stop()
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Background tasks did not finish", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (repositories.Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if cfg.Driver == "mongo" {
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		return mongo.NewStore(ctx, client, logger)
	}
	return sqlite.Open(ctx, cfg.SQLiteDSN, logger)
}

func newSpeechToText(ctx context.Context, cfg config.STTConfig, logger *zap.Logger) (repositories.SpeechToText, error) {
	switch cfg.Provider {
	case "google":
		return stt.NewGoogleSpeechToText(ctx, logger)
	case "mock":
		return stt.NewMockSpeechToText(logger), nil
	default:
		return stt.NewWhisperSpeechToText(cfg.WhisperURL, cfg.Timeout, logger), nil
	}
}

func newLLM(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiLLM(ctx, cfg.GeminiAPIKey, logger)
	case "mock":
		return llm.NewMockLLM(), nil
	default:
		return llm.NewOllamaLLM(cfg.OllamaURL, logger)
	}
}
