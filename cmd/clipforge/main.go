package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clipforge/clipforge-server/internal/api"
	"github.com/clipforge/clipforge-server/internal/clipper"
	"github.com/clipforge/clipforge-server/internal/config"
	"github.com/clipforge/clipforge-server/internal/db"
	"github.com/clipforge/clipforge-server/internal/extract"
	"github.com/clipforge/clipforge-server/internal/jobs"
	"github.com/clipforge/clipforge-server/internal/live"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// .env is a dev convenience; production injects env vars through infra.
	if os.Getenv("APP_ENV") != "production" {
		godotenv.Load()
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge", "version", config.Version, "data_dir", cfg.DataDir())

	if cfg.TwitchClientID() == "" || cfg.TwitchClientSecret() == "" {
		logger.Warn("Twitch credentials not configured, cut requests will fail until they are set")
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())

	twitchClient := twitch.NewClient(
		cfg.TwitchClientID(),
		cfg.TwitchClientSecret(),
		logging.WithComponent(logger, "twitch"),
	)

	extractor, err := extract.NewFFmpegExtractor(extract.Config{
		FFmpegPath:     cfg.FFmpegPath(),
		SegmentTimeout: cfg.SegmentTimeout(),
		Logger:         logging.WithComponent(logger, "extract"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}

	clipSvc := clipper.NewService(twitchClient, extractor, repo, clipper.Config{
		WorkDir:         cfg.WorkDir(),
		PipelineTimeout: cfg.PipelineTimeout(),
		MaxParallel:     cfg.MaxParallel(),
		Logger:          logging.WithComponent(logger, "clipper"),
	})

	poller := live.NewPoller(
		twitchClient,
		cfg.LiveChannels(),
		cfg.LiveSchedule(),
		logging.WithComponent(logger, "live"),
	)
	if err := poller.Start(); err != nil {
		return fmt.Errorf("failed to start live poller: %w", err)
	}
	defer poller.Stop()

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Clipper:        clipSvc,
		Clips:          twitchClient,
		LiveStatus:     poller,
		Repository:     repo,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logging.WithComponent(logger, "api"),
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
