package main

import (
	"VisionPredictor/internal/config"
	"VisionPredictor/internal/middleware"
	"VisionPredictor/pkg/archive"
	"VisionPredictor/pkg/log"
	"VisionPredictor/pkg/redis"
	"github.com/joho/godotenv"
	"golang.org/x/net/context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envErr := godotenv.Load()
	logger := log.NewLogger()
	if envErr != nil {
		if os.IsNotExist(envErr) {
			logger.Info("No .env file found, using process environment")
		} else {
			logger.Warnf("Error loading .env file: %v", envErr)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	detector := config.NewDetector(logger, cfg)

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithConfig(cfg),
		config.WithProfile(cfg.Profile),
		config.WithDetector(detector),
		config.WithMiddleware(middleware.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		config.WithUtils(),
	}

	if cfg.QueueEnabled {
		store, err := archive.New(logger, cfg.ArchiveBackend, cfg.ArchiveDir)
		if err != nil {
			logger.Fatalf("Error creating archive: %v", err)
		}
		options = append(options,
			config.WithRedisServer(redis.New()),
			config.WithArchive(store),
		)
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.RunConsumer(ctx); err != nil {
			logger.Errorf("Queue consumer stopped: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	cancel()
	wg.Wait()

	if err := server.Shutdown(shutdownTimeout); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
