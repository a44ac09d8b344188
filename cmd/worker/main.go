package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/stage-forge/internal/config"
	"github.com/jwebster45206/stage-forge/internal/logger"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/internal/queue"
	"github.com/jwebster45206/stage-forge/internal/services"
	"github.com/jwebster45206/stage-forge/internal/storage"
	"github.com/jwebster45206/stage-forge/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Stage Forge Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	// Initialize queue service
	queueCtx, queueCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer queueCancel()
	queueClient, err := queue.NewClient(queueCtx, cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	jobs := queue.NewJobQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage service
	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.OutputDir, cfg.RunTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()
	log.Info("Storage service initialized successfully")

	modules, err := config.LoadModules(cfg.ModulesFile)
	if err != nil {
		log.Error("Failed to load module configuration", "error", err, "path", cfg.ModulesFile)
		os.Exit(1)
	}

	llmService, err := services.NewLLMService(cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}
	initCtx, initCancel := context.WithTimeout(context.Background(), time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "provider", cfg.LLMProvider, "model", cfg.ModelName)

	gen := pipeline.New(llmService, modules, store, cfg.MaxLayoutAttempts, log)
	processor := worker.NewProcessor(store, gen, cfg.GenerateTimeout, log)

	// The lock client shares the queue connection pool.
	w := worker.New(jobs, processor, queueClient.GetRedisClient(), log, os.Getenv("WORKER_ID"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for jobs...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")
	w.Stop()

	// Give the worker time to finish the current run
	select {
	case <-done:
	case <-time.After(cfg.GenerateTimeout):
		log.Warn("Worker did not stop in time")
	}

	log.Info("Worker exited")
}
