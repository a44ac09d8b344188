package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/stage-forge/internal/config"
	"github.com/jwebster45206/stage-forge/internal/handlers"
	"github.com/jwebster45206/stage-forge/internal/logger"
	"github.com/jwebster45206/stage-forge/internal/middleware"
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

	log.Info("Starting Stage Forge API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	modules, err := config.LoadModules(cfg.ModulesFile)
	if err != nil {
		log.Error("Failed to load module configuration", "error", err, "path", cfg.ModulesFile)
		os.Exit(1)
	}
	log.Info("Module configuration loaded", "path", cfg.ModulesFile, "modules", modules.Names())

	llmService, err := services.NewLLMService(cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}

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
	log.Info("Storage connection established successfully")

	// Async generation needs the queue; the API still serves sync requests without it.
	var jobs handlers.JobEnqueuer
	queueCtx, queueCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queueCancel()
	queueClient, err := queue.NewClient(queueCtx, cfg.RedisURL, log)
	if err != nil {
		log.Warn("Queue unavailable, async generation disabled", "error", err)
	} else {
		defer func() {
			if err := queueClient.Close(); err != nil {
				log.Error("Error closing queue client", "error", err)
			}
		}()
		jobs = queue.NewJobQueue(queueClient)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	gen := pipeline.New(llmService, modules, store, cfg.MaxLayoutAttempts, log)
	if err := gen.CheckModules(); err != nil {
		// Modules can still be filled in through POST /v1/modules/{name}.
		log.Warn("Module configuration incomplete", "error", err)
	}
	processor := worker.NewProcessor(store, gen, cfg.GenerateTimeout, log)

	mux := handlers.NewMux(handlers.Handlers{
		Health:   handlers.NewHealthHandler(store, llmService, cfg.ModelName, log),
		Generate: handlers.NewGenerateHandler(processor, store, jobs, gen, log),
		Runs:     handlers.NewRunHandler(store, log),
		Layouts:  handlers.NewLayoutHandler(log),
		Modules:  handlers.NewModuleHandler(modules, log),
		Files:    handlers.NewFileHandler(store, log),
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.LoggerWith(log)(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: sync generation runs for up to GENERATE_TIMEOUT.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
