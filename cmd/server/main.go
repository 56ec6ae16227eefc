package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dgallion1/docmap/internal/api"
	"github.com/dgallion1/docmap/internal/app"
	"github.com/dgallion1/docmap/internal/bot"
	"github.com/dgallion1/docmap/internal/config"
	"github.com/dgallion1/docmap/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	orch := pipeline.NewOrchestrator(pipeline.PoolConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, a.Service, log.With("component", "orchestrator"))
	orch.Start(ctx)

	var wg sync.WaitGroup
	if cfg.BotToken != "" {
		tg, err := bot.NewTelegram(cfg.BotToken, log.With("component", "telegram"))
		if err != nil {
			log.Error("telegram startup failed", "error", err)
			os.Exit(1)
		}
		dialog := bot.NewDialog(a.Service, a.Store, a.Store, tg, bot.DialogConfig{
			WebsiteHost:    cfg.WebsiteHost,
			ModelLabels:    a.Catalog.Labels(),
			MaxUploadBytes: cfg.MaxUploadBytes,
		}, log.With("component", "bot"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.Run(ctx, dialog.Handle)
		}()
	} else {
		log.Info("BOT_TOKEN not set, chat bot disabled")
	}

	srv := api.NewServer(orch, a.Store, a.Catalog, a.Stats, log.With("component", "api"), cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docmap", "port", cfg.Port, "session_backend", cfg.SessionBackend, "blob_backend", cfg.BlobBackend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	orch.Stop()
	wg.Wait()
}
