package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfnarrate/internal/api"
	"github.com/dgallion1/pdfnarrate/internal/config"
	"github.com/dgallion1/pdfnarrate/internal/library"
	"github.com/dgallion1/pdfnarrate/internal/parser"
	"github.com/dgallion1/pdfnarrate/internal/pathstore"
	"github.com/dgallion1/pdfnarrate/internal/pipeline"
	"github.com/dgallion1/pdfnarrate/internal/textstruct"
	"github.com/dgallion1/pdfnarrate/internal/tokenize"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the library.
	store, closeBackend, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open library", "error", err)
		os.Exit(1)
	}

	tok, err := tokenize.New(cfg.Tokenizer)
	if err != nil {
		log.Error("failed to load tokenizer", "error", err)
		os.Exit(1)
	}
	extractor := textstruct.New(tok)
	extractor.MaxHeaderLen = cfg.MaxHeaderLen

	ingestor, err := pipeline.NewIngestor(store, extractor, pipeline.IngestOptions{
		Parse:    parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		DedupKey: cfg.DedupKey,
		Stats:    pipeline.NewStats(time.Hour),
	}, log)
	if err != nil {
		log.Error("failed to build ingestor", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, ingestor, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(store, ingestor, orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		store.Close()
		closeBackend()
	}()

	log.Info("starting pdfnarrate",
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
		"tokenizer", cfg.Tokenizer,
		"dedup_key", cfg.DedupKey,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (library.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendPathstore:
		ps := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		return library.NewRemoteStore(ps, cfg.PathstorePrefix, log), ps.Close, nil
	default:
		store, err := library.OpenSQLite(ctx, cfg.DBPath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
