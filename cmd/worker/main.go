package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/pixeledit/internal/config"
	"github.com/dunamismax/pixeledit/internal/storage"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/telemetry"
	"github.com/dunamismax/pixeledit/internal/webhook"
	"github.com/dunamismax/pixeledit/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixeledit-worker",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("storage init failed: %v", err)
	}
	bucketCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := storageClient.EnsureBucket(bucketCtx); err != nil {
		cancel()
		logger.Fatalf("ensure bucket failed: %v", err)
	}
	cancel()

	var conversions store.ConversionStore
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresConversionStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("postgres store init failed: %v", err)
		}
		defer func() {
			if err := pgStore.Close(); err != nil {
				logger.Printf("postgres store close error: %v", err)
			}
		}()
		conversions = pgStore
	} else {
		logger.Printf("POSTGRES_DSN unset; conversion records will not be updated")
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	logger.Printf(
		"starting worker concurrency=%d queue=%s redis=%s bucket=%s",
		cfg.Worker.Concurrency,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		storageClient.Bucket(),
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, storageClient, webhookClient, conversions)
	if err != nil {
		logger.Fatalf("worker init failed: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server failed: %v", err)
		}
	}()

	// Run blocks until SIGINT or SIGTERM.
	runErr := srv.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics shutdown error: %v", err)
	}
	if runErr != nil {
		logger.Fatalf("worker failed: %v", runErr)
	}
}
