package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixeledit/internal/api"
	"github.com/dunamismax/pixeledit/internal/config"
	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/ratelimit"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "pixeledit-api",
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

	var conversions store.ConversionStore = store.NewMemoryConversionStore()
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
		logger.Printf("conversion store=postgres")
	} else {
		logger.Printf("conversion store=memory")
	}

	var publisher editor.Publisher
	if cfg.Queue.Enabled {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name, cfg.Webhook.URL)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}()
		publisher = queueClient
		logger.Printf("publish queue enabled queue=%s redis=%s", cfg.Queue.Name, cfg.Queue.RedisAddr)
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(cfg.Queue.RedisOptions())
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()
		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Fatalf("rate limiter init failed: %v", err)
		}
		limiter = bucket
		logger.Printf("rate limiting enabled limit=%d window=%s", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	resizer, err := pipeline.NewResizerWithLimit(cfg.Editor.MaxPixels)
	if err != nil {
		logger.Fatalf("resizer init failed: %v", err)
	}

	app, err := api.NewServer(api.Options{
		Logger:          logger,
		Sessions:        store.NewMemorySessionStore(),
		Conversions:     conversions,
		Converter:       pipeline.NewConverter(cfg.Editor.OutputDir, cfg.Editor.JPEGQuality),
		Resizer:         resizer,
		Publisher:       publisher,
		HistoryCapacity: cfg.Editor.HistoryCapacity,
		CanvasEnabled:   cfg.Editor.CanvasEnabled,
		MaxUploadBytes:  cfg.Editor.MaxUploadBytes,
		MaxPixels:       cfg.Editor.MaxPixels,
		RateLimiter:     limiter,
		RateLimitHeader: cfg.RateLimit.Header,
		Tracer:          otel.Tracer("pixeledit/api"),
	})
	if err != nil {
		logger.Fatalf("api init failed: %v", err)
	}
	go app.RunSweeper(ctx, cfg.Editor.SessionTTL, time.Minute)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s output_dir=%s history=%d canvas=%t",
			cfg.API.Addr, cfg.Editor.OutputDir, cfg.Editor.HistoryCapacity, cfg.Editor.CanvasEnabled)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
