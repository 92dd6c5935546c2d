package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/JeanGrijp/niji-api/internal/adapters/cdn"
	httpHandlers "github.com/JeanGrijp/niji-api/internal/adapters/http/handlers"
	memorystorage "github.com/JeanGrijp/niji-api/internal/adapters/storage/memory"
	mongostorage "github.com/JeanGrijp/niji-api/internal/adapters/storage/mongo"
	redisstorage "github.com/JeanGrijp/niji-api/internal/adapters/storage/redis"
	"github.com/JeanGrijp/niji-api/internal/adapters/system"
	"github.com/JeanGrijp/niji-api/internal/config"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
	"github.com/JeanGrijp/niji-api/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, ping, closeFn, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer closeFn()

	mongoClient, err := mongostorage.Connect(ctx, mongostorage.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close mongo client")
		}
	}()

	keys := mongostorage.NewKeyStore(ctx, mongoClient.Collection(cfg.Mongo.KeysCollection))
	images := mongostorage.NewImageRepository(mongoClient.Collection(cfg.Mongo.ImagesCollection))
	stats := mongostorage.NewStatsRepository(mongoClient.Collection(cfg.Mongo.StatsCollection))

	retry := services.RetryPolicy{Retries: cfg.RateLimiter.Retries, Backoff: cfg.RateLimiter.RetryBackoff}

	authenticator, err := services.NewAuthenticator(keys, services.AuthenticatorConfig{
		StoreTimeout: cfg.RateLimiter.StoreTimeout,
		Retry:        retry,
	})
	if err != nil {
		log.Fatalf("failed to create authenticator: %v", err)
	}

	limiter, err := services.NewRateLimiterService(storage, services.Config{
		Rule:         cfg.RateLimiter.Rule,
		KeyPrefix:    cfg.RateLimiter.KeyPrefix,
		StoreTimeout: cfg.RateLimiter.StoreTimeout,
		Retry:        retry,
	})
	if err != nil {
		log.Fatalf("failed to create limiter: %v", err)
	}

	gate, err := services.NewGate(authenticator, limiter, time.Now)
	if err != nil {
		log.Fatalf("failed to create admission gate: %v", err)
	}

	localStore, err := cdn.NewLocalStore(cdn.Config{
		BaseDir:  cfg.CDN.StaticDir,
		Timeout:  cfg.CDN.DownloadTimeout,
		RPS:      cfg.CDN.DownloadRPS,
		Burst:    cfg.CDN.DownloadBurst,
		MaxBytes: cfg.CDN.MaxImageBytes,
	}, nil)
	if err != nil {
		log.Fatalf("failed to create image storage: %v", err)
	}

	imageService, err := services.NewImageService(images, localStore, cfg.CDN.Domain)
	if err != nil {
		log.Fatalf("failed to create image service: %v", err)
	}
	statsService := services.NewStatsService(system.NewMetrics(cfg.Metrics.SampleInterval), keys, images, stats, time.Now)

	health := httpHandlers.NewHealthHandler(map[string]httpHandlers.Pinger{
		"counter_store":  ping,
		"document_store": mongoClient.Ping,
	})
	health.LoadFavicon(filepath.Join(cfg.CDN.StaticDir, "favicon.ico"))

	router := httpHandlers.NewRouter(httpHandlers.RouterDeps{
		Gate:         gate,
		Images:       httpHandlers.NewImageHandler(imageService),
		Keys:         httpHandlers.NewKeyHandler(services.NewKeyService(keys, stats)),
		Stats:        httpHandlers.NewStatsHandler(statsService),
		Health:       health,
		Requests:     statsService,
		StoreTimeout: cfg.RateLimiter.StoreTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func initStorage(ctx context.Context, cfg config.StorageConfig) (ports.CounterStore, httpHandlers.Pinger, func(), error) {
	switch cfg.Type {
	case "redis":
		storage, err := redisstorage.New(redisstorage.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return storage, storage.Ping, func() {
			if err := storage.Close(); err != nil {
				log.WithError(err).Warn("failed to close redis storage")
			}
		}, nil
	case "memory":
		log.Warn("using in-process counter store; limits are not shared across instances")
		storage := memorystorage.New()
		go storage.Run(ctx, time.Minute)
		return storage, func(context.Context) error { return nil }, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
