package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/leca/vehicle-gallery/internal/config"
	"github.com/leca/vehicle-gallery/internal/database"
	"github.com/leca/vehicle-gallery/internal/gallery"
	"github.com/leca/vehicle-gallery/internal/imageproc"
	"github.com/leca/vehicle-gallery/internal/jobs"
	"github.com/leca/vehicle-gallery/internal/lock"
	"github.com/leca/vehicle-gallery/internal/metrics"
	"github.com/leca/vehicle-gallery/internal/router"
	"github.com/leca/vehicle-gallery/internal/storage"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	logger := newLogger()
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	if err := metrics.Register(nil); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	thumbnailer := imageproc.NewThumbnailer(0, 0)
	thumbnailer.MaxPixels = cfg.MaxImagePixels

	gal := gallery.New(db, store, thumbnailer, locker, logger, gallery.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		WriteAttempts:  cfg.WriteRetries,
	})

	sched := jobs.NewScheduler(gal, cfg.ReconcileSchedule, cfg.ReconcileRepair, logger)
	if err := sched.Start(); err != nil {
		slog.Error("invalid reconcile schedule", "schedule", cfg.ReconcileSchedule, "error", err)
		os.Exit(1)
	}

	srv := router.New(db, gal, cfg)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr, "db", cfg.DBDriver, "storage", cfg.StorageBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	sched.Stop(shutdownCtx)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openDatabase(cfg *config.Config) (database.Database, error) {
	if cfg.DBDriver == "postgres" {
		return database.NewPostgresDB(cfg.DBDSN)
	}
	return database.NewSQLiteDB(cfg.DBDSN)
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend != "s3" {
		return storage.NewFileSystem(cfg.StoragePath), nil
	}
	store, err := storage.NewObjectStore(storage.ObjectStoreConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, err
	}
	bctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.EnsureBucket(bctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openLocker returns the shared redis lock when an address is configured and
// the in-process lock otherwise.
func openLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	return lock.NewRedis(client, "", cfg.LockTTL, logger), func() { client.Close() }, nil
}
