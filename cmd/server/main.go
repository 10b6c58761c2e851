package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"image.share/config"
	"image.share/internal/api"
	"image.share/internal/blob"
	"image.share/internal/links"
	"image.share/internal/store"
	"image.share/internal/upload"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := initBlobs(cfg, st)
	if err != nil {
		return err
	}
	defer blobs.Close()

	svc := links.NewService(st, blobs, links.Options{
		BaseURL: cfg.Server.BaseURL,
		Constraints: upload.Constraints{
			MaxSizeBytes: cfg.Links.MaxUploadBytes,
			RequireImage: true,
			MaxDimension: cfg.Links.MaxDimension,
		},
		Logger: logger,
	})
	go svc.RunSweeper(ctx, cfg.Links.SweepInterval)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.SetupRouter(svc, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("server starting",
		slog.String("addr", cfg.Addr()),
		slog.String("base_url", cfg.Server.BaseURL),
		slog.String("store", cfg.Store.Type),
		slog.String("blob", cfg.Blob.Type),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Log.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

func initStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
		st, err := store.NewSQLiteStore(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func initBlobs(cfg *config.Config, st store.Store) (blob.Store, error) {
	switch cfg.Blob.Type {
	case "file":
		fs, err := blob.NewFileStore(cfg.Blob.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening blob dir: %w", err)
		}
		return fs, nil
	case "redis":
		// Share the record store's connection when it is Redis too.
		if rs, ok := st.(*store.RedisStore); ok {
			return blob.NewRedisStore(rs.Client()), nil
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return &ownedRedisBlobs{RedisStore: blob.NewRedisStore(client), client: client}, nil
	default:
		return blob.NewMemoryStore(), nil
	}
}

// ownedRedisBlobs closes a client that only the blob store uses.
type ownedRedisBlobs struct {
	*blob.RedisStore
	client *redis.Client
}

func (o *ownedRedisBlobs) Close() error {
	return o.client.Close()
}
