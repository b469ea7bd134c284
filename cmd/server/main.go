package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dataport/internal/config"
	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/export"
	"github.com/JonMunkholm/dataport/internal/logging"
	"github.com/JonMunkholm/dataport/internal/registry"
	"github.com/JonMunkholm/dataport/internal/session"
	"github.com/JonMunkholm/dataport/internal/storage"
	"github.com/JonMunkholm/dataport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	reg, closeRegistry, err := openRegistry(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeRegistry()

	sessions, closeSessions, err := openSessions(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()

	files, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	service, err := core.NewService(core.Deps{
		Parser:   core.NewParser(cfg.Upload.MaxFileSize),
		Sessions: sessions,
		Registry: reg,
		Files:    files,
		Encoders: export.Encoders(),
		Template: export.WriteTemplate,
		Limiter:  core.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	})
	if err != nil {
		return err
	}

	server, err := web.NewServer(service, cfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		service.StartSweepScheduler(gctx, core.SweepConfig{
			MaxAge:        cfg.Session.TTL,
			CheckInterval: cfg.Session.SweepInterval,
		})
		return nil
	})

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running parse and export jobs finish before closing connections.
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for jobs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("jobs did not complete in time", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openRegistry connects to PostgreSQL when DATABASE_URL is set and falls
// back to an in-memory registry otherwise.
func openRegistry(ctx context.Context, cfg config.DatabaseConfig) (core.FileRegistry, func(), error) {
	if !cfg.Enabled() {
		slog.Warn("DATABASE_URL not set, file registry is kept in memory")
		return registry.NewMemory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	reg := registry.NewPostgres(pool)
	if err := reg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return reg, pool.Close, nil
}

func openSessions(ctx context.Context, cfg config.SessionConfig) (*session.Cache, func(), error) {
	blobs, err := session.NewFileBlobs(cfg.BlobDir)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Backend != "redis" {
		return session.NewCache(session.NewMemoryStore(), blobs, cfg.TTL), func() {}, nil
	}

	rc := session.DefaultRedisConfig(cfg.RedisAddr)
	rc.Password = cfg.RedisPassword
	rc.Database = cfg.RedisDB
	rc.Prefix = cfg.RedisPrefix
	store, err := session.NewRedisStore(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("session metadata in redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return session.NewCache(store, blobs, cfg.TTL), func() { store.Close() }, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (core.FileStore, error) {
	if cfg.Backend != "s3" {
		return storage.NewLocal(cfg.Dir)
	}
	return storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.S3PathStyle,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
}
