package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arakviel/petcare/internal/adapters/auth/jwtverifier"
	"github.com/arakviel/petcare/internal/adapters/lock/redislock"
	cldstore "github.com/arakviel/petcare/internal/adapters/objectstore/cloudinary"
	"github.com/arakviel/petcare/internal/adapters/objectstore/gcs"
	memstore "github.com/arakviel/petcare/internal/adapters/objectstore/memory"
	pg "github.com/arakviel/petcare/internal/adapters/storage/postgres"
	"github.com/arakviel/petcare/internal/config"
	"github.com/arakviel/petcare/internal/platform/logger"
	"github.com/arakviel/petcare/internal/ports/storage"
	"github.com/arakviel/petcare/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	level := logger.ParseLevel(cfg.LogLevel)
	log, err := logger.New(logger.Options{
		Level:  level,
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := router.Options{Logger: log}

	// Sin JWT_SECRET queda el modo dev con X-Debug-User-ID.
	if cfg.JWTSecret != "" {
		v, err := jwtverifier.New(cfg.JWTSecret)
		if err != nil {
			return err
		}
		opts.AuthVerifier = v
	} else {
		log.Warn("JWT_SECRET not set, running with debug auth header", nil)
	}

	if cfg.DBDSN != "" {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.DB = db
		log.Info("using postgres storage", nil)
	} else {
		log.Info("DB_DSN not set, using in-memory storage", nil)
	}

	if cfg.RedisURL != "" {
		l, err := redislock.NewFromURL(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer l.Close()
		opts.Locker = l
		log.Info("redis locking enabled", map[string]any{"ttl": cfg.LockTTL.String()})
	}

	st, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()
	opts.Storage = st
	log.Info("object storage ready", map[string]any{"driver": cfg.Storage.Driver})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // uploads de video
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "log_level": level.String()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", nil)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := pg.Open(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := pg.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return db, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, func(), error) {
	switch cfg.Driver {
	case "gcs":
		s, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			SignerEmail:     cfg.GCSSignerEmail,
			SignerKeyFile:   cfg.GCSSignerKeyFile,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "cloudinary":
		s, err := cldstore.New(cldstore.Config{
			URL:       cfg.CloudinaryURL,
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "memory", "":
		return memstore.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Driver)
	}
}
