package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/short-link/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/short-link/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/short-link/internal/adapter/repository/redis"
	"github.com/vadimbarashkov/short-link/internal/config"
	"github.com/vadimbarashkov/short-link/internal/entity"
	"github.com/vadimbarashkov/short-link/internal/shortcode"
	"github.com/vadimbarashkov/short-link/internal/usecase"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/short-link/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/short-link/pkg/postgres"
)

type linkRepository interface {
	Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error)
	RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error)
	RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error)
	Remove(ctx context.Context, code string) (*entity.ShortLink, error)
}

// NewLogger builds the process logger: JSON in prod, concise text elsewhere.
func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("short-link", httplog.Options{
		LogLevel: cfg.SlogLevel(),
		JSON:     cfg.Env == config.EnvProd,
		Concise:  cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	repo, closeRepo, err := newLinkRepository(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRepo()

	gen, err := shortcode.New(cfg.ShortCode.Alphabet, cfg.ShortCode.Length)
	if err != nil {
		return fmt.Errorf("%s: failed to create code generator: %w", op, err)
	}

	linkUseCase := usecase.NewLinkUseCase(repo, gen, usecase.WithMaxRetries(cfg.ShortCode.MaxRetries))

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, linkUseCase),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// newLinkRepository opens the storage backend selected by cfg.Storage.Driver.
// The returned func releases its connections.
func newLinkRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (linkRepository, func(), error) {
	const op = "app.newLinkRepository"

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := pgpkg.New(
			ctx,
			cfg.Postgres.DSN(),
			pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := pgpkg.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		logger.Info("using postgres storage", slog.String("host", cfg.Postgres.Host), slog.String("db", cfg.Postgres.DB))

		return postgres.NewLinkRepository(db), func() { db.Close() }, nil

	case config.StorageRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		logger.Info("using redis storage", slog.String("addr", cfg.Redis.Addr))

		return redis.NewLinkRepository(client, redis.WithKeyPrefix(cfg.Redis.KeyPrefix)), func() { client.Close() }, nil

	default:
		logger.Info("using in-memory storage")

		return memory.NewLinkRepository(), func() {}, nil
	}
}
