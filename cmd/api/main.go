package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"cvix/internal/api"
	"cvix/internal/auth"
	"cvix/internal/config"
	"cvix/internal/generation"
	"cvix/internal/logging"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// 容器内按 cgroup 配额设置 GOMAXPROCS，编译槽位数依赖它。
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	pipeline, registry, err := generation.Build(cfg, logger)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Config:    cfg,
		Logger:    logger,
		Generator: pipeline,
		Templates: registry,
	}

	if cfg.Auth.PublicKeyPath != "" {
		verifier, err := auth.LoadTokenVerifier(cfg.Auth.PublicKeyPath, cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("load token verifier: %w", err)
		}
		deps.Verifier = verifier
		logger.Info("caller token verification enabled")
	}

	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("close redis client failed", slog.Any("error", err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// 限流在 Redis 不可用时放行，启动阶段同样只记录告警。
			logger.Warn("redis unreachable, rate limiting fails open", slog.String("addr", cfg.Redis.Addr()), slog.Any("error", err))
		}
		deps.RateCounter = redisClient
		logger.Info("rate limiting enabled",
			slog.Int("requests", cfg.RateLimit.Requests),
			slog.Duration("window", cfg.RateLimit.Window),
		)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.API.RequestTimeout,
		WriteTimeout:      cfg.API.RequestTimeout + 5*time.Second,
		IdleTimeout:       time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
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

	logger.Info("shutting down", slog.Duration("timeout", cfg.API.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
