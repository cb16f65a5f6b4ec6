package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/licensegate/api/controllers"
	"github.com/angelmondragon/licensegate/api/routes"
	"github.com/angelmondragon/licensegate/internal/licenses"
	"github.com/angelmondragon/licensegate/internal/notifications"
	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/instance"
	"github.com/angelmondragon/licensegate/pkg/licensekey"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/metrics"
	"github.com/angelmondragon/licensegate/pkg/migrate"
	pkgredis "github.com/angelmondragon/licensegate/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	store, dbCloser, err := openStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	if dbCloser != nil {
		closers = append(closers, dbCloser)
	}

	var (
		idempotency pkgredis.IdempotencyStore
		redisPinger controllers.Pinger
		notifier    = notifications.Fanout{notifications.NewLogNotifier(logg)}
	)
	if cfg.Redis.Enabled() {
		redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)

		redisNotifier, err := notifications.NewRedisNotifier(redisClient, cfg.Redis.NotifyChannel)
		if err != nil {
			return err
		}
		idempotency = redisClient
		redisPinger = redisClient
		notifier = notifications.Fanout{redisNotifier}
	} else {
		logg.Warn(ctx, "redis not configured; idempotent replay and key notifications disabled")
	}

	codec, err := licensekey.NewCodec(cfg.License.KeyPrefix, cfg.License.SigningSecret, cfg.License.Signed())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	licenseService, err := licenses.NewService(store, codec, notifier, metrics.NewLicenseMetrics(registry), logg, cfg.License.ListLimit)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"regime": string(licenseService.Regime()),
		"store":  cfg.DB.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:         addr,
		Handler:      routes.NewRouter(cfg, logg, licenseService, idempotency, redisPinger, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  cfg.App.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (licenses.Store, func() error, error) {
	if cfg.DB.IsMemory() {
		logg.Warn(ctx, "using in-memory license store; records are lost on restart")
		return licenses.NewMemoryStore(), nil, nil
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return nil, nil, multierr.Append(err, dbClient.Close())
	}
	return licenses.NewRepository(dbClient), dbClient.Close, nil
}
