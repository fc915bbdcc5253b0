package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/labx-platform/testbed/internal/server"
	"github.com/labx-platform/testbed/modules"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/configuration"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/logging"
	"github.com/labx-platform/testbed/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			logger,
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connectPool(ctx, conf)
	if err != nil {
		panic(err)
	}
	if pool != nil {
		defer pool.Close()
	}
	rdb, err := connectRedis(conf)
	if err != nil {
		panic(err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		Redis:    rdb,
		EventBus: newEventBus(conf, rdb, logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if pool != nil && conf.Storage.MigrationsEnabled {
		if err := migrate(ctx, conf, app); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}
	seedCtx := ctx
	if pool != nil {
		seedCtx = composables.WithPool(ctx, pool)
	}
	if err := app.Seeder().Seed(seedCtx, app); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range app.Workers() {
		g.Go(func() error {
			logger.WithField("worker", w.Name()).Info("worker started")
			return w.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Infof("Listening on: %s", conf.Origin)
		return serverInstance.Start(gctx, conf.SocketAddress)
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped")
		conf.Unload()
		os.Exit(1)
	}
	logger.Info("server stopped")
	conf.Unload()
}

// connectPool returns nil when no component is configured for postgres.
func connectPool(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	if !conf.Storage.UsesPostgres() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func connectRedis(conf *configuration.Configuration) (*redis.Client, error) {
	if conf.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(conf.RedisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func newEventBus(conf *configuration.Configuration, rdb *redis.Client, logger *logrus.Logger) eventbus.EventBusWithError {
	var cache eventbus.Cache = eventbus.NewMemoryCache(conf.Execution.EventCacheSize)
	if conf.Execution.EventCache == configuration.StorageRedis && rdb != nil {
		cache = eventbus.NewRedisCache(rdb, conf.ServiceName, conf.Execution.EventCacheSize)
	}
	return eventbus.NewEventPublisher(logger, eventbus.WithCache(cache))
}

func migrate(ctx context.Context, conf *configuration.Configuration, app application.Application) error {
	db, err := application.OpenDB(conf.Database.Opts)
	if err != nil {
		return err
	}
	defer db.Close()
	return app.Migrations().Run(ctx, db)
}
