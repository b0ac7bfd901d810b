package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"missionlog/internal/api/handler"
	"missionlog/internal/datastore"
	"missionlog/internal/interfaces"
	"missionlog/internal/pkg/caching"
	"missionlog/internal/pkg/limiter"
	"missionlog/internal/pkg/locker"
	"missionlog/internal/pkg/metrics"
	"missionlog/internal/pkg/storage"
	"missionlog/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	vs, err := env.EnvsRequired(
		"JWT_SECRET",
		"DB_DSN",
		"FEED_API_URL",
	)
	if err != nil {
		log.Fatal(err)
	}

	container := NewContainer(vs)

	app := &cli.App{
		Name: "api",
		Commands: []*cli.Command{
			commandServer(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "0.0.0.0:8080",
				Usage: "serve address",
			},
		},
		Action: func(c *cli.Context) error {
			logger := do.MustInvoke[*logrus.Logger](container)
			vs := do.MustInvokeNamed[map[string]string](container, "envs")
			router, err := handler.New(&handler.Config{
				Container: container,
				Mode:      vs["API_MODE"],
				Origins:   strings.Split(vs["API_ORIGINS"], ","),
			})
			if err != nil {
				logger.WithError(err).Error("build router")
				return err
			}

			srv := &http.Server{
				Addr:    c.String("addr"),
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				logger.Infof("ListenAndServe: %s (%s)", c.String("addr"), vs["API_MODE"])
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("listen")
					return err
				}
				return nil
			})

			errWg.Go(func() error {
				<-errCtx.Done()
				return srv.Shutdown(context.TODO())
			})

			err = errWg.Wait()
			if shutdownErr := container.Shutdown(); shutdownErr != nil {
				logger.WithError(shutdownErr).Warn("container shutdown")
			}
			return err
		},
	}
}

func provideRedis(i *do.Injector, name string, clusterEnv string, urlEnv string) {
	do.ProvideNamed(i, name, func(i *do.Injector) (redis.UniversalClient, error) {
		clusterURL := os.Getenv(clusterEnv)
		if clusterURL != "" {
			clusterOpts, err := redis.ParseClusterURL(clusterURL)
			if err != nil {
				return nil, err
			}
			return redis.NewClusterClient(clusterOpts), nil
		}
		return db.InitRedis(&db.RedisConfig{
			URL: os.Getenv(urlEnv),
		})
	})
}

func NewContainer(vs map[string]string) *do.Injector {
	injector := do.New()
	vs["API_MODE"] = os.Getenv("API_MODE")
	vs["API_ORIGINS"] = os.Getenv("API_ORIGINS")

	if vs["API_MODE"] == "" {
		vs["API_MODE"] = "production"
	}
	if vs["API_ORIGINS"] == "" {
		vs["API_ORIGINS"] = "*"
	}

	do.ProvideNamedValue(injector, "envs", vs)

	do.Provide(injector, func(i *do.Injector) (*logrus.Logger, error) {
		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		if vs["API_MODE"] == "debug" {
			logger.SetLevel(logrus.DebugLevel)
		}
		return logger, nil
	})

	do.Provide(injector, func(i *do.Injector) (*prometheus.Registry, error) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return registry, nil
	})

	do.Provide(injector, func(i *do.Injector) (*metrics.Metrics, error) {
		registry, err := do.Invoke[*prometheus.Registry](i)
		if err != nil {
			return nil, err
		}
		return metrics.NewMetrics(registry)
	})

	do.Provide(injector, func(i *do.Injector) (*bun.DB, error) {
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(vs["DB_DSN"]),
			pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
		))

		return bun.NewDB(sqldb, pgdialect.New()), nil
	})

	do.ProvideNamed(injector, "db-readonly", func(i *do.Injector) (*bun.DB, error) {
		dsn := os.Getenv("DB_DSN_READONLY")
		if dsn == "" {
			return do.Invoke[*bun.DB](i)
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithPassword(os.Getenv("DB_PASSWORD_READONLY")),
		))

		return bun.NewDB(sqldb, pgdialect.New()), nil
	})

	provideRedis(injector, "redis-cache", "CLUSTER_REDIS_CACHE", "REDIS_CACHE")
	provideRedis(injector, "redis-limiter", "CLUSTER_REDIS_LIMITER", "REDIS_LIMITER")
	provideRedis(injector, "redis-mutex", "CLUSTER_REDIS_MUTEX", "REDIS_MUTEX")

	do.ProvideNamed(injector, "redis-cache-readonly", func(i *do.Injector) (redis.UniversalClient, error) {
		var clusterOpts *redis.ClusterOptions
		var err error
		clusterCacheRedisReadOnlyURL := os.Getenv("CLUSTER_REDIS_CACHE_READONLY")
		if clusterCacheRedisReadOnlyURL != "" {
			clusterOpts, err = redis.ParseClusterURL(clusterCacheRedisReadOnlyURL)
		} else {
			clusterCacheRedisURL := os.Getenv("CLUSTER_REDIS_CACHE")
			if clusterCacheRedisURL != "" {
				clusterOpts, err = redis.ParseClusterURL(clusterCacheRedisURL)
			}
		}

		if err != nil {
			return nil, err
		}
		if clusterOpts != nil {
			clusterOpts.ReadOnly = true
			return redis.NewClusterClient(clusterOpts), nil
		}

		url := os.Getenv("REDIS_CACHE_READONLY")
		if url == "" {
			url = os.Getenv("REDIS_CACHE")
		}
		return db.InitRedis(&db.RedisConfig{
			URL: url,
		})
	})

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-cache")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, false)
	})

	do.Provide(injector, func(i *do.Injector) (caching.ReadOnlyCache, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-cache-readonly")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, false)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Limiter, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-limiter")
		if err != nil {
			return nil, err
		}

		return limiter.NewLimiter(dbRedis)
	})

	do.Provide(injector, func(i *do.Injector) (*redsync.Redsync, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-mutex")
		if err != nil {
			return nil, err
		}

		pool := goredis.NewPool(dbRedis)
		return redsync.New(pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Locker, error) {
		rs, err := do.Invoke[*redsync.Redsync](i)
		if err != nil {
			return nil, err
		}
		logger, err := do.Invoke[*logrus.Logger](i)
		if err != nil {
			return nil, err
		}

		return locker.NewLocker(rs, logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ImageStorage, error) {
		cfg, err := storage.LoadConfig()
		if err != nil {
			return nil, err
		}

		return storage.NewImageStorage(context.Background(), cfg)
	})

	provideStores(injector)

	do.Provide(injector, func(i *do.Injector) (*services.Authentication, error) {
		return services.NewAuthentication(vs["JWT_SECRET"])
	})

	do.Provide(injector, services.NewServiceConfig)
	do.Provide(injector, services.NewServiceFeed)
	do.Provide(injector, services.NewServiceExperience)
	do.Provide(injector, services.NewServiceAchievement)

	do.Provide(injector, func(i *do.Injector) (interfaces.FeedPublisher, error) {
		return do.Invoke[*services.ServiceFeed](i)
	})
	do.Provide(injector, func(i *do.Injector) (interfaces.ExperienceGranter, error) {
		return do.Invoke[*services.ServiceExperience](i)
	})
	do.Provide(injector, func(i *do.Injector) (interfaces.AchievementEvaluator, error) {
		return do.Invoke[*services.ServiceAchievement](i)
	})

	do.Provide(injector, services.NewServiceCompletion)
	do.Provide(injector, services.NewServiceDailyInstance)
	do.Provide(injector, services.NewRegularExecutionStrategy)
	do.Provide(injector, services.NewPinnedExecutionStrategy)
	do.Provide(injector, services.NewServiceStrategyResolver)
	do.Provide(injector, services.NewServiceExecutionQuery)

	return injector
}

// provideStores binds the bun backed stores. Listings read from the
// read-only replica, everything on the execution write path uses the primary.
func provideStores(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (interfaces.MissionStore, error) {
		db, err := do.InvokeNamed[*bun.DB](i, "db-readonly")
		if err != nil {
			return nil, err
		}
		return datastore.NewMissionStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ParticipantStore, error) {
		db, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewParticipantStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ExecutionStore, error) {
		db, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewExecutionStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.InstanceStore, error) {
		db, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewInstanceStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ExperienceStore, error) {
		db, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewExperienceStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.AchievementStore, error) {
		db, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewAchievementStore(db), nil
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.ConfigStore, error) {
		db, err := do.InvokeNamed[*bun.DB](i, "db-readonly")
		if err != nil {
			return nil, err
		}
		return datastore.NewConfigStore(db), nil
	})
}
