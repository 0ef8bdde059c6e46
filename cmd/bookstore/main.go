package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/go_bookstore/internal/cachecheck"
	"github.com/fjod/go_bookstore/internal/config"
	bookgrpc "github.com/fjod/go_bookstore/internal/grpc"
	h "github.com/fjod/go_bookstore/internal/http"
	"github.com/fjod/go_bookstore/internal/logger"
	"github.com/fjod/go_bookstore/internal/publisher"
	"github.com/fjod/go_bookstore/internal/repository"
	"github.com/fjod/go_bookstore/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("bookstore stopped with error", zap.Error(err))
	}
	lg.Info("bookstore stopped")
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	lg.Info("database migrations completed", zap.String("driver", cfg.DBDriver))

	deps := map[string]bookgrpc.Pinger{"database": repo}

	var watermarks cachecheck.Watermark = cachecheck.NewMemoryWatermark()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		watermarks = cachecheck.NewRedisWatermark(client)
		deps["redis"] = bookgrpc.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	reporters := cachecheck.MultiReporter{cachecheck.NewZapReporter(lg)}
	if cfg.MongoURI != "" {
		db, err := cachecheck.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer disconnectMongo(db.Client(), lg)

		mongoReporter := cachecheck.NewMongoReporter(db, lg)
		if err := mongoReporter.CreateIndexes(ctx); err != nil {
			return err
		}
		reporters = append(reporters, mongoReporter)
		deps["mongodb"] = bookgrpc.PingFunc(func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		})
	}

	checker := cachecheck.NewChecker(repo, watermarks, reporters, lg)
	scheduler := cachecheck.NewScheduler(checker, cfg.CacheCheckInterval, cfg.CacheCheckFix, lg)

	router := h.NewRouter(h.RouterDeps{
		Orders:         service.NewOrderService(repo, repo, lg),
		Catalog:        service.NewCatalogService(repo, lg),
		CacheChecks:    scheduler,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         lg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "bookstore"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthHandler := bookgrpc.NewHealthHandler(deps, lg)
	grpcServer := bookgrpc.NewServer(healthHandler)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("gRPC health server starting", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		healthHandler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, lg, cfg.KafkaBrokers...)
		g.Go(func() error {
			defer func() {
				if err := poller.Close(); err != nil {
					lg.Warn("failed to close kafka writer", zap.Error(err))
				}
			}()
			poller.Run(gctx)
			return nil
		})
	} else {
		lg.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")

		healthHandler.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	if cfg.DBDriver == repository.DriverPostgres {
		return repository.NewPostgresRepository(cfg.Credentials())
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return repository.NewRepository(cfg.DBPath)
}

func disconnectMongo(client *mongo.Client, lg *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		lg.Warn("failed to disconnect mongodb", zap.Error(err))
	}
}
