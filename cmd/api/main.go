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
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/koseken/game-trading/api/routes"
	"github.com/koseken/game-trading/internal/admin"
	"github.com/koseken/game-trading/internal/listings"
	"github.com/koseken/game-trading/internal/messages"
	"github.com/koseken/game-trading/internal/realtime"
	"github.com/koseken/game-trading/internal/reviews"
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/instance"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/metrics"
	"github.com/koseken/game-trading/pkg/migrate"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/redis"
	"github.com/koseken/game-trading/pkg/storage/s3"
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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	var images listings.ImageCleaner
	if cfg.Storage.Enabled() && cfg.FeatureFlags.BlobCleanup {
		blobs, err := s3.NewClient(ctx, cfg.Storage, logg)
		if err != nil {
			return err
		}
		images = blobs
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	marketMetrics := metrics.NewMarketplaceMetrics(registry)

	hub := realtime.NewHub(realtime.HubParams{
		Config:         cfg.Realtime,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        marketMetrics,
		Logger:         logg,
	})
	defer hub.Close()

	origin := instance.GetID()
	brokerParams := realtime.BrokerParams{
		Hub:     hub,
		Channel: cfg.Realtime.Channel,
		Origin:  origin,
		Logger:  logg,
	}
	if cfg.FeatureFlags.RealtimeFanout {
		brokerParams.Bus = redisClient
	}
	broker, err := realtime.NewBroker(brokerParams)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(), logg, origin)
	userRepo := users.NewRepository(conn)

	userSvc, err := users.NewService(userRepo)
	if err != nil {
		return err
	}

	listingRepo := listings.NewRepository(conn)
	categories, err := listings.NewCategoryCache(listingRepo, 0)
	if err != nil {
		return err
	}
	listingSvc, err := listings.NewService(listings.ServiceParams{
		Repository: listingRepo,
		Tx:         dbClient,
		Outbox:     outboxSvc,
		Categories: categories,
		Images:     images,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	messageSvc, err := messages.NewService(messages.ServiceParams{
		Repository:  messages.NewRepository(conn),
		Tx:          dbClient,
		Broadcaster: broker,
		Metrics:     marketMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	transactionSvc, err := transactions.NewService(transactions.ServiceParams{
		Repository:  transactions.NewRepository(conn),
		Tx:          dbClient,
		Messages:    messageSvc,
		Outbox:      outboxSvc,
		Broadcaster: broker,
		Metrics:     marketMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		Repository: reviews.NewRepository(conn),
		Users:      userRepo,
		Tx:         dbClient,
		Outbox:     outboxSvc,
		Metrics:    marketMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	adminSvc, err := admin.NewService(admin.ServiceParams{
		Users:        userRepo,
		Listings:     listingSvc,
		Transactions: transactionSvc,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			HTTPMetrics:  httpMetrics,
			Gatherer:     registry,
			Users:        userSvc,
			Admins:       userSvc,
			Listings:     listingSvc,
			Transactions: transactionSvc,
			Messages:     messageSvc,
			Reviews:      reviewSvc,
			Admin:        adminSvc,
			Stream:       hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(runCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return broker.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
