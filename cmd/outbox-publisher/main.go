package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/db"
	"github.com/koseken/game-trading/pkg/logger"
	"github.com/koseken/game-trading/pkg/metrics"
	"github.com/koseken/game-trading/pkg/migrate"
	"github.com/koseken/game-trading/pkg/outbox"
	"github.com/koseken/game-trading/pkg/outbox/registry"
	"github.com/koseken/game-trading/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox.relay_stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox.relay_shutdown")
}

// run owns every resource the relay needs and releases them on return.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	catalog, err := registry.NewCatalog(cfg.PubSub)
	if err != nil {
		return err
	}
	psClient, err := pubsub.NewClient(ctx, cfg.GCP, catalog.Topics(), logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, psClient.Close()) }()

	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Config:  cfg.Outbox,
		Logger:  logg,
		DB:      dbClient,
		PubSub:  psClient,
		Store:   outbox.NewRepository(),
		Catalog: catalog,
		Metrics: metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return relay.Run(groupCtx) })
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
