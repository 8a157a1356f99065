package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/booklog-timeline/internal/api"
	"github.com/example/booklog-timeline/internal/app"
	"github.com/example/booklog-timeline/internal/auth"
	"github.com/example/booklog-timeline/internal/command"
	"github.com/example/booklog-timeline/internal/config"
	"github.com/example/booklog-timeline/internal/infrastructure/kafka"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/platform/telemetry"
	"github.com/example/booklog-timeline/internal/projection"
	"github.com/example/booklog-timeline/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("[API] config: %v", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		stdlog.Fatalf("[API] logger: %v", err)
	}
	defer log.Sync()

	if err := run(cfg, log.With("component", "api-main")); err != nil {
		log.Fatal("api exited", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	g, gctx := errgroup.WithContext(ctx)

	// With kafka the projector process owns the worker; this process only
	// publishes.
	var invalidator projection.Invalidator
	if cfg.UsesKafka() {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ChannelCapacity, log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("close signal publisher", "error", err)
			}
			log.Info("signal publisher stopped", "dropped", publisher.Dropped())
		}()
		invalidator = publisher
	} else {
		refresh := app.NewRefresh(cfg, stores, log)
		refresh.Start(gctx, g)
		invalidator = refresh.Invalidator
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	cmdHandler := command.NewHandler(stores.Library, stores.Timeline, invalidator, log)
	queryHandler := query.NewHandler(stores.Timeline, log)
	router := api.NewRouter(api.NewHandlers(cmdHandler, queryHandler, log), jwtService, log)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("server started",
			"addr", cfg.HTTPAddr,
			"storage", cfg.StorageDriver,
			"transport", cfg.Transport,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
