package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/booklog-timeline/internal/app"
	"github.com/example/booklog-timeline/internal/config"
	"github.com/example/booklog-timeline/internal/infrastructure/kafka"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/platform/telemetry"
)

// The projector is the single timeline writer when the API publishes
// invalidations to kafka.
func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("[Projector] config: %v", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		stdlog.Fatalf("[Projector] logger: %v", err)
	}
	defer log.Sync()

	if err := run(cfg, log.With("component", "projector-main")); err != nil {
		log.Fatal("projector exited", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if cfg.StorageDriver == config.StorageMemory {
		return errors.New("projector needs shared storage; set STORAGE_DRIVER to sqlite or postgres")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return config.ErrMissingBrokers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.ServiceName+"-projector")
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

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaConsumerGroup, log)
	defer consumer.Close()

	g, gctx := errgroup.WithContext(ctx)

	refresh := app.NewRefresh(cfg, stores, log)
	refresh.Start(gctx, g)

	g.Go(func() error {
		log.Info("consuming invalidations",
			"topic", cfg.KafkaTopic,
			"group", cfg.KafkaConsumerGroup,
		)
		err := consumer.Consume(gctx, kafka.SignalHandler(refresh.Invalidator))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
