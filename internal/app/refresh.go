package app

import (
	"context"
	"time"

	"github.com/example/booklog-timeline/internal/config"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/projection"
	"golang.org/x/sync/errgroup"
)

// Refresh is the in-process half of timeline maintenance: the signal channel,
// the single worker draining it and the resolver the worker drives.
type Refresh struct {
	Invalidator *projection.ChannelInvalidator
	worker      *projection.Worker
	safety      time.Duration
	log         *logger.Logger
}

func NewRefresh(cfg *config.Config, stores *Stores, log *logger.Logger) *Refresh {
	inv := projection.NewChannelInvalidator(cfg.ChannelCapacity, log)
	resolver := projection.NewResolver(stores.Library, stores.Timeline, log)
	return &Refresh{
		Invalidator: inv,
		worker:      projection.NewWorker(inv.Signals(), resolver, cfg.Debounce, log),
		safety:      cfg.SafetyRebuildInterval,
		log:         log,
	}
}

// Start queues a catch-up rebuild and runs the worker and the safety net on g.
// Cancelling ctx closes the channel; the worker finishes its batch and exits.
func (r *Refresh) Start(ctx context.Context, g *errgroup.Group) {
	r.Invalidator.InvalidateFull()

	g.Go(func() error {
		r.worker.Run(context.WithoutCancel(ctx))
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		r.Invalidator.Close()
		if dropped := r.Invalidator.Dropped(); dropped > 0 {
			r.log.Info("signals dropped during run", "count", dropped)
		}
		return nil
	})
	g.Go(func() error {
		return projection.RunPeriodicRebuild(ctx, r.Invalidator, r.safety)
	})
}
