package projection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

const (
	DefaultDebounce = 2 * time.Second

	tracerName = "github.com/example/booklog-timeline/internal/projection"
)

// Rebuilder recomputes snapshots from the authoritative tables.
type Rebuilder interface {
	RefreshEntity(ctx context.Context, ref readmodel.EntityRef) error
	FullRebuild(ctx context.Context) error
}

type workerState int32

const (
	stateIdle workerState = iota
	stateDebouncing
	stateDraining
	stateRebuilding
	stateStopped
)

func (s workerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDebouncing:
		return "debouncing"
	case stateDraining:
		return "draining"
	case stateRebuilding:
		return "rebuilding"
	case stateStopped:
		return "stopped"
	}
	return fmt.Sprintf("workerState(%d)", int32(s))
}

// batch is the coalesced work of one debounce window.
type batch struct {
	full    bool
	targets map[readmodel.EntityRef]struct{}
}

func newBatch() *batch {
	return &batch{targets: make(map[readmodel.EntityRef]struct{})}
}

func (b *batch) add(sig Signal) {
	switch s := sig.(type) {
	case FullSignal:
		b.full = true
		b.targets = nil
	case TargetSignal:
		if b.full {
			return
		}
		b.targets[s.Ref] = struct{}{}
	}
}

func (b *batch) refs() []readmodel.EntityRef {
	out := make([]readmodel.EntityRef, 0, len(b.targets))
	for ref := range b.targets {
		out = append(out, ref)
	}
	return out
}

// Worker is the single consumer of the invalidation channel and the only
// writer of refreshed snapshots.
type Worker struct {
	signals   <-chan Signal
	rebuilder Rebuilder
	debounce  time.Duration
	log       *logger.Logger
	tracer    trace.Tracer
	state     atomic.Int32

	// sleep waits out the debounce window; replaced in tests.
	sleep func(time.Duration)
}

func NewWorker(signals <-chan Signal, rebuilder Rebuilder, debounce time.Duration, log *logger.Logger) *Worker {
	if debounce < 0 {
		debounce = DefaultDebounce
	}
	return &Worker{
		signals:   signals,
		rebuilder: rebuilder,
		debounce:  debounce,
		log:       log.With("component", "projector"),
		tracer:    otel.Tracer(tracerName),
		sleep:     time.Sleep,
	}
}

func (w *Worker) setState(s workerState) {
	w.state.Store(int32(s))
}

func (w *Worker) currentState() workerState {
	return workerState(w.state.Load())
}

// Run processes batches until the signal channel is closed. ctx is used for
// store I/O only; cancelling it does not stop the loop.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("timeline worker started", "debounce", w.debounce.String())
	defer func() {
		w.setState(stateStopped)
		w.log.Info("timeline worker stopped")
	}()

	for {
		w.setState(stateIdle)
		first, ok := <-w.signals
		if !ok {
			return
		}

		b := newBatch()
		b.add(first)

		w.setState(stateDebouncing)
		if w.debounce > 0 {
			w.sleep(w.debounce)
		}

		w.setState(stateDraining)
		open := w.drain(b)

		w.setState(stateRebuilding)
		w.process(ctx, b)

		if !open {
			return
		}
	}
}

// drain pulls every pending signal into b without blocking. It reports false
// once the channel has been closed.
func (w *Worker) drain(b *batch) bool {
	for {
		select {
		case sig, ok := <-w.signals:
			if !ok {
				return false
			}
			b.add(sig)
		default:
			return true
		}
	}
}

func (w *Worker) process(ctx context.Context, b *batch) {
	batchID := uuid.NewString()
	log := w.log.With("batch_id", batchID)
	started := time.Now()

	ctx, span := w.tracer.Start(ctx, "timeline.batch", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Bool("batch.full", b.full),
		attribute.Int("batch.targets", len(b.targets)),
	))
	defer span.End()

	if b.full {
		log.Info("full timeline rebuild started")
		if err := w.safely(func() error { return w.rebuilder.FullRebuild(ctx) }); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "full rebuild failed")
			log.Warn("full timeline rebuild finished with errors", "error", err, "elapsed", time.Since(started).String())
			return
		}
		log.Info("full timeline rebuild finished", "elapsed", time.Since(started).String())
		return
	}

	failed := 0
	for _, ref := range b.refs() {
		if err := w.safely(func() error { return w.rebuilder.RefreshEntity(ctx, ref) }); err != nil {
			failed++
			span.RecordError(err)
			log.Warn("timeline refresh failed", "entity", ref.String(), "error", err)
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, "some refreshes failed")
	}
	log.Debug("timeline batch processed",
		"targets", len(b.targets),
		"failed", failed,
		"elapsed", time.Since(started).String(),
	)
}

// safely runs fn, turning a panic into an error so one bad entity cannot
// take the loop down.
func (w *Worker) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during timeline refresh: %v", r)
		}
	}()
	return fn()
}
