package projection

import (
	"sync"
	"sync/atomic"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

// DefaultChannelCapacity bounds the number of pending signals.
const DefaultChannelCapacity = 32

// Invalidator is called by mutation code after a committed write. Calls
// return immediately and never report failure; a lost signal only leaves a
// snapshot stale until the next refresh.
type Invalidator interface {
	Invalidate(entityType readmodel.EntityType, entityID int64)
	InvalidateFull()
}

// ChannelInvalidator feeds a bounded in-process channel read by one Worker.
type ChannelInvalidator struct {
	mu      sync.RWMutex
	ch      chan Signal
	closed  bool
	dropped atomic.Int64
	log     *logger.Logger
}

func NewChannelInvalidator(capacity int, log *logger.Logger) *ChannelInvalidator {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &ChannelInvalidator{
		ch:  make(chan Signal, capacity),
		log: log.With("component", "invalidator"),
	}
}

// Signals is the receive side handed to the Worker.
func (c *ChannelInvalidator) Signals() <-chan Signal {
	return c.ch
}

func (c *ChannelInvalidator) Invalidate(entityType readmodel.EntityType, entityID int64) {
	if !entityType.Valid() {
		c.log.Warn("ignoring invalidation for unknown entity type", "entity_type", int(entityType), "entity_id", entityID)
		return
	}
	c.send(TargetSignal{Ref: readmodel.EntityRef{Type: entityType, ID: entityID}})
}

func (c *ChannelInvalidator) InvalidateFull() {
	c.send(FullSignal{})
}

// Send enqueues an already-built signal, e.g. one decoded from the wire.
func (c *ChannelInvalidator) Send(sig Signal) {
	c.send(sig)
}

func (c *ChannelInvalidator) send(sig Signal) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.drop(sig, "closed")
		return
	}
	select {
	case c.ch <- sig:
	default:
		c.drop(sig, "full")
	}
}

func (c *ChannelInvalidator) drop(sig Signal, reason string) {
	c.dropped.Add(1)
	switch s := sig.(type) {
	case TargetSignal:
		c.log.Debug("timeline signal dropped", "reason", reason, "entity", s.Ref.String())
	case FullSignal:
		c.log.Debug("timeline signal dropped", "reason", reason, "entity", "full")
	}
}

// Dropped returns how many signals have been discarded so far.
func (c *ChannelInvalidator) Dropped() int64 {
	return c.dropped.Load()
}

// Close closes the channel so the Worker exits once it has drained it.
// Later signals are dropped.
func (c *ChannelInvalidator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
