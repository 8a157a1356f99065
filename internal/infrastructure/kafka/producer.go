package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/projection"
	"github.com/example/booklog-timeline/internal/readmodel"
)

// DefaultPublishTimeout bounds one background write, metadata lookup included.
const DefaultPublishTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a projection.Invalidator that sends signals to the projector
// process over Kafka. Invalidate only enqueues onto a bounded queue; one
// goroutine drains it into the writer. A full queue drops the signal.
type Publisher struct {
	writer  messageWriter
	log     *logger.Logger
	now     func() time.Time
	timeout time.Duration

	mu      sync.RWMutex
	queue   chan kafka.Message
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

var _ projection.Invalidator = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, capacity int, log *logger.Logger) *Publisher {
	log = log.With("component", "signal-publisher", "topic", topic)
	return newPublisher(newWriter(brokers, topic, log), capacity, DefaultPublishTimeout, log)
}

func newWriter(brokers []string, topic string, log *logger.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("timeline signals not delivered", "count", len(msgs), "error", err)
			}
		},
	}
}

func newPublisher(w messageWriter, capacity int, timeout time.Duration, log *logger.Logger) *Publisher {
	if capacity <= 0 {
		capacity = projection.DefaultChannelCapacity
	}
	p := &Publisher{
		writer:  w,
		log:     log,
		now:     time.Now,
		timeout: timeout,
		queue:   make(chan kafka.Message, capacity),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

func (p *Publisher) Invalidate(entityType readmodel.EntityType, entityID int64) {
	if !entityType.Valid() {
		p.log.Warn("ignoring invalidation for unknown entity type", "entity_type", int(entityType), "entity_id", entityID)
		return
	}
	p.publish(projection.TargetSignal{Ref: readmodel.EntityRef{Type: entityType, ID: entityID}})
}

func (p *Publisher) InvalidateFull() {
	p.publish(projection.FullSignal{})
}

func (p *Publisher) publish(sig projection.Signal) {
	key, value, err := EncodeSignal(sig, p.now())
	if err != nil {
		p.log.Warn("encode timeline signal", "error", err)
		return
	}
	msg := kafka.Message{Key: key, Value: value, Time: p.now()}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(msg, "closed")
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.drop(msg, "full")
	}
}

func (p *Publisher) drop(msg kafka.Message, reason string) {
	p.dropped.Add(1)
	p.log.Debug("timeline signal dropped", "reason", reason, "key", string(msg.Key))
}

func (p *Publisher) drain() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.Debug("timeline signal not written", "key", string(msg.Key), "error", err)
		}
	}
}

// Dropped returns how many signals were discarded before reaching the writer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting signals, waits for queued ones to be handed to the
// writer, then closes it.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}
