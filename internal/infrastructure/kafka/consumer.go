package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/projection"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6, // 1MB
	})
	return &Consumer{
		reader: reader,
		log:    log.With("component", "signal-consumer", "topic", topic, "group", groupID),
	}
}

// Consume reads messages until ctx is done. Read and handler errors are
// logged and the loop moves on.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Warn("error reading message", "error", err)
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.log.Warn("error handling message", "key", string(msg.Key), "offset", msg.Offset, "error", err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// SignalSink accepts decoded signals; *projection.ChannelInvalidator is one.
type SignalSink interface {
	Send(sig projection.Signal)
}

// SignalHandler decodes each message and hands it to sink. The sink keeps
// its own drop-on-full policy, so a slow worker never stalls the consumer.
func SignalHandler(sink SignalSink) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		sig, err := DecodeSignal(value)
		if err != nil {
			return err
		}
		sink.Send(sig)
		return nil
	}
}
