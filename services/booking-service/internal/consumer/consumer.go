// Package consumer runs one Kafka reader per subscribed topic, with inbox
// dedupe and a trace span per message.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotwise/slotwise/libs/kafkax"
	"github.com/slotwise/slotwise/services/booking-service/internal/inbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   *inbox.Repository
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
	// StartOffset seeds a brand-new consumer group. The realtime feed uses
	// kafka.LastOffset; projection consumers keep the default (first).
	StartOffset int64
}

// New builds a consumer. A nil inbox repository skips dedupe; that is only
// appropriate for idempotent fan-out like the realtime feed.
func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	readerCfg := kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if cfg.StartOffset != 0 {
		readerCfg.StartOffset = cfg.StartOffset
	}
	reader := kafka.NewReader(readerCfg)
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		if c.inbox != nil {
			ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
			if err != nil {
				c.logger.Error("inbox record failed", "err", err)
				span.RecordError(err)
				span.End()
				continue
			}
			if !ok {
				c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
				span.End()
				continue
			}
		}

		if err := c.handler(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}
