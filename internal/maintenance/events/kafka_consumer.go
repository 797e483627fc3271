package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     KafkaReader
	logger     *zap.Logger
	handler    func(context.Context, Event) error
	newBackOff func() backoff.BackOff
}

// NewConsumer reads the events topic as part of a consumer group.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger:     logger.Named("kafka_consumer"),
		newBackOff: retryForever,
	}
}

// retryForever backs off up to a minute between attempts and never gives up;
// only the consumer's context ends the retries.
func retryForever() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

func (c *Consumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				c.logger.Error("Failed to fetch message", zap.Error(err))
				continue
			}
			c.process(ctx, msg)
		}
	}()
}

// process handles one message, retrying the handler until it succeeds, and
// only then commits. Kafka commits are per-partition high-water marks, so a
// message left behind would be skipped by the next commit. A handler error
// wrapped with backoff.Permanent is logged and committed. When ctx ends first
// the message stays uncommitted and is fetched again after a restart.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to parse event",
			zap.Error(err),
			zap.ByteString("value", msg.Value),
		)
		c.commit(ctx, msg, "")
		return
	}

	if c.handler != nil {
		var permanent bool
		op := func() error {
			err := c.handler(ctx, event)
			var perm *backoff.PermanentError
			permanent = errors.As(err, &perm)
			return err
		}
		notify := func(err error, wait time.Duration) {
			c.logger.Error("Failed to handle event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.Duration("retry_in", wait),
			)
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(c.backOff(), ctx), notify); err != nil {
			if !permanent {
				c.logger.Warn("Stopped before event was handled",
					zap.Error(err),
					zap.String("event_type", string(event.Type)),
				)
				return
			}
			c.logger.Error("Dropping event after permanent failure",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
			)
		}
	}
	c.commit(ctx, msg, event.Type)
}

func (c *Consumer) backOff() backoff.BackOff {
	if c.newBackOff == nil {
		return retryForever()
	}
	return c.newBackOff()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, eventType EventType) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("event_type", string(eventType)),
		)
	}
}

func (c *Consumer) RegisterHandler(fn func(context.Context, Event) error) {
	c.handler = fn
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
