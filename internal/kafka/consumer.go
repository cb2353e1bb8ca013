package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/observability"
)

//go:generate mockgen -source internal/kafka/consumer.go -destination=internal/kafka/consumer_mock_test.go -package=kafka

type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

type Reader interface {
	Config() kafkago.ReaderConfig
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consumer feeds messages to a handler and commits each offset only after
// the handler succeeded. Messages are handled one at a time in fetch order,
// so commits never skip ahead of a failed message; a failed message is
// retried until it succeeds or ctx is done.
type Consumer struct {
	handler MessageHandler
	reader  Reader
	logger  *zap.Logger
	metrics observability.Metrics

	idleBackoff   time.Duration
	fetchBackoff  time.Duration
	handleBackoff time.Duration
}

func NewConsumer(handler MessageHandler, reader Reader, logger *zap.Logger, metrics observability.Metrics) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	return &Consumer{
		handler:       handler,
		reader:        reader,
		logger:        logger,
		metrics:       metrics,
		idleBackoff:   10 * time.Second,
		fetchBackoff:  500 * time.Millisecond,
		handleBackoff: 200 * time.Millisecond,
	}
}

// Start blocks until ctx is done.
func (c *Consumer) Start(ctx context.Context) {
	rc := c.reader.Config()
	c.logger.Info("Starting Kafka consumer",
		zap.Strings("brokers", rc.Brokers),
		zap.String("group", rc.GroupID),
		zap.String("topic", rc.Topic),
	)
	defer c.logger.Info("Kafka consumer stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if isBenignFetchTimeout(err) {
				c.logger.Debug("fetch timeout (idle), backing off", zap.Error(err))
				sleepWithContext(ctx, c.idleBackoff)
				continue
			}
			c.logger.Warn("FetchMessage error, backing off", zap.Error(err))
			sleepWithContext(ctx, c.fetchBackoff)
			continue
		}

		if !c.process(ctx, msg) {
			return
		}
	}
}

// process handles msg until it succeeds and commits it. It returns false
// when ctx is done first.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message) bool {
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}

	for {
		err := c.handle(ctx, msg)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return false
		}

		c.logger.Error("handler failed; message will be retried", append(fields, zap.Error(err))...)
		sleepWithContext(ctx, c.handleBackoff)
		if ctx.Err() != nil {
			return false
		}
	}

	for {
		err := c.reader.CommitMessages(ctx, msg)
		if err == nil {
			c.logger.Debug("message committed", fields...)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("commit failed", append(fields, zap.Error(err))...)
		sleepWithContext(ctx, c.handleBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	start := time.Now()
	err := c.handler.Handle(ctx, msg)
	c.metrics.ObserveKafka(float64(time.Since(start).Microseconds())/1000.0, err == nil)
	if err == nil {
		c.logger.Debug("message handled",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("value_bytes", len(msg.Value)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isBenignFetchTimeout(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Request Timed Out") ||
		strings.Contains(s, "no messages received from kafka within the allocated time")
}
