package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger

	retries   uint64
	retryWait time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:         r,
		workers:   workers,
		log:       log.With("topic", topic, "group", group),
		retries:   3,
		retryWait: 200 * time.Millisecond,
	}
}

// process runs h with a few short retries. A message that still fails is not
// committed here, but a later commit on the same partition moves the group
// past it, so it is effectively skipped. Order reads fall back to Postgres
// when its projection is missing.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	mctx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &m})
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryWait
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.retries), ctx)

	err := backoff.Retry(func() error { return h(mctx, m) }, policy)
	if err != nil {
		c.log.WarnContext(mctx, "handler failed, message skipped", "partition", m.Partition, "offset", m.Offset, "err", err)
	}
	return err
}

// Start blocks until ctx is done or the reader fails.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.process(ctx, h, m); err != nil {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn("commit failed", "partition", m.Partition, "offset", m.Offset, "err", err)
				}
			}
		}()
	}
	stop := func() { close(jobs); wg.Wait() }

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}
