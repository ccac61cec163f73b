package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Producer buffers messages for one topic and writes them from a single
// goroutine. Publish never blocks on the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger

	mu     sync.RWMutex // guards closed and sends on inbox
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	p := &Producer{
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log.With("topic", topic),
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", "messages", len(msgs), "err", err)
			}
		},
	}
	return p
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

// drain flushes whatever is still buffered once the context is gone.
func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				_ = p.w.Close()
				return
			}
			p.write(m)
		default:
			_ = p.w.Close()
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka enqueue failed", "key", string(m.Key), "err", err)
	}
}

// Publish queues one message with the caller's trace context in its headers.
// A full buffer drops the message rather than stall the caller, and so does a
// closed producer.
func (p *Producer) Publish(ctx context.Context, key, value []byte) {
	m := kafka.Message{Key: key, Value: value, Time: time.Now()}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &m})

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WarnContext(ctx, "producer closed, event dropped", "key", string(key))
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.log.WarnContext(ctx, "producer buffer full, event dropped", "key", string(key))
	}
}

// Close stops accepting messages; the loop flushes the rest and exits. Calling
// it again is a no-op.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the loop has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }

// Router fans events out to one producer per topic.
type Router map[string]*Producer

func (r Router) Publish(ctx context.Context, topic string, key, value []byte) {
	p, ok := r[topic]
	if !ok {
		return
	}
	p.Publish(ctx, key, value)
}
