package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

// Projector fills the order cache from OrderPlaced events. Each event id is
// applied at most once per consumer name.
type Projector struct {
	Cache *Cache
	Redis redis.Cmdable
	Name  string
	Log   *slog.Logger
}

// Handle is a kafka.Handler. Malformed messages are logged and committed;
// Redis failures are returned so the offset stays uncommitted.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.Decode[Envelope](m.Value)
	if err != nil {
		p.Log.WarnContext(ctx, "skip malformed event", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != EventOrderPlaced {
		return nil
	}
	pl, err := kafkax.UnwrapPayload[OrderPlacedPayload](env.Payload)
	if err != nil {
		p.Log.WarnContext(ctx, "skip malformed payload", "event_id", env.EventID, "err", err)
		return nil
	}

	dedup := fmt.Sprintf(redisx.KeyDedup, p.Name, env.EventID)
	first, err := redisx.FirstSeen(ctx, p.Redis, dedup, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		p.Log.DebugContext(ctx, "duplicate event", "event_id", env.EventID)
		return nil
	}

	o := Order{
		ID:         pl.OrderID,
		UserID:     pl.UserID,
		TotalCents: pl.TotalCents,
		CreatedAt:  pl.CreatedAt,
		Lines:      pl.Lines,
	}
	if err := p.Cache.Put(ctx, o); err != nil {
		// let the redelivery try again
		_ = p.Redis.Del(ctx, dedup).Err()
		return fmt.Errorf("cache order %s: %w", o.ID, err)
	}
	p.Log.InfoContext(ctx, "order projected", "order_id", o.ID, "event_id", env.EventID)
	return nil
}
