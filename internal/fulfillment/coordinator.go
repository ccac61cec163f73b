// Package fulfillment places orders across the user, product and order owners
// without a shared transaction: each step is a remote call and every completed
// step leaves a compensation behind in case a later one fails.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/idempotency"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/saga"
)

const tracerName = "github.com/ariefcatur/go-marketplace-orders/internal/fulfillment"

// Coordinator runs the place-order saga. It holds no shared mutable state;
// contention is settled by the Stock and Payments owners.
type Coordinator struct {
	Users    Users
	Catalog  Catalog
	Stock    Stock
	Payments Payments
	Orders   orders.Store

	// Optional.
	Idem    Idempotency
	Events  Events
	Metrics *metrics.Saga
	Tracer  trace.Tracer

	Log      *slog.Logger
	Producer string        // event producer name
	NewID    func() string // order id generator, uuid by default
}

// CreateOrder validates, prices, charges, reserves and persists one order.
// On failure after the charge every completed step is undone before the
// original error is returned.
func (c *Coordinator) CreateOrder(ctx context.Context, userID string, items []orders.Item) (orders.Order, error) {
	return c.run(ctx, "", userID, items)
}

// CreateOrderOnce is CreateOrder keyed by a client token. A key that already
// produced an order returns that order without running the saga again; a key
// held by a request still in flight fails with apperr.ErrRequestInProgress.
func (c *Coordinator) CreateOrderOnce(ctx context.Context, key, userID string, items []orders.Item) (orders.Order, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return c.CreateOrder(ctx, userID, items)
	}
	if err := validate(userID, items); err != nil {
		return orders.Order{}, err
	}

	if o, ok, err := c.Orders.FindByIdempotencyKey(ctx, key); err != nil {
		return orders.Order{}, apperr.Wrap(apperr.ErrInternal, err, "look up idempotency key")
	} else if ok {
		c.replayed()
		return o, nil
	}

	if c.Idem == nil {
		return c.run(ctx, key, userID, items)
	}

	claim, err := c.Idem.Claim(ctx, key)
	if err != nil {
		// The unique key on the orders table still stops a duplicate order.
		c.log().WarnContext(ctx, "idempotency claim unavailable", "key", key, "err", err)
		return c.run(ctx, key, userID, items)
	}
	switch claim.State {
	case idempotency.InProgress:
		return orders.Order{}, apperr.New(apperr.ErrRequestInProgress, "order with this idempotency key is being placed")
	case idempotency.Done:
		o, err := c.Orders.Get(ctx, claim.OrderID)
		if err != nil {
			return orders.Order{}, apperr.Wrap(apperr.ErrInternal, err, "load order for idempotency key")
		}
		c.replayed()
		return o, nil
	}

	o, err := c.run(ctx, key, userID, items)
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if rerr := c.Idem.Release(bg, key); rerr != nil {
			c.log().WarnContext(ctx, "release idempotency claim", "key", key, "err", rerr)
		}
		return orders.Order{}, err
	}
	if cerr := c.Idem.Complete(bg, key, o.ID); cerr != nil {
		c.log().WarnContext(ctx, "complete idempotency claim", "key", key, "order_id", o.ID, "err", cerr)
	}
	return o, nil
}

func validate(userID string, items []orders.Item) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.New(apperr.ErrInvalidRequest, "missing user id")
	}
	if len(items) == 0 {
		return apperr.New(apperr.ErrInvalidRequest, "order has no items")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("item %d: missing product id", i))
		}
		if it.Quantity < 1 {
			return apperr.New(apperr.ErrInvalidRequest, fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
	}
	return nil
}

// instance is the state of one saga run.
type instance struct {
	c      *Coordinator
	id     string // provisional order id; becomes the persisted id
	userID string
	state  State
	stack  *saga.Stack
	span   trace.Span
	log    *slog.Logger

	charged bool
}

func (in *instance) enter(ctx context.Context, next State) {
	if !CanTransition(in.state, next) {
		panic(fmt.Sprintf("fulfillment: illegal transition %s -> %s", in.state, next))
	}
	in.log.DebugContext(ctx, "saga step", "from", in.state, "to", next)
	in.span.AddEvent(string(next))
	in.state = next
}

func (c *Coordinator) run(ctx context.Context, key, userID string, items []orders.Item) (orders.Order, error) {
	id := c.newID()
	ctx, span := c.tracer().Start(ctx, "fulfillment.CreateOrder", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("user.id", userID),
		attribute.Int("order.items", len(items)),
	))
	defer span.End()

	in := &instance{
		c:      c,
		id:     id,
		userID: userID,
		state:  StateValidating,
		span:   span,
		log:    c.log().With("saga_id", id, "user_id", userID),
	}
	in.stack = saga.NewStack(id, in.log)
	if c.Metrics != nil {
		c.Metrics.Started()
	}

	o, err := in.execute(ctx, key, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.CodeOf(err))
		return orders.Order{}, err
	}
	span.SetAttributes(attribute.Int64("order.total_cents", o.TotalCents))
	return o, nil
}

func (in *instance) execute(ctx context.Context, key string, items []orders.Item) (orders.Order, error) {
	c := in.c

	if err := validate(in.userID, items); err != nil {
		return orders.Order{}, in.fail(ctx, err)
	}

	in.enter(ctx, StateResolvingUser)
	profile, err := c.Users.Profile(ctx, in.userID)
	if err != nil {
		return orders.Order{}, in.fail(ctx, translate(err, "resolve user", apperr.ErrUserNotFound))
	}

	in.enter(ctx, StatePricingItems)
	lines := make([]orders.Line, 0, len(items))
	for _, it := range items {
		p, err := c.Catalog.Product(ctx, it.ProductID)
		if err != nil {
			return orders.Order{}, in.fail(ctx, translate(err, "price "+it.ProductID, apperr.ErrProductNotFound))
		}
		// Non-binding: stock may still move before the reservation.
		if p.Stock < it.Quantity {
			return orders.Order{}, in.fail(ctx, apperr.New(apperr.ErrInsufficientStock,
				fmt.Sprintf("product %s: requested %d, available %d", it.ProductID, it.Quantity, p.Stock)))
		}
		lines = append(lines, orders.Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: p.PriceCents})
	}
	total, ok := orders.Total(lines)
	if !ok {
		return orders.Order{}, in.fail(ctx, apperr.New(apperr.ErrInvalidRequest, "order total does not fit in int64 cents"))
	}

	in.enter(ctx, StateProcessingPayment)
	if total > 0 {
		_, err := c.Payments.Charge(ctx, payment.Charge{
			OrderID:     in.id,
			UserID:      in.userID,
			ProfileID:   profile.ID,
			AmountCents: total,
		})
		refund := func(ctx context.Context) error {
			_, err := c.Payments.Refund(ctx, payment.Refund{OrderID: in.id, ProfileID: profile.ID, AmountCents: total})
			if errors.Is(err, apperr.ErrPaymentNotFound) {
				return nil
			}
			return err
		}
		if err != nil {
			err = translate(err, "charge", apperr.ErrUserNotFound, apperr.ErrInsufficientBalance)
			if apperr.KindOf(err) == apperr.KindUnavailable {
				// The debit may have landed even though we saw no answer.
				in.stack.Push("refund", refund)
			}
			return orders.Order{}, in.fail(ctx, err)
		}
		in.charged = true
		in.stack.Push("refund", refund)
	}

	in.enter(ctx, StateReservingStock)
	for _, it := range items {
		if _, err := c.Stock.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			return orders.Order{}, in.fail(ctx, translate(err, "reserve "+it.ProductID,
				apperr.ErrProductNotFound, apperr.ErrInsufficientStock))
		}
		in.stack.Push("release "+it.ProductID, func(ctx context.Context) error {
			_, err := c.Stock.Release(ctx, it.ProductID, it.Quantity)
			return err
		})
	}

	in.enter(ctx, StatePersisting)
	saved, err := c.Orders.Save(ctx, orders.Order{
		ID:             in.id,
		UserID:         in.userID,
		TotalCents:     total,
		IdempotencyKey: key,
		Lines:          lines,
	})
	if err != nil {
		return orders.Order{}, in.fail(ctx, persistError(err))
	}

	in.enter(ctx, StateCompleted)
	in.log.InfoContext(ctx, "order placed", "order_id", saved.ID, "total_cents", saved.TotalCents, "lines", len(saved.Lines))
	if c.Metrics != nil {
		c.Metrics.Completed()
	}
	c.emit(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, saved.ID, orders.OrderPlacedPayload{
		OrderID:    saved.ID,
		UserID:     saved.UserID,
		TotalCents: saved.TotalCents,
		Lines:      saved.Lines,
		CreatedAt:  saved.CreatedAt,
	})
	return saved, nil
}

// fail unwinds whatever has been pushed so far and returns cause unchanged.
// Compensation runs to completion even if ctx is already cancelled.
func (in *instance) fail(ctx context.Context, cause error) error {
	step := in.state
	compensated := in.stack.Len() > 0
	var failures []saga.Failure
	if compensated || !CanTransition(in.state, StateFailed) {
		in.enter(ctx, StateCompensating)
		failures = in.stack.Unwind(context.WithoutCancel(ctx))
	}
	in.enter(ctx, StateFailed)

	code := apperr.CodeOf(cause)
	in.log.WarnContext(ctx, "order aborted", "step", step, "code", code, "err", cause,
		"compensated", compensated, "compensation_failures", len(failures))
	if in.c.Metrics != nil {
		in.c.Metrics.Failed(code, compensated, len(failures))
	}

	if compensated {
		var failed []string
		for _, f := range failures {
			failed = append(failed, f.Step)
		}
		in.c.emit(ctx, orders.TopicOrderAborted, orders.EventOrderAborted, in.id, orders.OrderAbortedPayload{
			OrderID:              in.id,
			UserID:               in.userID,
			Step:                 string(step),
			Code:                 code,
			Refunded:             in.charged && !slices.Contains(failed, "refund"),
			CompensationFailures: failed,
		})
	}
	return cause
}

// translate keeps errors whose code the step may legitimately report and turns
// everything else into apperr.ErrUnavailable.
func translate(err error, step string, allowed ...*apperr.Error) error {
	for _, a := range allowed {
		if errors.Is(err, a) {
			return err
		}
	}
	return apperr.Wrap(apperr.ErrUnavailable, err, step)
}

func persistError(err error) error {
	switch apperr.CodeOf(err) {
	case apperr.ErrUnavailable.Code, apperr.ErrRequestInProgress.Code:
		return err
	}
	return apperr.Wrap(apperr.ErrInternal, err, "persist order")
}

func (c *Coordinator) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if c.Events == nil {
		return
	}
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env, err := orders.NewEnvelope(eventType, c.Producer, orderID, traceID, payload)
	if err != nil {
		c.log().ErrorContext(ctx, "encode event", "event_type", eventType, "err", err)
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		c.log().ErrorContext(ctx, "encode envelope", "event_type", eventType, "err", err)
		return
	}
	c.Events.Publish(ctx, topic, orders.PartitionKey(orderID), value)
}

func (c *Coordinator) replayed() {
	if c.Metrics != nil {
		c.Metrics.Replayed()
	}
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c *Coordinator) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return otel.Tracer(tracerName)
}

func (c *Coordinator) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
