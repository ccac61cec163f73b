package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scope = "github.com/ariefcatur/go-marketplace-orders/internal/metrics"

// Saga counts fulfillment outcomes on OpenTelemetry counters and keeps the
// running totals for the JSON view. Safe for concurrent use.
type Saga struct {
	started              metric.Int64Counter
	completed            metric.Int64Counter
	failed               metric.Int64Counter
	compensated          metric.Int64Counter
	compensationFailures metric.Int64Counter
	replayed             metric.Int64Counter

	mu     sync.Mutex
	totals Stats
}

// NewSaga registers the counters on the global MeterProvider. They are no-ops
// until an SDK provider is installed.
func NewSaga() *Saga { return NewSagaWithMeter(otel.Meter(scope)) }

func NewSagaWithMeter(m metric.Meter) *Saga {
	return &Saga{
		started:              counter(m, "saga.started", "Sagas begun"),
		completed:            counter(m, "saga.completed", "Sagas that placed an order"),
		failed:               counter(m, "saga.failed", "Sagas that ended in an error, by code"),
		compensated:          counter(m, "saga.compensated", "Failed sagas that ran an unwind"),
		compensationFailures: counter(m, "saga.compensation_failures", "Compensating actions that did not succeed"),
		replayed:             counter(m, "saga.replayed", "Requests answered from a stored order"),
		totals:               Stats{FailuresByCode: map[string]int64{}},
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{saga}"))
	if err != nil {
		otel.Handle(err)
		c, _ = noop.NewMeterProvider().Meter(scope).Int64Counter(name)
	}
	return c
}

func (s *Saga) Started() {
	s.started.Add(context.Background(), 1)
	s.bump(func(st *Stats) { st.Started++ })
}

func (s *Saga) Completed() {
	s.completed.Add(context.Background(), 1)
	s.bump(func(st *Stats) { st.Completed++ })
}

func (s *Saga) Replayed() {
	s.replayed.Add(context.Background(), 1)
	s.bump(func(st *Stats) { st.Replayed++ })
}

// Failed records a saga that ended with code. compensated tells whether an
// unwind ran; failures is how many compensations in it did not succeed.
func (s *Saga) Failed(code string, compensated bool, failures int) {
	ctx := context.Background()
	s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
	if compensated {
		s.compensated.Add(ctx, 1)
	}
	if failures > 0 {
		s.compensationFailures.Add(ctx, int64(failures))
	}
	s.bump(func(st *Stats) {
		st.FailuresByCode[code]++
		if compensated {
			st.Compensated++
		}
		st.CompensationFailures += int64(failures)
	})
}

func (s *Saga) bump(f func(*Stats)) {
	s.mu.Lock()
	f(&s.totals)
	s.mu.Unlock()
}

type Stats struct {
	Started              int64            `json:"started"`
	Completed            int64            `json:"completed"`
	Compensated          int64            `json:"compensated"`
	CompensationFailures int64            `json:"compensation_failures"`
	Replayed             int64            `json:"replayed"`
	FailuresByCode       map[string]int64 `json:"failures_by_code"`
}

func (s *Saga) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.totals
	st.FailuresByCode = make(map[string]int64, len(s.totals.FailuresByCode))
	for k, v := range s.totals.FailuresByCode {
		st.FailuresByCode[k] = v
	}
	return st
}
