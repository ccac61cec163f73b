// Package saga holds the compensation stack used to undo completed steps of a
// multi-service workflow when a later step fails.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Compensation func(ctx context.Context) error

type entry struct {
	name string
	fn   Compensation
}

// Failure is one compensation that did not succeed during Unwind.
type Failure struct {
	Step string
	Err  error
}

// Stack is owned by a single saga instance and is not safe for concurrent use.
type Stack struct {
	id      string
	log     *slog.Logger
	entries []entry
}

func NewStack(id string, log *slog.Logger) *Stack {
	return &Stack{id: id, log: log}
}

// Push registers the undo action for a step that just succeeded.
func (s *Stack) Push(name string, fn Compensation) {
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

func (s *Stack) Len() int { return len(s.entries) }

// Unwind runs every compensation in reverse push order. Each runs exactly once
// whatever the others return; failures are logged and handed back, never
// raised. The stack is empty afterwards.
func (s *Stack) Unwind(ctx context.Context) []Failure {
	var failed []Failure
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		start := time.Now()
		err := run(ctx, e.fn)
		if err != nil {
			s.log.ErrorContext(ctx, "compensation failed",
				"saga_id", s.id, "step", e.name, "err", err)
			failed = append(failed, Failure{Step: e.name, Err: err})
			continue
		}
		s.log.InfoContext(ctx, "compensated",
			"saga_id", s.id, "step", e.name, "took_ms", time.Since(start).Milliseconds())
	}
	s.entries = nil
	return failed
}

// run keeps a panicking compensation from aborting the rest of the unwind.
func run(ctx context.Context, fn Compensation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensation panicked: %v", r)
		}
	}()
	return fn(ctx)
}
