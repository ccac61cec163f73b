package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
)

func TestUnwind_ReverseOrder(t *testing.T) {
	s := NewStack("saga-1", logging.Discard())
	var got []string
	for _, name := range []string{"refund", "release:a", "release:b"} {
		s.Push(name, func(context.Context) error {
			got = append(got, name)
			return nil
		})
	}

	failed := s.Unwind(context.Background())
	assert.Empty(t, failed)
	assert.Equal(t, []string{"release:b", "release:a", "refund"}, got)
	assert.Zero(t, s.Len())
}

func TestUnwind_ContinuesPastFailures(t *testing.T) {
	s := NewStack("saga-1", logging.Discard())
	ran := 0
	s.Push("first", func(context.Context) error { ran++; return nil })
	s.Push("broken", func(context.Context) error { ran++; return errors.New("boom") })
	s.Push("panics", func(context.Context) error { ran++; panic("oops") })

	failed := s.Unwind(context.Background())
	assert.Equal(t, 3, ran)
	require.Len(t, failed, 2)
	assert.Equal(t, "panics", failed[0].Step)
	assert.Contains(t, failed[0].Err.Error(), "oops")
	assert.Equal(t, "broken", failed[1].Step)
}

func TestUnwind_EmptyStack(t *testing.T) {
	s := NewStack("saga-1", logging.Discard())
	assert.Empty(t, s.Unwind(context.Background()))
}

func TestUnwind_RunsEachOnceInReverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		fails := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "fails")

		s := NewStack("saga", logging.Discard())
		var order []int
		for i := 0; i < n; i++ {
			s.Push("step", func(context.Context) error {
				order = append(order, i)
				if fails[i] {
					return errors.New("fail")
				}
				return nil
			})
		}
		failed := s.Unwind(context.Background())

		if len(order) != n {
			t.Fatalf("ran %d of %d compensations", len(order), n)
		}
		for k, i := range order {
			if i != n-1-k {
				t.Fatalf("position %d ran step %d", k, i)
			}
		}
		want := 0
		for _, f := range fails {
			if f {
				want++
			}
		}
		if len(failed) != want {
			t.Fatalf("got %d failures, want %d", len(failed), want)
		}
		if len(s.Unwind(context.Background())) != 0 || len(order) != n {
			t.Fatalf("second unwind ran compensations again")
		}
	})
}
