package task

import (
	"fmt"
	"sync"

	"github.com/phrazzld/taskflow/internal/substrate"
)

// Accumulator is the single numeric register every consumer folds tasks
// into. Updates are applied strictly one at a time.
type Accumulator struct {
	value *substrate.Guarded[float32]
}

// NewAccumulator creates an accumulator holding initial.
func NewAccumulator(mu sync.Locker, initial float32) *Accumulator {
	return &Accumulator{value: substrate.NewGuarded(mu, initial)}
}

// Apply folds task into the accumulator and returns the new value.
//
// An operation outside the fixed set is a programming error: Apply panics
// while holding the guard, which leaves the accumulator poisoned.
func (a *Accumulator) Apply(task Task) (float32, error) {
	var result float32
	err := a.value.With(func(v *float32) {
		*v = fold(*v, task.Operation(), task.Operand())
		result = *v
	})
	return result, err
}

// Value returns the current accumulator value.
func (a *Accumulator) Value() (float32, error) {
	var result float32
	err := a.value.With(func(v *float32) {
		result = *v
	})
	return result, err
}

func fold(v float32, op Operation, operand float32) float32 {
	switch op {
	case OpAdd:
		return v + operand
	case OpSub:
		return v - operand
	case OpMul:
		return v * operand
	default:
		panic(fmt.Sprintf("task: invalid operation %s", op))
	}
}
