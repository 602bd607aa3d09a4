package substrate

import (
	"errors"
	"sync"
)

// ErrSynchronizationFailure is returned by a Guarded value whose previous
// holder panicked. The protected state can no longer be trusted.
var ErrSynchronizationFailure = errors.New("synchronization primitive poisoned")

// Guarded couples a value with the locker that protects it. The value is only
// reachable inside With, so every access is made under the lock.
type Guarded[T any] struct {
	mu       sync.Locker
	value    T
	poisoned bool
}

// NewGuarded wraps initial behind mu.
func NewGuarded[T any](mu sync.Locker, initial T) *Guarded[T] {
	return &Guarded[T]{mu: mu, value: initial}
}

// With runs fn with exclusive access to the value. The lock is released on
// every exit path. If fn panics the guard is poisoned before the panic
// continues, and all later calls return ErrSynchronizationFailure.
func (g *Guarded[T]) With(fn func(v *T)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned {
		return ErrSynchronizationFailure
	}

	completed := false
	defer func() {
		if !completed {
			g.poisoned = true
		}
	}()

	fn(&g.value)
	completed = true
	return nil
}
