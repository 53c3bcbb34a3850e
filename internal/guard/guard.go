// Package guard provides a mutex-protected value that survives panics raised while
// it is held.
//
// A panic inside With poisons the guard and rolls the value back to the copy taken
// before the mutation started. The next access recovers the guard and keeps going
// with that last-known-good value instead of failing.
package guard

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// Guard holds a value of type T behind a mutex. The rollback copy is shallow:
// reference types inside T are shared with the live value.
type Guard[T any] struct {
	mu         sync.Mutex
	value      T
	poisoned   bool
	recoveries atomic.Int64
	logger     *logrus.Logger
}

// New creates a guard holding v
func New[T any](v T, logger *logrus.Logger) *Guard[T] {
	if logger == nil {
		logger = logrus.New()
	}
	return &Guard[T]{value: v, logger: logger}
}

// With runs fn with exclusive access to the value. A panic in fn is recovered and
// returned as *PanicError; the guard is then poisoned and the value restored.
func (g *Guard[T]) With(fn func(v *T)) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.recoverLocked()
	lastGood := g.value

	defer func() {
		if r := recover(); r != nil {
			g.value = lastGood
			g.poisoned = true
			err = &PanicError{Value: r}
			g.logger.WithField("panic", r).Warn("Guarded mutation panicked, value rolled back")
		}
	}()

	fn(&g.value)
	return nil
}

// Load returns a copy of the current value, recovering a poisoned guard first.
func (g *Guard[T]) Load() T {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.recoverLocked()
	return g.value
}

// Store replaces the value, recovering a poisoned guard first.
func (g *Guard[T]) Store(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.recoverLocked()
	g.value = v
}

// Poisoned reports whether the last mutation panicked and no access has recovered it yet.
func (g *Guard[T]) Poisoned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.poisoned
}

// Recoveries returns how many times a poisoned guard was recovered.
func (g *Guard[T]) Recoveries() int64 {
	return g.recoveries.Load()
}

func (g *Guard[T]) recoverLocked() {
	if !g.poisoned {
		return
	}
	g.poisoned = false
	g.recoveries.Add(1)
	g.logger.Debug("Recovered poisoned guard, continuing with last-known-good value")
}
