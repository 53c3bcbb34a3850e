package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RingChannel is a bounded channel-like buffer whose writers never block.
//
// When the buffer is full TrySend rejects the new element and counts it as dropped,
// so elements that made it in keep their emission order. Readers use C() like a
// normal channel, or Receive/TryReceive/ReceiveTimeout/Drain for metric tracking.
//
// The underlying channel is never closed; Close releases blocked readers through a
// separate done channel, so a late writer can never panic on a closed channel.
type RingChannel[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
	metrics   Metrics
}

// NewRingChannel creates a RingChannel with the given capacity.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// C returns the underlying receive-only channel.
//
// WARNING: Reading from the returned channel bypasses metrics tracking.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Done is closed once Close has been called.
func (rc *RingChannel[T]) Done() <-chan struct{} {
	return rc.done
}

// TrySend attempts to insert without blocking.
// Returns false if the buffer is full or the channel is closed; the element is counted as dropped.
func (rc *RingChannel[T]) TrySend(v T) bool {
	if rc.IsClosed() {
		rc.metrics.addDropped(1)
		return false
	}

	select {
	case rc.ch <- v:
		rc.metrics.addWritten(1)
		return true
	default:
		rc.metrics.addDropped(1)
		return false
	}
}

// TryReceive attempts a non-blocking receive.
// Returns (zero, false) if no value is ready.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v = <-rc.ch:
		rc.metrics.addProcessed(1)
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Receive blocks until a value is available, ctx is done or the channel is closed.
// Buffered values are still delivered after Close.
func (rc *RingChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-rc.ch:
		rc.metrics.addProcessed(1)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-rc.done:
		if v, ok := rc.TryReceive(); ok {
			return v, nil
		}
		var zero T
		return zero, ErrStreamClosed
	}
}

// ReceiveTimeout waits at most d for a value.
// Returns (zero, false) on timeout or when the channel is closed and empty.
func (rc *RingChannel[T]) ReceiveTimeout(d time.Duration) (T, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	v, err := rc.Receive(ctx)
	return v, err == nil
}

// Drain returns every value currently buffered without blocking, oldest first.
// max <= 0 means no limit.
func (rc *RingChannel[T]) Drain(max int) []T {
	var out []T
	for max <= 0 || len(out) < max {
		v, ok := rc.TryReceive()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close stops accepting new elements and wakes blocked readers. Idempotent.
func (rc *RingChannel[T]) Close() {
	rc.closeOnce.Do(func() {
		close(rc.done)
	})
}

// IsClosed reports whether Close has been called
func (rc *RingChannel[T]) IsClosed() bool {
	select {
	case <-rc.done:
		return true
	default:
		return false
	}
}

// GetMetrics returns a snapshot of current metrics values.
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Processed: atomic.LoadInt64(&rc.metrics.Processed),
		Written:   atomic.LoadInt64(&rc.metrics.Written),
		Dropped:   atomic.LoadInt64(&rc.metrics.Dropped),
	}
}

// Metrics provides lock-free counters for a RingChannel.
type Metrics struct {
	Processed int64
	Written   int64
	Dropped   int64
}

func (m *Metrics) addProcessed(n int) {
	atomic.AddInt64(&m.Processed, int64(n))
}

func (m *Metrics) addWritten(n int) {
	atomic.AddInt64(&m.Written, int64(n))
}

func (m *Metrics) addDropped(n int) {
	atomic.AddInt64(&m.Dropped, int64(n))
}
