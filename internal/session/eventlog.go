package session

import (
	"fmt"
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"

	"github.com/srg/redtooth/internal/bridge"
)

// DefaultEventLogSize is the number of applied events kept for inspection.
const DefaultEventLogSize uint32 = 256

// EventLogMetrics counts journal activity
type EventLogMetrics struct {
	Recorded    int64 // events written to the journal
	Overwritten int64 // oldest events lost to newer ones
}

// EventLog is a bounded journal of applied events. When full the oldest entries
// are overwritten. Safe for concurrent use.
type EventLog struct {
	buffer      mpmc.RichOverlappedRingBuffer[bridge.Event]
	recorded    atomic.Int64
	overwritten atomic.Int64
}

// NewEventLog creates a journal; size 0 selects DefaultEventLogSize.
func NewEventLog(size uint32) *EventLog {
	if size == 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{
		buffer: mpmc.NewOverlappedRingBuffer[bridge.Event](size),
	}
}

// Record appends ev, overwriting the oldest entry when full
func (l *EventLog) Record(ev bridge.Event) error {
	overwrites, err := l.buffer.EnqueueM(ev)
	if err != nil {
		return fmt.Errorf("event log enqueue: %w", err)
	}
	l.overwritten.Add(int64(overwrites))
	l.recorded.Add(1)
	return nil
}

// Consume removes and returns every journaled event, oldest first.
func (l *EventLog) Consume() ([]bridge.Event, error) {
	var out []bridge.Event
	for !l.buffer.IsEmpty() {
		ev, err := l.buffer.Dequeue()
		if err != nil {
			return out, fmt.Errorf("event log dequeue: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Tail consumes the journal and returns at most the n newest events, oldest first.
// n <= 0 returns everything.
func (l *EventLog) Tail(n int) ([]bridge.Event, error) {
	events, err := l.Consume()
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, err
}

// GetMetrics returns a copy of the journal counters
func (l *EventLog) GetMetrics() EventLogMetrics {
	return EventLogMetrics{
		Recorded:    l.recorded.Load(),
		Overwritten: l.overwritten.Load(),
	}
}
