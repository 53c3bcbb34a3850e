package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows a countdown (or elapsed time when duration is 0) with a live
// device count. It prints nothing unless the writer is a terminal.
//
// Start may be called once; Stop is safe to call repeatedly.
type ProgressPrinter struct {
	w        io.Writer
	prefix   string
	duration time.Duration
	count    atomic.Int64

	start    time.Time
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	enabled  bool
}

// NewProgressPrinter creates a printer; duration <= 0 counts up.
func NewProgressPrinter(w io.Writer, prefix string, duration time.Duration) *ProgressPrinter {
	return &ProgressPrinter{
		w:        w,
		prefix:   prefix,
		duration: duration,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		enabled:  isTerminal(w),
	}
}

// SetCount updates the number shown next to the prefix
func (p *ProgressPrinter) SetCount(n int) {
	p.count.Store(int64(n))
}

// Start begins the display loop
func (p *ProgressPrinter) Start() {
	if !p.enabled {
		close(p.done)
		return
	}
	p.start = time.Now()
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.print()
			}
		}
	}()
}

func (p *ProgressPrinter) print() {
	elapsed := time.Since(p.start)
	var seconds int
	if p.duration > 0 {
		if remaining := p.duration - elapsed; remaining > 0 {
			// round to the nearest second
			seconds = int(remaining.Seconds() + 0.5)
		}
	} else {
		seconds = int(elapsed.Seconds())
	}
	fmt.Fprintf(p.w, "\r%s (%d found, %ds)   ", p.prefix, p.count.Load(), seconds)
}

// Stop ends the loop and clears the line
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
		if p.enabled {
			fmt.Fprint(p.w, clearLineSequence)
		}
	})
}
