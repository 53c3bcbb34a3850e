// Package groutine starts labelled goroutines. Labels show up in pprof goroutine
// profiles, which makes radio driver workers easy to tell apart from callers.
package groutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a new goroutine labelled name.
// If parentCtx is nil, context.Background() is used.
//
//	groutine.Go(ctx, "scan-loop", func(ctx context.Context) {
//	    // work
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GoSafe is Go with panic containment: a panic in fn is logged and passed to onPanic
// (when non-nil) instead of crashing the process.
func GoSafe(parentCtx context.Context, name string, logger *logrus.Logger, fn func(ctx context.Context), onPanic func(recovered any)) {
	Go(parentCtx, name, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.WithFields(logrus.Fields{
						"goroutine": name,
						"panic":     fmt.Sprint(r),
					}).Errorf("Recovered panic in goroutine\n%s", debug.Stack())
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
