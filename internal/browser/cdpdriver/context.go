// internal/browser/cdpdriver/context.go
package cdpdriver

import (
	"context"
	"time"
)

// CombineContext returns a context derived from tabCtx that is also canceled
// when opCtx is. Values (the chromedp target) come from tabCtx only.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	if deadline, ok := opCtx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context carrying ctx's values that outlives ctx. Cleanup
// calls use it so an already canceled caller does not skip releasing
// browser side objects.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
