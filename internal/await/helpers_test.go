// internal/await/helpers_test.go
package await_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/steady/internal/await"
)

// -- Test Doubles --

// fakeClock advances only when slept on, which makes poll timing exact.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

type stubElement struct {
	id      string
	tag     string
	text    string
	attrs   map[string]string
	stale   bool
	textErr error
}

func (e *stubElement) ElementID() string { return e.id }

// stubDriver serves a scripted DOM whose content depends on how much fake
// time has elapsed since the test started.
type stubDriver struct {
	clock   *fakeClock
	start   time.Time
	dom     func(elapsed time.Duration, scope await.Element, sel await.Selector) ([]await.Element, error)
	lookups atomic.Int32
	keys    []string
	cleared int
}

func newStubDriver(clock *fakeClock, dom func(time.Duration, await.Element, await.Selector) ([]await.Element, error)) *stubDriver {
	return &stubDriver{clock: clock, start: clock.Now(), dom: dom}
}

func (d *stubDriver) elapsed() time.Duration { return d.clock.Now().Sub(d.start) }

func (d *stubDriver) FindOne(_ context.Context, scope await.Element, sel await.Selector) (await.Element, error) {
	d.lookups.Add(1)
	els, err := d.dom(d.elapsed(), scope, sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: unable to locate element %s", await.ErrNoSuchElement, sel)
	}
	return els[0], nil
}

func (d *stubDriver) FindAll(_ context.Context, scope await.Element, sel await.Selector) ([]await.Element, error) {
	d.lookups.Add(1)
	return d.dom(d.elapsed(), scope, sel)
}

func (d *stubDriver) el(e await.Element) (*stubElement, error) {
	se := e.(*stubElement)
	if se.stale {
		return nil, fmt.Errorf("%w: %s", await.ErrStaleElement, se.id)
	}
	return se, nil
}

func (d *stubDriver) Attribute(_ context.Context, e await.Element, name string) (string, error) {
	se, err := d.el(e)
	if err != nil {
		return "", err
	}
	return se.attrs[name], nil
}

func (d *stubDriver) Text(_ context.Context, e await.Element) (string, error) {
	se, err := d.el(e)
	if err != nil {
		return "", err
	}
	if se.textErr != nil {
		return "", se.textErr
	}
	return se.text, nil
}

func (d *stubDriver) TagName(_ context.Context, e await.Element) (string, error) {
	se, err := d.el(e)
	if err != nil {
		return "", err
	}
	return se.tag, nil
}

func (d *stubDriver) Clear(_ context.Context, e await.Element) error {
	d.cleared++
	return nil
}

func (d *stubDriver) SendKeys(_ context.Context, e await.Element, text string) error {
	d.keys = append(d.keys, text)
	return nil
}

func (d *stubDriver) SelectByVisibleText(context.Context, await.Element, string) error { return nil }
func (d *stubDriver) SelectByValue(context.Context, await.Element, string) error       { return nil }

// releasingDriver records every handle the engine gives back.
type releasingDriver struct {
	*stubDriver
	mu       sync.Mutex
	released []string
}

func (d *releasingDriver) Release(_ context.Context, els ...await.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, el := range els {
		d.released = append(d.released, el.ElementID())
	}
	return nil
}

func (d *releasingDriver) Released() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.released...)
}

// -- Scripted DOMs --

func always(els ...await.Element) func(time.Duration, await.Element, await.Selector) ([]await.Element, error) {
	return func(time.Duration, await.Element, await.Selector) ([]await.Element, error) {
		return els, nil
	}
}

func nothing() func(time.Duration, await.Element, await.Selector) ([]await.Element, error) {
	return always()
}

func newEngine(d await.Driver, clock await.Clock, opts ...await.Option) *await.Engine {
	return await.NewEngine(d, append([]await.Option{await.WithClock(clock)}, opts...)...)
}
