// internal/await/engine.go
package await

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the fixed sleep between attempts.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultTimeout applies when a caller omits an explicit timeout.
	DefaultTimeout = 4 * time.Second
	// UseDefault, passed as a timeout, selects the engine default.
	UseDefault time.Duration = -1

	releaseTimeout = 5 * time.Second
)

// Clock abstracts wall-clock time so waits can be tested deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine resolves targets and polls conditions against them. It holds no
// state that crosses calls besides its configuration, so one Engine may serve
// any number of sequential waits against the same driver.
type Engine struct {
	driver         Driver
	classifier     Classifier
	logger         *zap.Logger
	clock          Clock
	interval       time.Duration
	defaultTimeout atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithPollInterval overrides DefaultPollInterval for every wait of this engine.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithDefaultTimeout sets the timeout used when callers pass UseDefault.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.defaultTimeout.Store(int64(d))
		}
	}
}

// NewEngine creates an engine driving d.
func NewEngine(d Driver, opts ...Option) *Engine {
	if d == nil {
		panic("await: NewEngine called with nil Driver")
	}
	e := &Engine{
		driver:     d,
		classifier: DefaultClassifier,
		logger:     zap.NewNop(),
		clock:      realClock{},
		interval:   DefaultPollInterval,
	}
	e.defaultTimeout.Store(int64(DefaultTimeout))
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("await")
	return e
}

// Driver returns the driver the engine calls through.
func (e *Engine) Driver() Driver { return e.driver }

// Classifier returns the failure classifier in use.
func (e *Engine) Classifier() Classifier { return e.classifier }

// PollInterval returns the fixed sleep between attempts.
func (e *Engine) PollInterval() time.Duration { return e.interval }

// DefaultTimeout returns the timeout applied when callers omit one.
func (e *Engine) DefaultTimeout() time.Duration {
	return time.Duration(e.defaultTimeout.Load())
}

// SetDefaultTimeout changes the timeout applied when callers omit one.
// Negative values are ignored.
func (e *Engine) SetDefaultTimeout(d time.Duration) {
	if d >= 0 {
		e.defaultTimeout.Store(int64(d))
	}
}

// Resolve performs one resolution attempt. Transient lookup failures yield an
// Absent resolution; the returned error is non-nil only for fatal failures.
func (e *Engine) Resolve(ctx context.Context, t Target) (Resolution, error) {
	el, err := e.lookup(ctx, t)
	if err == nil {
		return Resolution{Element: el}, nil
	}
	if e.classifier.IsTransient(err) {
		return Resolution{Cause: err}, nil
	}
	return Resolution{}, fmt.Errorf("resolving %s: %w", t, err)
}

func (e *Engine) lookup(ctx context.Context, t Target) (Element, error) {
	if t.handle != nil {
		// Probe the handle; a stale one fails here.
		if _, err := e.driver.TagName(ctx, t.handle); err != nil {
			return nil, err
		}
		return t.handle, nil
	}

	if t.index < 0 {
		return nil, fmt.Errorf("%w: %s index %d", ErrInvalidIndex, t.selector, t.index)
	}

	var scope Element
	if t.parent != nil {
		p, err := e.lookup(ctx, *t.parent)
		if err != nil {
			return nil, err
		}
		scope = p
		if !t.parent.IsHandle() {
			defer e.release(ctx, p)
		}
	}

	if t.index == 0 {
		el, err := e.driver.FindOne(ctx, scope, t.selector)
		if err != nil {
			return nil, err
		}
		if el == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, t.selector)
		}
		return el, nil
	}

	all, err := e.driver.FindAll(ctx, scope, t.selector)
	if err != nil {
		return nil, err
	}
	if t.index >= len(all) {
		e.release(ctx, all...)
		return nil, fmt.Errorf("%w: %s matched %d element(s), index %d requested",
			ErrIndexOutOfRange, t.selector, len(all), t.index)
	}
	unused := make([]Element, 0, len(all)-1)
	unused = append(unused, all[:t.index]...)
	unused = append(unused, all[t.index+1:]...)
	e.release(ctx, unused...)
	return all[t.index], nil
}

// Release hands el, obtained by resolving t, back to a Releaser driver.
// Handles wrapped by a handle target belong to the caller and are kept.
func (e *Engine) Release(ctx context.Context, t Target, el Element) {
	if el == nil || t.IsHandle() {
		return
	}
	e.release(ctx, el)
}

func (e *Engine) release(ctx context.Context, els ...Element) {
	r, ok := e.driver.(Releaser)
	if !ok {
		return
	}
	live := make([]Element, 0, len(els))
	for _, el := range els {
		if el != nil {
			live = append(live, el)
		}
	}
	if len(live) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.Release(ctx, live...); err != nil {
		e.logger.Debug("Failed to release element handles.", zap.Int("count", len(live)), zap.Error(err))
	}
}

// WaitUntil polls t until c holds and returns the element that satisfied it,
// or nil when the condition was satisfied by the target's absence. The
// returned handle belongs to the caller. A negative
// timeout selects the engine default. On deadline it returns a *TimeoutError.
func (e *Engine) WaitUntil(ctx context.Context, t Target, c Condition, timeout time.Duration) (Element, error) {
	return e.poll(ctx, t, c, timeout, false)
}

// WaitWhile polls t until c stops holding. It is the dual of WaitUntil with
// the condition negated; on deadline the *TimeoutError has Still set.
func (e *Engine) WaitWhile(ctx context.Context, t Target, c Condition, timeout time.Duration) error {
	_, err := e.poll(ctx, t, c, timeout, true)
	return err
}

// poll runs the wait loop. "want" is the Apply/ApplyAbsent value that ends the
// wait: true for WaitUntil, false for WaitWhile.
func (e *Engine) poll(ctx context.Context, t Target, c Condition, timeout time.Duration, while bool) (Element, error) {
	if c == nil {
		return nil, fmt.Errorf("await: nil condition for %s", t)
	}
	if timeout < 0 {
		timeout = e.DefaultTimeout()
	}
	want := !while

	log := e.logger.With(
		zap.String("wait_id", uuid.NewString()[:8]),
		zap.Stringer("target", t),
		zap.String("condition", c.Name()),
		zap.Bool("while", while),
		zap.Duration("timeout", timeout),
	)

	start := e.clock.Now()
	attempts := 0
	var last Resolution

	for {
		attempts++
		res, err := e.Resolve(ctx, t)
		// Only the newest handle is kept, for the timeout diagnostics.
		e.Release(ctx, t, last.Element)
		last = res
		if err != nil {
			log.Debug("Resolution failed fatally.", zap.Int("attempt", attempts), zap.Error(err))
			return nil, err
		}

		if res.Present() {
			ok, err := c.Apply(ctx, e.driver, res.Element)
			switch {
			case err != nil && !e.classifier.IsTransient(err):
				e.Release(ctx, t, res.Element)
				return nil, fmt.Errorf("evaluating %s on %s: %w", c.Name(), t, err)
			case err != nil:
				log.Debug("Condition evaluation not ready.", zap.Int("attempt", attempts), zap.Error(err))
			case ok == want:
				log.Debug("Wait satisfied.", zap.Int("attempts", attempts), zap.Duration("elapsed", e.clock.Now().Sub(start)))
				if while {
					e.Release(ctx, t, res.Element)
					return nil, nil
				}
				return res.Element, nil
			}
		} else if c.ApplyAbsent() == want {
			log.Debug("Wait satisfied by absence.", zap.Int("attempts", attempts))
			return nil, nil
		}

		if err := e.clock.Sleep(ctx, e.interval); err != nil {
			e.Release(ctx, t, last.Element)
			return nil, err
		}
		if e.clock.Now().Sub(start) >= timeout {
			break
		}
	}

	terr := e.timeoutError(ctx, t, c, timeout, last, while)
	e.Release(ctx, t, last.Element)
	log.Warn("Wait timed out.", zap.Int("attempts", attempts), zap.String("actual", terr.Actual))
	return nil, terr
}

func (e *Engine) timeoutError(ctx context.Context, t Target, c Condition, timeout time.Duration, last Resolution, while bool) *TimeoutError {
	terr := &TimeoutError{
		Target:    t.String(),
		Condition: c.Name(),
		Timeout:   timeout,
		Still:     while,
	}
	if last.Present() {
		terr.Actual = c.Actual(ctx, e.driver, last.Element)
		terr.Element = Describe(ctx, e.driver, last.Element)
	} else {
		terr.Actual = absentValue(last.Cause)
	}
	return terr
}

func absentValue(cause error) string {
	if cause == nil {
		return "element does not exist"
	}
	return CleanupMessage(cause)
}
