// internal/await/errors.go
package await

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSuchElement reports that a lookup matched nothing.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement reports that a handle is no longer attached to the document.
	ErrStaleElement = errors.New("stale element reference")
	// ErrIndexOutOfRange reports that a lookup matched fewer elements than the requested ordinal.
	ErrIndexOutOfRange = errors.New("element index out of range")
	// ErrInvalidIndex reports a negative ordinal. It is fatal.
	ErrInvalidIndex = errors.New("invalid element index")
	// ErrUnsupported reports that the driver lacks an optional capability.
	ErrUnsupported = errors.New("operation not supported by driver")
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("wait timed out")
)

// Classifier decides whether an error raised while resolving a target or
// evaluating a condition means "not ready yet" (transient, keep polling) or
// anything else (fatal, abort the wait).
type Classifier interface {
	IsTransient(err error) bool
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(err error) bool

// IsTransient implements Classifier.
func (f ClassifierFunc) IsTransient(err error) bool { return f(err) }

// DefaultClassifier treats the package sentinels as transient and everything
// else, including context cancellation, as fatal.
var DefaultClassifier Classifier = ClassifierFunc(func(err error) bool {
	if err == nil || isContextErr(err) {
		return false
	}
	return errors.Is(err, ErrNoSuchElement) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrIndexOutOfRange)
})

// Classifiers combines several classifiers; an error is transient when any of
// them says so. Context errors are always fatal.
func Classifiers(cs ...Classifier) Classifier {
	return ClassifierFunc(func(err error) bool {
		if err == nil || isContextErr(err) {
			return false
		}
		for _, c := range cs {
			if c != nil && c.IsTransient(err) {
				return true
			}
		}
		return false
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// TimeoutError is returned when a wait exceeds its deadline. It carries
// enough state to debug a failed assertion without reproducing it.
type TimeoutError struct {
	Target    string
	Condition string
	Timeout   time.Duration
	// Actual is the condition's diagnostic value from the last attempt.
	Actual string
	// Element describes the last resolved element; empty when it was absent.
	Element string
	// Still is set for waitWhile timeouts: the condition kept holding.
	Still bool
}

func (e *TimeoutError) Error() string {
	verb := "hasn't"
	if e.Still {
		verb = "has"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "element %s %s %s in %d ms; actual value: '%s'",
		e.Target, verb, e.Condition, e.Timeout.Milliseconds(), e.Actual)
	if e.Element != "" {
		fmt.Fprintf(&b, "; element details: '%s'", e.Element)
	}
	return b.String()
}

// Is lets errors.Is(err, ErrTimeout) match any TimeoutError.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// IsTimeout reports whether err is (or wraps) a wait timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// CleanupMessage reduces a driver error to a single line suitable for
// diagnostics, dropping the build and session noise some drivers append.
func CleanupMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	for _, marker := range []string{"(Session info:", "Build info:", "For documentation on this error"} {
		if i := strings.Index(msg, marker); i >= 0 {
			msg = msg[:i]
		}
	}
	return strings.TrimSpace(msg)
}
