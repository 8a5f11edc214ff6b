// internal/await/driver.go
package await

import (
	"context"
)

// KeyEnter is the keystroke sequence drivers interpret as the Enter key.
const KeyEnter = "\r"

// Element is an opaque handle to a concrete element owned by a Driver.
// Handles are only meaningful to the driver that produced them and may go
// stale at any moment; the engine never caches one across attempts.
type Element interface {
	// ElementID returns a driver specific identifier, used for logging.
	ElementID() string
}

// Driver is the capability interface the engine calls through. It abstracts
// the underlying UI automation backend (a CDP connected browser tab, an
// in-memory DOM, a test double).
//
// A nil scope means the document root. Implementations perform exactly one
// lookup per call and never retry internally; errors that mean "not there
// right now" should wrap ErrNoSuchElement or ErrStaleElement, or be
// recognized by the driver's Classifier.
type Driver interface {
	FindOne(ctx context.Context, scope Element, sel Selector) (Element, error)
	FindAll(ctx context.Context, scope Element, sel Selector) ([]Element, error)

	Attribute(ctx context.Context, el Element, name string) (string, error)
	Text(ctx context.Context, el Element) (string, error)
	TagName(ctx context.Context, el Element) (string, error)

	Clear(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	SelectByVisibleText(ctx context.Context, el Element, text string) error
	SelectByValue(ctx context.Context, el Element, value string) error
}

// Displayer is implemented by drivers that can report rendered visibility.
type Displayer interface {
	Displayed(ctx context.Context, el Element) (bool, error)
}

// FileSetter is implemented by drivers that can inject file paths into a
// file input without synthesizing keystrokes.
type FileSetter interface {
	SetFiles(ctx context.Context, el Element, paths []string) error
}

// Releaser is implemented by drivers whose handles pin resources on the far
// side, such as remote objects in a browser. The engine releases every
// handle it obtained and does not return to its caller.
type Releaser interface {
	Release(ctx context.Context, els ...Element) error
}
