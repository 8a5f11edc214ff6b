// internal/browser/cdpdriver/errors.go
package cdpdriver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"

	"github.com/xkilldash9x/steady/internal/await"
)

var (
	// ErrInvalidSelector reports a CSS or XPath expression the page rejected.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrNotInteractable reports an element that cannot take the requested input.
	ErrNotInteractable = errors.New("element not interactable")
	// ErrNoSuchOption reports a select without the requested option.
	ErrNoSuchOption = errors.New("no such option")
	// ErrForeignElement reports a handle produced by another driver.
	ErrForeignElement = errors.New("element does not belong to this driver")
)

// scriptErrors maps the prefixes thrown by the page functions to sentinels.
var scriptErrors = []struct {
	prefix string
	err    error
}{
	{"stale element reference", await.ErrStaleElement},
	{"invalid selector", ErrInvalidSelector},
	{"element not interactable", ErrNotInteractable},
	{"no such option", ErrNoSuchOption},
}

// exceptionError converts a script exception into a Go error, wrapping the
// matching sentinel when the page function threw one of ours.
func exceptionError(exc *runtime.ExceptionDetails) error {
	text := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		text = exc.Exception.Description
	}
	// Descriptions carry the stack after the first line.
	text, _, _ = strings.Cut(text, "\n")
	text = strings.TrimPrefix(strings.TrimSpace(text), "Error: ")

	for _, se := range scriptErrors {
		if rest, ok := strings.CutPrefix(text, se.prefix); ok {
			rest = strings.TrimLeft(rest, ": ")
			if rest == "" {
				return se.err
			}
			return fmt.Errorf("%w: %s", se.err, rest)
		}
	}
	return fmt.Errorf("script exception: %s", text)
}
