// internal/page/operation.go
package page

import (
	"context"
	"time"

	"github.com/xkilldash9x/steady/internal/await"
)

// Operation is one request an Element can serve. The set of variants is
// closed: only types in this package implement it, and Element.Do handles
// every one of them.
type Operation interface {
	operation()
}

// SetValue clears the element and types Text into it.
type SetValue struct{ Text string }

// Append types Text without clearing first.
type Append struct{ Text string }

// PressEnter sends the Enter key.
type PressEnter struct{}

// ReadText reads the rendered text.
type ReadText struct{}

// ReadValue reads the value attribute.
type ReadValue struct{}

// SelectOption picks the option of a select element by its visible text.
type SelectOption struct{ Text string }

// SelectOptionByValue picks the option of a select element by its value.
type SelectOptionByValue struct{ Value string }

// Upload attaches the file at Path to a file input.
type Upload struct{ Path string }

// Should waits, with the engine default timeout, for each condition in turn.
type Should struct{ Conditions []await.Condition }

// ShouldNot waits, with the engine default timeout, for each condition in
// turn to stop holding.
type ShouldNot struct{ Conditions []await.Condition }

// WaitUntil waits for Condition. A negative Timeout selects the engine default.
type WaitUntil struct {
	Condition await.Condition
	Timeout   time.Duration
}

// WaitWhile waits for Condition to stop holding. A negative Timeout selects
// the engine default.
type WaitWhile struct {
	Condition await.Condition
	Timeout   time.Duration
}

// Exists reports whether the element is currently present.
type Exists struct{}

// Describe renders the current element, or why it cannot be found.
type Describe struct{}

// Find addresses a child of the element. Nothing is resolved until the child
// is used.
type Find struct {
	Selector await.Selector
	Index    int
}

// Resolve returns the element's current driver handle without waiting.
type Resolve struct{}

// Invoke hands the immediately resolved element to Fn. Errors from Fn are
// returned unchanged.
type Invoke struct {
	Fn func(ctx context.Context, d await.Driver, el await.Element) (any, error)
}

func (SetValue) operation()            {}
func (Append) operation()              {}
func (PressEnter) operation()          {}
func (ReadText) operation()            {}
func (ReadValue) operation()           {}
func (SelectOption) operation()        {}
func (SelectOptionByValue) operation() {}
func (Upload) operation()              {}
func (Should) operation()              {}
func (ShouldNot) operation()           {}
func (WaitUntil) operation()           {}
func (WaitWhile) operation()           {}
func (Exists) operation()              {}
func (Describe) operation()            {}
func (Find) operation()                {}
func (Resolve) operation()             {}
func (Invoke) operation()              {}

// Result carries whatever an operation produced. Only the fields relevant to
// the operation are set.
type Result struct {
	// Element is the receiver, or the new child for Find.
	Element *Element
	// Handle is the resolved driver element for Resolve and WaitUntil. It is
	// nil when WaitUntil was satisfied by absence.
	Handle await.Element
	// Text holds ReadText, ReadValue and Describe output.
	Text string
	// Exists holds the Exists answer.
	Exists bool
	// File is the absolute path attached by Upload.
	File string
	// Value is what an Invoke function returned.
	Value any
}
