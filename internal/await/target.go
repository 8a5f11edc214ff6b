// internal/await/target.go
package await

import (
	"fmt"
)

// Target is a logical, re-resolvable reference to an element: either a
// selector with an ordinal index (optionally scoped under a parent target) or
// a concrete handle. It owns no live resource and is immutable.
type Target struct {
	parent   *Target
	selector Selector
	index    int
	handle   Element
}

// Select addresses the index-th element (zero based) matching sel. A
// negative index is kept as given and fails resolution with ErrInvalidIndex.
func Select(sel Selector, index int) Target {
	return Target{selector: sel, index: index}
}

// Handle wraps an existing element handle.
func Handle(el Element) Target {
	return Target{handle: el}
}

// Find addresses the index-th descendant of t matching sel. The parent is
// re-resolved together with the child on every attempt.
func (t Target) Find(sel Selector, index int) Target {
	child := Select(sel, index)
	parent := t
	child.parent = &parent
	return child
}

// IsHandle reports whether t wraps a concrete handle.
func (t Target) IsHandle() bool { return t.handle != nil }

// Selector returns the selector and index of a selector target.
func (t Target) Selector() (Selector, int) { return t.selector, t.index }

func (t Target) String() string {
	var own string
	switch {
	case t.handle != nil:
		own = "{handle " + t.handle.ElementID() + "}"
	case t.index != 0:
		own = fmt.Sprintf("{%s}[%d]", t.selector, t.index)
	default:
		own = "{" + t.selector.String() + "}"
	}
	if t.parent != nil {
		return t.parent.String() + " " + own
	}
	return own
}

// Resolution is the outcome of one resolve attempt: Present when Element is
// set, Absent otherwise. Cause holds the transient error that made it absent.
type Resolution struct {
	Element Element
	Cause   error
}

// Present reports whether the target resolved to an element.
func (r Resolution) Present() bool { return r.Element != nil }
