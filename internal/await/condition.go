// internal/await/condition.go
package await

import (
	"context"
)

// Condition is a named predicate over the current state of a target.
//
// Apply is only called with an element resolved in the same attempt. It may
// return transient errors (a property read racing a DOM mutation); the engine
// treats those as "not satisfied yet". ApplyAbsent defines whether a missing
// target satisfies the condition. Actual produces a best effort diagnostic
// value and must not fail.
type Condition interface {
	Name() string
	Apply(ctx context.Context, d Driver, el Element) (bool, error)
	ApplyAbsent() bool
	Actual(ctx context.Context, d Driver, el Element) string
}
