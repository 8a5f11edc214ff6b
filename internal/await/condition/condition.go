// Package condition provides the built-in await.Condition implementations.
package condition

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/steady/internal/await"
)

// Func is a Condition assembled from functions. It is the building block for
// every condition in this package and may be used to define custom ones.
type Func struct {
	Label string
	// Absent is the value reported when the target does not exist.
	Absent bool
	Test   func(ctx context.Context, d await.Driver, el await.Element) (bool, error)
	// Read extracts the diagnostic value. Nil means the element's text.
	Read func(ctx context.Context, d await.Driver, el await.Element) (string, error)
}

var _ await.Condition = Func{}

func (f Func) Name() string      { return f.Label }
func (f Func) ApplyAbsent() bool { return f.Absent }
func (f Func) String() string    { return f.Label }

func (f Func) Apply(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
	return f.Test(ctx, d, el)
}

func (f Func) Actual(ctx context.Context, d await.Driver, el await.Element) string {
	read := f.Read
	if read == nil {
		read = readText
	}
	v, err := read(ctx, d, el)
	if err != nil {
		return await.CleanupMessage(err)
	}
	return v
}

func readText(ctx context.Context, d await.Driver, el await.Element) (string, error) {
	return d.Text(ctx, el)
}

func readAttr(name string) func(context.Context, await.Driver, await.Element) (string, error) {
	return func(ctx context.Context, d await.Driver, el await.Element) (string, error) {
		return d.Attribute(ctx, el, name)
	}
}

func readDisplayed(ctx context.Context, d await.Driver, el await.Element) (string, error) {
	shown, err := displayed(ctx, d, el)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("visible:%t", shown), nil
}

func displayed(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
	disp, ok := d.(await.Displayer)
	if !ok {
		return false, fmt.Errorf("visibility check: %w", await.ErrUnsupported)
	}
	return disp.Displayed(ctx, el)
}

// Exist holds when the target is present in the document.
func Exist() await.Condition {
	return Func{
		Label: "exist",
		Test: func(context.Context, await.Driver, await.Element) (bool, error) {
			return true, nil
		},
		Read: func(context.Context, await.Driver, await.Element) (string, error) {
			return "exists", nil
		},
	}
}

// Absent holds when the target is not in the document.
func Absent() await.Condition {
	return Func{
		Label:  "absent",
		Absent: true,
		Test: func(context.Context, await.Driver, await.Element) (bool, error) {
			return false, nil
		},
		Read: func(context.Context, await.Driver, await.Element) (string, error) {
			return "exists", nil
		},
	}
}

// Visible holds when the target is present and rendered.
func Visible() await.Condition {
	return Func{Label: "visible", Test: displayed, Read: readDisplayed}
}

// Hidden holds when the target is absent or not rendered.
func Hidden() await.Condition {
	return Func{
		Label:  "hidden",
		Absent: true,
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			shown, err := displayed(ctx, d, el)
			return !shown, err
		},
		Read: readDisplayed,
	}
}

// Text holds when the element text contains s, ignoring case.
func Text(s string) await.Condition {
	want := strings.ToLower(s)
	return Func{
		Label: fmt.Sprintf("text '%s'", s),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			got, err := d.Text(ctx, el)
			if err != nil {
				return false, err
			}
			return strings.Contains(strings.ToLower(got), want), nil
		},
	}
}

// ExactText holds when the element text, trimmed, equals s.
func ExactText(s string) await.Condition {
	return Func{
		Label: fmt.Sprintf("exact text '%s'", s),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			got, err := d.Text(ctx, el)
			if err != nil {
				return false, err
			}
			return strings.TrimSpace(got) == s, nil
		},
	}
}

// Value holds when the element value equals v.
func Value(v string) await.Condition {
	return Attribute("value", v)
}

// Attribute holds when attribute name equals value.
func Attribute(name, value string) await.Condition {
	return Func{
		Label: fmt.Sprintf("%s '%s'", name, value),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			got, err := d.Attribute(ctx, el, name)
			if err != nil {
				return false, err
			}
			return got == value, nil
		},
		Read: readAttr(name),
	}
}

// HasAttribute holds when attribute name is set to a non-empty value.
func HasAttribute(name string) await.Condition {
	return Func{
		Label: fmt.Sprintf("attribute %s", name),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			got, err := d.Attribute(ctx, el, name)
			if err != nil {
				return false, err
			}
			return got != "", nil
		},
		Read: readAttr(name),
	}
}

// CSSClass holds when the class attribute contains cls as a whole word.
func CSSClass(cls string) await.Condition {
	return Func{
		Label: fmt.Sprintf("css class '%s'", cls),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			got, err := d.Attribute(ctx, el, "class")
			if err != nil {
				return false, err
			}
			for _, c := range strings.Fields(got) {
				if c == cls {
					return true, nil
				}
			}
			return false, nil
		},
		Read: readAttr("class"),
	}
}

// Not negates c, including its behavior on absence.
func Not(c await.Condition) await.Condition {
	return Func{
		Label:  "not " + c.Name(),
		Absent: !c.ApplyAbsent(),
		Test: func(ctx context.Context, d await.Driver, el await.Element) (bool, error) {
			ok, err := c.Apply(ctx, d, el)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
		Read: func(ctx context.Context, d await.Driver, el await.Element) (string, error) {
			return c.Actual(ctx, d, el), nil
		},
	}
}
