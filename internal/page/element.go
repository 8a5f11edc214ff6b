// internal/page/element.go
package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/await"
	"github.com/xkilldash9x/steady/internal/await/condition"
)

// Element is a lazily resolved reference to a DOM element. It never caches
// the driver handle: every operation looks the element up again.
type Element struct {
	page   *Page
	target await.Target
}

// Target returns the descriptor this element resolves through.
func (e *Element) Target() await.Target { return e.target }

// String describes how the element is addressed. It performs no I/O; use
// Describe for the live element.
func (e *Element) String() string { return e.target.String() }

// Do performs op against the element.
func (e *Element) Do(ctx context.Context, op Operation) (Result, error) {
	self := Result{Element: e}

	switch op := op.(type) {
	case SetValue:
		return self, e.setValue(ctx, op.Text)

	case Append:
		return self, e.withElement(ctx, "append", func(d await.Driver, el await.Element) error {
			return d.SendKeys(ctx, el, op.Text)
		})

	case PressEnter:
		return self, e.withElement(ctx, "press enter", func(d await.Driver, el await.Element) error {
			return d.SendKeys(ctx, el, await.KeyEnter)
		})

	case ReadText:
		err := e.withElement(ctx, "read text", func(d await.Driver, el await.Element) (err error) {
			self.Text, err = d.Text(ctx, el)
			return err
		})
		return self, err

	case ReadValue:
		err := e.withElement(ctx, "read value", func(d await.Driver, el await.Element) (err error) {
			self.Text, err = d.Attribute(ctx, el, "value")
			return err
		})
		return self, err

	case SelectOption:
		return self, e.selectOption(ctx, "select option", func(d await.Driver, el await.Element) error {
			return d.SelectByVisibleText(ctx, el, op.Text)
		})

	case SelectOptionByValue:
		return self, e.selectOption(ctx, "select option by value", func(d await.Driver, el await.Element) error {
			return d.SelectByValue(ctx, el, op.Value)
		})

	case Upload:
		file, err := e.upload(ctx, op.Path)
		self.File = file
		return self, err

	case Should:
		return self, e.should(ctx, op.Conditions, false)

	case ShouldNot:
		return self, e.should(ctx, op.Conditions, true)

	case WaitUntil:
		el, err := e.engine().WaitUntil(ctx, e.target, op.Condition, op.Timeout)
		self.Handle = el
		return self, err

	case WaitWhile:
		return self, e.engine().WaitWhile(ctx, e.target, op.Condition, op.Timeout)

	case Exists:
		res, err := e.engine().Resolve(ctx, e.target)
		self.Exists = err == nil && res.Present()
		e.engine().Release(ctx, e.target, res.Element)
		return self, err

	case Describe:
		self.Text = e.describe(ctx)
		return self, nil

	case Find:
		return Result{Element: e.page.element(e.target.Find(op.Selector, op.Index))}, nil

	case Resolve:
		el, err := e.resolveNow(ctx)
		self.Handle = el
		return self, err

	case Invoke:
		if op.Fn == nil {
			return self, fmt.Errorf("invoke on %s: nil function", e)
		}
		el, err := e.resolveNow(ctx)
		if err != nil {
			return self, err
		}
		self.Handle = el
		self.Value, err = op.Fn(ctx, e.driver(), el)
		return self, err

	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownOperation, op)
	}
}

func (e *Element) engine() *await.Engine { return e.page.engine }
func (e *Element) driver() await.Driver  { return e.page.engine.Driver() }

// resolveNow performs a single resolution. An absent element is an error here
// because the caller needs a handle immediately.
func (e *Element) resolveNow(ctx context.Context) (await.Element, error) {
	res, err := e.engine().Resolve(ctx, e.target)
	if err != nil {
		return nil, err
	}
	if !res.Present() {
		if res.Cause != nil {
			return nil, fmt.Errorf("element %s: %w", e, res.Cause)
		}
		return nil, fmt.Errorf("element %s: %w", e, await.ErrNoSuchElement)
	}
	return res.Element, nil
}

// withElement resolves once and runs fn. Nothing is retried.
func (e *Element) withElement(ctx context.Context, action string, fn func(await.Driver, await.Element) error) error {
	el, err := e.resolveNow(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer e.engine().Release(ctx, e.target, el)
	if err := fn(e.driver(), el); err != nil {
		return fmt.Errorf("%s on %s: %w", action, e, err)
	}
	e.page.logger.Debug("Element operation done.", zap.String("action", action), zap.Stringer("target", e))
	return nil
}

func (e *Element) setValue(ctx context.Context, text string) error {
	return e.withElement(ctx, "set value", func(d await.Driver, el await.Element) error {
		if err := d.Clear(ctx, el); err != nil {
			return err
		}
		return d.SendKeys(ctx, el, text)
	})
}

// selectOption waits only until the select has some option, not the
// requested one. A select whose options load late may still fail here.
func (e *Element) selectOption(ctx context.Context, action string, fn func(await.Driver, await.Element) error) error {
	anyOption := e.target.Find(await.ByTag("option"), 0)
	opt, err := e.engine().WaitUntil(ctx, anyOption, condition.Exist(), 0)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	e.engine().Release(ctx, anyOption, opt)
	return e.withElement(ctx, action, fn)
}

func (e *Element) upload(ctx context.Context, path string) (string, error) {
	var abs string
	err := e.withElement(ctx, "upload", func(d await.Driver, el await.Element) error {
		tag, err := d.TagName(ctx, el)
		if err != nil {
			return err
		}
		if !strings.EqualFold(tag, "input") {
			return fmt.Errorf("cannot upload file because %s: %w", await.Describe(ctx, d, el), ErrNotInput)
		}

		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("expanding %q: %w", path, err)
		}
		abs, err = filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrFileNotFound, abs)
		}

		if fs, ok := d.(await.FileSetter); ok {
			return fs.SetFiles(ctx, el, []string{abs})
		}
		return d.SendKeys(ctx, el, abs)
	})
	if err != nil {
		return "", err
	}
	return abs, nil
}

// should waits for each condition in order. The first failure stops the rest.
func (e *Element) should(ctx context.Context, conds []await.Condition, not bool) error {
	for _, c := range conds {
		var err error
		if not {
			err = e.engine().WaitWhile(ctx, e.target, c, await.UseDefault)
		} else {
			var el await.Element
			el, err = e.engine().WaitUntil(ctx, e.target, c, await.UseDefault)
			e.engine().Release(ctx, e.target, el)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Element) describe(ctx context.Context) string {
	res, err := e.engine().Resolve(ctx, e.target)
	switch {
	case err != nil:
		return await.CleanupMessage(err)
	case !res.Present() && res.Cause != nil:
		return await.CleanupMessage(res.Cause)
	case !res.Present():
		return fmt.Sprintf("%s: %s", e, await.ErrNoSuchElement)
	}
	defer e.engine().Release(ctx, e.target, res.Element)
	return await.Describe(ctx, e.driver(), res.Element)
}

// -- Typed operations --

// SetValue clears the element and types text into it.
func (e *Element) SetValue(ctx context.Context, text string) (*Element, error) {
	_, err := e.Do(ctx, SetValue{Text: text})
	return e, err
}

// Val sets the value to text. Use Value to read it.
func (e *Element) Val(ctx context.Context, text string) (*Element, error) {
	return e.SetValue(ctx, text)
}

// Value reads the value attribute.
func (e *Element) Value(ctx context.Context) (string, error) {
	r, err := e.Do(ctx, ReadValue{})
	return r.Text, err
}

// Append types text after the current content.
func (e *Element) Append(ctx context.Context, text string) (*Element, error) {
	_, err := e.Do(ctx, Append{Text: text})
	return e, err
}

// PressEnter sends the Enter key to the element.
func (e *Element) PressEnter(ctx context.Context) (*Element, error) {
	_, err := e.Do(ctx, PressEnter{})
	return e, err
}

// Text reads the rendered text.
func (e *Element) Text(ctx context.Context) (string, error) {
	r, err := e.Do(ctx, ReadText{})
	return r.Text, err
}

// Should waits for every condition in order.
func (e *Element) Should(ctx context.Context, conds ...await.Condition) (*Element, error) {
	_, err := e.Do(ctx, Should{Conditions: conds})
	return e, err
}

// ShouldHave is Should, for conditions that read as properties.
func (e *Element) ShouldHave(ctx context.Context, conds ...await.Condition) (*Element, error) {
	return e.Should(ctx, conds...)
}

// ShouldBe is Should, for conditions that read as states.
func (e *Element) ShouldBe(ctx context.Context, conds ...await.Condition) (*Element, error) {
	return e.Should(ctx, conds...)
}

// ShouldNot waits for every condition in order to stop holding.
func (e *Element) ShouldNot(ctx context.Context, conds ...await.Condition) (*Element, error) {
	_, err := e.Do(ctx, ShouldNot{Conditions: conds})
	return e, err
}

// ShouldNotHave is ShouldNot.
func (e *Element) ShouldNotHave(ctx context.Context, conds ...await.Condition) (*Element, error) {
	return e.ShouldNot(ctx, conds...)
}

// ShouldNotBe is ShouldNot.
func (e *Element) ShouldNotBe(ctx context.Context, conds ...await.Condition) (*Element, error) {
	return e.ShouldNot(ctx, conds...)
}

// WaitUntil waits up to timeout for c and returns the satisfying handle, or
// nil when absence satisfied it.
func (e *Element) WaitUntil(ctx context.Context, c await.Condition, timeout time.Duration) (await.Element, error) {
	r, err := e.Do(ctx, WaitUntil{Condition: c, Timeout: timeout})
	return r.Handle, err
}

// WaitWhile waits up to timeout for c to stop holding.
func (e *Element) WaitWhile(ctx context.Context, c await.Condition, timeout time.Duration) (*Element, error) {
	_, err := e.Do(ctx, WaitWhile{Condition: c, Timeout: timeout})
	return e, err
}

// Find addresses the first child matching sel.
func (e *Element) Find(sel string) *Element {
	return e.FindAt(sel, 0)
}

// FindAt addresses the index-th child matching sel.
func (e *Element) FindAt(sel string, index int) *Element {
	r, _ := e.Do(context.Background(), Find{Selector: await.ParseSelector(sel), Index: index})
	return r.Element
}

// Exists reports whether the element is present right now. Transient lookup
// failures count as absent; only fatal driver errors are returned.
func (e *Element) Exists(ctx context.Context) (bool, error) {
	r, err := e.Do(ctx, Exists{})
	return r.Exists, err
}

// Describe renders the live element, or the reason it cannot be found.
func (e *Element) Describe(ctx context.Context) string {
	r, _ := e.Do(ctx, Describe{})
	return r.Text
}

// Upload attaches a local file to a file input and returns its absolute path.
func (e *Element) Upload(ctx context.Context, path string) (string, error) {
	r, err := e.Do(ctx, Upload{Path: path})
	return r.File, err
}

// SelectOption picks an option by its visible text.
func (e *Element) SelectOption(ctx context.Context, text string) error {
	_, err := e.Do(ctx, SelectOption{Text: text})
	return err
}

// SelectOptionByValue picks an option by its value attribute.
func (e *Element) SelectOptionByValue(ctx context.Context, value string) error {
	_, err := e.Do(ctx, SelectOptionByValue{Value: value})
	return err
}

// ToElement resolves the element once, without waiting.
func (e *Element) ToElement(ctx context.Context) (await.Element, error) {
	r, err := e.Do(ctx, Resolve{})
	return r.Handle, err
}

// Invoke resolves the element once and passes it to fn.
func (e *Element) Invoke(ctx context.Context, fn func(context.Context, await.Driver, await.Element) (any, error)) (any, error) {
	r, err := e.Do(ctx, Invoke{Fn: fn})
	return r.Value, err
}
