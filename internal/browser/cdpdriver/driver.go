// internal/browser/cdpdriver/driver.go
package cdpdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/hashicorp/go-multierror"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/await"
)

// Element is a handle to a node of a live tab, held as a Runtime remote
// object. It is invalidated when its execution context goes away.
type Element struct {
	objectID runtime.RemoteObjectID
}

// ElementID implements await.Element.
func (e *Element) ElementID() string { return string(e.objectID) }

// ObjectID returns the remote object id backing the handle.
func (e *Element) ObjectID() runtime.RemoteObjectID { return e.objectID }

// Driver implements await.Driver over one chromedp tab. Every call performs
// its protocol round trips exactly once.
type Driver struct {
	tab    context.Context
	group  string
	logger *zap.Logger
}

var (
	_ await.Driver     = (*Driver)(nil)
	_ await.Displayer  = (*Driver)(nil)
	_ await.FileSetter = (*Driver)(nil)
	_ await.Releaser   = (*Driver)(nil)
)

func newDriver(tab context.Context, group string, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{tab: tab, group: group, logger: logger.Named("cdpdriver")}
}

// run executes fn against the tab, bounded by the caller's ctx.
func (d *Driver) run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := CombineContext(d.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(fn))
}

// call invokes a page function with the remote object as `this`.
func (d *Driver) call(ctx context.Context, id runtime.RemoteObjectID, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	params := runtime.CallFunctionOn(fn).
		WithObjectID(id).
		WithObjectGroup(d.group).
		WithReturnByValue(byValue)
	if len(args) > 0 {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			raw, err := json.Marshal(a)
			if err != nil {
				return nil, fmt.Errorf("failed to encode script argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}
		params = params.WithArguments(callArgs)
	}

	res, exc, err := params.Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}
	return res, nil
}

// callValue runs fn and decodes its by-value result into out.
func (d *Driver) callValue(ctx context.Context, el await.Element, fn string, out any, args ...any) error {
	id, err := objectID(el)
	if err != nil {
		return err
	}
	return d.run(ctx, func(ctx context.Context) error {
		res, err := d.call(ctx, id, fn, true, args...)
		if err != nil {
			return err
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Value, out); err != nil {
			return fmt.Errorf("failed to decode script result: %w", err)
		}
		return nil
	})
}

func objectID(el await.Element) (runtime.RemoteObjectID, error) {
	e, ok := el.(*Element)
	if !ok || e == nil || e.objectID == "" {
		return "", fmt.Errorf("%w: %T", ErrForeignElement, el)
	}
	return e.objectID, nil
}

// scopeID returns the object to search under; a nil scope is the document.
// The returned func releases the document object and must be called once
// the lookup is done.
func (d *Driver) scopeID(ctx context.Context, scope await.Element) (runtime.RemoteObjectID, func(), error) {
	if scope != nil {
		id, err := objectID(scope)
		return id, func() {}, err
	}
	doc, exc, err := runtime.Evaluate("document").WithObjectGroup(d.group).Do(ctx)
	if err != nil {
		return "", func() {}, err
	}
	if exc != nil {
		return "", func() {}, exceptionError(exc)
	}
	return doc.ObjectID, func() { d.releaseObject(ctx, doc.ObjectID, "document") }, nil
}

func (d *Driver) releaseObject(ctx context.Context, id runtime.RemoteObjectID, what string) {
	if id == "" {
		return
	}
	if err := runtime.ReleaseObject(id).Do(ctx); err != nil {
		d.logger.Debug("Failed to release remote object.", zap.String("object", what), zap.Error(err))
	}
}

func selectorArgs(sel await.Selector) (kind, value string) {
	if sel.Kind == await.KindXPath {
		return "xpath", sel.Value
	}
	css, _ := sel.AsCSS()
	return "css", css
}

func (d *Driver) FindOne(ctx context.Context, scope await.Element, sel await.Selector) (await.Element, error) {
	kind, value := selectorArgs(sel)
	var found *Element
	err := d.run(ctx, func(ctx context.Context) error {
		sid, done, err := d.scopeID(ctx, scope)
		if err != nil {
			return err
		}
		defer done()
		res, err := d.call(ctx, sid, jsFind, false, kind, value, false)
		if err != nil {
			return err
		}
		if res.ObjectID == "" {
			return fmt.Errorf("%w: unable to locate element: %s", await.ErrNoSuchElement, sel)
		}
		found = &Element{objectID: res.ObjectID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (d *Driver) FindAll(ctx context.Context, scope await.Element, sel await.Selector) ([]await.Element, error) {
	kind, value := selectorArgs(sel)
	var out []await.Element
	err := d.run(ctx, func(ctx context.Context) error {
		sid, done, err := d.scopeID(ctx, scope)
		if err != nil {
			return err
		}
		defer done()
		list, err := d.call(ctx, sid, jsFind, false, kind, value, true)
		if err != nil {
			return err
		}
		defer d.releaseObject(ctx, list.ObjectID, "result list")

		lenRes, err := d.call(ctx, list.ObjectID, jsLength, true)
		if err != nil {
			return err
		}
		var n int
		if err := json.Unmarshal(lenRes.Value, &n); err != nil {
			return fmt.Errorf("failed to decode match count: %w", err)
		}

		out = make([]await.Element, 0, n)
		for i := 0; i < n; i++ {
			item, err := d.call(ctx, list.ObjectID, jsItem, false, i)
			if err != nil {
				for _, el := range out {
					d.releaseObject(ctx, el.(*Element).objectID, "element")
				}
				out = nil
				return err
			}
			out = append(out, &Element{objectID: item.ObjectID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Located elements.", zap.Stringer("selector", sel), zap.Int("count", len(out)))
	return out, nil
}

// Release frees the remote objects behind els. Handles from another driver
// are skipped.
func (d *Driver) Release(ctx context.Context, els ...await.Element) error {
	ids := make([]runtime.RemoteObjectID, 0, len(els))
	for _, el := range els {
		if id, err := objectID(el); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return d.run(ctx, func(ctx context.Context) error {
		var result *multierror.Error
		for _, id := range ids {
			if err := runtime.ReleaseObject(id).Do(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to release %s: %w", id, err))
			}
		}
		return result.ErrorOrNil()
	})
}

func (d *Driver) Attribute(ctx context.Context, el await.Element, name string) (string, error) {
	var v string
	err := d.callValue(ctx, el, jsAttribute, &v, name)
	return v, err
}

func (d *Driver) Text(ctx context.Context, el await.Element) (string, error) {
	var v string
	err := d.callValue(ctx, el, jsText, &v)
	return v, err
}

func (d *Driver) TagName(ctx context.Context, el await.Element) (string, error) {
	var v string
	err := d.callValue(ctx, el, jsTagName, &v)
	return v, err
}

func (d *Driver) Displayed(ctx context.Context, el await.Element) (bool, error) {
	var v bool
	err := d.callValue(ctx, el, jsDisplayed, &v)
	return v, err
}

func (d *Driver) Clear(ctx context.Context, el await.Element) error {
	if err := d.callValue(ctx, el, jsClear, nil); err != nil {
		return err
	}
	d.logger.Debug("Cleared element.", zap.String("element", el.ElementID()))
	return nil
}

// SendKeys focuses the element and types text. Each KeyEnter becomes a real
// Enter key event; everything else is inserted as composed text.
func (d *Driver) SendKeys(ctx context.Context, el await.Element, text string) error {
	id, err := objectID(el)
	if err != nil {
		return err
	}
	err = d.run(ctx, func(ctx context.Context) error {
		res, err := d.call(ctx, id, jsFocus, true)
		if err != nil {
			return err
		}
		var isFile bool
		if err := json.Unmarshal(res.Value, &isFile); err != nil {
			return fmt.Errorf("failed to decode focus result: %w", err)
		}
		if isFile {
			return dom.SetFileInputFiles([]string{strings.TrimSpace(text)}).WithObjectID(id).Do(ctx)
		}

		segments := strings.Split(text, await.KeyEnter)
		for i, seg := range segments {
			if i > 0 {
				if err := chromedp.KeyEvent(kb.Enter).Do(ctx); err != nil {
					return err
				}
			}
			if seg == "" {
				continue
			}
			if err := input.InsertText(seg).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.logger.Debug("Typed into element.", zap.String("element", el.ElementID()), zap.Int("chars", len(text)))
	return nil
}

func (d *Driver) SetFiles(ctx context.Context, el await.Element, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files to set")
	}
	id, err := objectID(el)
	if err != nil {
		return err
	}
	return d.run(ctx, func(ctx context.Context) error {
		if _, err := d.call(ctx, id, jsFileInput, true, len(paths)); err != nil {
			return err
		}
		return dom.SetFileInputFiles(paths).WithObjectID(id).Do(ctx)
	})
}

func (d *Driver) SelectByVisibleText(ctx context.Context, el await.Element, text string) error {
	return d.callValue(ctx, el, jsSelect, nil, "text", text)
}

func (d *Driver) SelectByValue(ctx context.Context, el await.Element, value string) error {
	return d.callValue(ctx, el, jsSelect, nil, "value", value)
}
