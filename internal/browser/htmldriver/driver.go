// internal/browser/htmldriver/driver.go
package htmldriver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/steady/internal/await"
)

var (
	// ErrNotInteractable is returned when typing into or clearing an element
	// that does not accept input.
	ErrNotInteractable = errors.New("element not interactable")
	// ErrNoSuchOption is returned when a select has no option with the
	// requested text or value.
	ErrNoSuchOption = errors.New("no such option")
	// ErrForeignElement is returned for handles that did not come from this
	// driver.
	ErrForeignElement = errors.New("element does not belong to this driver")
)

// Element is a handle to a node of a Document.
type Element struct {
	node *html.Node
	id   string
}

// ElementID returns the XPath the node had when the handle was created.
func (e *Element) ElementID() string { return e.id }

// Node exposes the underlying node.
func (e *Element) Node() *html.Node { return e.node }

// Driver implements await.Driver, await.Displayer and await.FileSetter over
// a Document.
type Driver struct {
	doc    *Document
	logger *zap.Logger
}

var (
	_ await.Driver     = (*Driver)(nil)
	_ await.Displayer  = (*Driver)(nil)
	_ await.FileSetter = (*Driver)(nil)
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a driver over doc.
func New(doc *Document, opts ...Option) *Driver {
	d := &Driver{doc: doc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("htmldriver")
	return d
}

// Document returns the document the driver reads and writes.
func (d *Driver) Document() *Document { return d.doc }

// node unwraps el and verifies it is still attached. The caller must hold
// the document lock.
func (d *Driver) node(el await.Element) (*html.Node, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("%w: %T", ErrForeignElement, el)
	}
	if !d.doc.attached(e.node) {
		return nil, fmt.Errorf("%w: %s is no longer attached to the document", await.ErrStaleElement, e.id)
	}
	return e.node, nil
}

func (d *Driver) FindOne(ctx context.Context, scope await.Element, sel await.Selector) (await.Element, error) {
	all, err := d.FindAll(ctx, scope, sel)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: unable to locate element: %s", await.ErrNoSuchElement, sel)
	}
	return all[0], nil
}

func (d *Driver) FindAll(ctx context.Context, scope await.Element, sel await.Selector) ([]await.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.doc.mu.RLock()
	defer d.doc.mu.RUnlock()

	root := d.doc.root
	if scope != nil {
		n, err := d.node(scope)
		if err != nil {
			return nil, err
		}
		root = n
	}

	var nodes []*html.Node
	if sel.Kind == await.KindXPath {
		var err error
		if nodes, err = queryXPath(root, sel.Value); err != nil {
			return nil, err
		}
	} else {
		css, _ := sel.AsCSS()
		group, err := compileSelector(css)
		if err != nil {
			return nil, err
		}
		nodes = queryAll(root, group)
	}

	out := make([]await.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{node: n, id: uniqueXPath(n)}
	}
	return out, nil
}

var booleanAttrs = map[string]bool{
	"checked": true, "selected": true, "disabled": true, "readonly": true,
	"required": true, "multiple": true, "hidden": true, "autofocus": true,
}

func (d *Driver) Attribute(_ context.Context, el await.Element, name string) (string, error) {
	d.doc.mu.RLock()
	defer d.doc.mu.RUnlock()
	n, err := d.node(el)
	if err != nil {
		return "", err
	}
	name = strings.ToLower(name)
	if name == "value" {
		return valueOf(n), nil
	}
	v, ok := attr(n, name)
	if ok && booleanAttrs[name] {
		return "true", nil
	}
	return v, nil
}

func (d *Driver) Text(_ context.Context, el await.Element) (string, error) {
	d.doc.mu.RLock()
	defer d.doc.mu.RUnlock()
	n, err := d.node(el)
	if err != nil {
		return "", err
	}
	if !displayed(n) {
		return "", nil
	}
	return renderedText(n), nil
}

func (d *Driver) TagName(_ context.Context, el await.Element) (string, error) {
	d.doc.mu.RLock()
	defer d.doc.mu.RUnlock()
	n, err := d.node(el)
	if err != nil {
		return "", err
	}
	return strings.ToLower(n.Data), nil
}

func (d *Driver) Displayed(_ context.Context, el await.Element) (bool, error) {
	d.doc.mu.RLock()
	defer d.doc.mu.RUnlock()
	n, err := d.node(el)
	if err != nil {
		return false, err
	}
	return displayed(n), nil
}

func (d *Driver) Clear(_ context.Context, el await.Element) error {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	n, err := d.editable(el)
	if err != nil {
		return err
	}
	if strings.EqualFold(n.Data, "textarea") {
		removeChildren(n)
	} else {
		setAttr(n, "value", "")
	}
	d.logger.Debug("Cleared element.", zap.String("element", uniqueXPath(n)))
	return nil
}

func (d *Driver) SendKeys(_ context.Context, el await.Element, text string) error {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	n, err := d.editable(el)
	if err != nil {
		return err
	}

	switch {
	case strings.EqualFold(n.Data, "textarea"):
		text = strings.ReplaceAll(text, await.KeyEnter, "\n")
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	case strings.EqualFold(attrOrEmpty(n, "type"), "file"):
		setAttr(n, "value", fakePath(strings.TrimSpace(text)))
	default:
		// Enter submits rather than types in a single line input.
		text = strings.ReplaceAll(text, await.KeyEnter, "")
		setAttr(n, "value", valueOf(n)+text)
	}
	d.logger.Debug("Typed into element.", zap.String("element", uniqueXPath(n)), zap.Int("chars", len(text)))
	return nil
}

func (d *Driver) SetFiles(_ context.Context, el await.Element, paths []string) error {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	n, err := d.node(el)
	if err != nil {
		return err
	}
	if !strings.EqualFold(n.Data, "input") || !strings.EqualFold(attrOrEmpty(n, "type"), "file") {
		return fmt.Errorf("%w: %s is not a file input", ErrNotInteractable, uniqueXPath(n))
	}
	if len(paths) == 0 {
		return errors.New("no files to set")
	}
	if _, multi := attr(n, "multiple"); !multi && len(paths) > 1 {
		return fmt.Errorf("%w: file input does not accept multiple files", ErrNotInteractable)
	}
	setAttr(n, "value", fakePath(paths[0]))
	return nil
}

func (d *Driver) SelectByVisibleText(_ context.Context, el await.Element, text string) error {
	return d.selectOption(el, "text", text, func(opt *html.Node) bool {
		return collapseSpace(renderedText(opt)) == collapseSpace(text)
	})
}

func (d *Driver) SelectByValue(_ context.Context, el await.Element, value string) error {
	return d.selectOption(el, "value", value, func(opt *html.Node) bool {
		return valueOf(opt) == value
	})
}

func (d *Driver) selectOption(el await.Element, by, want string, match func(*html.Node) bool) error {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	n, err := d.node(el)
	if err != nil {
		return err
	}
	if !strings.EqualFold(n.Data, "select") {
		return fmt.Errorf("%w: element should have been \"select\" but was %q", ErrNotInteractable, strings.ToLower(n.Data))
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return fmt.Errorf("%w: select is disabled", ErrNotInteractable)
	}

	options := queryAll(n, optionSelector)
	var chosen *html.Node
	for _, opt := range options {
		if match(opt) {
			chosen = opt
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("%w: cannot locate option with %s: %s", ErrNoSuchOption, by, want)
	}
	if _, disabled := attr(chosen, "disabled"); disabled {
		return fmt.Errorf("%w: option %q is disabled", ErrNotInteractable, want)
	}

	if _, multi := attr(n, "multiple"); !multi {
		for _, opt := range options {
			removeAttr(opt, "selected")
		}
	}
	setAttr(chosen, "selected", "")
	d.logger.Debug("Selected option.", zap.String("by", by), zap.String("want", want))
	return nil
}

// editable unwraps el and checks it accepts typing. The caller must hold the
// write lock.
func (d *Driver) editable(el await.Element) (*html.Node, error) {
	n, err := d.node(el)
	if err != nil {
		return nil, err
	}
	tag := strings.ToLower(n.Data)
	if tag != "input" && tag != "textarea" {
		return nil, fmt.Errorf("%w: <%s> does not accept input", ErrNotInteractable, tag)
	}
	if _, ok := attr(n, "disabled"); ok {
		return nil, fmt.Errorf("%w: element is disabled", ErrNotInteractable)
	}
	if _, ok := attr(n, "readonly"); ok {
		return nil, fmt.Errorf("%w: element is read-only", ErrNotInteractable)
	}
	if !displayed(n) {
		return nil, fmt.Errorf("%w: element is not displayed", ErrNotInteractable)
	}
	return n, nil
}

// valueOf returns the current value property of form controls.
func valueOf(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return textContent(n)
	case "select":
		var first *html.Node
		for _, opt := range queryAll(n, optionSelector) {
			if first == nil {
				first = opt
			}
			if _, sel := attr(opt, "selected"); sel {
				return valueOf(opt)
			}
		}
		if first != nil {
			return valueOf(first)
		}
		return ""
	case "option":
		if v, ok := attr(n, "value"); ok {
			return v
		}
		return collapseSpace(textContent(n))
	}
	return attrOrEmpty(n, "value")
}

var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"title": true, "noscript": true, "meta": true, "link": true,
}

// displayed approximates rendering: the node and all of its ancestors must
// not be hidden by tag, attribute or inline style.
func displayed(n *html.Node) bool {
	if strings.EqualFold(n.Data, "input") && strings.EqualFold(attrOrEmpty(n, "type"), "hidden") {
		return false
	}
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if hiddenTags[strings.ToLower(p.Data)] {
			return false
		}
		if _, ok := attr(p, "hidden"); ok {
			return false
		}
		style := strings.ToLower(strings.ReplaceAll(attrOrEmpty(p, "style"), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true, "option": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// renderedText collects visible text the way a browser reports innerText:
// whitespace collapsed within lines, block elements on their own lines.
func renderedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			// Source line breaks are plain whitespace once rendered.
			b.WriteString(strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(c.Data))
			return
		case html.ElementNode:
			if c != n && !displayed(c) {
				return
			}
			tag := strings.ToLower(c.Data)
			if tag == "br" {
				b.WriteByte('\n')
				return
			}
			if blockTags[tag] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// fakePath mimics the value browsers expose for file inputs.
func fakePath(path string) string {
	if path == "" {
		return ""
	}
	return `C:\fakepath\` + filepath.Base(path)
}
