// internal/browser/htmldriver/document.go
package htmldriver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a mutable, in-memory HTML document. Reads and writes from any
// goroutine are serialized, so a test may rewrite the page while a wait is
// polling it.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Open parses the HTML file at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening html file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Mutate runs fn with exclusive access to the document tree.
func (d *Document) Mutate(fn func(root *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.root)
}

// Replace swaps the whole document for newly parsed markup. Every element
// handle obtained before the call becomes stale.
func (d *Document) Replace(markup string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parsing html: %w", err)
	}
	d.mu.Lock()
	d.root = root
	d.mu.Unlock()
	return nil
}

// SetInnerHTML replaces the children of every element matching the CSS
// selector with the parsed fragment. It returns the number of elements
// changed.
func (d *Document) SetInnerHTML(selector, fragment string) (int, error) {
	group, err := compileSelector(selector)
	if err != nil {
		return 0, err
	}
	return d.update(group, func(n *html.Node) error {
		children, err := html.ParseFragment(strings.NewReader(fragment), n)
		if err != nil {
			return fmt.Errorf("parsing fragment: %w", err)
		}
		removeChildren(n)
		for _, c := range children {
			n.AppendChild(c)
		}
		return nil
	})
}

// SetAttribute sets an attribute on every element matching the CSS selector.
func (d *Document) SetAttribute(selector, name, value string) (int, error) {
	group, err := compileSelector(selector)
	if err != nil {
		return 0, err
	}
	return d.update(group, func(n *html.Node) error {
		setAttr(n, name, value)
		return nil
	})
}

// Remove detaches every element matching the CSS selector. Handles to the
// removed elements become stale.
func (d *Document) Remove(selector string) (int, error) {
	group, err := compileSelector(selector)
	if err != nil {
		return 0, err
	}
	return d.update(group, func(n *html.Node) error {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return nil
	})
}

func (d *Document) update(group cascadia.SelectorGroup, fn func(*html.Node) error) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	matched := queryAll(d.root, group)
	for _, n := range matched {
		if err := fn(n); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// Render writes the current markup to w.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return err.Error()
	}
	return buf.String()
}

// attached reports whether n is still part of the current tree. The caller
// must hold d.mu.
func (d *Document) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}
