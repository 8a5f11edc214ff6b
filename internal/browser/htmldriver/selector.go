// internal/browser/htmldriver/selector.go
package htmldriver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned for CSS or XPath the driver cannot compile.
// It is fatal to a wait.
var ErrInvalidSelector = errors.New("invalid selector")

var optionSelector = cascadia.MustCompile("option")

// compileSelector parses a CSS selector group.
func compileSelector(input string) (cascadia.SelectorGroup, error) {
	group, err := cascadia.ParseGroup(input)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, input, err)
	}
	return group, nil
}

// queryAll returns the descendants of scope matching m, in document order.
func queryAll(scope *html.Node, m cascadia.Matcher) []*html.Node {
	return cascadia.QueryAll(scope, m)
}

func attr(node *html.Node, name string) (string, bool) {
	for _, a := range node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func attrOrEmpty(node *html.Node, name string) string {
	v, _ := attr(node, name)
	return v
}

func setAttr(node *html.Node, name, value string) {
	for i, a := range node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(node *html.Node, name string) {
	kept := node.Attr[:0]
	for _, a := range node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			continue
		}
		kept = append(kept, a)
	}
	node.Attr = kept
}
