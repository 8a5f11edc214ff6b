// internal/await/selector.go
package await

import (
	"fmt"
	"strings"
)

// SelectorKind identifies the locator strategy of a Selector.
type SelectorKind int

const (
	KindCSS SelectorKind = iota
	KindXPath
	KindID
	KindTagName
)

func (k SelectorKind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	case KindID:
		return "id"
	case KindTagName:
		return "tag"
	default:
		return fmt.Sprintf("SelectorKind(%d)", int(k))
	}
}

// Selector is a driver independent locator.
type Selector struct {
	Kind  SelectorKind
	Value string
}

// CSS returns a CSS selector.
func CSS(s string) Selector { return Selector{Kind: KindCSS, Value: s} }

// XPath returns an XPath selector.
func XPath(s string) Selector { return Selector{Kind: KindXPath, Value: s} }

// ByID returns a selector matching the element id attribute.
func ByID(id string) Selector { return Selector{Kind: KindID, Value: id} }

// ByTag returns a selector matching elements by tag name.
func ByTag(tag string) Selector { return Selector{Kind: KindTagName, Value: strings.ToLower(tag)} }

// ParseSelector turns a user supplied locator string into a Selector.
// Explicit prefixes ("css=", "xpath=", "id=", "tag=") win; otherwise a
// leading '/' or '(' means XPath and anything else is CSS.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	for prefix, kind := range map[string]SelectorKind{
		"css=":   KindCSS,
		"xpath=": KindXPath,
		"id=":    KindID,
		"tag=":   KindTagName,
	} {
		if strings.HasPrefix(s, prefix) {
			v := strings.TrimSpace(s[len(prefix):])
			if kind == KindTagName {
				v = strings.ToLower(v)
			}
			return Selector{Kind: kind, Value: v}
		}
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") {
		return XPath(s)
	}
	return CSS(s)
}

// String renders the selector the way ParseSelector accepts it back.
func (s Selector) String() string {
	switch s.Kind {
	case KindCSS:
		if ParseSelector(s.Value) != s {
			return "css=" + s.Value
		}
		return s.Value
	case KindXPath:
		if strings.HasPrefix(s.Value, "/") || strings.HasPrefix(s.Value, "(") {
			return s.Value
		}
		return "xpath=" + s.Value
	case KindID:
		return "id=" + s.Value
	case KindTagName:
		return "tag=" + s.Value
	default:
		return s.Value
	}
}

var idEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// AsCSS converts ID and tag selectors into equivalent CSS. XPath selectors
// have no CSS equivalent and report false.
func (s Selector) AsCSS() (string, bool) {
	switch s.Kind {
	case KindCSS:
		return s.Value, true
	case KindID:
		return `[id="` + idEscaper.Replace(s.Value) + `"]`, true
	case KindTagName:
		return s.Value, true
	default:
		return "", false
	}
}
