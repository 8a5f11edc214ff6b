// internal/await/condition/parse.go
package condition

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/steady/internal/await"
)

// Parse builds a condition from its textual form:
//
//	exist | absent | visible | hidden
//	text=S | exact-text=S | value=S | class=S | attr:NAME=S | attr:NAME
//
// A leading '!' negates the result.
func Parse(expr string) (await.Condition, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "!") {
		c, err := Parse(expr[1:])
		if err != nil {
			return nil, err
		}
		return Not(c), nil
	}

	key, arg, hasArg := strings.Cut(expr, "=")
	key = strings.ToLower(strings.TrimSpace(key))

	switch {
	case !hasArg && key == "exist", !hasArg && key == "exists":
		return Exist(), nil
	case !hasArg && key == "absent":
		return Absent(), nil
	case !hasArg && key == "visible":
		return Visible(), nil
	case !hasArg && key == "hidden":
		return Hidden(), nil
	case hasArg && key == "text":
		return Text(arg), nil
	case hasArg && key == "exact-text":
		return ExactText(arg), nil
	case hasArg && key == "value":
		return Value(arg), nil
	case hasArg && key == "class":
		return CSSClass(arg), nil
	case strings.HasPrefix(key, "attr:"):
		name := strings.TrimSpace(strings.TrimPrefix(key, "attr:"))
		if name == "" {
			return nil, fmt.Errorf("condition %q: missing attribute name", expr)
		}
		if !hasArg {
			return HasAttribute(name), nil
		}
		return Attribute(name, arg), nil
	}
	return nil, fmt.Errorf("unknown condition %q", expr)
}
