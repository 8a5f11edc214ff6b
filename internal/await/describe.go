// internal/await/describe.go
package await

import (
	"context"
	"strings"
	"unicode/utf8"
)

// describedAttributes are printed, in this order, when present.
var describedAttributes = []string{"id", "name", "class", "type", "value", "href", "src"}

const maxDescribedText = 80

// Describe renders a compact, HTML-like description of el for diagnostics,
// e.g. <input id="id1" type="text" value="456"></input>. Read failures are
// tolerated: whatever could be read is printed.
func Describe(ctx context.Context, d Driver, el Element) string {
	if el == nil {
		return ""
	}
	tag, err := d.TagName(ctx, el)
	if err != nil {
		return CleanupMessage(err)
	}

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tag)
	for _, name := range describedAttributes {
		v, err := d.Attribute(ctx, el, name)
		if err != nil || v == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(strings.ReplaceAll(v, `"`, `&quot;`))
		b.WriteString(`"`)
	}
	if disp, ok := d.(Displayer); ok {
		if shown, err := disp.Displayed(ctx, el); err == nil && !shown {
			b.WriteString(" displayed:false")
		}
	}
	b.WriteString(">")

	if text, err := d.Text(ctx, el); err == nil {
		b.WriteString(truncate(strings.Join(strings.Fields(text), " "), maxDescribedText))
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
