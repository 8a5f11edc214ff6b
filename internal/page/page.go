// internal/page/page.go
package page

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/await"
)

// Page is the root finder for elements of one document. It is as safe for
// concurrent use as the driver behind its engine.
type Page struct {
	engine *await.Engine
	logger *zap.Logger
}

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the logger used for element operations.
func WithLogger(l *zap.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Page on top of engine.
func New(engine *await.Engine, opts ...Option) *Page {
	if engine == nil {
		panic("page: New called with nil engine")
	}
	p := &Page{engine: engine, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("page")
	return p
}

// Engine returns the engine that resolves and waits for this page's elements.
func (p *Page) Engine() *await.Engine { return p.engine }

// Find addresses the first element matching sel, which is parsed with
// await.ParseSelector.
func (p *Page) Find(sel string) *Element {
	return p.FindAt(sel, 0)
}

// FindAt addresses the index-th element matching sel.
func (p *Page) FindAt(sel string, index int) *Element {
	return p.FindBy(await.ParseSelector(sel), index)
}

// FindBy addresses the index-th element matching a prebuilt selector.
func (p *Page) FindBy(sel await.Selector, index int) *Element {
	return p.element(await.Select(sel, index))
}

// Wrap adopts an element handle the caller already holds.
func (p *Page) Wrap(el await.Element) *Element {
	return p.element(await.Handle(el))
}

func (p *Page) element(t await.Target) *Element {
	return &Element{page: p, target: t}
}
