package view

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"pkt.systems/cellpad/internal/observable"
	"pkt.systems/cellpad/internal/signal"
)

// ErrRender marks content that could not be turned into nodes.
var ErrRender = errors.New("render failed")

// RenderError records a failed render of one mime payload.
type RenderError struct {
	Mime string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Mime, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// Widget is a retained view element backed by an HTML node.
type Widget interface {
	Node() *html.Node
	Dispose()
	IsDisposed() bool
}

// errorReporter is implemented by widgets that record render failures.
type errorReporter interface {
	RenderErrors() []error
}

// element is the common widget base: one node plus the subscriptions the
// widget holds on its model.
type element struct {
	node     *html.Node
	scope    signal.Scope
	disposed bool
}

func (e *element) Node() *html.Node { return e.node }

func (e *element) IsDisposed() bool { return e.disposed }

func (e *element) dispose() bool {
	if e.disposed {
		return false
	}
	e.disposed = true
	e.scope.Release()
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
	return true
}

// Panel is a widget whose element children mirror an ordered widget list.
type Panel struct {
	element
	children []Widget
}

// NewPanel wraps node as a panel. node must have no children.
func NewPanel(node *html.Node) *Panel {
	return &Panel{element: element{node: node}}
}

// Len returns the number of child widgets.
func (p *Panel) Len() int { return len(p.children) }

// At returns the child at index.
func (p *Panel) At(index int) Widget { return p.children[index] }

// Widgets returns a copy of the child widgets.
func (p *Panel) Widgets() []Widget { return append([]Widget(nil), p.children...) }

// Insert attaches w at index, clamped to [0, Len()].
func (p *Panel) Insert(index int, w Widget) {
	index = min(max(index, 0), len(p.children))
	node := w.Node()
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
	if index == len(p.children) {
		p.node.AppendChild(node)
	} else {
		p.node.InsertBefore(node, p.children[index].Node())
	}
	p.children = append(p.children, nil)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = w
}

// RemoveAt detaches and returns the child at index. The caller owns it.
func (p *Panel) RemoveAt(index int) (Widget, error) {
	if index < 0 || index >= len(p.children) {
		return nil, &observable.IndexError{Op: "panel remove", Index: index, Len: len(p.children)}
	}
	w := p.children[index]
	if n := w.Node(); n.Parent == p.node {
		p.node.RemoveChild(n)
	}
	p.children = append(p.children[:index], p.children[index+1:]...)
	return w, nil
}

// Move relocates the child at from to to without rebuilding it.
func (p *Panel) Move(from, to int) error {
	w, err := p.RemoveAt(from)
	if err != nil {
		return err
	}
	if to < 0 || to > len(p.children) {
		p.Insert(from, w)
		return &observable.IndexError{Op: "panel move", Index: to, Len: len(p.children) + 1}
	}
	p.Insert(to, w)
	return nil
}

// Dispose disposes every child and detaches the panel.
func (p *Panel) Dispose() {
	if !p.dispose() {
		return
	}
	for _, w := range p.children {
		w.Dispose()
	}
	p.children = nil
}

// RenderErrors collects render failures of the children.
func (p *Panel) RenderErrors() []error {
	var errs []error
	for _, w := range p.children {
		if r, ok := w.(errorReporter); ok {
			errs = append(errs, r.RenderErrors()...)
		}
	}
	return errs
}
