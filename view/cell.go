package view

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/schema"
)

// InputWidget shows a cell prompt next to its editor contents.
type InputWidget struct {
	element
	model  *core.InputModel
	prompt *html.Node
	editor *html.Node
}

// NewInputWidget follows model's prompt and editor state.
func NewInputWidget(model *core.InputModel) *InputWidget {
	w := &InputWidget{
		element: element{node: newElement(atom.Div, ClassInputArea)},
		model:   model,
		prompt:  newElement(atom.Div, ClassInputPrompt),
		editor:  newElement(atom.Pre, ClassEditor),
	}
	w.node.AppendChild(w.prompt)
	w.node.AppendChild(w.editor)
	w.syncPrompt()
	w.syncEditor()
	w.scope.Add(
		model.StateChanged().Connect(func(core.StateChange) { w.syncPrompt() }),
		model.Editor().StateChanged().Connect(func(core.StateChange) { w.syncEditor() }),
	)
	return w
}

func (w *InputWidget) syncPrompt() {
	setText(w.prompt, "In ["+w.model.Prompt()+"]:")
}

func (w *InputWidget) syncEditor() {
	editor := w.model.Editor()
	setText(w.editor, editor.Text())
	setAttr(w.editor, "data-mimetype", editor.Mimetype())
	toggleAttr(w.editor, "data-read-only", editor.ReadOnly())
	toggleAttr(w.editor, "data-line-numbers", editor.LineNumbers())
}

// Prompt returns the prompt element.
func (w *InputWidget) Prompt() *html.Node { return w.prompt }

// Editor returns the editor element.
func (w *InputWidget) Editor() *html.Node { return w.editor }

// SetHidden hides or shows the whole input area.
func (w *InputWidget) SetHidden(v bool) { toggleClass(w.node, ClassHidden, v) }

// Dispose detaches the widget.
func (w *InputWidget) Dispose() { w.dispose() }

// CellWidget shows one cell: its input, and either the output area of a
// code cell or the rendered view of a markdown cell.
type CellWidget struct {
	element
	cell     core.Cell
	renderer *Renderer
	input    *InputWidget
	output   *OutputAreaWidget
	rendered *html.Node
	errs     []error
}

var errUnknownCell = errors.New("unknown cell variant")

// NewCellWidget builds the widget matching the cell's variant. A nil cell
// yields an empty widget carrying a render error.
func NewCellWidget(cell core.Cell, renderer *Renderer) *CellWidget {
	switch c := cell.(type) {
	case *core.CodeCell:
		return NewCodeCellWidget(c, renderer)
	case *core.MarkdownCell:
		return NewMarkdownCellWidget(c, renderer)
	case *core.RawCell:
		return NewRawCellWidget(c, renderer)
	}
	err := &RenderError{Mime: "cell", Err: fmt.Errorf("%w: %T", errUnknownCell, cell)}
	w := &CellWidget{
		element:  element{node: newElement(atom.Div, ClassCell, ClassError)},
		renderer: renderer,
		errs:     []error{err},
	}
	setText(w.node, err.Error())
	return w
}

func newCellWidget(cell core.Cell, renderer *Renderer, variant string) *CellWidget {
	w := &CellWidget{
		element:  element{node: newElement(atom.Div, ClassCell, variant)},
		cell:     cell,
		renderer: renderer,
		input:    NewInputWidget(cell.Input()),
	}
	setAttr(w.node, "data-cell-id", string(cell.ID()))
	setAttr(w.node, "data-cell-type", string(cell.Type()))
	w.node.AppendChild(w.input.Node())
	w.syncFlags()
	w.scope.Add(cell.StateChanged().Connect(w.onStateChanged))
	return w
}

// NewCodeCellWidget builds the widget of a code cell.
func NewCodeCellWidget(cell *core.CodeCell, renderer *Renderer) *CellWidget {
	w := newCellWidget(cell, renderer, ClassCodeCell)
	w.output = NewOutputAreaWidget(cell.Output(), renderer)
	w.node.AppendChild(w.output.Node())
	return w
}

// NewMarkdownCellWidget builds the widget of a markdown cell. The rendered
// view replaces the input while the cell is rendered.
func NewMarkdownCellWidget(cell *core.MarkdownCell, renderer *Renderer) *CellWidget {
	w := newCellWidget(cell, renderer, ClassMarkdownCell)
	w.rendered = newElement(atom.Div, ClassRenderedMarkdown)
	w.node.AppendChild(w.rendered)
	w.syncRendered()
	w.scope.Add(cell.Input().Editor().TextChanged().Connect(func(core.TextChange) {
		if cell.Rendered() {
			w.renderMarkdown()
		}
	}))
	return w
}

// NewRawCellWidget builds the widget of a raw cell.
func NewRawCellWidget(cell *core.RawCell, renderer *Renderer) *CellWidget {
	w := newCellWidget(cell, renderer, ClassRawCell)
	if cell.Format() != "" {
		setAttr(w.node, "data-format", cell.Format())
	}
	return w
}

func (w *CellWidget) onStateChanged(change core.StateChange) {
	switch change.Name {
	case core.PropActive, core.PropSelected, core.PropReadOnly, core.PropTrusted:
		w.syncFlags()
		if change.Name == core.PropTrusted && w.cell.Type() == schema.CellTypeMarkdown {
			w.syncRendered()
		}
	case core.PropRendered:
		w.syncRendered()
	case core.PropFormat:
		if raw, ok := w.cell.(*core.RawCell); ok {
			setAttr(w.node, "data-format", raw.Format())
		}
	}
}

func (w *CellWidget) syncFlags() {
	toggleClass(w.node, ClassActive, w.cell.Active())
	toggleClass(w.node, ClassSelected, w.cell.Selected())
	toggleClass(w.node, ClassReadOnly, w.cell.ReadOnly())
	toggleClass(w.node, ClassTrusted, w.cell.Trusted())
}

func (w *CellWidget) syncRendered() {
	md, ok := w.cell.(*core.MarkdownCell)
	if !ok {
		return
	}
	on := md.Rendered()
	w.input.SetHidden(on)
	toggleClass(w.rendered, ClassHidden, !on)
	if on {
		w.renderMarkdown()
		return
	}
	removeChildren(w.rendered)
	w.errs = nil
}

func (w *CellWidget) renderMarkdown() {
	removeChildren(w.rendered)
	w.errs = nil
	nodes, err := w.renderer.Markdown(w.cell.Input().Editor().Text(), w.cell.Trusted())
	if err != nil {
		w.errs = []error{err}
		setText(w.rendered, err.Error())
		return
	}
	appendChildren(w.rendered, nodes)
}

// Cell returns the backing model.
func (w *CellWidget) Cell() core.Cell { return w.cell }

// Input returns the input widget.
func (w *CellWidget) Input() *InputWidget { return w.input }

// OutputArea returns the output area widget of a code cell, or nil.
func (w *CellWidget) OutputArea() *OutputAreaWidget { return w.output }

// RenderedNode returns the rendered markdown element, or nil.
func (w *CellWidget) RenderedNode() *html.Node { return w.rendered }

// RenderErrors collects render failures of the cell.
func (w *CellWidget) RenderErrors() []error {
	errs := append([]error(nil), w.errs...)
	if w.output != nil {
		errs = append(errs, w.output.RenderErrors()...)
	}
	return errs
}

// Dispose releases the subscriptions of the cell widget and its children.
func (w *CellWidget) Dispose() {
	if !w.dispose() {
		return
	}
	if w.input != nil {
		w.input.Dispose()
	}
	if w.output != nil {
		w.output.Dispose()
	}
}
