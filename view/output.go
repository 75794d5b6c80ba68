package view

import (
	"golang.org/x/net/html/atom"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/schema"
)

// OutputWidget shows one output entry.
type OutputWidget struct {
	element
	renderer *Renderer
	output   schema.Output
	trusted  bool
	err      error
}

// NewOutputWidget renders output under the given trust.
func NewOutputWidget(output schema.Output, trusted bool, renderer *Renderer) *OutputWidget {
	w := &OutputWidget{
		element:  element{node: newElement(atom.Div, ClassOutput)},
		renderer: renderer,
		output:   output,
		trusted:  trusted,
	}
	setAttr(w.node, "data-output-type", string(output.OutputType))
	w.render()
	return w
}

func (w *OutputWidget) render() {
	removeChildren(w.node)
	nodes, err := w.renderer.Output(w.output, w.trusted)
	w.err = err
	toggleClass(w.node, ClassError, err != nil || w.output.OutputType == schema.OutputError)
	if err != nil {
		setText(w.node, err.Error())
		return
	}
	appendChildren(w.node, nodes)
}

// Output returns the rendered entry.
func (w *OutputWidget) Output() schema.Output { return w.output }

// SetTrusted re-renders the entry in place when trust changes.
func (w *OutputWidget) SetTrusted(v bool) {
	if w.trusted == v || w.disposed {
		return
	}
	w.trusted = v
	w.render()
}

// RenderErrors returns the last render failure, if any.
func (w *OutputWidget) RenderErrors() []error {
	if w.err == nil {
		return nil
	}
	return []error{w.err}
}

// Dispose detaches the widget.
func (w *OutputWidget) Dispose() { w.dispose() }

// OutputAreaWidget mirrors an output area model.
type OutputAreaWidget struct {
	*Panel
	model      *core.OutputAreaModel
	reconciler *Reconciler[schema.Output]
}

// NewOutputAreaWidget builds widgets for the current outputs and follows
// the model from then on.
func NewOutputAreaWidget(model *core.OutputAreaModel, renderer *Renderer) *OutputAreaWidget {
	w := &OutputAreaWidget{
		Panel: NewPanel(newElement(atom.Div, ClassOutputArea)),
		model: model,
	}
	w.reconciler = NewReconciler(model.Outputs(), w.Panel, func(o schema.Output) Widget {
		return NewOutputWidget(o, model.Trusted(), renderer)
	})
	toggleClass(w.node, ClassCollapsed, model.Collapsed())
	toggleClass(w.node, ClassFixedHeight, model.FixedHeight())
	toggleClass(w.node, ClassTrusted, model.Trusted())
	w.scope.Add(model.StateChanged().Connect(w.onStateChanged))
	return w
}

func (w *OutputAreaWidget) onStateChanged(change core.StateChange) {
	switch change.Name {
	case core.PropCollapsed:
		toggleClass(w.node, ClassCollapsed, w.model.Collapsed())
	case core.PropFixedHeight:
		toggleClass(w.node, ClassFixedHeight, w.model.FixedHeight())
	case core.PropTrusted:
		toggleClass(w.node, ClassTrusted, w.model.Trusted())
		for _, child := range w.children {
			if ow, ok := child.(*OutputWidget); ok {
				ow.SetTrusted(w.model.Trusted())
			}
		}
	}
}

// Built returns how many output widgets have been constructed.
func (w *OutputAreaWidget) Built() int { return w.reconciler.Built() }

// Dispose stops following the model and disposes the children.
func (w *OutputAreaWidget) Dispose() {
	if w.disposed {
		return
	}
	w.reconciler.Dispose()
	w.Panel.Dispose()
}
