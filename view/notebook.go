package view

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/schema"
)

// NotebookWidget mirrors a notebook model: one CellWidget per cell, kept in
// order by a reconciler over the notebook's cell list.
type NotebookWidget struct {
	*Panel
	model      *core.Notebook
	reconciler *Reconciler[core.Cell]
}

// NewNotebookWidget builds the widget tree of nb. A nil renderer gets the
// default one.
func NewNotebookWidget(nb *core.Notebook, renderer *Renderer) *NotebookWidget {
	if renderer == nil {
		renderer = NewRenderer()
	}
	w := &NotebookWidget{
		Panel: NewPanel(newElement(atom.Div, ClassNotebook)),
		model: nb,
	}
	w.reconciler = NewReconciler(nb.Cells(), w.Panel, func(cell core.Cell) Widget {
		return NewCellWidget(cell, renderer)
	})
	w.syncState()
	w.scope.Add(nb.StateChanged().Connect(func(change core.StateChange) {
		switch change.Name {
		case core.PropMode, core.PropReadOnly, core.PropPath:
			w.syncState()
		}
	}))
	return w
}

func (w *NotebookWidget) syncState() {
	toggleClass(w.node, ClassEditMode, w.model.Mode() == schema.ModeEdit)
	toggleClass(w.node, ClassReadOnly, w.model.ReadOnly())
	if p := w.model.Path(); p != "" {
		setAttr(w.node, "data-path", p)
	} else {
		removeAttr(w.node, "data-path")
	}
}

// CellWidget returns the widget of the cell at index.
func (w *NotebookWidget) CellWidget(index int) *CellWidget {
	return w.At(index).(*CellWidget)
}

// Built returns how many cell widgets have been constructed.
func (w *NotebookWidget) Built() int { return w.reconciler.Built() }

// Render writes the widget tree as an HTML fragment. Any cell or output that
// failed to render fails the whole call with an error wrapping ErrRender.
func (w *NotebookWidget) Render(out io.Writer) error {
	if errs := w.RenderErrors(); len(errs) > 0 {
		return fmt.Errorf("notebook render: %w", errors.Join(errs...))
	}
	return html.Render(out, w.node)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
.jp-Cell{margin:0.5em 0;padding:0.25em 0.5em;border-left:3px solid transparent}
.jp-Cell.jp-mod-active{border-left-color:#1976d2}
.jp-Cell.jp-mod-selected{background:#e3f2fd}
.jp-InputArea{display:flex;gap:0.5em}
.jp-InputPrompt{color:#303f9f;font-family:monospace;min-width:6em}
.jp-Editor{margin:0;flex:1;background:#f5f5f5;padding:0.25em}
.jp-OutputArea.jp-mod-collapsed{display:none}
.jp-OutputArea.jp-mod-fixedHeight{max-height:24em;overflow-y:auto}
.jp-RenderedText.jp-mod-error{background:#ffebee}
.jp-mod-hidden{display:none}
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderPage writes a standalone HTML page around Render's fragment.
func (w *NotebookWidget) RenderPage(out io.Writer, title string) error {
	var body strings.Builder
	if err := w.Render(&body); err != nil {
		return err
	}
	return pageTemplate.Execute(out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())})
}

// Dispose stops following the model and disposes every cell widget.
func (w *NotebookWidget) Dispose() {
	if w.disposed {
		return
	}
	w.reconciler.Dispose()
	w.Panel.Dispose()
}
