package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html/atom"

	"pkt.systems/cellpad/internal/observable"
)

type labelWidget struct {
	element
	label string
}

func newLabelWidget(label string) Widget {
	w := &labelWidget{element: element{node: newElement(atom.Span)}, label: label}
	setText(w.node, label)
	return w
}

func (w *labelWidget) Dispose() { w.dispose() }

func newLabelReconciler(t *testing.T, items ...string) (*observable.List[string], *Panel, *Reconciler[string]) {
	t.Helper()
	list := observable.NewComparableList(items...)
	panel := NewPanel(newElement(atom.Div))
	r := NewReconciler(list, panel, newLabelWidget)
	t.Cleanup(r.Dispose)
	return list, panel, r
}

func panelLabels(p *Panel) []string {
	var out []string
	for c := p.Node().FirstChild; c != nil; c = c.NextSibling {
		out = append(out, TextContent(c))
	}
	return out
}

func assertMirrors(t *testing.T, list *observable.List[string], panel *Panel) {
	t.Helper()
	if panel.Len() != list.Len() {
		t.Fatalf("child count %d != list length %d", panel.Len(), list.Len())
	}
	if diff := cmp.Diff(list.Values(), panelLabels(panel)); diff != "" {
		t.Fatalf("panel out of sync (-list +panel):\n%s", diff)
	}
	for i, w := range panel.Widgets() {
		if w.(*labelWidget).label != list.At(i) {
			t.Fatalf("widget %d backs %q, want %q", i, w.(*labelWidget).label, list.At(i))
		}
	}
}

func TestReconcilerInitialBuild(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a", "b", "c")
	assertMirrors(t, list, panel)
	if r.Built() != 3 {
		t.Fatalf("expected 3 builds, got %d", r.Built())
	}
}

func TestReconcilerAddBuildsOne(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a", "c")
	if err := list.Insert(1, "b"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	assertMirrors(t, list, panel)
	if r.Built() != 3 {
		t.Fatalf("expected exactly one new build, got %d total", r.Built())
	}
}

func TestReconcilerMoveKeepsWidget(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a", "b", "c")
	moved := panel.At(0)
	if err := list.Move(0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertMirrors(t, list, panel)
	if panel.At(2) != moved {
		t.Fatalf("expected moved widget to be reused")
	}
	if r.Built() != 3 {
		t.Fatalf("move must not build, got %d builds", r.Built())
	}
}

func TestReconcilerRemoveDisposesOne(t *testing.T) {
	list, panel, _ := newLabelReconciler(t, "a", "b", "c")
	removed := panel.At(1)
	kept := panel.At(2)
	if _, err := list.RemoveAt(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertMirrors(t, list, panel)
	if !removed.IsDisposed() {
		t.Fatalf("expected removed widget disposed")
	}
	if kept.IsDisposed() || panel.At(1) != kept {
		t.Fatalf("expected following widget untouched")
	}
}

func TestReconcilerSetReplacesInPlace(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a", "b", "c")
	old := panel.At(1)
	first := panel.At(0)
	if _, err := list.Set(1, "B"); err != nil {
		t.Fatalf("set: %v", err)
	}
	assertMirrors(t, list, panel)
	if !old.IsDisposed() || panel.At(0) != first {
		t.Fatalf("expected only the set index rebuilt")
	}
	if r.Built() != 4 {
		t.Fatalf("expected one rebuild, got %d builds", r.Built())
	}
}

func TestReconcilerReplaceBatch(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a", "b", "c", "d")
	olds := panel.Widgets()
	if _, err := list.Replace(1, 2, "x", "y", "z"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	assertMirrors(t, list, panel)
	if !olds[1].IsDisposed() || !olds[2].IsDisposed() {
		t.Fatalf("expected replaced widgets disposed")
	}
	if olds[0].IsDisposed() || olds[3].IsDisposed() {
		t.Fatalf("expected untouched widgets kept")
	}
	if r.Built() != 7 {
		t.Fatalf("expected 3 new builds, got %d total", r.Built())
	}
}

func TestReconcilerClearAndAssign(t *testing.T) {
	list, panel, _ := newLabelReconciler(t, "a", "b")
	list.Assign("q")
	assertMirrors(t, list, panel)
	list.Clear()
	assertMirrors(t, list, panel)
	if panel.Node().FirstChild != nil {
		t.Fatalf("expected no element children")
	}
}

func TestReconcilerDisposeStopsFollowing(t *testing.T) {
	list, panel, r := newLabelReconciler(t, "a")
	r.Dispose()
	list.Add("b")
	if panel.Len() != 1 {
		t.Fatalf("expected disposed reconciler to ignore changes")
	}
}
