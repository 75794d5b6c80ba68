package view

import (
	"pkt.systems/cellpad/internal/observable"
	"pkt.systems/cellpad/internal/signal"
)

// Factory builds the widget for one model.
type Factory[M any] func(model M) Widget

// Reconciler keeps a panel's children in lock-step with an observable list.
// Each change event touches only the widgets named by the event.
type Reconciler[M any] struct {
	list    *observable.List[M]
	panel   *Panel
	factory Factory[M]
	sub     *signal.Subscription
	built   int
}

// NewReconciler builds widgets for the current list contents and follows
// later changes.
func NewReconciler[M any](list *observable.List[M], panel *Panel, factory Factory[M]) *Reconciler[M] {
	r := &Reconciler[M]{list: list, panel: panel, factory: factory}
	for i, m := range list.Values() {
		r.panel.Insert(i, r.build(m))
	}
	r.sub = list.Changed().Connect(r.apply)
	return r
}

// Built returns the number of widgets constructed so far.
func (r *Reconciler[M]) Built() int { return r.built }

func (r *Reconciler[M]) build(m M) Widget {
	r.built++
	return r.factory(m)
}

func (r *Reconciler[M]) removeAt(index int) {
	if w, err := r.panel.RemoveAt(index); err == nil {
		w.Dispose()
	}
}

func (r *Reconciler[M]) apply(change observable.Change[M]) {
	switch change.Kind {
	case observable.ChangeAdd:
		for i, m := range change.NewValues {
			r.panel.Insert(change.NewIndex+i, r.build(m))
		}
	case observable.ChangeRemove:
		for range change.OldValues {
			r.removeAt(change.OldIndex)
		}
	case observable.ChangeMove:
		_ = r.panel.Move(change.OldIndex, change.NewIndex)
	case observable.ChangeReplace:
		for range change.OldValues {
			r.removeAt(change.OldIndex)
		}
		for i, m := range change.NewValues {
			r.panel.Insert(change.NewIndex+i, r.build(m))
		}
	case observable.ChangeSet:
		r.removeAt(change.OldIndex)
		r.panel.Insert(change.NewIndex, r.build(change.NewValues[0]))
	}
}

// Dispose stops following the list. The panel keeps its children.
func (r *Reconciler[M]) Dispose() {
	r.sub.Release()
}
