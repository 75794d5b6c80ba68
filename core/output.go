package core

import (
	"pkt.systems/cellpad/internal/observable"
	"pkt.systems/cellpad/internal/signal"
	"pkt.systems/cellpad/schema"
)

// OutputAreaModel holds the outputs of one code cell in arrival order.
// Content changes surface only through Outputs().Changed(); the scalar flags
// surface through StateChanged.
type OutputAreaModel struct {
	outputs     *observable.List[schema.Output]
	trusted     bool
	collapsed   bool
	fixedHeight bool
	clearNext   bool

	stateChanged signal.Signal[StateChange]
	disposed     bool
}

func newOutputAreaModel() *OutputAreaModel {
	return &OutputAreaModel{
		// Outputs are values; no two entries are considered equal.
		outputs: observable.NewList(func(a, b schema.Output) bool { return false }),
	}
}

// Outputs returns the observable output list.
func (o *OutputAreaModel) Outputs() *observable.List[schema.Output] { return o.outputs }

// Len returns the number of outputs.
func (o *OutputAreaModel) Len() int { return o.outputs.Len() }

// Values returns a copy of the outputs.
func (o *OutputAreaModel) Values() []schema.Output { return o.outputs.Values() }

// Add appends output, applying a pending deferred clear first and merging
// consecutive stream text of the same channel into the last entry. Output
// types other than stream, execute_result, display_data and error are
// dropped silently.
func (o *OutputAreaModel) Add(output schema.Output) {
	if o.disposed {
		return
	}
	if output.OutputType == schema.OutputStream {
		output.Text = schema.NormalizeNewlines(output.Text)
	}
	if o.clearNext {
		o.clearNext = false
		if output.OutputType.Known() {
			o.outputs.Assign(output)
		} else if o.outputs.Len() > 0 {
			o.outputs.Clear()
		}
		return
	}
	if output.OutputType == schema.OutputStream && o.outputs.Len() > 0 {
		last := o.outputs.At(-1)
		if last.OutputType == schema.OutputStream && last.Name == output.Name {
			merged := last
			merged.Text = last.Text + output.Text
			_, _ = o.outputs.Set(-1, merged)
			return
		}
	}
	if !output.OutputType.Known() {
		return
	}
	o.outputs.Add(output)
}

// Clear removes all outputs. With wait set, clearing is deferred until the
// next Add so the area never shows an empty state in between.
func (o *OutputAreaModel) Clear(wait bool) {
	if o.disposed {
		return
	}
	if wait {
		o.clearNext = true
		return
	}
	o.clearNext = false
	if o.outputs.Len() == 0 {
		return
	}
	o.outputs.Clear()
}

// ClearPending reports whether a deferred clear is waiting for the next Add.
func (o *OutputAreaModel) ClearPending() bool { return o.clearNext }

// Trusted reports whether outputs may be rendered unsanitized.
func (o *OutputAreaModel) Trusted() bool { return o.trusted }

// SetTrusted sets the trusted flag.
func (o *OutputAreaModel) SetTrusted(v bool) {
	setBool(&o.stateChanged, PropTrusted, &o.trusted, v)
}

// Collapsed reports whether the area is collapsed.
func (o *OutputAreaModel) Collapsed() bool { return o.collapsed }

// SetCollapsed sets the collapsed flag.
func (o *OutputAreaModel) SetCollapsed(v bool) {
	setBool(&o.stateChanged, PropCollapsed, &o.collapsed, v)
}

// FixedHeight reports whether the area scrolls inside a fixed height.
func (o *OutputAreaModel) FixedHeight() bool { return o.fixedHeight }

// SetFixedHeight sets the fixed-height flag.
func (o *OutputAreaModel) SetFixedHeight(v bool) {
	setBool(&o.stateChanged, PropFixedHeight, &o.fixedHeight, v)
}

// StateChanged fires on flag changes.
func (o *OutputAreaModel) StateChanged() *signal.Signal[StateChange] { return &o.stateChanged }

// Dispose disconnects all handlers. Repeated calls are no-ops.
func (o *OutputAreaModel) Dispose() {
	if o == nil || o.disposed {
		return
	}
	o.disposed = true
	o.outputs.Changed().DisconnectAll()
	o.stateChanged.DisconnectAll()
}

// IsDisposed reports whether Dispose has been called.
func (o *OutputAreaModel) IsDisposed() bool { return o.disposed }

func cloneOutputs(outputs []schema.Output) []schema.Output {
	if len(outputs) == 0 {
		return nil
	}
	out := make([]schema.Output, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, o.Clone())
	}
	return out
}
