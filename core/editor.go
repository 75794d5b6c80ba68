package core

import "pkt.systems/cellpad/internal/signal"

// TextChange reports an editor text edit.
type TextChange struct {
	Old string
	New string
}

// EditorModel is the contract consumed from the text editor component:
// text, mimetype, read-only and line-number state.
type EditorModel struct {
	text        string
	mimetype    string
	readOnly    bool
	lineNumbers bool

	textChanged  signal.Signal[TextChange]
	stateChanged signal.Signal[StateChange]
	disposed     bool
}

func newEditorModel(mimetype string) *EditorModel {
	return &EditorModel{mimetype: mimetype}
}

// Text returns the editor contents.
func (e *EditorModel) Text() string { return e.text }

// SetText replaces the editor contents.
func (e *EditorModel) SetText(text string) {
	if e.text == text {
		return
	}
	old := e.text
	e.text = text
	e.textChanged.Emit(TextChange{Old: old, New: text})
	e.stateChanged.Emit(StateChange{Name: PropText, Old: old, New: text})
}

// Mimetype returns the language mimetype of the editor.
func (e *EditorModel) Mimetype() string { return e.mimetype }

// SetMimetype sets the language mimetype.
func (e *EditorModel) SetMimetype(mimetype string) {
	if e.mimetype == mimetype {
		return
	}
	old := e.mimetype
	e.mimetype = mimetype
	e.stateChanged.Emit(StateChange{Name: PropMimetype, Old: old, New: mimetype})
}

// ReadOnly reports whether edits are rejected by the editor component.
func (e *EditorModel) ReadOnly() bool { return e.readOnly }

// SetReadOnly sets the read-only flag.
func (e *EditorModel) SetReadOnly(v bool) {
	setBool(&e.stateChanged, PropReadOnly, &e.readOnly, v)
}

// LineNumbers reports whether line numbers are shown.
func (e *EditorModel) LineNumbers() bool { return e.lineNumbers }

// SetLineNumbers toggles line numbers.
func (e *EditorModel) SetLineNumbers(v bool) {
	setBool(&e.stateChanged, PropLineNumbers, &e.lineNumbers, v)
}

// TextChanged fires on every text edit.
func (e *EditorModel) TextChanged() *signal.Signal[TextChange] { return &e.textChanged }

// StateChanged fires on every property change, text included.
func (e *EditorModel) StateChanged() *signal.Signal[StateChange] { return &e.stateChanged }

// Dispose disconnects all handlers. Repeated calls are no-ops.
func (e *EditorModel) Dispose() {
	if e == nil || e.disposed {
		return
	}
	e.disposed = true
	e.textChanged.DisconnectAll()
	e.stateChanged.DisconnectAll()
}

// IsDisposed reports whether Dispose has been called.
func (e *EditorModel) IsDisposed() bool { return e.disposed }

func setBool(sig *signal.Signal[StateChange], name string, field *bool, v bool) bool {
	if *field == v {
		return false
	}
	old := *field
	*field = v
	sig.Emit(StateChange{Name: name, Old: old, New: v})
	return true
}

func setString(sig *signal.Signal[StateChange], name string, field *string, v string) bool {
	if *field == v {
		return false
	}
	old := *field
	*field = v
	sig.Emit(StateChange{Name: name, Old: old, New: v})
	return true
}
