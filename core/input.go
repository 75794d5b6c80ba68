package core

import "pkt.systems/cellpad/internal/signal"

// InputModel owns a cell's editor and its prompt.
type InputModel struct {
	editor       *EditorModel
	prompt       string
	stateChanged signal.Signal[StateChange]
	disposed     bool
}

func newInputModel(editor *EditorModel) *InputModel {
	return &InputModel{editor: editor, prompt: PromptText(nil)}
}

// Editor returns the owned editor model.
func (i *InputModel) Editor() *EditorModel { return i.editor }

// Prompt returns the prompt marker, e.g. " ", "*" or "3".
func (i *InputModel) Prompt() string { return i.prompt }

// SetPrompt sets the prompt marker.
func (i *InputModel) SetPrompt(prompt string) {
	setString(&i.stateChanged, PropPrompt, &i.prompt, prompt)
}

// StateChanged fires on prompt changes.
func (i *InputModel) StateChanged() *signal.Signal[StateChange] { return &i.stateChanged }

// Dispose disposes the editor. Repeated calls are no-ops.
func (i *InputModel) Dispose() {
	if i == nil || i.disposed {
		return
	}
	i.disposed = true
	i.editor.Dispose()
	i.stateChanged.DisconnectAll()
}

// IsDisposed reports whether Dispose has been called.
func (i *InputModel) IsDisposed() bool { return i.disposed }
