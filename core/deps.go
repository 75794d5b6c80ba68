package core

import "pkt.systems/pslog"

// NotebookDeps captures optional collaborators of a notebook model.
type NotebookDeps struct {
	Contents   Contents
	Session    Session
	Dispatcher Dispatcher
	Logger     pslog.Logger
}
