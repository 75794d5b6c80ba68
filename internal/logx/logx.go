package logx

import (
	"context"

	"pkt.systems/cellpad/schema"
	"pkt.systems/pslog"
)

type contextKey int

const notebookKey contextKey = iota

// WithNotebook annotates the logger with the notebook path if present.
func WithNotebook(log pslog.Logger, path string) pslog.Logger {
	if path != "" {
		log = log.With("notebook", path)
	}
	return log
}

// WithCell annotates the logger with a cell id and its position.
func WithCell(log pslog.Logger, id schema.CellID, index int) pslog.Logger {
	if id != "" {
		log = log.With("cell", id)
	}
	if index >= 0 {
		log = log.With("cell_index", index)
	}
	return log
}

// WithKernel annotates the logger with kernel and session identifiers.
func WithKernel(log pslog.Logger, kernelID schema.KernelID, sessionID schema.SessionID) pslog.Logger {
	if kernelID != "" {
		log = log.With("kernel", kernelID)
	}
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// NotebookCtx returns the context logger annotated with the notebook path,
// unless the context already carries that notebook.
func NotebookCtx(ctx context.Context, path string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if path == "" {
		return log
	}
	if current, ok := ctx.Value(notebookKey).(string); ok && current == path {
		return log
	}
	return log.With("notebook", path)
}

// ContextWithNotebook stores the notebook marker on the context for log
// de-duplication.
func ContextWithNotebook(ctx context.Context, path string) context.Context {
	if ctx == nil || path == "" {
		return ctx
	}
	return context.WithValue(ctx, notebookKey, path)
}

// ContextWithNotebookLogger attaches the logger, already annotated with the
// notebook, and the notebook marker to the context.
func ContextWithNotebookLogger(ctx context.Context, log pslog.Logger, path string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, WithNotebook(log, path))
	return ContextWithNotebook(ctx, path)
}
