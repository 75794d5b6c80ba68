package schema

import "errors"

var (
	// ErrInvalidCellType indicates a cell_type outside code/markdown/raw.
	ErrInvalidCellType = errors.New("invalid cell type")
	// ErrInvalidDocument indicates a malformed notebook document.
	ErrInvalidDocument = errors.New("invalid notebook document")
	// ErrUnsupportedFormat indicates an nbformat major version that cannot be read.
	ErrUnsupportedFormat = errors.New("unsupported nbformat version")
	// ErrInvalidCellID indicates a cell id outside [a-zA-Z0-9-_]{1,64}.
	ErrInvalidCellID = errors.New("invalid cell id")
	// ErrNotebookReadOnly indicates a mutation on a read-only notebook.
	ErrNotebookReadOnly = errors.New("notebook is read-only")
	// ErrNoContents indicates no contents manager is attached.
	ErrNoContents = errors.New("no contents manager")
	// ErrNoPath indicates the notebook has no path to save to.
	ErrNoPath = errors.New("notebook path not set")
	// ErrSessionClosed indicates the kernel session is closed.
	ErrSessionClosed = errors.New("kernel session closed")
	// ErrKernelNotFound indicates the requested kernel does not exist.
	ErrKernelNotFound = errors.New("kernel not found")
	// ErrNotFound indicates the requested contents path does not exist.
	ErrNotFound = errors.New("not found")
)
