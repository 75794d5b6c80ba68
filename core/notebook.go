package core

import (
	"context"
	"encoding/json"
	"slices"

	"pkt.systems/cellpad/internal/logx"
	"pkt.systems/cellpad/internal/observable"
	"pkt.systems/cellpad/internal/signal"
	"pkt.systems/cellpad/schema"
	"pkt.systems/pslog"
)

// Notebook owns an ordered list of cells and the state around them: the
// active cell, interaction mode, read-only and dirty flags, metadata and
// the optional kernel session.
type Notebook struct {
	cfg             schema.NotebookConfig
	cells           *observable.List[Cell]
	activeCellIndex int
	mode            schema.Mode
	defaultMimetype string
	readOnly        bool
	dirty           bool
	metadata        schema.NotebookMetadata
	nbformatMinor   int
	path            string

	session    Session
	contents   Contents
	dispatcher Dispatcher
	logger     pslog.Logger

	clipboard    []Cell
	stateChanged signal.Signal[StateChange]
	scope        signal.Scope
	loading      bool
	disposed     bool
}

// NewNotebook constructs an empty notebook.
func NewNotebook(cfg schema.NotebookConfig, deps NotebookDeps) (*Notebook, error) {
	normalized, err := schema.NormalizeNotebookConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = Immediate{}
	}
	nb := &Notebook{
		cfg:             normalized,
		cells:           observable.NewList(func(a, b Cell) bool { return a == b }),
		activeCellIndex: -1,
		mode:            schema.ModeCommand,
		defaultMimetype: normalized.DefaultMimetype,
		nbformatMinor:   schema.NBFormatMinor,
		session:         deps.Session,
		contents:        deps.Contents,
		dispatcher:      dispatcher,
		logger:          logger,
	}
	nb.scope.Add(nb.cells.Changed().Connect(nb.onCellsChanged))
	return nb, nil
}

// Cells returns the observable cell list. Only cells created by this
// notebook's factories may be inserted.
func (nb *Notebook) Cells() *observable.List[Cell] { return nb.cells }

// Len returns the number of cells.
func (nb *Notebook) Len() int { return nb.cells.Len() }

// Cell returns the cell at index, or nil.
func (nb *Notebook) Cell(index int) Cell { return nb.cells.At(index) }

// StateChanged fires on notebook property changes.
func (nb *Notebook) StateChanged() *signal.Signal[StateChange] { return &nb.stateChanged }

// Logger returns the notebook logger annotated with its path.
func (nb *Notebook) Logger() pslog.Logger {
	return logx.WithNotebook(nb.logger, nb.path)
}

// ActiveCellIndex returns the active cell index, or -1 when empty.
func (nb *Notebook) ActiveCellIndex() int { return nb.activeCellIndex }

// ActiveCell returns the active cell, or nil.
func (nb *Notebook) ActiveCell() Cell {
	if nb.activeCellIndex < 0 {
		return nil
	}
	return nb.cells.At(nb.activeCellIndex)
}

// SetActiveCellIndex clamps index into [0, Len()-1] and rewrites every
// cell's active flag, even when the index is unchanged. This is the only
// writer of cell active flags.
func (nb *Notebook) SetActiveCellIndex(index int) {
	n := nb.cells.Len()
	if index > n-1 {
		index = n - 1
	}
	if index < 0 && n > 0 {
		index = 0
	}
	if n == 0 {
		index = -1
	}
	old := nb.activeCellIndex
	nb.activeCellIndex = index
	for i, cell := range nb.cells.Values() {
		cell.base().setActive(i == index)
	}
	if old != index {
		nb.stateChanged.Emit(StateChange{Name: PropActiveCellIndex, Old: old, New: index})
	}
}

// Mode returns the interaction mode.
func (nb *Notebook) Mode() schema.Mode { return nb.mode }

// SetMode switches between command and edit mode. Entering edit mode on a
// rendered markdown cell shows its source again.
func (nb *Notebook) SetMode(mode schema.Mode) {
	if mode != schema.ModeEdit {
		mode = schema.ModeCommand
	}
	if mode == schema.ModeEdit {
		if md, ok := nb.ActiveCell().(*MarkdownCell); ok && !nb.readOnly {
			md.SetRendered(false)
		}
	}
	if nb.mode == mode {
		return
	}
	old := nb.mode
	nb.mode = mode
	nb.stateChanged.Emit(StateChange{Name: PropMode, Old: old, New: mode})
}

// DefaultMimetype returns the mimetype given to new code cells.
func (nb *Notebook) DefaultMimetype() string { return nb.defaultMimetype }

// SetDefaultMimetype sets the mimetype given to new code cells.
func (nb *Notebook) SetDefaultMimetype(mimetype string) {
	if mimetype == "" {
		mimetype = nb.cfg.DefaultMimetype
	}
	setString(&nb.stateChanged, PropDefaultMimetype, &nb.defaultMimetype, mimetype)
}

// ReadOnly reports whether the notebook rejects edits and execution.
func (nb *Notebook) ReadOnly() bool { return nb.readOnly }

// SetReadOnly sets read-only on the notebook and every current cell. Cells
// created later inherit the flag from the factories.
func (nb *Notebook) SetReadOnly(v bool) {
	changed := setBool(&nb.stateChanged, PropReadOnly, &nb.readOnly, v)
	for _, cell := range nb.cells.Values() {
		cell.SetReadOnly(v)
	}
	if changed {
		nb.Logger().Debug("notebook read-only changed", "read_only", v)
	}
}

// Dirty reports unsaved changes.
func (nb *Notebook) Dirty() bool { return nb.dirty }

// SetDirty sets the unsaved-changes flag.
func (nb *Notebook) SetDirty(v bool) {
	setBool(&nb.stateChanged, PropDirty, &nb.dirty, v)
}

func (nb *Notebook) markDirty() {
	if nb.loading || nb.disposed {
		return
	}
	nb.SetDirty(true)
}

// Metadata returns the notebook metadata.
func (nb *Notebook) Metadata() schema.NotebookMetadata { return nb.metadata }

// SetMetadata replaces the notebook metadata. A language_info mimetype
// becomes the default mimetype of new code cells.
func (nb *Notebook) SetMetadata(meta schema.NotebookMetadata) {
	old := nb.metadata
	nb.metadata = meta
	if meta.LanguageInfo != nil && meta.LanguageInfo.Mimetype != "" {
		nb.SetDefaultMimetype(meta.LanguageInfo.Mimetype)
	}
	nb.stateChanged.Emit(StateChange{Name: PropMetadata, Old: old, New: meta})
}

// Path returns the contents path the notebook saves to.
func (nb *Notebook) Path() string { return nb.path }

// SetPath sets the contents path.
func (nb *Notebook) SetPath(path string) {
	setString(&nb.stateChanged, PropPath, &nb.path, path)
}

// Session returns the attached kernel session, or nil.
func (nb *Notebook) Session() Session { return nb.session }

// SetSession attaches or detaches (nil) a kernel session.
func (nb *Notebook) SetSession(session Session) {
	if nb.session == session {
		return
	}
	old := nb.session
	nb.session = session
	nb.stateChanged.Emit(StateChange{Name: PropSession, Old: old, New: session})
}

// Dispatcher returns the dispatcher kernel replies are posted through.
func (nb *Notebook) Dispatcher() Dispatcher { return nb.dispatcher }

// CreateCodeCell returns a new code cell. When source is given its trusted
// flag, text and tags are cloned; outputs, collapsed and scrolled are
// cloned only from a code cell source.
func (nb *Notebook) CreateCodeCell(source Cell) *CodeCell {
	mimetype := nb.defaultMimetype
	if src, ok := source.(*CodeCell); ok {
		mimetype = src.input.editor.Mimetype()
	}
	cell := &CodeCell{cellBase: newCellBase(newCellID(), mimetype), output: newOutputAreaModel()}
	nb.initCell(cell, source)
	if src, ok := source.(*CodeCell); ok {
		cell.SetCollapsed(src.collapsed)
		cell.SetScrolled(src.scrolled)
		if outputs := cloneOutputs(src.output.Values()); len(outputs) > 0 {
			cell.output.Outputs().Assign(outputs...)
		}
	}
	return cell
}

// CreateMarkdownCell returns a new markdown cell, cloning from source as
// CreateCodeCell does; rendered is cloned only from a markdown source.
func (nb *Notebook) CreateMarkdownCell(source Cell) *MarkdownCell {
	cell := &MarkdownCell{cellBase: newCellBase(newCellID(), MimetypeMarkdown)}
	nb.initCell(cell, source)
	if src, ok := source.(*MarkdownCell); ok {
		cell.SetRendered(src.rendered)
	}
	return cell
}

// CreateRawCell returns a new raw cell, cloning from source as
// CreateCodeCell does; format is cloned only from a raw source.
func (nb *Notebook) CreateRawCell(source Cell) *RawCell {
	cell := &RawCell{cellBase: newCellBase(newCellID(), MimetypeRaw)}
	nb.initCell(cell, source)
	if src, ok := source.(*RawCell); ok {
		cell.SetFormat(src.format)
	}
	return cell
}

// CreateCell dispatches to the factory for cellType.
func (nb *Notebook) CreateCell(cellType schema.CellType, source Cell) (Cell, error) {
	switch cellType {
	case schema.CellTypeCode:
		return nb.CreateCodeCell(source), nil
	case schema.CellTypeMarkdown:
		return nb.CreateMarkdownCell(source), nil
	case schema.CellTypeRaw:
		return nb.CreateRawCell(source), nil
	default:
		return nil, schema.ErrInvalidCellType
	}
}

// Editor mimetypes of non-code cells.
const (
	MimetypeMarkdown = "text/x-ipythongfm"
	MimetypeRaw      = "text/plain"
)

func (nb *Notebook) initCell(cell Cell, source Cell) {
	b := cell.base()
	if source != nil {
		src := source.base()
		cell.SetTrusted(src.trusted)
		b.input.editor.SetText(src.input.editor.Text())
		b.tags = slices.Clone(src.tags)
		b.extra = cloneRaw(src.extra)
	}
	cell.SetReadOnly(nb.readOnly)
	b.scope.Add(b.input.editor.TextChanged().Connect(func(TextChange) {
		nb.markDirty()
	}))
}

// onCellsChanged keeps the active index, cell wiring and disposal in step
// with the cell list.
func (nb *Notebook) onCellsChanged(change observable.Change[Cell]) {
	switch change.Kind {
	case observable.ChangeAdd:
		for _, cell := range change.NewValues {
			nb.wireCell(cell)
		}
		nb.SetActiveCellIndex(change.NewIndex)
	case observable.ChangeRemove:
		nb.disposeDetached(change.OldValues)
		nb.SetActiveCellIndex(nb.activeCellIndex)
	case observable.ChangeMove:
		nb.SetActiveCellIndex(movedIndex(nb.activeCellIndex, change.OldIndex, change.NewIndex))
	case observable.ChangeReplace, observable.ChangeSet:
		nb.disposeDetached(change.OldValues)
		for _, cell := range change.NewValues {
			nb.wireCell(cell)
		}
		nb.SetActiveCellIndex(nb.activeCellIndex)
	}
	nb.markDirty()
}

func (nb *Notebook) wireCell(cell Cell) {
	b := cell.base()
	if b.wired {
		return
	}
	b.wired = true
	b.scope.Add(cell.StateChanged().Connect(func(change StateChange) {
		if change.Name != PropMode || change.New != schema.ModeEdit {
			return
		}
		index := nb.cells.IndexOf(cell)
		if index < 0 {
			return
		}
		nb.SetActiveCellIndex(index)
		nb.SetMode(schema.ModeEdit)
	}))
}

func (nb *Notebook) disposeDetached(cells []Cell) {
	for _, cell := range cells {
		if nb.cells.IndexOf(cell) >= 0 {
			continue
		}
		cell.Dispose()
	}
}

func movedIndex(active, from, to int) int {
	switch {
	case active == from:
		return to
	case from < active && active <= to:
		return active - 1
	case to <= active && active < from:
		return active + 1
	default:
		return active
	}
}

// Dispose disposes every cell and disconnects all handlers. Repeated calls
// are no-ops.
func (nb *Notebook) Dispose() {
	if nb.disposed {
		return
	}
	nb.disposed = true
	nb.scope.Release()
	for _, cell := range nb.cells.Values() {
		cell.Dispose()
	}
	for _, cell := range nb.clipboard {
		cell.Dispose()
	}
	nb.clipboard = nil
	nb.cells.Changed().DisconnectAll()
	nb.stateChanged.DisconnectAll()
}

// IsDisposed reports whether Dispose has been called.
func (nb *Notebook) IsDisposed() bool { return nb.disposed }

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
