package core

import (
	"encoding/json"
	"slices"
	"strconv"

	"pkt.systems/cellpad/internal/signal"
	"pkt.systems/cellpad/schema"
)

// Cell is the closed variant family {*CodeCell, *MarkdownCell, *RawCell}.
// Type is the discriminant; cells are created only by Notebook factories.
type Cell interface {
	Type() schema.CellType
	ID() schema.CellID
	Input() *InputModel
	Tags() []string
	SetTags(tags []string)
	Name() string
	SetName(name string)
	Trusted() bool
	SetTrusted(v bool)
	Active() bool
	Selected() bool
	SetSelected(v bool)
	ReadOnly() bool
	SetReadOnly(v bool)
	// RequestEdit reports that the cell's editor wants focus. The owning
	// notebook makes the cell active and enters edit mode.
	RequestEdit()
	StateChanged() *signal.Signal[StateChange]
	Dispose()
	IsDisposed() bool

	base() *cellBase
}

// cellBase carries the attributes shared by every variant.
type cellBase struct {
	id       schema.CellID
	input    *InputModel
	tags     []string
	name     string
	trusted  bool
	active   bool
	selected bool
	readOnly bool
	extra    map[string]json.RawMessage

	// attachments are carried through untouched for markdown and raw cells.
	attachments json.RawMessage

	stateChanged signal.Signal[StateChange]
	// scope holds subscriptions owned by the cell, including the ones the
	// notebook wires at creation time.
	scope    signal.Scope
	wired    bool
	disposed bool
}

func newCellBase(id schema.CellID, mimetype string) cellBase {
	return cellBase{id: id, input: newInputModel(newEditorModel(mimetype))}
}

func (c *cellBase) base() *cellBase { return c }

// ID returns the nbformat cell id.
func (c *cellBase) ID() schema.CellID { return c.id }

// Input returns the owned input model.
func (c *cellBase) Input() *InputModel { return c.input }

// Source is shorthand for the editor text.
func (c *cellBase) Source() string { return c.input.editor.Text() }

// Tags returns a copy of the tags.
func (c *cellBase) Tags() []string { return slices.Clone(c.tags) }

// SetTags replaces the tags.
func (c *cellBase) SetTags(tags []string) {
	tags = schema.NormalizeTags(tags)
	if slices.Equal(c.tags, tags) {
		return
	}
	old := c.tags
	c.tags = tags
	c.stateChanged.Emit(StateChange{Name: PropTags, Old: old, New: slices.Clone(tags)})
}

// Name returns the optional cell name.
func (c *cellBase) Name() string { return c.name }

// SetName sets the cell name.
func (c *cellBase) SetName(name string) {
	setString(&c.stateChanged, PropName, &c.name, name)
}

// Trusted reports whether the cell's output may be rendered unsanitized.
func (c *cellBase) Trusted() bool { return c.trusted }

// SetTrusted sets the trusted flag.
func (c *cellBase) SetTrusted(v bool) {
	setBool(&c.stateChanged, PropTrusted, &c.trusted, v)
}

// Active reports whether this is the notebook's active cell.
func (c *cellBase) Active() bool { return c.active }

// setActive is written only by Notebook.SetActiveCellIndex.
func (c *cellBase) setActive(v bool) {
	setBool(&c.stateChanged, PropActive, &c.active, v)
}

// Selected reports multi-selection membership.
func (c *cellBase) Selected() bool { return c.selected }

// SetSelected sets multi-selection membership.
func (c *cellBase) SetSelected(v bool) {
	setBool(&c.stateChanged, PropSelected, &c.selected, v)
}

// ReadOnly reports whether the cell rejects edits.
func (c *cellBase) ReadOnly() bool { return c.readOnly }

// SetReadOnly sets read-only on the cell and its editor.
func (c *cellBase) SetReadOnly(v bool) {
	c.input.editor.SetReadOnly(v)
	setBool(&c.stateChanged, PropReadOnly, &c.readOnly, v)
}

// RequestEdit asks the owning notebook to focus this cell in edit mode.
func (c *cellBase) RequestEdit() {
	c.stateChanged.Emit(StateChange{Name: PropMode, Old: schema.ModeCommand, New: schema.ModeEdit})
}

// StateChanged fires on every property change of the cell.
func (c *cellBase) StateChanged() *signal.Signal[StateChange] { return &c.stateChanged }

// Extra returns metadata keys the model does not interpret.
func (c *cellBase) Extra() map[string]json.RawMessage { return c.extra }

// IsDisposed reports whether Dispose has been called.
func (c *cellBase) IsDisposed() bool { return c.disposed }

func (c *cellBase) dispose() bool {
	if c.disposed {
		return false
	}
	c.disposed = true
	c.scope.Release()
	c.input.Dispose()
	c.stateChanged.DisconnectAll()
	return true
}

// Dispose releases the cell and its input. Repeated calls are no-ops.
func (c *cellBase) Dispose() { c.dispose() }

// CodeCell is an executable cell with an output area.
type CodeCell struct {
	cellBase
	output         *OutputAreaModel
	executionCount *int
	collapsed      bool
	scrolled       bool

	// keep the metadata keys of a loaded document even when false.
	collapsedKey bool
	scrolledKey  bool

	runToken uint64
	pending  Future
}

// Type returns schema.CellTypeCode.
func (c *CodeCell) Type() schema.CellType { return schema.CellTypeCode }

// Output returns the owned output area.
func (c *CodeCell) Output() *OutputAreaModel { return c.output }

// SetTrusted marks the cell and its output area trusted.
func (c *CodeCell) SetTrusted(v bool) {
	c.cellBase.SetTrusted(v)
	c.output.SetTrusted(v)
}

// ExecutionCount returns the kernel execution count, or nil if the cell has
// not been executed.
func (c *CodeCell) ExecutionCount() *int {
	if c.executionCount == nil {
		return nil
	}
	n := *c.executionCount
	return &n
}

// SetExecutionCount sets the count and the matching prompt.
func (c *CodeCell) SetExecutionCount(count *int) {
	c.input.SetPrompt(PromptText(count))
	if equalCount(c.executionCount, count) {
		return
	}
	old := c.ExecutionCount()
	if count == nil {
		c.executionCount = nil
	} else {
		n := *count
		c.executionCount = &n
	}
	c.stateChanged.Emit(StateChange{Name: PropExecutionCount, Old: old, New: c.ExecutionCount()})
}

// Collapsed reports whether the output is collapsed.
func (c *CodeCell) Collapsed() bool { return c.collapsed }

// SetCollapsed collapses the cell and its output area.
func (c *CodeCell) SetCollapsed(v bool) {
	c.output.SetCollapsed(v)
	setBool(&c.stateChanged, PropCollapsed, &c.collapsed, v)
}

// Scrolled reports whether the output scrolls.
func (c *CodeCell) Scrolled() bool { return c.scrolled }

// SetScrolled makes the output scroll inside a fixed height.
func (c *CodeCell) SetScrolled(v bool) {
	c.output.SetFixedHeight(v)
	setBool(&c.stateChanged, PropScrolled, &c.scrolled, v)
}

// Pending returns the future of the latest execution, if any.
func (c *CodeCell) Pending() Future { return c.pending }

// nextRun starts a new execution and returns its token. Replies carrying an
// older token are ignored.
func (c *CodeCell) nextRun() uint64 {
	c.runToken++
	return c.runToken
}

func (c *CodeCell) current(token uint64) bool {
	return !c.disposed && c.runToken == token
}

// Dispose releases the cell, its input and its output area.
func (c *CodeCell) Dispose() {
	if c.dispose() {
		c.output.Dispose()
	}
}

// MarkdownCell is a prose cell shown either as source or rendered HTML.
type MarkdownCell struct {
	cellBase
	rendered bool
}

// Type returns schema.CellTypeMarkdown.
func (c *MarkdownCell) Type() schema.CellType { return schema.CellTypeMarkdown }

// Rendered reports whether rendered HTML is shown instead of source.
func (c *MarkdownCell) Rendered() bool { return c.rendered }

// SetRendered toggles the rendered view.
func (c *MarkdownCell) SetRendered(v bool) {
	setBool(&c.stateChanged, PropRendered, &c.rendered, v)
}

// RawCell is passed through unmodified by conversion tools.
type RawCell struct {
	cellBase
	format string
}

// Type returns schema.CellTypeRaw.
func (c *RawCell) Type() schema.CellType { return schema.CellTypeRaw }

// Format returns the target conversion mimetype, if any.
func (c *RawCell) Format() string { return c.format }

// SetFormat sets the target conversion mimetype.
func (c *RawCell) SetFormat(format string) {
	setString(&c.stateChanged, PropFormat, &c.format, format)
}

// PromptText renders an execution count as a prompt marker.
func PromptText(count *int) string {
	if count == nil {
		return schema.PromptIdle
	}
	return strconv.Itoa(*count)
}

func equalCount(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var (
	_ Cell = (*CodeCell)(nil)
	_ Cell = (*MarkdownCell)(nil)
	_ Cell = (*RawCell)(nil)
)
