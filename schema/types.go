package schema

// CellID identifies a cell within a notebook (nbformat 4.5 cell id).
type CellID string

// KernelID identifies a running kernel on the server.
type KernelID string

// SessionID identifies a kernel messaging session.
type SessionID string

// MsgID identifies a kernel message.
type MsgID string

// CellType is the discriminant of the closed cell variant family.
type CellType string

const (
	// CellTypeCode is an executable cell with an output area.
	CellTypeCode CellType = "code"
	// CellTypeMarkdown is a prose cell rendered from markdown.
	CellTypeMarkdown CellType = "markdown"
	// CellTypeRaw is passed through unmodified by conversion tools.
	CellTypeRaw CellType = "raw"
)

// Mode is the notebook interaction mode.
type Mode string

const (
	// ModeCommand routes keystrokes to notebook commands.
	ModeCommand Mode = "command"
	// ModeEdit routes keystrokes to the active cell's editor.
	ModeEdit Mode = "edit"
)

// ContentsTypeNotebook is the contents model type for notebooks.
const ContentsTypeNotebook = "notebook"

// Prompt markers shown in the input prompt of a code cell.
const (
	// PromptIdle marks a cell that has not been executed.
	PromptIdle = " "
	// PromptRunning marks a cell with an outstanding execution.
	PromptRunning = "*"
)

// NBFormatMajor and NBFormatMinor are the document versions written on save.
const (
	NBFormatMajor = 4
	NBFormatMinor = 5
)
