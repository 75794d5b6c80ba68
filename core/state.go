package core

// StateChange reports a property change on a model: the property name and
// its old and new values. It is emitted only when the value differs.
type StateChange struct {
	Name string
	Old  any
	New  any
}

// Property names carried by StateChange.
const (
	PropText            = "text"
	PropMimetype        = "mimetype"
	PropReadOnly        = "readOnly"
	PropLineNumbers     = "lineNumbers"
	PropPrompt          = "prompt"
	PropTags            = "tags"
	PropName            = "name"
	PropTrusted         = "trusted"
	PropActive          = "active"
	PropSelected        = "selected"
	PropCollapsed       = "collapsed"
	PropScrolled        = "scrolled"
	PropFixedHeight     = "fixedHeight"
	PropExecutionCount  = "executionCount"
	PropRendered        = "rendered"
	PropFormat          = "format"
	PropMode            = "mode"
	PropActiveCellIndex = "activeCellIndex"
	PropDirty           = "dirty"
	PropDefaultMimetype = "defaultMimetype"
	PropMetadata        = "metadata"
	PropSession         = "session"
	PropPath            = "path"
)
