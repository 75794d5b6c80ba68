package schema

import (
	"encoding/json"
	"time"
)

// Kernel message types consumed or produced by the front-end.
const (
	MsgExecuteRequest    = "execute_request"
	MsgExecuteReply      = "execute_reply"
	MsgKernelInfoRequest = "kernel_info_request"
	MsgKernelInfoReply   = "kernel_info_reply"
	MsgStatus            = "status"
	MsgExecuteInput      = "execute_input"
	MsgClearOutput       = "clear_output"
	MsgStream            = "stream"
	MsgExecuteResult     = "execute_result"
	MsgDisplayData       = "display_data"
	MsgError             = "error"
)

// Kernel channels.
const (
	ChannelShell   = "shell"
	ChannelIOPub   = "iopub"
	ChannelStdin   = "stdin"
	ChannelControl = "control"
)

// ProtocolVersion is the messaging protocol version written in headers.
const ProtocolVersion = "5.3"

// Header is a kernel message header.
type Header struct {
	MsgID    MsgID     `json:"msg_id,omitempty"`
	MsgType  string    `json:"msg_type,omitempty"`
	Session  SessionID `json:"session,omitempty"`
	Username string    `json:"username,omitempty"`
	Date     string    `json:"date,omitempty"`
	Version  string    `json:"version,omitempty"`
}

// Message is a kernel wire message as carried over the websocket channels
// endpoint.
type Message struct {
	Header       Header                     `json:"header"`
	ParentHeader Header                     `json:"parent_header"`
	Metadata     map[string]json.RawMessage `json:"metadata"`
	Content      json.RawMessage            `json:"content"`
	Channel      string                     `json:"channel,omitempty"`
	Buffers      []json.RawMessage          `json:"buffers,omitempty"`
}

// NewMessage builds a request message with a fresh header.
func NewMessage(id MsgID, session SessionID, username, msgType, channel string, content any) (Message, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Header: Header{
			MsgID:    id,
			MsgType:  msgType,
			Session:  session,
			Username: username,
			Date:     time.Now().UTC().Format(time.RFC3339Nano),
			Version:  ProtocolVersion,
		},
		Metadata: map[string]json.RawMessage{},
		Content:  payload,
		Channel:  channel,
	}, nil
}

// ExecuteRequest is the content of an execute_request.
type ExecuteRequest struct {
	Code            string            `json:"code"`
	Silent          bool              `json:"silent"`
	StoreHistory    bool              `json:"store_history"`
	UserExpressions map[string]string `json:"user_expressions"`
	AllowStdin      bool              `json:"allow_stdin"`
	StopOnError     bool              `json:"stop_on_error"`
}

// NewExecuteRequest returns a request with the notebook's fixed policy:
// non-silent, stored in history, stop on first error, stdin allowed.
func NewExecuteRequest(code string) ExecuteRequest {
	return ExecuteRequest{
		Code:            code,
		Silent:          false,
		StoreHistory:    true,
		UserExpressions: map[string]string{},
		AllowStdin:      true,
		StopOnError:     true,
	}
}

// Reply statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// ExecuteReply is the content of an execute_reply.
type ExecuteReply struct {
	Status         string   `json:"status"`
	ExecutionCount int      `json:"execution_count"`
	EName          string   `json:"ename,omitempty"`
	EValue         string   `json:"evalue,omitempty"`
	Traceback      []string `json:"traceback,omitempty"`
}

// ClearOutput is the content of a clear_output message.
type ClearOutput struct {
	Wait bool `json:"wait"`
}

// KernelStatus is the content of a status message.
type KernelStatus struct {
	ExecutionState string `json:"execution_state"`
}

// KernelInfo is the content of a kernel_info_reply.
type KernelInfo struct {
	Status                string       `json:"status"`
	ProtocolVersion       string       `json:"protocol_version"`
	Implementation        string       `json:"implementation"`
	ImplementationVersion string       `json:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info"`
	Banner                string       `json:"banner"`
}

// ContentsModel is the payload exchanged with a contents manager.
type ContentsModel struct {
	Name         string          `json:"name,omitempty"`
	Path         string          `json:"path,omitempty"`
	Type         string          `json:"type"`
	Format       string          `json:"format,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	LastModified string          `json:"last_modified,omitempty"`
}
