package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputType is the discriminant of an output entry.
type OutputType string

const (
	// OutputStream is text written to stdout or stderr.
	OutputStream OutputType = "stream"
	// OutputExecuteResult is the value of the last expression of a cell.
	OutputExecuteResult OutputType = "execute_result"
	// OutputDisplayData is rich output published during execution.
	OutputDisplayData OutputType = "display_data"
	// OutputError is an exception raised during execution.
	OutputError OutputType = "error"
)

// Stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Known reports whether t is one of the four output types kept in an
// output area.
func (t OutputType) Known() bool {
	switch t {
	case OutputStream, OutputExecuteResult, OutputDisplayData, OutputError:
		return true
	default:
		return false
	}
}

// MimeBundle maps a mimetype to its JSON-encoded payload. Text payloads may
// be a string or a list of strings.
type MimeBundle map[string]json.RawMessage

// Text decodes the payload for mime as text.
func (b MimeBundle) Text(mime string) (string, bool) {
	raw, ok := b[mime]
	if !ok {
		return "", false
	}
	var text MultilineString
	if err := json.Unmarshal(raw, &text); err != nil {
		return string(raw), true
	}
	return string(text), true
}

// Clone returns a deep copy of b.
func (b MimeBundle) Clone() MimeBundle {
	if b == nil {
		return nil
	}
	out := make(MimeBundle, len(b))
	for k, v := range b {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// TextBundle builds a bundle from plain strings.
func TextBundle(pairs map[string]string) MimeBundle {
	out := make(MimeBundle, len(pairs))
	for mime, text := range pairs {
		raw, _ := json.Marshal(text)
		out[mime] = raw
	}
	return out
}

// Output is one entry of an output area: a tagged variant over stream,
// execute_result, display_data and error. Only the fields of the active
// variant are meaningful.
type Output struct {
	OutputType OutputType

	// stream
	Name string
	Text string

	// execute_result, display_data
	Data           MimeBundle
	Metadata       map[string]json.RawMessage
	ExecutionCount *int

	// error
	EName     string
	EValue    string
	Traceback []string
}

// Stream builds a stream output.
func Stream(name, text string) Output {
	return Output{OutputType: OutputStream, Name: name, Text: text}
}

// DisplayData builds a display_data output.
func DisplayData(data MimeBundle) Output {
	return Output{OutputType: OutputDisplayData, Data: data}
}

// ExecuteResult builds an execute_result output.
func ExecuteResult(data MimeBundle, count int) Output {
	return Output{OutputType: OutputExecuteResult, Data: data, ExecutionCount: &count}
}

// ErrorOutput builds an error output.
func ErrorOutput(name, value string, traceback []string) Output {
	return Output{OutputType: OutputError, EName: name, EValue: value, Traceback: traceback}
}

// Clone returns a deep copy of o.
func (o Output) Clone() Output {
	out := o
	out.Data = o.Data.Clone()
	if o.Metadata != nil {
		out.Metadata = make(map[string]json.RawMessage, len(o.Metadata))
		for k, v := range o.Metadata {
			out.Metadata[k] = append(json.RawMessage(nil), v...)
		}
	}
	if o.ExecutionCount != nil {
		n := *o.ExecutionCount
		out.ExecutionCount = &n
	}
	out.Traceback = append([]string(nil), o.Traceback...)
	return out
}

type streamJSON struct {
	OutputType OutputType      `json:"output_type"`
	Name       string          `json:"name"`
	Text       MultilineString `json:"text"`
}

type dataJSON struct {
	OutputType     OutputType                 `json:"output_type"`
	Data           MimeBundle                 `json:"data"`
	Metadata       map[string]json.RawMessage `json:"metadata"`
	ExecutionCount *int                       `json:"execution_count,omitempty"`
}

type resultJSON struct {
	OutputType     OutputType                 `json:"output_type"`
	Data           MimeBundle                 `json:"data"`
	Metadata       map[string]json.RawMessage `json:"metadata"`
	ExecutionCount *int                       `json:"execution_count"`
}

type errorJSON struct {
	OutputType OutputType `json:"output_type"`
	EName      string     `json:"ename"`
	EValue     string     `json:"evalue"`
	Traceback  []string   `json:"traceback"`
}

// MarshalJSON writes the nbformat shape of the active variant.
func (o Output) MarshalJSON() ([]byte, error) {
	switch o.OutputType {
	case OutputStream:
		return json.Marshal(streamJSON{OutputType: o.OutputType, Name: o.Name, Text: MultilineString(o.Text)})
	case OutputExecuteResult:
		return json.Marshal(resultJSON{OutputType: o.OutputType, Data: nonNilBundle(o.Data), Metadata: nonNilMeta(o.Metadata), ExecutionCount: o.ExecutionCount})
	case OutputDisplayData:
		return json.Marshal(dataJSON{OutputType: o.OutputType, Data: nonNilBundle(o.Data), Metadata: nonNilMeta(o.Metadata)})
	case OutputError:
		tb := o.Traceback
		if tb == nil {
			tb = []string{}
		}
		return json.Marshal(errorJSON{OutputType: o.OutputType, EName: o.EName, EValue: o.EValue, Traceback: tb})
	default:
		return nil, fmt.Errorf("marshal output: unknown output_type %q", o.OutputType)
	}
}

// UnmarshalJSON reads an nbformat output. Unknown output types decode to an
// Output carrying only the type.
func (o *Output) UnmarshalJSON(data []byte) error {
	var probe struct {
		OutputType OutputType `json:"output_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	decoded, err := DecodeOutput(probe.OutputType, data)
	if err != nil {
		return err
	}
	*o = decoded
	return nil
}

// DecodeOutput decodes payload as an output of type t. This is how kernel
// message content is tagged with its msg_type.
func DecodeOutput(t OutputType, payload []byte) (Output, error) {
	out := Output{OutputType: t}
	switch t {
	case OutputStream:
		var s streamJSON
		if err := json.Unmarshal(payload, &s); err != nil {
			return Output{}, err
		}
		out.Name = s.Name
		out.Text = string(s.Text)
	case OutputExecuteResult, OutputDisplayData:
		var d dataJSON
		if err := json.Unmarshal(payload, &d); err != nil {
			return Output{}, err
		}
		out.Data = d.Data
		out.Metadata = d.Metadata
		out.ExecutionCount = d.ExecutionCount
	case OutputError:
		var e errorJSON
		if err := json.Unmarshal(payload, &e); err != nil {
			return Output{}, err
		}
		out.EName = e.EName
		out.EValue = e.EValue
		out.Traceback = e.Traceback
	}
	return out, nil
}

// PlainText returns a best-effort text rendering of the output.
func (o Output) PlainText() string {
	switch o.OutputType {
	case OutputStream:
		return o.Text
	case OutputExecuteResult, OutputDisplayData:
		if text, ok := o.Data.Text("text/plain"); ok {
			return text
		}
		return ""
	case OutputError:
		if len(o.Traceback) > 0 {
			return strings.Join(o.Traceback, "\n")
		}
		return fmt.Sprintf("%s: %s", o.EName, o.EValue)
	default:
		return ""
	}
}

func nonNilBundle(b MimeBundle) MimeBundle {
	if b == nil {
		return MimeBundle{}
	}
	return b
}

func nonNilMeta(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return map[string]json.RawMessage{}
	}
	return m
}
