package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"pkt.systems/cellpad/schema"
)

// Line prefixes used when cells are printed as plain text.
const (
	OutputMarker = "│ "
	ErrorMarker  = "! "
)

// PlainRenderer formats notebook cells and outputs as plain text lines.
type PlainRenderer struct {
	// MarkOutputs prefixes output lines with OutputMarker / ErrorMarker.
	MarkOutputs bool
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{MarkOutputs: true}
}

// InputPrompt returns the code cell prompt, e.g. "In [3]:".
func InputPrompt(count *int) string {
	if count == nil {
		return "In [ ]:"
	}
	return "In [" + strconv.Itoa(*count) + "]:"
}

// FormatCell converts a cell into user-facing lines: header, source and,
// for code cells, its outputs.
func (p *PlainRenderer) FormatCell(cell schema.CellDocument) []string {
	var lines []string
	switch cell.CellType {
	case schema.CellTypeCode:
		lines = append(lines, InputPrompt(cell.ExecutionCount))
		lines = append(lines, splitLines(cell.Source.String())...)
		for _, out := range cell.Outputs {
			lines = append(lines, p.FormatOutput(out)...)
		}
	case schema.CellTypeMarkdown:
		lines = append(lines, splitLines(cell.Source.String())...)
	case schema.CellTypeRaw:
		label := "raw"
		if cell.Metadata.Format != "" {
			label = "raw " + cell.Metadata.Format
		}
		lines = append(lines, "["+label+"]")
		lines = append(lines, splitLines(cell.Source.String())...)
	default:
		lines = append(lines, fmt.Sprintf("[%s cell]", cell.CellType))
	}
	return lines
}

// FormatOutput converts a single output into lines.
func (p *PlainRenderer) FormatOutput(out schema.Output) []string {
	switch out.OutputType {
	case schema.OutputStream:
		lines := splitLines(strings.TrimSuffix(resolveCarriageReturns(out.Text), "\n"))
		if out.Name == schema.StreamStderr {
			return p.mark(ErrorMarker, lines)
		}
		return p.mark(OutputMarker, lines)
	case schema.OutputError:
		return p.mark(ErrorMarker, formatError(out))
	case schema.OutputExecuteResult, schema.OutputDisplayData:
		lines := formatBundle(out.Data)
		if out.OutputType == schema.OutputExecuteResult && out.ExecutionCount != nil && len(lines) > 0 {
			lines[0] = fmt.Sprintf("Out[%d]: %s", *out.ExecutionCount, lines[0])
		}
		return p.mark(OutputMarker, lines)
	default:
		return nil
	}
}

func (p *PlainRenderer) mark(marker string, lines []string) []string {
	if !p.MarkOutputs {
		return lines
	}
	return markLines(marker, lines)
}

func formatError(out schema.Output) []string {
	if len(out.Traceback) == 0 {
		return []string{fmt.Sprintf("%s: %s", out.EName, out.EValue)}
	}
	var lines []string
	for _, frame := range out.Traceback {
		lines = append(lines, splitLines(StripANSI(frame))...)
	}
	return lines
}

func formatBundle(data schema.MimeBundle) []string {
	if text, ok := data.Text("text/plain"); ok {
		return splitLines(strings.TrimSuffix(text, "\n"))
	}
	if len(data) == 0 {
		return nil
	}
	mimes := make([]string, 0, len(data))
	for mime := range data {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)
	return []string{fmt.Sprintf("<%s>", strings.Join(mimes, ", "))}
}

// StripANSI removes terminal escape sequences, as found in kernel tracebacks.
func StripANSI(text string) string {
	return xansi.Strip(text)
}

// resolveCarriageReturns keeps only the text after the last '\r' on each line.
func resolveCarriageReturns(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if idx := strings.LastIndexByte(line, '\r'); idx >= 0 {
			lines[i] = line[idx+1:]
		}
	}
	return strings.Join(lines, "\n")
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}
