// Package export converts nbformat documents into other file formats.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pkt.systems/cellpad/internal/format"
	"pkt.systems/cellpad/schema"
)

// ErrUnknownFormat indicates an exporter name that is not registered.
var ErrUnknownFormat = errors.New("unknown export format")

// Exporter writes a notebook document in one output format.
type Exporter interface {
	Name() string
	Extension() string
	Export(w io.Writer, doc schema.Document) error
}

var exporters = map[string]Exporter{
	"json":     JSON{},
	"yaml":     YAML{},
	"markdown": Markdown{},
}

// Lookup returns the exporter registered under name. "md" and "yml" are
// accepted as aliases.
func Lookup(name string) (Exporter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "md":
		key = "markdown"
	case "yml":
		key = "yaml"
	}
	exp, ok := exporters[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return exp, nil
}

// Names returns the registered exporter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSON writes the nbformat document itself.
type JSON struct{}

func (JSON) Name() string      { return "json" }
func (JSON) Extension() string { return ".ipynb" }

func (JSON) Export(w io.Writer, doc schema.Document) error {
	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// YAML writes the nbformat document as YAML with the same key structure.
type YAML struct{}

func (YAML) Name() string      { return "yaml" }
func (YAML) Extension() string { return ".yaml" }

func (YAML) Export(w io.Writer, doc schema.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	restyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("export yaml: %w", err)
	}
	return enc.Close()
}

// restyle drops the flow and quoting styles inherited from JSON input and
// switches multi-line strings to literal blocks.
func restyle(node *yaml.Node) {
	node.Style = 0
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		if strings.Contains(node.Value, "\n") && !strings.ContainsAny(node.Value, "\r\t") {
			node.Style = yaml.LiteralStyle
		}
	}
	for _, child := range node.Content {
		restyle(child)
	}
}

// Markdown writes markdown cells verbatim, code cells as fenced blocks with
// their outputs, and raw cells without a format or with a markdown format.
type Markdown struct{}

func (Markdown) Name() string      { return "markdown" }
func (Markdown) Extension() string { return ".md" }

func (Markdown) Export(w io.Writer, doc schema.Document) error {
	lang := language(doc.Metadata)
	plain := &format.PlainRenderer{}
	chunks := make([]string, 0, len(doc.Cells))
	for _, cell := range doc.Cells {
		var b strings.Builder
		source := strings.TrimRight(cell.Source.String(), "\n")
		switch cell.CellType {
		case schema.CellTypeMarkdown:
			b.WriteString(source + "\n")
		case schema.CellTypeRaw:
			if cell.Metadata.Format != "" && cell.Metadata.Format != "text/markdown" {
				continue
			}
			b.WriteString(source + "\n")
		case schema.CellTypeCode:
			writeFence(&b, lang, source)
			for _, out := range cell.Outputs {
				writeOutput(&b, plain, out)
			}
		default:
			continue
		}
		chunks = append(chunks, b.String())
	}
	_, err := io.WriteString(w, strings.Join(chunks, "\n"))
	return err
}

func writeOutput(b *strings.Builder, plain *format.PlainRenderer, out schema.Output) {
	if out.OutputType == schema.OutputDisplayData || out.OutputType == schema.OutputExecuteResult {
		for _, mime := range []string{"image/png", "image/jpeg", "image/gif"} {
			if data, ok := out.Data.Text(mime); ok {
				b.WriteString("\n![output](data:" + mime + ";base64," + strings.Join(strings.Fields(data), "") + ")\n")
				return
			}
		}
		if text, ok := out.Data.Text("text/markdown"); ok {
			b.WriteString("\n" + strings.TrimRight(text, "\n") + "\n")
			return
		}
	}
	lines := plain.FormatOutput(out)
	if len(lines) == 0 {
		return
	}
	b.WriteString("\n")
	writeFence(b, "text", strings.Join(lines, "\n"))
}

func writeFence(b *strings.Builder, lang, body string) {
	fence := "```"
	for strings.Contains(body, fence) {
		fence += "`"
	}
	b.WriteString(fence + lang + "\n")
	if body != "" {
		b.WriteString(body + "\n")
	}
	b.WriteString(fence + "\n")
}

func language(meta schema.NotebookMetadata) string {
	if meta.LanguageInfo != nil && meta.LanguageInfo.Name != "" {
		return meta.LanguageInfo.Name
	}
	if meta.KernelSpec != nil {
		return meta.KernelSpec.Language
	}
	return ""
}
