package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"pkt.systems/cellpad/schema"
)

func sampleDocument() schema.Document {
	count := 2
	raw := schema.CellDocument{CellType: schema.CellTypeRaw, Source: "\\LaTeX only"}
	raw.Metadata.Format = "text/latex"
	return schema.Document{
		NBFormat:      4,
		NBFormatMinor: 5,
		Metadata: schema.NotebookMetadata{
			KernelSpec:   &schema.KernelSpecInfo{Name: "python3", DisplayName: "Python 3", Language: "python"},
			LanguageInfo: &schema.LanguageInfo{Name: "python"},
		},
		Cells: []schema.CellDocument{
			{ID: "a1", CellType: schema.CellTypeMarkdown, Source: "# Demo\nSome text."},
			{
				ID:             "b2",
				CellType:       schema.CellTypeCode,
				Source:         "print('hi')\n1 + 1",
				ExecutionCount: &count,
				Outputs: []schema.Output{
					schema.Stream("stdout", "hi\n"),
					schema.ExecuteResult(schema.TextBundle(map[string]string{"text/plain": "2"}), 2),
				},
			},
			raw,
		},
	}
}

func TestLookup(t *testing.T) {
	for name, want := range map[string]string{"json": "json", "MD": "markdown", "yml": "yaml"} {
		exp, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %q: %v", name, err)
		}
		if exp.Name() != want {
			t.Fatalf("lookup %q: expected %s, got %s", name, want, exp.Name())
		}
	}
	if _, err := Lookup("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestJSONExportParses(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSON{}).Export(&buf, sampleDocument()); err != nil {
		t.Fatalf("export: %v", err)
	}
	doc, err := schema.ParseDocument(buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Cells) != 3 || doc.Cells[1].Outputs[0].Text != "hi\n" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestYAMLExportKeepsStructure(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAML{}).Export(&buf, sampleDocument()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "source: |-\n") {
		t.Fatalf("expected literal block for multi-line source:\n%s", buf.String())
	}
	var decoded struct {
		NBFormat int `yaml:"nbformat"`
		Metadata struct {
			KernelSpec struct {
				Name string `yaml:"name"`
			} `yaml:"kernelspec"`
		} `yaml:"metadata"`
		Cells []struct {
			ID       string `yaml:"id"`
			CellType string `yaml:"cell_type"`
			Source   string `yaml:"source"`
		} `yaml:"cells"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if decoded.NBFormat != 4 || decoded.Metadata.KernelSpec.Name != "python3" {
		t.Fatalf("unexpected header %+v", decoded)
	}
	if len(decoded.Cells) != 3 || decoded.Cells[1].Source != "print('hi')\n1 + 1" {
		t.Fatalf("unexpected cells %+v", decoded.Cells)
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (Markdown{}).Export(&buf, sampleDocument()); err != nil {
		t.Fatalf("export: %v", err)
	}
	want := strings.Join([]string{
		"# Demo",
		"Some text.",
		"",
		"```python",
		"print('hi')",
		"1 + 1",
		"```",
		"",
		"```text",
		"hi",
		"```",
		"",
		"```text",
		"Out[2]: 2",
		"```",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("unexpected markdown (-want +got):\n%s", diff)
	}
}

func TestMarkdownFenceEscalates(t *testing.T) {
	var b strings.Builder
	writeFence(&b, "", "```nested```")
	if !strings.HasPrefix(b.String(), "````\n") {
		t.Fatalf("expected longer fence, got %q", b.String())
	}
}

func TestExportSkipsUnknownOutputTypes(t *testing.T) {
	data := []byte(`{"cells":[{"id":"c1","cell_type":"code","source":"x","metadata":{},"execution_count":1,"outputs":[
		{"output_type":"future_kind"},
		{"output_type":"stream","name":"stdout","text":"ok\n"}
	]}],"metadata":{},"nbformat":4,"nbformat_minor":5}`)
	doc, err := schema.ParseDocument(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, name := range Names() {
		exp, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		var buf bytes.Buffer
		if err := exp.Export(&buf, doc); err != nil {
			t.Fatalf("export %s: %v", name, err)
		}
		if strings.Contains(buf.String(), "future_kind") || !strings.Contains(buf.String(), "ok") {
			t.Fatalf("unexpected %s export:\n%s", name, buf.String())
		}
	}
}
