package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Document is an nbformat 4 notebook.
type Document struct {
	Cells         []CellDocument   `json:"cells"`
	Metadata      NotebookMetadata `json:"metadata"`
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
}

// CellDocument is the persisted form of one cell. Outputs and
// ExecutionCount are only written for code cells.
type CellDocument struct {
	ID             CellID
	CellType       CellType
	Source         MultilineString
	Metadata       CellMetadata
	Outputs        []Output
	ExecutionCount *int
	Attachments    json.RawMessage
}

type codeCellJSON struct {
	ID             CellID          `json:"id,omitempty"`
	CellType       CellType        `json:"cell_type"`
	Source         MultilineString `json:"source"`
	Metadata       CellMetadata    `json:"metadata"`
	Outputs        []Output        `json:"outputs"`
	ExecutionCount *int            `json:"execution_count"`
}

type textCellJSON struct {
	ID          CellID          `json:"id,omitempty"`
	CellType    CellType        `json:"cell_type"`
	Source      MultilineString `json:"source"`
	Metadata    CellMetadata    `json:"metadata"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

type anyCellJSON struct {
	ID             CellID          `json:"id"`
	CellType       CellType        `json:"cell_type"`
	Source         MultilineString `json:"source"`
	Metadata       CellMetadata    `json:"metadata"`
	Outputs        []Output        `json:"outputs"`
	ExecutionCount *int            `json:"execution_count"`
	Attachments    json.RawMessage `json:"attachments"`
}

// MarshalJSON writes the variant-specific nbformat shape.
func (c CellDocument) MarshalJSON() ([]byte, error) {
	switch c.CellType {
	case CellTypeCode:
		outputs := c.Outputs
		if outputs == nil {
			outputs = []Output{}
		}
		return json.Marshal(codeCellJSON{
			ID:             c.ID,
			CellType:       c.CellType,
			Source:         c.Source,
			Metadata:       c.Metadata,
			Outputs:        outputs,
			ExecutionCount: c.ExecutionCount,
		})
	case CellTypeMarkdown, CellTypeRaw:
		return json.Marshal(textCellJSON{
			ID:          c.ID,
			CellType:    c.CellType,
			Source:      c.Source,
			Metadata:    c.Metadata,
			Attachments: c.Attachments,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCellType, c.CellType)
	}
}

// UnmarshalJSON reads any nbformat cell. Outputs of unknown type are
// dropped.
func (c *CellDocument) UnmarshalJSON(data []byte) error {
	var raw anyCellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outputs := raw.Outputs
	if outputs != nil {
		outputs = slices.DeleteFunc(outputs, func(o Output) bool { return !o.OutputType.Known() })
	}
	*c = CellDocument{
		ID:             raw.ID,
		CellType:       raw.CellType,
		Source:         raw.Source,
		Metadata:       raw.Metadata,
		Outputs:        outputs,
		ExecutionCount: raw.ExecutionCount,
		Attachments:    raw.Attachments,
	}
	return nil
}

// CellMetadata holds the cell metadata keys the model understands. Other
// keys are kept in Extra so they survive a load/save round trip.
type CellMetadata struct {
	Tags      []string
	Name      string
	Format    string
	Collapsed *bool
	Scrolled  *bool
	Extra     map[string]json.RawMessage
}

var cellMetadataKeys = map[string]struct{}{
	"tags": {}, "name": {}, "format": {}, "collapsed": {}, "scrolled": {},
}

// MarshalJSON merges known keys with Extra.
func (m CellMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		out[k] = v
	}
	if len(m.Tags) > 0 {
		out["tags"] = m.Tags
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.Format != "" {
		out["format"] = m.Format
	}
	if m.Collapsed != nil {
		out["collapsed"] = *m.Collapsed
	}
	if m.Scrolled != nil {
		out["scrolled"] = *m.Scrolled
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known keys from Extra.
func (m *CellMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var meta CellMetadata
	if v, ok := raw["tags"]; ok {
		if err := json.Unmarshal(v, &meta.Tags); err != nil {
			return fmt.Errorf("metadata.tags: %w", err)
		}
	}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &meta.Name); err != nil {
			return fmt.Errorf("metadata.name: %w", err)
		}
	}
	if v, ok := raw["format"]; ok {
		if err := json.Unmarshal(v, &meta.Format); err != nil {
			return fmt.Errorf("metadata.format: %w", err)
		}
	}
	if v, ok := raw["collapsed"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			meta.Collapsed = &b
		}
	}
	if v, ok := raw["scrolled"]; ok {
		// "auto" is legal for scrolled; only booleans are modelled.
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			meta.Scrolled = &b
		} else {
			meta.setExtra("scrolled", v)
		}
	}
	for k, v := range raw {
		if _, known := cellMetadataKeys[k]; known {
			continue
		}
		meta.setExtra(k, v)
	}
	*m = meta
	return nil
}

func (m *CellMetadata) setExtra(key string, value json.RawMessage) {
	if m.Extra == nil {
		m.Extra = make(map[string]json.RawMessage)
	}
	m.Extra[key] = value
}

// NotebookMetadata holds notebook-level metadata.
type NotebookMetadata struct {
	KernelSpec   *KernelSpecInfo
	LanguageInfo *LanguageInfo
	Extra        map[string]json.RawMessage
}

// KernelSpecInfo is the kernelspec entry of notebook metadata.
type KernelSpecInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language,omitempty"`
}

// LanguageInfo describes the kernel language.
type LanguageInfo struct {
	Name              string          `json:"name"`
	Version           string          `json:"version,omitempty"`
	Mimetype          string          `json:"mimetype,omitempty"`
	FileExtension     string          `json:"file_extension,omitempty"`
	PygmentsLexer     string          `json:"pygments_lexer,omitempty"`
	NbconvertExporter string          `json:"nbconvert_exporter,omitempty"`
	CodemirrorMode    json.RawMessage `json:"codemirror_mode,omitempty"`
}

// MarshalJSON merges known keys with Extra.
func (m NotebookMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.KernelSpec != nil {
		out["kernelspec"] = m.KernelSpec
	}
	if m.LanguageInfo != nil {
		out["language_info"] = m.LanguageInfo
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known keys from Extra.
func (m *NotebookMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var meta NotebookMetadata
	for k, v := range raw {
		switch k {
		case "kernelspec":
			var spec KernelSpecInfo
			if err := json.Unmarshal(v, &spec); err != nil {
				return fmt.Errorf("metadata.kernelspec: %w", err)
			}
			meta.KernelSpec = &spec
		case "language_info":
			var info LanguageInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("metadata.language_info: %w", err)
			}
			meta.LanguageInfo = &info
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]json.RawMessage)
			}
			meta.Extra[k] = v
		}
	}
	*m = meta
	return nil
}

// ExtraKeys returns the sorted keys of Extra.
func (m NotebookMetadata) ExtraKeys() []string {
	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseDocument decodes and validates a notebook document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ValidateDocument checks the version and every cell type.
func ValidateDocument(doc Document) error {
	if doc.NBFormat != NBFormatMajor {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, doc.NBFormat)
	}
	for i, cell := range doc.Cells {
		if _, err := NormalizeCellType(string(cell.CellType)); err != nil {
			return fmt.Errorf("%w: cell %d: %v", ErrInvalidDocument, i, err)
		}
		if cell.ID != "" {
			if err := ValidateCellID(cell.ID); err != nil {
				return fmt.Errorf("%w: cell %d: %v", ErrInvalidDocument, i, err)
			}
		}
	}
	return nil
}
