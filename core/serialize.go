package core

import (
	"encoding/json"
	"fmt"

	"pkt.systems/cellpad/schema"
)

// ToDocument serializes the notebook to an nbformat 4 document.
func (nb *Notebook) ToDocument() schema.Document {
	cells := make([]schema.CellDocument, 0, nb.cells.Len())
	for _, cell := range nb.cells.Values() {
		cells = append(cells, nb.cellDocument(cell))
	}
	return schema.Document{
		Cells:         cells,
		Metadata:      nb.metadata,
		NBFormat:      schema.NBFormatMajor,
		NBFormatMinor: nb.nbformatMinor,
	}
}

func (nb *Notebook) cellDocument(cell Cell) schema.CellDocument {
	b := cell.base()
	doc := schema.CellDocument{
		CellType: cell.Type(),
		Source:   schema.MultilineString(b.input.editor.Text()),
		Metadata: schema.CellMetadata{
			Tags:  slicesCloneNonEmpty(b.tags),
			Name:  b.name,
			Extra: cloneRaw(b.extra),
		},
	}
	// Cell ids exist from nbformat 4.5 on.
	if nb.nbformatMinor >= 5 {
		doc.ID = b.id
	}
	switch c := cell.(type) {
	case *CodeCell:
		doc.Outputs = cloneOutputs(c.output.Values())
		doc.ExecutionCount = c.ExecutionCount()
		if c.collapsed || c.collapsedKey {
			v := c.collapsed
			doc.Metadata.Collapsed = &v
		}
		if c.scrolled || c.scrolledKey {
			v := c.scrolled
			doc.Metadata.Scrolled = &v
		}
	case *MarkdownCell:
		doc.Attachments = cloneRawMessage(b.attachments)
	case *RawCell:
		doc.Metadata.Format = c.format
		doc.Attachments = cloneRawMessage(b.attachments)
	}
	return doc
}

// Load replaces the notebook contents with doc. The first cell becomes
// active and the notebook is left clean.
func (nb *Notebook) Load(doc schema.Document) error {
	if err := schema.ValidateDocument(doc); err != nil {
		return err
	}
	nb.loading = true
	defer func() { nb.loading = false }()

	// Metadata goes first so code cells pick up the document language.
	oldMeta, oldMimetype := nb.metadata, nb.defaultMimetype
	nb.SetMetadata(doc.Metadata)
	cells := make([]Cell, 0, len(doc.Cells))
	for i, cd := range doc.Cells {
		cell, err := nb.cellFromDocument(cd)
		if err != nil {
			for _, created := range cells {
				created.Dispose()
			}
			nb.SetMetadata(oldMeta)
			nb.SetDefaultMimetype(oldMimetype)
			return fmt.Errorf("%w: cell %d: %v", schema.ErrInvalidDocument, i, err)
		}
		cells = append(cells, cell)
	}
	nb.nbformatMinor = doc.NBFormatMinor
	nb.cells.Assign(cells...)
	nb.SetActiveCellIndex(0)
	nb.SetMode(schema.ModeCommand)
	nb.SetDirty(false)
	nb.Logger().Debug("notebook loaded", "cells", len(cells), "nbformat_minor", doc.NBFormatMinor)
	return nil
}

// LoadJSON parses an nbformat document and loads it.
func (nb *Notebook) LoadJSON(data []byte) error {
	doc, err := schema.ParseDocument(data)
	if err != nil {
		return err
	}
	return nb.Load(doc)
}

// ToJSON serializes the notebook as nbformat JSON.
func (nb *Notebook) ToJSON() ([]byte, error) {
	return json.MarshalIndent(nb.ToDocument(), "", " ")
}

func (nb *Notebook) cellFromDocument(cd schema.CellDocument) (Cell, error) {
	cellType, err := schema.NormalizeCellType(string(cd.CellType))
	if err != nil {
		return nil, err
	}
	cell, err := nb.CreateCell(cellType, nil)
	if err != nil {
		return nil, err
	}
	b := cell.base()
	if cd.ID != "" {
		b.id = cd.ID
	}
	b.input.editor.SetText(cd.Source.String())
	cell.SetTags(cd.Metadata.Tags)
	cell.SetName(cd.Metadata.Name)
	b.extra = cloneRaw(cd.Metadata.Extra)

	switch c := cell.(type) {
	case *CodeCell:
		if cd.Metadata.Collapsed != nil {
			c.collapsedKey = true
			c.SetCollapsed(*cd.Metadata.Collapsed)
		}
		if cd.Metadata.Scrolled != nil {
			c.scrolledKey = true
			c.SetScrolled(*cd.Metadata.Scrolled)
		}
		outputs := make([]schema.Output, 0, len(cd.Outputs))
		for _, output := range cd.Outputs {
			if output.OutputType.Known() {
				outputs = append(outputs, output.Clone())
			}
		}
		if len(outputs) > 0 {
			c.output.Outputs().Assign(outputs...)
		}
		c.SetExecutionCount(cd.ExecutionCount)
	case *MarkdownCell:
		b.attachments = cloneRawMessage(cd.Attachments)
		c.SetRendered(true)
	case *RawCell:
		b.attachments = cloneRawMessage(cd.Attachments)
		c.SetFormat(cd.Metadata.Format)
	}
	return cell, nil
}

func slicesCloneNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneRawMessage(in json.RawMessage) json.RawMessage {
	if in == nil {
		return nil
	}
	return append(json.RawMessage(nil), in...)
}
