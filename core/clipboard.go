package core

import (
	"pkt.systems/cellpad/schema"
)

// InsertCell creates a cell of cellType at index. The new cell becomes
// active.
func (nb *Notebook) InsertCell(index int, cellType schema.CellType) (Cell, error) {
	if nb.readOnly {
		return nil, schema.ErrNotebookReadOnly
	}
	cell, err := nb.CreateCell(cellType, nil)
	if err != nil {
		return nil, err
	}
	if err := nb.cells.Insert(index, cell); err != nil {
		cell.Dispose()
		return nil, err
	}
	return cell, nil
}

// AppendCell creates a cell of cellType with source text at the end of the
// notebook.
func (nb *Notebook) AppendCell(cellType schema.CellType, source string) (Cell, error) {
	if nb.readOnly {
		return nil, schema.ErrNotebookReadOnly
	}
	cell, err := nb.CreateCell(cellType, nil)
	if err != nil {
		return nil, err
	}
	cell.Input().Editor().SetText(source)
	nb.cells.Add(cell)
	return cell, nil
}

// MoveCell moves the cell at from to to. The active cell follows the move.
func (nb *Notebook) MoveCell(from, to int) error {
	if nb.readOnly {
		return schema.ErrNotebookReadOnly
	}
	return nb.cells.Move(from, to)
}

// ChangeCellType replaces the cell at index with a cell of cellType that
// clones its text, tags and trusted flag.
func (nb *Notebook) ChangeCellType(index int, cellType schema.CellType) (Cell, error) {
	if nb.readOnly {
		return nil, schema.ErrNotebookReadOnly
	}
	cell, err := nb.cells.Get(index)
	if err != nil {
		return nil, err
	}
	if cell.Type() == cellType {
		return cell, nil
	}
	replacement, err := nb.CreateCell(cellType, cell)
	if err != nil {
		return nil, err
	}
	if _, err := nb.cells.Set(index, replacement); err != nil {
		replacement.Dispose()
		return nil, err
	}
	return replacement, nil
}

// targets returns the selected cells, or the active cell when nothing is
// selected.
func (nb *Notebook) targets() []Cell {
	var out []Cell
	for _, cell := range nb.cells.Values() {
		if cell.Selected() {
			out = append(out, cell)
		}
	}
	if len(out) == 0 {
		if active := nb.ActiveCell(); active != nil {
			out = append(out, active)
		}
	}
	return out
}

// Copy places clones of the selected cells (or the active cell) on the
// notebook clipboard. It returns the number of cells copied.
func (nb *Notebook) Copy() int {
	targets := nb.targets()
	if len(targets) == 0 {
		return 0
	}
	for _, cell := range nb.clipboard {
		cell.Dispose()
	}
	nb.clipboard = nb.clipboard[:0]
	for _, cell := range targets {
		clone, err := nb.CreateCell(cell.Type(), cell)
		if err != nil {
			continue
		}
		nb.clipboard = append(nb.clipboard, clone)
	}
	return len(nb.clipboard)
}

// DeleteSelected removes the selected cells, or the active cell when nothing
// is selected. Removed cells are disposed.
func (nb *Notebook) DeleteSelected() (int, error) {
	if nb.readOnly {
		return 0, schema.ErrNotebookReadOnly
	}
	targets := nb.targets()
	for _, cell := range targets {
		nb.cells.Remove(cell)
	}
	return len(targets), nil
}

// Cut copies and then deletes the selected cells.
func (nb *Notebook) Cut() (int, error) {
	if nb.readOnly {
		return 0, schema.ErrNotebookReadOnly
	}
	nb.Copy()
	return nb.DeleteSelected()
}

// Paste inserts clones of the clipboard below the active cell and clears
// the selection. The last pasted cell becomes active.
func (nb *Notebook) Paste() (int, error) {
	if nb.readOnly {
		return 0, schema.ErrNotebookReadOnly
	}
	nb.ClearSelection()
	index := nb.activeCellIndex + 1
	for i, cell := range nb.clipboard {
		clone, err := nb.CreateCell(cell.Type(), cell)
		if err != nil {
			return i, err
		}
		if err := nb.cells.Insert(index+i, clone); err != nil {
			clone.Dispose()
			return i, err
		}
	}
	return len(nb.clipboard), nil
}

// ClipboardLen returns the number of cells on the clipboard.
func (nb *Notebook) ClipboardLen() int { return len(nb.clipboard) }

// ClearSelection deselects every cell.
func (nb *Notebook) ClearSelection() {
	for _, cell := range nb.cells.Values() {
		cell.SetSelected(false)
	}
}
