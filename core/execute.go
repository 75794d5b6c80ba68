package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"pkt.systems/cellpad/internal/logx"
	"pkt.systems/cellpad/schema"
)

// RunActiveCell runs the active cell and moves on: markdown is rendered,
// code is executed and raw is only marked trusted. Running the last cell
// appends a new code cell and enters edit mode; otherwise the next cell
// becomes active. Read-only notebooks and empty notebooks are left alone.
// The returned error only reports a failed execute submission.
func (nb *Notebook) RunActiveCell(ctx context.Context) error {
	if nb.readOnly {
		return nil
	}
	cell := nb.ActiveCell()
	if cell == nil {
		return nil
	}
	err := nb.runCell(ctx, cell)
	index := nb.cells.IndexOf(cell)
	if index < 0 {
		index = nb.activeCellIndex
	}
	if index == nb.cells.Len()-1 {
		nb.cells.Add(nb.CreateCodeCell(nil))
		nb.SetMode(schema.ModeEdit)
	} else {
		nb.SetActiveCellIndex(index + 1)
	}
	return err
}

// RunAll runs every cell in order without appending a new cell. The last
// cell is active afterwards.
func (nb *Notebook) RunAll(ctx context.Context) error {
	if nb.readOnly || nb.cells.Len() == 0 {
		return nil
	}
	var errs []error
	for _, cell := range nb.cells.Values() {
		if err := nb.runCell(ctx, cell); err != nil {
			errs = append(errs, err)
		}
	}
	nb.SetActiveCellIndex(nb.cells.Len() - 1)
	nb.SetMode(schema.ModeCommand)
	return errors.Join(errs...)
}

func (nb *Notebook) runCell(ctx context.Context, cell Cell) error {
	switch c := cell.(type) {
	case *MarkdownCell:
		c.SetTrusted(true)
		c.SetRendered(true)
	case *CodeCell:
		return nb.executeCell(ctx, c)
	case *RawCell:
		c.SetTrusted(true)
	}
	return nil
}

// executeCell sends the cell source to the attached kernel. Blank source
// resets the prompt without a request; a missing session skips execution.
// Handlers of a superseded execution are ignored.
func (nb *Notebook) executeCell(ctx context.Context, cell *CodeCell) error {
	if nb.readOnly || cell.IsDisposed() {
		return nil
	}
	log := logx.WithCell(nb.Logger(), cell.ID(), nb.cells.IndexOf(cell))
	code := cell.Source()
	if strings.TrimSpace(code) == "" {
		cell.Input().SetPrompt(schema.PromptIdle)
		return nil
	}
	session := nb.session
	if session == nil {
		log.Debug("notebook execute skipped", "reason", "no session")
		return nil
	}

	cell.Input().SetPrompt(schema.PromptRunning)
	cell.Output().Clear(false)
	cell.SetTrusted(true)
	token := cell.nextRun()

	handlers := ExecuteHandlers{
		IOPub: func(msg schema.Message) {
			nb.dispatcher.Dispatch(func() { nb.handleIOPub(cell, token, msg) })
		},
		Reply: func(reply schema.ExecuteReply) {
			nb.dispatcher.Dispatch(func() { nb.handleReply(cell, token, reply) })
		},
	}
	future, err := session.Execute(ctx, schema.NewExecuteRequest(code), handlers)
	if err != nil {
		log.Warn("notebook execute failed", "err", err)
		if cell.current(token) {
			cell.Input().SetPrompt(schema.PromptIdle)
		}
		return fmt.Errorf("execute cell %s: %w", cell.ID(), err)
	}
	cell.pending = future
	if !nb.cfg.DisableAuditLogging {
		log.Debug("notebook execute requested", "msg_id", future.MsgID(), "bytes", len(code))
	}
	return nil
}

func (nb *Notebook) handleIOPub(cell *CodeCell, token uint64, msg schema.Message) {
	if !cell.current(token) {
		return
	}
	msgType := msg.Header.MsgType
	if msgType == schema.MsgClearOutput {
		var content schema.ClearOutput
		if len(msg.Content) > 0 {
			if err := json.Unmarshal(msg.Content, &content); err != nil {
				nb.Logger().Warn("notebook clear_output decode failed", "cell", cell.ID(), "err", err)
			}
		}
		cell.Output().Clear(content.Wait)
		return
	}
	output, err := schema.DecodeOutput(schema.OutputType(msgType), msg.Content)
	if err != nil {
		nb.Logger().Warn("notebook output decode failed", "cell", cell.ID(), "msg_type", msgType, "err", err)
		return
	}
	cell.Output().Add(output)
}

func (nb *Notebook) handleReply(cell *CodeCell, token uint64, reply schema.ExecuteReply) {
	if !cell.current(token) {
		return
	}
	log := logx.WithCell(nb.Logger(), cell.ID(), nb.cells.IndexOf(cell))
	switch reply.Status {
	case schema.StatusAborted:
		cell.SetExecutionCount(nil)
		log.Info("notebook cell execution aborted")
		return
	case schema.StatusError:
		log.Info("notebook cell execution error", "ename", reply.EName, "evalue", reply.EValue)
	}
	count := reply.ExecutionCount
	cell.SetExecutionCount(&count)
	log.Debug("notebook cell executed", "execution_count", count)
}

// Save persists the notebook through its contents manager. With a session
// attached the kernelspec and language info are refreshed into the
// metadata first. Dirty is cleared only on success.
func (nb *Notebook) Save(ctx context.Context) error {
	if nb.contents == nil {
		return schema.ErrNoContents
	}
	if nb.path == "" {
		return schema.ErrNoPath
	}
	log := nb.Logger()
	if nb.session != nil {
		if err := nb.refreshKernelMetadata(ctx); err != nil {
			log.Warn("notebook kernel metadata refresh failed", "err", err)
			return fmt.Errorf("save %s: %w", nb.path, err)
		}
	}
	doc := nb.ToDocument()
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", nb.path, err)
	}
	model := schema.ContentsModel{
		Name:    path.Base(nb.path),
		Path:    nb.path,
		Type:    schema.ContentsTypeNotebook,
		Format:  "json",
		Content: payload,
	}
	if _, err := nb.contents.Save(ctx, nb.path, model); err != nil {
		log.Warn("notebook save failed", "err", err)
		return fmt.Errorf("save %s: %w", nb.path, err)
	}
	nb.SetDirty(false)
	log.Info("notebook saved", "cells", len(doc.Cells))
	return nil
}

func (nb *Notebook) refreshKernelMetadata(ctx context.Context) error {
	spec, err := nb.session.KernelSpec(ctx)
	if err != nil {
		return fmt.Errorf("kernelspec: %w", err)
	}
	info, err := nb.session.KernelInfo(ctx)
	if err != nil {
		return fmt.Errorf("kernel info: %w", err)
	}
	meta := nb.metadata
	meta.KernelSpec = &schema.KernelSpecInfo{Name: spec.Name, DisplayName: spec.DisplayName, Language: spec.Language}
	if meta.KernelSpec.Language == "" {
		meta.KernelSpec.Language = info.LanguageInfo.Name
	}
	language := info.LanguageInfo
	meta.LanguageInfo = &language
	nb.SetMetadata(meta)
	return nil
}
