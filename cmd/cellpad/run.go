package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/internal/format"
	"pkt.systems/cellpad/internal/jupyter"
	"pkt.systems/cellpad/schema"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var kernelID string
	var kernelName string
	var save bool
	var allowErrors bool
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run <notebook.ipynb>",
		Short: "Execute every cell of a notebook on a Jupyter kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			file, err := openNotebookFile(ctx, args[0])
			if err != nil {
				return err
			}
			logger := file.logger(ctx)

			loop := core.NewLoop()
			nb, err := file.load(ctx, cfg, core.NotebookDeps{Dispatcher: loop, Logger: logger})
			if err != nil {
				return err
			}
			defer nb.Dispose()

			client, err := newJupyterClient(cfg)
			if err != nil {
				return err
			}
			kernel, release, err := acquireKernel(ctx, client, cfg, kernelID, kernelNameFor(kernelName, nb.Metadata(), cfg))
			if err != nil {
				return err
			}
			defer release()

			session, err := jupyter.Connect(ctx, jupyter.SessionOptions{
				Client:     client,
				KernelID:   kernel.ID,
				KernelName: kernel.Name,
				Username:   cfg.Notebook.Username,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil && !errors.Is(err, schema.ErrSessionClosed) {
					logger.Warn("kernel session close failed", "err", err)
				}
			}()
			nb.SetSession(session)

			execCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Jupyter.ExecuteTimeoutSeconds)*time.Second)
			defer cancel()
			started := time.Now()
			runErr := runNotebook(execCtx, nb, loop)
			if runErr != nil && execCtx.Err() != nil {
				interruptCtx, cancelInterrupt := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout(cfg))
				if err := client.InterruptKernel(interruptCtx, kernel.ID); err != nil {
					logger.Warn("jupyter kernel interrupt failed", "kernel", kernel.ID, "err", err)
				}
				cancelInterrupt()
			}
			doc := nb.ToDocument()
			logger.Info("notebook run finished", "cells", len(doc.Cells), "elapsed", time.Since(started).Round(time.Millisecond))

			if !quiet {
				if err := writeRunOutputs(cmd.OutOrStdout(), doc); err != nil {
					return err
				}
			}
			if save {
				if err := nb.Save(ctx); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if !allowErrors {
				return firstCellError(doc)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.cellpad/config.yaml)")
	cmd.Flags().StringVar(&kernelID, "kernel-id", "", "attach to a running kernel instead of starting one")
	cmd.Flags().StringVarP(&kernelName, "kernel", "k", "", "kernelspec to start (default: notebook metadata, then config)")
	cmd.Flags().BoolVarP(&save, "save", "s", false, "write outputs back to the notebook")
	cmd.Flags().BoolVar(&allowErrors, "allow-errors", false, "exit successfully even if a cell raised")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print cell outputs")
	return cmd
}

// writeRunOutputs prints the outputs of every code cell under its prompt.
func writeRunOutputs(w io.Writer, doc schema.Document) error {
	plain := format.NewPlainRenderer()
	for _, cell := range doc.Cells {
		if cell.CellType != schema.CellTypeCode || len(cell.Outputs) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, format.InputPrompt(cell.ExecutionCount)); err != nil {
			return err
		}
		for _, out := range cell.Outputs {
			for _, line := range plain.FormatOutput(out) {
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
