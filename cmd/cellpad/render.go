package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/internal/logx"
	"pkt.systems/cellpad/view"
	"pkt.systems/pslog"
)

func newRenderCmd() *cobra.Command {
	var cfgPath string
	var output string
	var watch bool
	var trust bool
	cmd := &cobra.Command{
		Use:   "render <notebook.ipynb>",
		Short: "Render a notebook to a standalone HTML page",
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
			if watch && output == "" {
				return errors.New("render --watch requires --output")
			}
			nb, err := file.load(ctx, cfg, core.NotebookDeps{})
			if err != nil {
				return err
			}
			defer nb.Dispose()
			if trust {
				trustAll(nb)
			}

			r := &pageRenderer{
				widget: view.NewNotebookWidget(nb, view.NewRenderer()),
				title:  strings.TrimSuffix(file.name, filepath.Ext(file.name)),
				output: output,
				stdout: cmd.OutOrStdout(),
			}
			defer r.widget.Dispose()
			if err := r.write(); err != nil {
				return err
			}
			logger := file.logger(ctx)
			if output != "" {
				logger.Info("notebook rendered", "output", output, "cells", nb.Len())
			}
			if !watch {
				return nil
			}
			debounce := time.Duration(cfg.Render.WatchDebounceMillis) * time.Millisecond
			watchCtx := logx.ContextWithNotebookLogger(ctx, pslog.Ctx(ctx), file.path)
			return watchNotebook(watchCtx, file.path, debounce, func() error {
				doc, err := file.document(ctx)
				if err != nil {
					return err
				}
				if err := nb.Load(doc); err != nil {
					return err
				}
				if trust {
					trustAll(nb)
				}
				if err := r.write(); err != nil {
					return err
				}
				logger.Info("notebook re-rendered", "output", output, "cells", nb.Len())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.cellpad/config.yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write HTML to this file instead of stdout")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render whenever the notebook changes")
	cmd.Flags().BoolVar(&trust, "trust", false, "render HTML and SVG outputs without sanitizing")
	return cmd
}

func trustAll(nb *core.Notebook) {
	for _, cell := range nb.Cells().Values() {
		cell.SetTrusted(true)
	}
}

// pageRenderer writes the widget tree as a page, either to stdout or
// atomically to a file.
type pageRenderer struct {
	widget *view.NotebookWidget
	title  string
	output string
	stdout io.Writer
}

func (r *pageRenderer) write() error {
	var buf bytes.Buffer
	if err := r.widget.RenderPage(&buf, r.title); err != nil {
		return err
	}
	if r.output == "" {
		_, err := r.stdout.Write(buf.Bytes())
		return err
	}
	tmp := r.output + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.output); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// watchNotebook calls onChange after writes to path settle for debounce.
// The parent directory is watched so editors that replace the file on save
// are picked up. It returns when ctx is done.
func watchNotebook(ctx context.Context, path string, debounce time.Duration, onChange func() error) error {
	logger := logx.NotebookCtx(ctx, path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watching notebook", "debounce", debounce)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			if err := onChange(); err != nil {
				logger.Warn("notebook re-render failed", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("notebook watcher error", "err", err)
		}
	}
}
