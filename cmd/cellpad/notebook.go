package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/internal/jupyter"
	"pkt.systems/cellpad/internal/logx"
	"pkt.systems/cellpad/internal/persist"
	"pkt.systems/cellpad/schema"
	"pkt.systems/pslog"
)

// notebookFile is a notebook on disk addressed through a store rooted at
// its directory.
type notebookFile struct {
	store *persist.Store
	name  string
	path  string
}

func openNotebookFile(ctx context.Context, file string) (notebookFile, error) {
	if strings.TrimSpace(file) == "" {
		return notebookFile{}, schema.ErrNoPath
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return notebookFile{}, err
	}
	store, err := persist.NewStoreWithLogger(filepath.Dir(abs), pslog.Ctx(ctx))
	if err != nil {
		return notebookFile{}, err
	}
	return notebookFile{store: store, name: filepath.Base(abs), path: abs}, nil
}

func (f notebookFile) logger(ctx context.Context) pslog.Logger {
	return logx.NotebookCtx(ctx, f.path)
}

func (f notebookFile) document(ctx context.Context) (schema.Document, error) {
	model, err := f.store.Get(ctx, f.name)
	if err != nil {
		return schema.Document{}, fmt.Errorf("read %s: %w", f.path, err)
	}
	doc, err := schema.ParseDocument(model.Content)
	if err != nil {
		return schema.Document{}, fmt.Errorf("read %s: %w", f.path, err)
	}
	return doc, nil
}

// load reads the file into a new notebook model that saves back to it.
func (f notebookFile) load(ctx context.Context, cfg appconfig.Config, deps core.NotebookDeps) (*core.Notebook, error) {
	doc, err := f.document(ctx)
	if err != nil {
		return nil, err
	}
	deps.Contents = f.store
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(ctx)
	}
	nb, err := core.NewNotebook(cfg.NotebookSettings(), deps)
	if err != nil {
		return nil, err
	}
	nb.SetPath(f.name)
	if err := nb.Load(doc); err != nil {
		nb.Dispose()
		return nil, fmt.Errorf("load %s: %w", f.path, err)
	}
	return nb, nil
}

func requestTimeout(cfg appconfig.Config) time.Duration {
	return time.Duration(cfg.Jupyter.RequestTimeoutSeconds) * time.Second
}

func newJupyterClient(cfg appconfig.Config) (*jupyter.Client, error) {
	return jupyter.NewClient(jupyter.ClientOptions{
		BaseURL:    cfg.Jupyter.BaseURL,
		Token:      cfg.Jupyter.Token,
		HTTPClient: &http.Client{Timeout: requestTimeout(cfg)},
	})
}

// acquireKernel attaches to kernelID when set and otherwise starts a kernel
// of kernelName. The returned release func shuts down a started kernel when
// the config asks for it.
func acquireKernel(ctx context.Context, client *jupyter.Client, cfg appconfig.Config, kernelID, kernelName string) (jupyter.Kernel, func(), error) {
	logger := pslog.Ctx(ctx)
	if kernelID != "" {
		kernel, err := client.Kernel(ctx, schema.KernelID(kernelID))
		if err != nil {
			return jupyter.Kernel{}, nil, err
		}
		logger.Info("jupyter kernel attached", "kernel", kernel.ID, "kernel_name", kernel.Name)
		return kernel, func() {}, nil
	}
	kernel, err := client.StartKernel(ctx, kernelName)
	if err != nil {
		return jupyter.Kernel{}, nil, err
	}
	release := func() {
		if !cfg.Jupyter.ShutdownKernel {
			logger.Info("jupyter kernel left running", "kernel", kernel.ID)
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout(cfg))
		defer cancel()
		if err := client.ShutdownKernel(shutdownCtx, kernel.ID); err != nil {
			logger.Warn("jupyter kernel shutdown failed", "kernel", kernel.ID, "err", err)
		}
	}
	return kernel, release, nil
}

// kernelNameFor picks the flag value, then the notebook's kernelspec, then
// the configured default.
func kernelNameFor(flag string, meta schema.NotebookMetadata, cfg appconfig.Config) string {
	if name := strings.TrimSpace(flag); name != "" {
		return name
	}
	if meta.KernelSpec != nil && meta.KernelSpec.Name != "" {
		return meta.KernelSpec.Name
	}
	return cfg.Jupyter.KernelName
}

// CellError reports an error output left in a code cell after a run.
type CellError struct {
	Index int
	ID    schema.CellID
	EName string
	Value string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %d (%s) raised %s: %s", e.Index, e.ID, e.EName, e.Value)
}

// firstCellError returns the first error output in document order.
func firstCellError(doc schema.Document) error {
	for i, cell := range doc.Cells {
		for _, out := range cell.Outputs {
			if out.OutputType == schema.OutputError {
				return &CellError{Index: i, ID: cell.ID, EName: out.EName, Value: out.EValue}
			}
		}
	}
	return nil
}

// runNotebook submits every cell and pumps the loop until each execution
// has finished.
func runNotebook(ctx context.Context, nb *core.Notebook, loop *core.Loop) error {
	if err := nb.RunAll(ctx); err != nil {
		return err
	}
	var errs []error
	for _, cell := range nb.Cells().Values() {
		code, ok := cell.(*core.CodeCell)
		if !ok || code.Pending() == nil {
			continue
		}
		pending := code.Pending()
		if err := loop.RunUntil(ctx, pending.Done()); err != nil {
			return fmt.Errorf("wait for cell %s: %w", code.ID(), err)
		}
		if err := pending.Err(); err != nil {
			errs = append(errs, fmt.Errorf("cell %s: %w", code.ID(), err))
		}
	}
	return errors.Join(errs...)
}
