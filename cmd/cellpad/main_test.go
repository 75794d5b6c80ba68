package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/schema"
	"pkt.systems/pslog"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	logger := pslog.NewWithOptions(&bytes.Buffer{}, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	return pslog.ContextWithLogger(context.Background(), logger)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(testContext(t))
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "render", "show", "export", "new", "list", "init", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command, got %v (%v)", name, cmd, err)
		}
	}
}

func TestNewShowExport(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "demo.ipynb")
	if _, err := execute(t, "new", path, "--title", "Demo", "--kernel", "python3"); err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := execute(t, "new", path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing notebook error, got %v", err)
	}

	shown, err := execute(t, "show", "--plain", path)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"demo.ipynb · python3 · 2 cells", "# Demo", "In [ ]:"} {
		if !strings.Contains(shown, want) {
			t.Fatalf("expected %q in show output:\n%s", want, shown)
		}
	}

	exported, err := execute(t, "export", "--to", "yaml", path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(exported, "cell_type: markdown") || !strings.Contains(exported, "name: python3") {
		t.Fatalf("unexpected yaml export:\n%s", exported)
	}
	if _, err := execute(t, "export", "--to", "pdf", path); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestRenderWritesPage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "page.ipynb")
	if _, err := execute(t, "new", path, "--title", "Fish & Chips"); err != nil {
		t.Fatalf("new: %v", err)
	}
	out := filepath.Join(dir, "page.html")
	if _, err := execute(t, "render", path, "-o", out); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	page := string(data)
	if !strings.Contains(page, "<title>page</title>") || !strings.Contains(page, "<h1>Fish &amp; Chips</h1>") {
		t.Fatalf("unexpected page:\n%s", page)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed, got %v", err)
	}
	if _, err := execute(t, "render", path, "--watch"); err == nil {
		t.Fatalf("expected --watch without --output to fail")
	}
}

func TestListUsesDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	for _, name := range []string{"b.ipynb", "a.ipynb"} {
		if _, err := execute(t, "new", filepath.Join(dir, name)); err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
	}
	listed, err := execute(t, "list", "--dir", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(listed), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a.ipynb") || !strings.HasPrefix(lines[1], "b.ipynb") {
		t.Fatalf("unexpected listing:\n%s", listed)
	}
}

func TestKernelNameFor(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	meta := schema.NotebookMetadata{KernelSpec: &schema.KernelSpecInfo{Name: "ir"}}
	if got := kernelNameFor("julia", meta, cfg); got != "julia" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := kernelNameFor("", meta, cfg); got != "ir" {
		t.Fatalf("expected notebook kernelspec, got %q", got)
	}
	if got := kernelNameFor(" ", schema.NotebookMetadata{}, cfg); got != schema.DefaultKernelName {
		t.Fatalf("expected config default, got %q", got)
	}
}

type scriptFuture struct {
	id   schema.MsgID
	done chan struct{}
}

func (f *scriptFuture) MsgID() schema.MsgID   { return f.id }
func (f *scriptFuture) Done() <-chan struct{} { return f.done }
func (f *scriptFuture) Err() error            { return nil }

// scriptSession answers every request from its own goroutine, the way a
// websocket reader would.
type scriptSession struct {
	mu    sync.Mutex
	count int
}

func (s *scriptSession) Execute(ctx context.Context, req schema.ExecuteRequest, handlers core.ExecuteHandlers) (core.Future, error) {
	s.mu.Lock()
	s.count++
	count := s.count
	s.mu.Unlock()
	fut := &scriptFuture{id: schema.MsgID("msg-" + req.Code), done: make(chan struct{})}
	go func() {
		defer close(fut.done)
		if strings.Contains(req.Code, "raise") {
			content, _ := json.Marshal(map[string]any{"ename": "ValueError", "evalue": "boom", "traceback": []string{}})
			handlers.IOPub(schema.Message{Header: schema.Header{MsgType: schema.MsgError}, Content: content})
			handlers.Reply(schema.ExecuteReply{Status: schema.StatusError, ExecutionCount: count, EName: "ValueError", EValue: "boom"})
			return
		}
		content, _ := json.Marshal(map[string]any{"name": "stdout", "text": req.Code + "\n"})
		handlers.IOPub(schema.Message{Header: schema.Header{MsgType: schema.MsgStream}, Content: content})
		handlers.Reply(schema.ExecuteReply{Status: "ok", ExecutionCount: count})
	}()
	return fut, nil
}

func (s *scriptSession) KernelInfo(ctx context.Context) (schema.KernelInfo, error) {
	return schema.KernelInfo{Status: "ok"}, nil
}

func (s *scriptSession) KernelSpec(ctx context.Context) (schema.KernelSpecInfo, error) {
	return schema.KernelSpecInfo{Name: "python3", DisplayName: "Python 3"}, nil
}

func TestRunNotebookWaitsForEveryCell(t *testing.T) {
	loop := core.NewLoop()
	nb, err := core.NewNotebook(schema.NotebookConfig{}, core.NotebookDeps{Session: &scriptSession{}, Dispatcher: loop})
	if err != nil {
		t.Fatalf("new notebook: %v", err)
	}
	defer nb.Dispose()
	for _, src := range []string{"first", "# notes", "raise", ""} {
		cellType := schema.CellTypeCode
		if strings.HasPrefix(src, "#") {
			cellType = schema.CellTypeMarkdown
		}
		if _, err := nb.AppendCell(cellType, src); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runNotebook(ctx, nb, loop); err != nil {
		t.Fatalf("run: %v", err)
	}
	if nb.Len() != 4 {
		t.Fatalf("expected no appended cell, got %d cells", nb.Len())
	}
	doc := nb.ToDocument()
	if got := doc.Cells[0].Outputs; len(got) != 1 || got[0].Text != "first\n" {
		t.Fatalf("unexpected first outputs %+v", got)
	}
	if doc.Cells[0].ExecutionCount == nil || *doc.Cells[0].ExecutionCount != 1 {
		t.Fatalf("expected execution count 1, got %v", doc.Cells[0].ExecutionCount)
	}

	var cellErr *CellError
	if err := firstCellError(doc); !errors.As(err, &cellErr) || cellErr.Index != 2 || cellErr.EName != "ValueError" {
		t.Fatalf("expected cell error at index 2, got %v", err)
	}

	var out bytes.Buffer
	if err := writeRunOutputs(&out, doc); err != nil {
		t.Fatalf("write outputs: %v", err)
	}
	want := "In [1]:\n│ first\nIn [2]:\n! ValueError: boom\n"
	if out.String() != want {
		t.Fatalf("unexpected run output %q", out.String())
	}
}
