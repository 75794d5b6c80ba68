package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pkt.systems/cellpad/schema"
	"pkt.systems/pslog"
)

type fakeFuture struct {
	id   schema.MsgID
	done chan struct{}
	once sync.Once
}

func newFakeFuture(id schema.MsgID) *fakeFuture {
	return &fakeFuture{id: id, done: make(chan struct{})}
}

func (f *fakeFuture) MsgID() schema.MsgID { return f.id }

func (f *fakeFuture) Done() <-chan struct{} { return f.done }

func (f *fakeFuture) Err() error { return nil }

func (f *fakeFuture) finish() { f.once.Do(func() { close(f.done) }) }

type fakeSession struct {
	mu       sync.Mutex
	requests []schema.ExecuteRequest
	handlers []ExecuteHandlers
	futures  []*fakeFuture
	err      error
	spec     schema.KernelSpecInfo
	info     schema.KernelInfo
	infoErr  error
}

func (s *fakeSession) Execute(ctx context.Context, req schema.ExecuteRequest, handlers ExecuteHandlers) (Future, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	s.handlers = append(s.handlers, handlers)
	future := newFakeFuture(schema.MsgID(fmt.Sprintf("msg-%d", len(s.requests))))
	s.futures = append(s.futures, future)
	return future, nil
}

func (s *fakeSession) KernelInfo(ctx context.Context) (schema.KernelInfo, error) {
	return s.info, s.infoErr
}

func (s *fakeSession) KernelSpec(ctx context.Context) (schema.KernelSpecInfo, error) {
	return s.spec, nil
}

func (s *fakeSession) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeSession) handler(t *testing.T, i int) ExecuteHandlers {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.handlers) {
		t.Fatalf("expected execute request %d, got %d requests", i, len(s.handlers))
	}
	return s.handlers[i]
}

type fakeContents struct {
	saved []schema.ContentsModel
	err   error
}

func (c *fakeContents) Get(ctx context.Context, path string) (schema.ContentsModel, error) {
	for i := len(c.saved) - 1; i >= 0; i-- {
		if c.saved[i].Path == path {
			return c.saved[i], nil
		}
	}
	return schema.ContentsModel{}, schema.ErrNotFound
}

func (c *fakeContents) Save(ctx context.Context, path string, model schema.ContentsModel) (schema.ContentsModel, error) {
	if c.err != nil {
		return schema.ContentsModel{}, c.err
	}
	model.Path = path
	c.saved = append(c.saved, model)
	return model, nil
}

var errDiskFull = errors.New("disk full")

func newTestNotebook(t *testing.T, deps NotebookDeps) *Notebook {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = pslog.NewWithOptions(&bytes.Buffer{}, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	}
	nb, err := NewNotebook(schema.NotebookConfig{Username: "tester"}, deps)
	if err != nil {
		t.Fatalf("new notebook: %v", err)
	}
	t.Cleanup(nb.Dispose)
	return nb
}

func appendCell(t *testing.T, nb *Notebook, cellType schema.CellType, source string) Cell {
	t.Helper()
	cell, err := nb.AppendCell(cellType, source)
	if err != nil {
		t.Fatalf("append %s cell: %v", cellType, err)
	}
	return cell
}

// assertSingleActive checks that exactly cells[ActiveCellIndex] is active.
func assertSingleActive(t *testing.T, nb *Notebook) {
	t.Helper()
	if nb.Len() == 0 {
		if nb.ActiveCellIndex() != -1 {
			t.Fatalf("expected active index -1 for empty notebook, got %d", nb.ActiveCellIndex())
		}
		return
	}
	active := 0
	for i, cell := range nb.Cells().Values() {
		if cell.Active() {
			active++
			if i != nb.ActiveCellIndex() {
				t.Fatalf("cell %d active but active index is %d", i, nb.ActiveCellIndex())
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active cell, got %d", active)
	}
}

func iopub(t *testing.T, msgType string, content any) schema.Message {
	t.Helper()
	payload, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	return schema.Message{Header: schema.Header{MsgType: msgType}, Content: payload, Channel: schema.ChannelIOPub}
}

func streamMsg(t *testing.T, name, text string) schema.Message {
	return iopub(t, schema.MsgStream, map[string]string{"name": name, "text": text})
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
	Raw     string
}

type logCapture struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines []string
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.buf.Write(p)
	for {
		data := c.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		c.lines = append(c.lines, string(data[:idx]))
		c.buf.Next(idx + 1)
	}
	return len(p), nil
}

func (c *logCapture) Entries() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]logEntry, 0, len(c.lines))
	for _, line := range c.lines {
		entries = append(entries, parseLogEntry(line))
	}
	return entries
}

func parseLogEntry(line string) logEntry {
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return logEntry{Raw: line}
	}
	level := ""
	if value, ok := payload["level"].(string); ok {
		level = value
	} else if value, ok := payload["lvl"].(string); ok {
		level = value
	}
	message := ""
	if value, ok := payload["message"].(string); ok {
		message = value
	} else if value, ok := payload["msg"].(string); ok {
		message = value
	}
	return logEntry{Level: level, Message: message, Fields: payload, Raw: line}
}

func hasLogMessage(entries []logEntry, level, message string) bool {
	for _, entry := range entries {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
