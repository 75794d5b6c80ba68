package jupyter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"pkt.systems/cellpad/schema"
)

const testToken = "secret"

// fakeKernelServer is a minimal Jupyter server: kernelspecs, one kernel
// named python3 with id k1, its channels endpoint and an in-memory contents
// store.
type fakeKernelServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	contents map[string]schema.ContentsModel
	requests []schema.Message
	conns    []*websocket.Conn
}

func newFakeKernelServer(t *testing.T) *fakeKernelServer {
	t.Helper()
	f := &fakeKernelServer{t: t, contents: map[string]schema.ContentsModel{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/kernelspecs", f.handleKernelSpecs)
	mux.HandleFunc("GET /api/kernels/{id}", f.handleKernel)
	mux.HandleFunc("GET /api/kernels/{id}/channels", f.handleChannels)
	mux.HandleFunc("POST /api/kernels", f.handleStart)
	mux.HandleFunc("GET /api/contents/{path...}", f.handleGetContents)
	mux.HandleFunc("PUT /api/contents/{path...}", f.handleSaveContents)
	f.srv = httptest.NewServer(f.authorize(mux))
	t.Cleanup(f.close)
	return f
}

func (f *fakeKernelServer) close() {
	f.mu.Lock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.mu.Unlock()
	f.srv.Close()
}

func (f *fakeKernelServer) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{BaseURL: f.srv.URL, Token: testToken})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func (f *fakeKernelServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token "+testToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeKernelServer) handleKernelSpecs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": "python3",
		"kernelspecs": map[string]any{
			"python3": map[string]any{
				"name": "python3",
				"spec": map[string]any{"display_name": "Python 3 (ipykernel)", "language": "python"},
			},
		},
	})
}

func (f *fakeKernelServer) handleKernel(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "k1" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Kernel does not exist"})
		return
	}
	writeJSON(w, http.StatusOK, Kernel{ID: "k1", Name: "python3", ExecutionState: "idle"})
}

func (f *fakeKernelServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	name := body["name"]
	if name == "" {
		name = "python3"
	}
	writeJSON(w, http.StatusCreated, Kernel{ID: "k1", Name: name})
}

func (f *fakeKernelServer) handleGetContents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	model, ok := f.contents[r.PathValue("path")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No such file"})
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (f *fakeKernelServer) handleSaveContents(w http.ResponseWriter, r *http.Request) {
	var model schema.ContentsModel
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	p := r.PathValue("path")
	model.Path = p
	model.LastModified = "2026-10-19T10:00:00Z"
	f.mu.Lock()
	f.contents[p] = model
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, schema.ContentsModel{Name: model.Name, Path: p, Type: model.Type, LastModified: model.LastModified})
}

func (f *fakeKernelServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "k1" {
		http.NotFound(w, r)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req schema.Message
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		switch req.Header.MsgType {
		case schema.MsgExecuteRequest:
			f.execute(conn, req)
		case schema.MsgKernelInfoRequest:
			f.reply(conn, req, schema.ChannelShell, schema.MsgKernelInfoReply, schema.KernelInfo{
				Status:          schema.StatusOK,
				ProtocolVersion: schema.ProtocolVersion,
				Implementation:  "ipython",
				LanguageInfo:    schema.LanguageInfo{Name: "python", Version: "3.12.1", Mimetype: "text/x-python"},
			})
		}
	}
}

// execute plays a canned kernel conversation. Code "hang" never answers;
// code "raise" replies with an error. The reply deliberately precedes the
// last stream chunk and the idle status.
func (f *fakeKernelServer) execute(conn *websocket.Conn, req schema.Message) {
	var content schema.ExecuteRequest
	_ = json.Unmarshal(req.Content, &content)
	if content.Code == "hang" {
		return
	}
	f.reply(conn, req, schema.ChannelIOPub, schema.MsgStatus, schema.KernelStatus{ExecutionState: "busy"})
	f.reply(conn, req, schema.ChannelIOPub, schema.MsgExecuteInput, map[string]any{"code": content.Code, "execution_count": 1})
	if strings.Contains(content.Code, "raise") {
		f.reply(conn, req, schema.ChannelIOPub, schema.MsgError, map[string]any{
			"ename": "ValueError", "evalue": "boom", "traceback": []string{"ValueError: boom"},
		})
		f.reply(conn, req, schema.ChannelShell, schema.MsgExecuteReply, schema.ExecuteReply{
			Status: schema.StatusError, ExecutionCount: 1, EName: "ValueError", EValue: "boom",
		})
	} else {
		f.reply(conn, req, schema.ChannelIOPub, schema.MsgStream, map[string]string{"name": "stdout", "text": "hello\n"})
		f.reply(conn, req, schema.ChannelShell, schema.MsgExecuteReply, schema.ExecuteReply{Status: schema.StatusOK, ExecutionCount: 1})
		f.reply(conn, req, schema.ChannelIOPub, schema.MsgStream, map[string]string{"name": "stdout", "text": "world\n"})
	}
	f.reply(conn, req, schema.ChannelIOPub, schema.MsgStatus, schema.KernelStatus{ExecutionState: "idle"})
}

func (f *fakeKernelServer) reply(conn *websocket.Conn, parent schema.Message, channel, msgType string, content any) {
	msg, err := schema.NewMessage(schema.MsgID(msgType+"-"+string(parent.Header.MsgID)), parent.Header.Session, "kernel", msgType, channel, content)
	if err != nil {
		f.t.Errorf("build %s: %v", msgType, err)
		return
	}
	msg.ParentHeader = parent.Header
	data, _ := json.Marshal(msg)
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (f *fakeKernelServer) requestLog() []schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Message(nil), f.requests...)
}
