package jupyter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"pkt.systems/pslog"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/logx"
	"pkt.systems/cellpad/schema"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// SessionOptions configures a kernel session.
type SessionOptions struct {
	Client   *Client
	KernelID schema.KernelID
	// KernelName is the kernelspec of the kernel. When empty it is looked up
	// on first use.
	KernelName string
	Username   string
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
}

// Session is a live connection to one kernel's channels endpoint. It
// implements core.Session. Replies and IOPub messages are routed to their
// request by parent msg_id, in the order the server sends them.
type Session struct {
	client       *Client
	conn         *websocket.Conn
	id           schema.SessionID
	kernelID     schema.KernelID
	username     string
	writeTimeout time.Duration
	logger       pslog.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	kernelName string
	pending    map[schema.MsgID]*request
	closed     bool
	closeErr   error

	readerDone chan struct{}
}

type request struct {
	handlers core.ExecuteHandlers
	future   *future
	// info receives the kernel_info_reply of an info request.
	info    chan schema.Message
	replied bool
	idle    bool
}

// Connect dials the channels endpoint of opts.KernelID.
func Connect(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("jupyter session requires a client")
	}
	if opts.KernelID == "" {
		return nil, schema.ErrKernelNotFound
	}
	sessionID := schema.SessionID(uuid.NewString())
	u := opts.Client.endpoint("api", "kernels", string(opts.KernelID), "channels")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("session_id", string(sessionID))
	u.RawQuery = q.Encode()

	header := http.Header{}
	opts.Client.authorize(header)
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", schema.ErrKernelNotFound, opts.KernelID)
		}
		return nil, fmt.Errorf("dial kernel %s: %w", opts.KernelID, err)
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	s := &Session{
		client:       opts.Client,
		conn:         conn,
		id:           sessionID,
		kernelID:     opts.KernelID,
		kernelName:   opts.KernelName,
		username:     opts.Username,
		writeTimeout: writeTimeout,
		logger:       logx.WithKernel(pslog.Ctx(ctx), opts.KernelID, sessionID),
		pending:      make(map[schema.MsgID]*request),
		readerDone:   make(chan struct{}),
	}
	go s.readLoop()
	s.logger.Info("kernel session connected")
	return s, nil
}

// ID returns the client session id sent in message headers.
func (s *Session) ID() schema.SessionID { return s.id }

// KernelID returns the connected kernel.
func (s *Session) KernelID() schema.KernelID { return s.kernelID }

// Execute sends an execute_request on the shell channel.
func (s *Session) Execute(ctx context.Context, req schema.ExecuteRequest, handlers core.ExecuteHandlers) (core.Future, error) {
	id := schema.MsgID(uuid.NewString())
	r := &request{handlers: handlers, future: newFuture(id)}
	if err := s.send(ctx, id, schema.MsgExecuteRequest, req, r); err != nil {
		return nil, err
	}
	return r.future, nil
}

// KernelInfo sends a kernel_info_request and waits for the reply.
func (s *Session) KernelInfo(ctx context.Context) (schema.KernelInfo, error) {
	id := schema.MsgID(uuid.NewString())
	r := &request{future: newFuture(id), info: make(chan schema.Message, 1)}
	if err := s.send(ctx, id, schema.MsgKernelInfoRequest, struct{}{}, r); err != nil {
		return schema.KernelInfo{}, err
	}
	select {
	case <-r.future.Done():
	case <-ctx.Done():
		s.forget(id)
		return schema.KernelInfo{}, ctx.Err()
	}
	select {
	case msg := <-r.info:
		var info schema.KernelInfo
		if err := json.Unmarshal(msg.Content, &info); err != nil {
			return schema.KernelInfo{}, fmt.Errorf("decode kernel_info_reply: %w", err)
		}
		return info, nil
	default:
		return schema.KernelInfo{}, r.future.Err()
	}
}

// KernelSpec returns the kernelspec of the connected kernel.
func (s *Session) KernelSpec(ctx context.Context) (schema.KernelSpecInfo, error) {
	s.mu.Lock()
	name := s.kernelName
	s.mu.Unlock()
	if name == "" {
		k, err := s.client.Kernel(ctx, s.kernelID)
		if err != nil {
			return schema.KernelSpecInfo{}, err
		}
		name = k.Name
		s.mu.Lock()
		s.kernelName = name
		s.mu.Unlock()
	}
	specs, err := s.client.KernelSpecs(ctx)
	if err != nil {
		return schema.KernelSpecInfo{}, err
	}
	record, ok := specs.KernelSpecs[name]
	if !ok {
		return schema.KernelSpecInfo{}, fmt.Errorf("kernelspec %q: %w", name, schema.ErrNotFound)
	}
	info := record.Info()
	if info.Name == "" {
		info.Name = name
	}
	return info, nil
}

func (s *Session) send(ctx context.Context, id schema.MsgID, msgType string, content any, r *request) error {
	msg, err := schema.NewMessage(id, s.id, s.username, msgType, schema.ChannelShell, content)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}

	s.mu.Lock()
	if s.closed {
		err := s.closeErr
		s.mu.Unlock()
		return err
	}
	s.pending[id] = r
	s.mu.Unlock()

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(deadline)
	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		s.forget(id)
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	s.logger.Debug("kernel request sent", "msg_id", id, "msg_type", msgType)
	return nil
}

func (s *Session) forget(id schema.MsgID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(err)
			return
		}
		var msg schema.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("kernel message decode failed", "error", err)
			continue
		}
		s.route(msg)
	}
}

// route delivers msg to its request. It runs on the reader goroutine only,
// so handlers see messages in arrival order.
func (s *Session) route(msg schema.Message) {
	parent := msg.ParentHeader.MsgID
	s.mu.Lock()
	r, ok := s.pending[parent]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("kernel message without pending request", "msg_type", msg.Header.MsgType, "parent", parent)
		return
	}

	switch msg.Channel {
	case schema.ChannelIOPub:
		if msg.Header.MsgType == schema.MsgStatus {
			var status schema.KernelStatus
			if json.Unmarshal(msg.Content, &status) == nil && status.ExecutionState == "idle" {
				r.idle = true
			}
		}
		if r.handlers.IOPub != nil {
			r.handlers.IOPub(msg)
		}
	case schema.ChannelShell:
		switch msg.Header.MsgType {
		case schema.MsgExecuteReply:
			var reply schema.ExecuteReply
			if err := json.Unmarshal(msg.Content, &reply); err != nil {
				s.logger.Warn("kernel execute reply decode failed", "msg_id", parent, "error", err)
				reply = schema.ExecuteReply{Status: schema.StatusError}
			}
			r.replied = true
			if r.handlers.Reply != nil {
				r.handlers.Reply(reply)
			}
		case schema.MsgKernelInfoReply:
			r.replied = true
			r.idle = true
			r.info <- msg
		}
	default:
		return
	}
	if r.replied && r.idle {
		s.forget(parent)
		r.future.finish(nil)
	}
}

func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = cause
	if !errors.Is(cause, schema.ErrSessionClosed) {
		s.closeErr = fmt.Errorf("%w: %v", schema.ErrSessionClosed, cause)
	}
	pending := s.pending
	s.pending = make(map[schema.MsgID]*request)
	closeErr := s.closeErr
	s.mu.Unlock()

	for _, r := range pending {
		r.future.finish(closeErr)
	}
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure) || errors.Is(cause, schema.ErrSessionClosed) {
		s.logger.Info("kernel session closed")
		return
	}
	s.logger.Warn("kernel session lost", "error", cause)
}

// Close closes the connection and fails every outstanding request with
// schema.ErrSessionClosed.
func (s *Session) Close() error {
	s.shutdown(schema.ErrSessionClosed)
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.readerDone
	return err
}

type future struct {
	id   schema.MsgID
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture(id schema.MsgID) *future {
	return &future{id: id, done: make(chan struct{})}
}

func (f *future) MsgID() schema.MsgID { return f.id }

func (f *future) Done() <-chan struct{} { return f.done }

func (f *future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

func (f *future) finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}
