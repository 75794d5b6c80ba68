package core

import (
	"context"

	"pkt.systems/cellpad/schema"
)

// Session is the execution backend collaborator: a live kernel connection.
type Session interface {
	// Execute sends an execute request. Handlers may be invoked from any
	// goroutine but must be invoked in the order messages arrive, with the
	// reply handler invoked at most once.
	Execute(ctx context.Context, req schema.ExecuteRequest, handlers ExecuteHandlers) (Future, error)
	// KernelInfo fetches kernel_info_reply content.
	KernelInfo(ctx context.Context) (schema.KernelInfo, error)
	// KernelSpec returns the kernelspec name and display name of the
	// running kernel.
	KernelSpec(ctx context.Context) (schema.KernelSpecInfo, error)
}

// ExecuteHandlers receive the messages of one execute request.
type ExecuteHandlers struct {
	// IOPub receives every iopub message whose parent is the request.
	IOPub func(msg schema.Message)
	// Reply receives the execute_reply content.
	Reply func(reply schema.ExecuteReply)
}

// Future tracks an outstanding execute request.
type Future interface {
	MsgID() schema.MsgID
	// Done is closed once the reply handler has been invoked and the kernel
	// reported idle for the request, or the session gave up on it. Every
	// handler call happens before Done is closed.
	Done() <-chan struct{}
	// Err reports why the request finished without a reply.
	Err() error
}

// Contents persists notebooks.
type Contents interface {
	Get(ctx context.Context, path string) (schema.ContentsModel, error)
	Save(ctx context.Context, path string, model schema.ContentsModel) (schema.ContentsModel, error)
}
