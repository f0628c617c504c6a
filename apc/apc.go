// Package apc runs one asynchronous procedure per tile request and hands the
// messages the procedures send back to the caller.
package apc

import (
	"context"
	"errors"
	"fmt"

	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/tilepack"
)

var (
	// ErrClosed is returned by Call once the dispatcher is closed.
	ErrClosed = errors.New("apc: dispatcher closed")

	// ErrMailboxClosed is returned by Context.Send once the dispatcher has
	// shut down.
	ErrMailboxClosed = errors.New("apc: mailbox closed")
)

// Context is what a procedure gets to talk to the outside world.
type Context interface {
	// SourceClient returns the client tiles are fetched with.
	SourceClient() tilepack.Client
	// Send delivers a message to the consumer. It never blocks.
	Send(msg pipeline.Message) error
}

// Procedure is one unit of work. A returned error is logged and handed to
// the dispatcher's ErrorHandler; it is never retried.
type Procedure func(ctx context.Context, req tilepack.TileRequest, c Context) error

// ErrorHandler is told about every failed procedure.
type ErrorHandler func(req tilepack.TileRequest, err error)

// AsyncProcedureCall dispatches procedures and delivers their messages.
type AsyncProcedureCall interface {
	// Call submits a procedure for req. The only error is a scheduling
	// failure, never the outcome of the procedure.
	Call(req tilepack.TileRequest, proc Procedure) error
	// Receive returns the next message without blocking.
	Receive() (pipeline.Message, bool)
	// Close stops accepting work and waits for submitted work to finish.
	// Messages already sent can still be received.
	Close() error
}

type job struct {
	req  tilepack.TileRequest
	proc Procedure
}

type procedureContext struct {
	client  tilepack.Client
	mailbox *mailbox
}

func (c *procedureContext) SourceClient() tilepack.Client {
	return c.client
}

func (c *procedureContext) Send(msg pipeline.Message) error {
	return c.mailbox.Send(msg)
}

// run executes one job, turning a panic into an error.
func run(ctx context.Context, j job, c Context, onError ErrorHandler) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("procedure panicked: %v", r)
			}
		}()
		return j.proc(ctx, j.req, c)
	}()
	if err == nil {
		return
	}

	tilepack.Logger().Error("procedure failed", "coords", j.req.Coords, "error", err)
	if onError != nil {
		onError(j.req, err)
	}
}
