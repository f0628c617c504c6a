package pipeline

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Context is threaded through every stage of one run.
type Context struct {
	processor Processor
	runID     uuid.UUID
	logger    *slog.Logger
}

// NewContext creates the context of a new run reporting to processor.
func NewContext(processor Processor) *Context {
	id := uuid.New()
	return &Context{
		processor: processor,
		runID:     id,
		logger:    tilepack.Logger().With("run", id.String()),
	}
}

func (c *Context) Processor() Processor {
	return c.processor
}

// RunID identifies the run in logs.
func (c *Context) RunID() uuid.UUID {
	return c.runID
}

func (c *Context) Logger() *slog.Logger {
	return c.logger
}
