package apc

import (
	"context"
	"sync"

	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Scheduler is a single cooperative executor. Submitted procedures run one
// at a time on the goroutine that calls Receive or RunPending, so the
// consumer's loop drives all progress.
type Scheduler struct {
	ctx     context.Context
	client  tilepack.Client
	onError ErrorHandler
	mailbox *mailbox
	procCtx *procedureContext

	mu     sync.Mutex
	queue  []job
	closed bool
}

var _ AsyncProcedureCall = (*Scheduler)(nil)

func NewScheduler(ctx context.Context, client tilepack.Client, onError ErrorHandler) *Scheduler {
	s := &Scheduler{
		ctx:     ctx,
		client:  client,
		onError: onError,
		mailbox: newMailbox(),
	}
	s.procCtx = &procedureContext{client: client, mailbox: s.mailbox}
	return s
}

func (s *Scheduler) Call(req tilepack.TileRequest, proc Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.queue = append(s.queue, job{req: req, proc: proc})
	return nil
}

// step runs the oldest queued procedure. It reports false when none was
// queued.
func (s *Scheduler) step() bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	j := s.queue[0]
	s.queue[0] = job{}
	s.queue = s.queue[1:]
	s.mu.Unlock()

	run(s.ctx, j, s.procCtx, s.onError)
	return true
}

// Receive returns the next message, running queued procedures until one
// produces a message or none are left.
func (s *Scheduler) Receive() (pipeline.Message, bool) {
	for {
		if msg, ok := s.mailbox.Receive(); ok {
			return msg, true
		}
		if !s.step() {
			return nil, false
		}
	}
}

// RunPending runs every queued procedure, including those queued while it
// runs, and returns how many ran.
func (s *Scheduler) RunPending() int {
	n := 0
	for s.step() {
		n++
	}
	return n
}

// Queued returns the number of procedures waiting to run.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting work and runs what is still queued.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.RunPending()
	s.mailbox.close()
	return nil
}
