package apc

import (
	"context"
	"sync"

	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Workers is the number of goroutines running procedures. Defaults to 25.
	Workers int
	// QueueSize bounds the submitted but not yet started procedures. Call
	// blocks while the queue is full. Defaults to 2000.
	QueueSize    int
	ErrorHandler ErrorHandler
}

// Pool runs procedures on a fixed set of worker goroutines.
type Pool struct {
	ctx     context.Context
	client  tilepack.Client
	onError ErrorHandler

	jobs    chan job
	mailbox *mailbox
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ AsyncProcedureCall = (*Pool)(nil)

// NewPool starts the workers. ctx is passed to every procedure.
func NewPool(ctx context.Context, client tilepack.Client, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 25
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 2000
	}

	p := &Pool{
		ctx:     ctx,
		client:  client,
		onError: opts.ErrorHandler,
		jobs:    make(chan job, opts.QueueSize),
		mailbox: newMailbox(),
	}

	for w := 0; w < opts.Workers; w++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	c := &procedureContext{client: p.client, mailbox: p.mailbox}
	for j := range p.jobs {
		run(p.ctx, j, c, p.onError)
	}
}

func (p *Pool) Call(req tilepack.TileRequest, proc Procedure) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	p.jobs <- job{req: req, proc: proc}
	return nil
}

func (p *Pool) Receive() (pipeline.Message, bool) {
	return p.mailbox.Receive()
}

// Notify is signalled after a message is sent. One signal may stand for
// several messages.
func (p *Pool) Notify() <-chan struct{} {
	return p.mailbox.notify
}

// Pending returns the number of messages waiting to be received.
func (p *Pool) Pending() int {
	return p.mailbox.Len()
}

func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.mailbox.close()
	return nil
}
