package transport

import (
	"context"
	"sync"
)

// Pipe is an in-memory Transport pair for tests: envelopes sent on one end
// are received on the other, with no network or serialization involved.
type Pipe struct {
	out    chan *Envelope
	in     chan *Envelope
	closed chan struct{}
	once   sync.Once
}

// NewPipe returns two connected Transports; frames sent on a are received
// on b and vice versa.
func NewPipe(buffer int) (a, b *Pipe) {
	c1 := make(chan *Envelope, buffer)
	c2 := make(chan *Envelope, buffer)
	closed := make(chan struct{})
	a = &Pipe{out: c1, in: c2, closed: closed}
	b = &Pipe{out: c2, in: c1, closed: closed}
	return a, b
}

// Send enqueues env for the peer end.
func (p *Pipe) Send(ctx context.Context, env *Envelope) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- env:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next envelope sent by the peer end.
func (p *Pipe) Receive(ctx context.Context) (*Envelope, error) {
	select {
	case env, ok := <-p.in:
		if !ok {
			return nil, ErrClosed
		}
		return env, nil
	case <-p.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down both ends of the pipe. Close is idempotent.
func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

var _ Transport = (*Pipe)(nil)
