// Package channel provides the bounded, in-process stream primitive that
// connects one component's output port to another component's input port.
//
// A Channel is a FIFO queue with a fixed capacity. Senders block when the
// buffer is full (backpressure) and receivers block when it is empty. Closing
// a channel signals end-of-stream: receivers drain any buffered items and
// then observe termination, while further sends return ErrClosed instead of
// panicking.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Send after the channel has been closed. It marks
// end-of-stream, not a failure: a producer seeing ErrClosed should stop
// sending on that port.
var ErrClosed = errors.New("channel closed")

// Channel is a bounded FIFO stream between exactly one producer port and one
// consumer port. All methods are safe for concurrent use.
type Channel struct {
	name     string
	capacity int

	items chan any

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a channel with the given name and buffer capacity.
// Capacity must be at least 1.
func New(name string, capacity int) (*Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("channel name cannot be empty")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("channel %s: capacity must be >= 1, got %d", name, capacity)
	}
	return &Channel{
		name:     name,
		capacity: capacity,
		items:    make(chan any, capacity),
		done:     make(chan struct{}),
	}, nil
}

// Name returns the channel's identifier, typically "src.port->dst.port".
func (c *Channel) Name() string { return c.name }

// Cap returns the configured buffer capacity.
func (c *Channel) Cap() int { return c.capacity }

// Len returns the number of items currently buffered. The value is a
// point-in-time snapshot and may be stale by the time it is read.
func (c *Channel) Len() int { return len(c.items) }

// Close marks the channel as ended. Buffered items remain receivable;
// subsequent sends return ErrClosed. Close is idempotent.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send enqueues an item, blocking while the buffer is full. It returns
// ErrClosed if the channel was closed, or the context error if ctx is
// cancelled while waiting.
func (c *Channel) Send(ctx context.Context, item any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.items <- item:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the next item, blocking while the buffer is empty. The
// second return value is false when the stream has ended: either the channel
// was closed and fully drained, or ctx was cancelled.
func (c *Channel) Receive(ctx context.Context) (any, bool) {
	for {
		// Buffered items are delivered even after Close.
		select {
		case item := <-c.items:
			return item, true
		default:
		}

		select {
		case item := <-c.items:
			return item, true
		case <-c.done:
			// Close may race with a final Send; prefer the item.
			select {
			case item := <-c.items:
				return item, true
			default:
				return nil, false
			}
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Sender is the producing end of a channel, held by the source component.
type Sender struct {
	c *Channel
}

// Receiver is the consuming end of a channel, held by the destination
// component.
type Receiver struct {
	c *Channel
}

// Ends returns the sender and receiver views of the channel.
func (c *Channel) Ends() (*Sender, *Receiver) {
	return &Sender{c: c}, &Receiver{c: c}
}

// Send enqueues an item on the underlying channel.
func (s *Sender) Send(ctx context.Context, item any) error {
	return s.c.Send(ctx, item)
}

// Close ends the stream. Idempotent.
func (s *Sender) Close() { s.c.Close() }

// Channel returns the underlying channel.
func (s *Sender) Channel() *Channel { return s.c }

// Receive dequeues the next item. See Channel.Receive.
func (r *Receiver) Receive(ctx context.Context) (any, bool) {
	return r.c.Receive(ctx)
}

// Channel returns the underlying channel.
func (r *Receiver) Channel() *Channel { return r.c }
