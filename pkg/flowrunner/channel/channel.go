// Package channel implements the bounded, typed, one-producer/one-consumer
// FIFO that joins two ports of a running network, plus the leak registry
// that tracks every end a network parent creates.
//
// Pipeline position:
//
//	network [engine] → channel [wire] → worker [runtime]
//
// A channel has exactly two ends. The producer end is owned by the sending
// worker, the consumer end by the receiving worker. When the producer end is
// closed and the buffer is drained, the consumer observes end-of-stream
// (io.EOF). Closing the consumer end discards any unread data and makes
// further sends fail with ErrBrokenPipe.
package channel

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the buffer size used when a caller passes a
// non-positive capacity to New.
const DefaultCapacity = 64

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotReady is returned by Consumer.Poll when no packet is buffered
	// and the producer end is still open. The caller may retry.
	ErrNotReady = errors.New("channel: no data ready")

	// ErrBrokenPipe is returned by Producer.Send when the consumer end has
	// been closed. The sender should treat the downstream as gone and stop
	// emitting on this connection.
	ErrBrokenPipe = errors.New("channel: consumer end closed")

	// ErrClosedEnd is returned by Producer.Send after the producer end has
	// been closed. (A consumer end reports io.EOF after its own Close.)
	ErrClosedEnd = errors.New("channel: operation on closed end")
)

// ─────────────────────────────────────────────────────────────────────────────
// Channel
// ─────────────────────────────────────────────────────────────────────────────

// state is the shared buffer behind a Producer/Consumer pair.
type state struct {
	buf chan interface{}

	prodOnce sync.Once
	consOnce sync.Once

	// consClosed unblocks a producer stuck in Send when the consumer goes
	// away mid-stream.
	consClosed chan struct{}

	prodDone atomic.Bool
	consDone atomic.Bool
}

// New creates a bounded channel and returns its two ends. capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int) (*Producer, *Consumer) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ch := &state{
		buf:        make(chan interface{}, capacity),
		consClosed: make(chan struct{}),
	}
	return &Producer{ch: ch}, &Consumer{ch: ch}
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer end
// ─────────────────────────────────────────────────────────────────────────────

// Producer is the sending end of a channel. It is owned by exactly one
// worker; only that worker may call Send or Close.
type Producer struct {
	ch *state
}

// Send delivers one packet, blocking while the buffer is full. It returns
// ErrClosedEnd after Close, and ErrBrokenPipe when the consumer end has been
// closed (the packet is dropped in that case).
func (p *Producer) Send(data interface{}) error {
	if p.ch.prodDone.Load() {
		return ErrClosedEnd
	}
	select {
	case <-p.ch.consClosed:
		return ErrBrokenPipe
	default:
	}
	select {
	case p.ch.buf <- data:
		return nil
	case <-p.ch.consClosed:
		return ErrBrokenPipe
	}
}

// Close marks end-of-stream. The consumer drains any buffered packets and
// then observes io.EOF. Close is idempotent.
func (p *Producer) Close() {
	p.ch.prodOnce.Do(func() {
		p.ch.prodDone.Store(true)
		close(p.ch.buf)
	})
}

// Closed reports whether Close has been called on this end.
func (p *Producer) Closed() bool {
	return p.ch.prodDone.Load()
}

// ─────────────────────────────────────────────────────────────────────────────
// Consumer end
// ─────────────────────────────────────────────────────────────────────────────

// Consumer is the receiving end of a channel. It is owned by exactly one
// worker; only that worker may call Recv, Poll or Close.
type Consumer struct {
	ch *state
}

// Recv blocks until a packet is available and returns it. It returns io.EOF
// once the producer end is closed and the buffer is drained; EOF is sticky.
// Recv after the consumer's own Close also returns io.EOF.
func (c *Consumer) Recv() (interface{}, error) {
	if c.ch.consDone.Load() {
		return nil, io.EOF
	}
	data, ok := <-c.ch.buf
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

// Poll is the non-blocking probe. It returns the next packet if one is
// buffered, io.EOF if the stream has ended, and ErrNotReady otherwise.
func (c *Consumer) Poll() (interface{}, error) {
	if c.ch.consDone.Load() {
		return nil, io.EOF
	}
	select {
	case data, ok := <-c.ch.buf:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	default:
		return nil, ErrNotReady
	}
}

// Close abandons the stream. Unread packets are discarded and any producer
// blocked in Send is released with ErrBrokenPipe. Close is idempotent.
func (c *Consumer) Close() {
	c.ch.consOnce.Do(func() {
		c.ch.consDone.Store(true)
		close(c.ch.consClosed)
	})
}

// Closed reports whether Close has been called on this end.
func (c *Consumer) Closed() bool {
	return c.ch.consDone.Load()
}
