package worker

import (
	"sync"

	"github.com/google/uuid"
)

// EventPort is the reserved out-port used for internal lifecycle events.
// A worker whose graph does not connect this port simply never emits.
const EventPort = "events"

// EventReceivedAllInputs is emitted the first time a worker has received a
// payload on every one of its declared in-ports.
const EventReceivedAllInputs = "ReceivedAllInputs"

// Event is an internal lifecycle notification that travels across ordinary
// channels. When the emitting worker is configured to block on the event
// type, Ack carries a single-use acknowledgement handle the recipient must
// signal to release the emitter.
type Event struct {
	ID     uuid.UUID
	Sender string
	Type   string
	Ack    *Ack
}

// Ack is a single-use acknowledgement handle. The emitter waits on it; any
// holder releases the emitter by signalling it. Signalling more than once is
// harmless.
type Ack struct {
	once sync.Once
	ch   chan struct{}
}

// NewAck returns an unsignalled handle.
func NewAck() *Ack {
	return &Ack{ch: make(chan struct{})}
}

// Signal releases every waiter. Idempotent.
func (a *Ack) Signal() {
	a.once.Do(func() { close(a.ch) })
}

// Wait blocks until Signal is called.
func (a *Ack) Wait() {
	<-a.ch
}

// Done exposes the underlying channel for select-based waiters.
func (a *Ack) Done() <-chan struct{} {
	return a.ch
}
