// Package worker implements the common scaffold every component runs
// inside: the port table, multi-connection receive and round-robin send,
// internal event emission, and the drain-then-close shutdown that lets EOF
// cascade cleanly through the network.
//
// Pipeline position:
//
//	network [engine] → worker [scaffold] → component [body]
package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vpbank/flowrunner/pkg/flowrunner/channel"
)

// ErrUnconnected is returned when a body asks for data from a port
// connection that does not exist.
var ErrUnconnected = errors.New("worker: port not connected")

// Body is a component's business logic. It runs once inside the scaffold;
// returning ends the worker (the scaffold then drains and closes). A nil
// error and io.EOF both mean a normal finish.
type Body func(*Core) error

// Library maps component names to bodies. The network engine resolves every
// process through one of these, built once at startup.
type Library map[string]Body

// Ports is a worker's port table. Multiple ends per name encode fan-in on
// in-ports and fan-out on out-ports.
type Ports struct {
	In  map[string][]*channel.Consumer
	Out map[string][]*channel.Producer
}

// NewPorts returns an empty port table.
func NewPorts() Ports {
	return Ports{
		In:  map[string][]*channel.Consumer{},
		Out: map[string][]*channel.Producer{},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Core — the handle a component body receives
// ─────────────────────────────────────────────────────────────────────────────

// Core exposes the scaffold's operations to a component body. It is used
// from the worker's own goroutine only.
type Core struct {
	name     string
	ports    Ports
	config   map[string]interface{}
	metadata map[string]interface{}
	blockCfg map[string]bool
	logger   *slog.Logger

	// round-robin send counters, per out-port
	sendCount map[string]int

	// in-ports that have delivered at least one payload
	received     map[string]bool
	hasAllInputs bool

	// packets observed by the post-body drain
	drained int
}

// Name returns the process name.
func (c *Core) Name() string { return c.name }

// Logger returns the worker's logger.
func (c *Core) Logger() *slog.Logger { return c.logger }

// Config returns the component's configuration block (may be nil).
func (c *Core) Config() map[string]interface{} { return c.config }

// Metadata returns the process metadata (may be nil).
func (c *Core) Metadata() map[string]interface{} { return c.metadata }

// LenAt returns the number of connections on the named port.
func (c *Core) LenAt(port string, inport bool) int {
	if inport {
		return len(c.ports.In[port])
	}
	return len(c.ports.Out[port])
}

// GetDataAt receives one packet from the i-th connection of a named
// in-port. With poll set, it returns channel.ErrNotReady instead of
// blocking when nothing is available. End-of-stream is io.EOF.
func (c *Core) GetDataAt(i int, port string, poll bool) (interface{}, error) {
	conns := c.ports.In[port]
	if i < 0 || i >= len(conns) {
		c.logger.Info("worker: data requested from an unconnected port",
			"process", c.name,
			"port", port,
			"index", i,
		)
		return nil, fmt.Errorf("worker: %s.%s[%d]: %w", c.name, port, i, ErrUnconnected)
	}
	var (
		data interface{}
		err  error
	)
	if poll {
		data, err = conns[i].Poll()
	} else {
		data, err = conns[i].Recv()
	}
	if err != nil {
		return nil, err
	}
	c.logger.Debug("RECV", "process", c.name, "port", port, "data", data)
	c.received[port] = true
	c.checkInputs()
	return data, nil
}

// GetData receives one packet from the first connection of a named in-port.
// If the port has multiple connections an advisory is logged and the first
// is used.
func (c *Core) GetData(port string) (interface{}, error) {
	if n := len(c.ports.In[port]); n > 1 {
		c.logger.Info("worker: in-port has multiple connections, using the first",
			"process", c.name,
			"port", port,
			"connections", n,
		)
	}
	return c.GetDataAt(0, port, false)
}

// SetData sends a packet on a named out-port. With N outgoing connections
// the k-th call routes to connection k mod N. Sending to an unconnected
// out-port is a no-op with an advisory log. A send to a closed downstream
// returns channel.ErrBrokenPipe; the body should stop emitting on that
// port.
func (c *Core) SetData(port string, data interface{}) error {
	conns := c.ports.Out[port]
	if len(conns) == 0 {
		c.logger.Info("worker: data sent to an unconnected port",
			"process", c.name,
			"port", port,
		)
		return nil
	}
	idx := c.sendCount[port] % len(conns)
	c.sendCount[port]++
	c.logger.Debug("SEND", "process", c.name, "port", port, "data", data)
	if err := c.SendAt(idx, port, data); err != nil {
		return err
	}
	return nil
}

// SendAt sends on a specific connection of a named out-port, bypassing the
// round-robin counter.
func (c *Core) SendAt(i int, port string, data interface{}) error {
	conns := c.ports.Out[port]
	if i < 0 || i >= len(conns) {
		return fmt.Errorf("worker: %s.%s[%d]: %w", c.name, port, i, ErrUnconnected)
	}
	if err := conns[i].Send(data); err != nil {
		c.logger.Warn("worker: send failed",
			"process", c.name,
			"port", port,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// InternalEvent emits a lifecycle event on the reserved events out-port.
// When the worker's blocking configuration marks the event type, a fresh
// acknowledgement handle is attached and the call blocks until a recipient
// signals it. An unconnected events port suppresses the event silently.
func (c *Core) InternalEvent(eventType string) {
	if len(c.ports.Out[EventPort]) == 0 {
		c.logger.Debug("worker: event suppressed, no events port",
			"process", c.name,
			"type", eventType,
		)
		return
	}
	ev := Event{ID: uuid.New(), Sender: c.name, Type: eventType}
	if c.blockCfg[eventType] {
		ev.Ack = NewAck()
		if err := c.SetData(EventPort, ev); err != nil {
			return
		}
		ev.Ack.Wait()
		return
	}
	_ = c.SetData(EventPort, ev)
}

// checkInputs emits ReceivedAllInputs the first time every declared in-port
// has delivered a payload. A worker with no in-ports satisfies the check
// immediately.
func (c *Core) checkInputs() {
	if c.hasAllInputs || len(c.received) != len(c.ports.In) {
		return
	}
	c.hasAllInputs = true
	c.InternalEvent(EventReceivedAllInputs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Worker
// ─────────────────────────────────────────────────────────────────────────────

// Options configures a worker beyond its name and body.
type Options struct {
	Ports    Ports
	Config   map[string]interface{}
	Metadata map[string]interface{}
	BlockCfg map[string]bool
	Logger   *slog.Logger
}

// Worker binds a component body to its port table and runs it with the
// scaffold lifecycle: emit-ready check, body, drain, close.
type Worker struct {
	core *Core
	body Body

	startOnce sync.Once
	done      chan struct{}
	err       error
}

// New builds a worker. A nil logger is replaced with a no-op logger.
func New(name string, body Body, opts Options) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	ports := opts.Ports
	if ports.In == nil {
		ports.In = map[string][]*channel.Consumer{}
	}
	if ports.Out == nil {
		ports.Out = map[string][]*channel.Producer{}
	}
	return &Worker{
		core: &Core{
			name:      name,
			ports:     ports,
			config:    opts.Config,
			metadata:  opts.Metadata,
			blockCfg:  opts.BlockCfg,
			logger:    logger,
			sendCount: map[string]int{},
			received:  map[string]bool{},
		},
		body: body,
		done: make(chan struct{}),
	}
}

// Name returns the process name.
func (w *Worker) Name() string { return w.core.name }

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Join blocks until the worker has terminated.
func (w *Worker) Join() {
	<-w.done
}

// Err returns the failure recorded by the body or a panic, nil on a clean
// exit. Valid after Join.
func (w *Worker) Err() error { return w.err }

// Drained returns how many packets the post-body drain observed (and
// discarded). Valid after Join.
func (w *Worker) Drained() int { return w.core.drained }

// run is the scaffold lifecycle.
func (w *Worker) run() {
	core := w.core
	defer close(w.done)
	defer w.closeAll()
	defer func() {
		if r := recover(); r != nil {
			w.err = fmt.Errorf("worker: %s: panic: %v", core.name, r)
			core.logger.Error("worker: component body panicked",
				"process", core.name,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	core.logger.Debug("BGIN", "process", core.name)

	// A component with no in-ports has all its inputs by definition.
	core.checkInputs()

	if err := w.body(core); err != nil && !errors.Is(err, io.EOF) {
		w.err = fmt.Errorf("worker: %s: %w", core.name, err)
		core.logger.Error("worker: component body failed",
			"process", core.name,
			"error", err.Error(),
		)
	}

	w.drain()
	core.logger.Debug("END ", "process", core.name)
}

// drain reads every in-port connection to EOF so upstream producers can
// close without losing track of buffered packets. Drained packets are not
// delivered anywhere, but they are counted as observed.
func (w *Worker) drain() {
	core := w.core
	core.logger.Debug("WAIT", "process", core.name)
	for port, conns := range core.ports.In {
		for i := range conns {
			for {
				_, err := conns[i].Recv()
				if err != nil {
					break
				}
				core.drained++
				core.logger.Debug("worker: drained packet",
					"process", core.name,
					"port", port,
				)
			}
		}
	}
}

// closeAll closes every channel end this worker holds, the events port
// included.
func (w *Worker) closeAll() {
	core := w.core
	for _, conns := range core.ports.In {
		for _, conn := range conns {
			conn.Close()
		}
	}
	for _, conns := range core.ports.Out {
		for _, conn := range conns {
			conn.Close()
		}
	}
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
