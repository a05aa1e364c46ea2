// Package network materializes a normalized graph as a running network:
// one worker per process, one bounded channel per connection, IIP payloads
// injected at construction, and an EOF-driven teardown.
//
// Pipeline position:
//
//	normalize [rewrite] → network [build/run] → worker [scaffold]
//
// Lifecycle: New validates the graph and wires everything (no goroutine
// starts), Start launches the workers, Stop closes the external in-ports,
// joins every worker, then closes the external out-ports. Termination is
// EOF-driven end to end: closing every producer that feeds a worker makes it
// drain, exit, and close its own outputs, which cascades downstream.
package network

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/channel"
	"github.com/vpbank/flowrunner/pkg/flowrunner/worker"
)

// DefaultName is the parent name used for a root network.
const DefaultName = "root"

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Options configures network construction. The zero value builds a root
// network with IIP injection enabled.
type Options struct {
	// Name is the parent network name; external connection stubs carry it.
	// Default: "root".
	Name string

	// SkipIIPs leaves IIP connection entries unapplied. Subnets set this:
	// their child graphs have already been IIP-normalized.
	SkipIIPs bool

	// BufferSize is the capacity of every channel. Default:
	// channel.DefaultCapacity.
	BufferSize int

	// Leak is the registry the created channel ends are recorded in.
	// Default: a fresh registry. Subnet child networks are built with the
	// default, so their ends are not recorded in the parent's registry.
	Leak *channel.Registry

	// Logger receives engine and worker logging. Default: no-op.
	Logger *slog.Logger
}

func (o *Options) withDefaults() {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.BufferSize <= 0 {
		o.BufferSize = channel.DefaultCapacity
	}
	if o.Leak == nil {
		o.Leak = channel.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Network
// ─────────────────────────────────────────────────────────────────────────────

// Interface is the parent-side view of a network's exported ports: the
// parent sends into Inports and receives from Outports.
type Interface struct {
	Inports  map[string][]*channel.Producer
	Outports map[string][]*channel.Consumer
}

// Network is a constructed (and possibly running) network instance.
type Network struct {
	name    string
	workers []*worker.Worker
	iface   Interface
	leak    *channel.Registry
	logger  *slog.Logger
}

// connRecord is one entry of the unified connection stream: internal
// connections (with optional IIP payload) followed by exported ports.
// Parent-side endpoints carry the parent network name as their process.
type connRecord struct {
	src     models.Endpoint
	tgt     models.Endpoint
	data    interface{}
	hasData bool
}

// New builds a network from a normalized graph and a component library.
// Configuration errors (unknown component, missing referenced process) are
// detected here, before any worker starts.
func New(g *models.Graph, lib worker.Library, opts Options) (*Network, error) {
	opts.withDefaults()
	logger := opts.Logger

	if err := validate(g, lib, opts.Name); err != nil {
		return nil, err
	}

	ports := map[string]worker.Ports{}
	for name := range g.Processes {
		ports[name] = worker.NewPorts()
	}
	iface := Interface{
		Inports:  map[string][]*channel.Producer{},
		Outports: map[string][]*channel.Consumer{},
	}

	for _, rec := range connectionStream(g, opts.Name, !opts.SkipIIPs) {
		logger.Debug("CONN",
			"src", rec.src.Process+"."+rec.src.Port,
			"tgt", rec.tgt.Process+"."+rec.tgt.Port,
		)
		prod, cons := channel.New(opts.BufferSize)
		opts.Leak.Register(prod, rec.src.Process, rec.src.Port, false, opts.Name)
		opts.Leak.Register(cons, rec.tgt.Process, rec.tgt.Port, true, opts.Name)

		// Consumer side: a worker in-port, or the parent's view of an
		// exported out-port.
		if rec.tgt.Process == opts.Name {
			iface.Outports[rec.tgt.Port] = append(iface.Outports[rec.tgt.Port], cons)
		} else {
			pt := ports[rec.tgt.Process]
			pt.In[rec.tgt.Port] = append(pt.In[rec.tgt.Port], cons)
		}

		// Producer side: an IIP stub (send the payload now, then close so
		// EOF follows it), a worker out-port, or the parent's view of an
		// exported in-port.
		switch {
		case rec.hasData:
			logger.Debug("IIP ",
				"tgt", rec.tgt.Process+"."+rec.tgt.Port,
				"data", rec.data,
			)
			if err := prod.Send(rec.data); err != nil {
				return nil, fmt.Errorf("network: %s: inject IIP into %s.%s: %w",
					opts.Name, rec.tgt.Process, rec.tgt.Port, err)
			}
			prod.Close()
		case rec.src.Process == opts.Name:
			iface.Inports[rec.src.Port] = append(iface.Inports[rec.src.Port], prod)
		default:
			pt := ports[rec.src.Process]
			pt.Out[rec.src.Port] = append(pt.Out[rec.src.Port], prod)
		}
	}

	// Deterministic worker order: sorted process names.
	names := make([]string, 0, len(g.Processes))
	for name := range g.Processes {
		names = append(names, name)
	}
	sort.Strings(names)

	workers := make([]*worker.Worker, 0, len(names))
	for _, name := range names {
		proc := g.Processes[name]
		logger.Debug("PROC", "process", name, "component", proc.Component)
		workers = append(workers, worker.New(name, lib[proc.Component], worker.Options{
			Ports:    ports[name],
			Config:   proc.Config(),
			Metadata: proc.Metadata,
			BlockCfg: blockConfig(proc.Config()),
			Logger:   logger,
		}))
	}

	return &Network{
		name:    opts.Name,
		workers: workers,
		iface:   iface,
		leak:    opts.Leak,
		logger:  logger,
	}, nil
}

// Name returns the parent network name.
func (n *Network) Name() string { return n.name }

// Interface returns the parent-side exported port table.
func (n *Network) Interface() Interface { return n.iface }

// Leak returns the registry holding every channel end this network created.
func (n *Network) Leak() *channel.Registry { return n.leak }

// Workers returns the network's workers in start order.
func (n *Network) Workers() []*worker.Worker { return n.workers }

// Start launches every worker.
func (n *Network) Start() {
	for _, w := range n.workers {
		w.Start()
	}
	n.logger.Debug("network: started",
		"network", n.name,
		"workers", len(n.workers),
	)
}

// Stop tears the network down: close every external in-port end (EOF flows
// into the network), join every worker, then close every external out-port
// end. Afterwards every channel end in the leak registry must be closed;
// leftovers are logged and force-closed.
func (n *Network) Stop() {
	for _, conns := range n.iface.Inports {
		for _, conn := range conns {
			conn.Close()
		}
	}
	for _, w := range n.workers {
		w.Join()
	}
	for _, conns := range n.iface.Outports {
		for _, conn := range conns {
			conn.Close()
		}
	}
	if open := n.leak.Open(); len(open) > 0 {
		for _, e := range open {
			n.logger.Warn("network: channel end left open at stop",
				"network", n.name,
				"end", e.String(),
			)
		}
		n.leak.CloseOpen()
	}
	n.logger.Debug("network: stopped", "network", n.name)
}

// ─────────────────────────────────────────────────────────────────────────────
// Connection stream
// ─────────────────────────────────────────────────────────────────────────────

// connectionStream yields the unified stream New wires from: internal
// connections in graph order (IIPs included when applyIIPs is set), then
// exported in-ports, then exported out-ports. IIP and export stubs use
// parentName as their process.
func connectionStream(g *models.Graph, parentName string, applyIIPs bool) []connRecord {
	recs := internalConnections(g, parentName, applyIIPs)
	return append(recs, exportConnections(g, parentName)...)
}

// internalConnections yields the graph's connection list. An IIP becomes a
// stub connection sourced at the parent, port "_{i}_" by IIP ordinal.
func internalConnections(g *models.Graph, parentName string, applyIIPs bool) []connRecord {
	var recs []connRecord
	iipCount := 0
	for _, conn := range g.Connections {
		if conn.IsIIP() {
			if !applyIIPs {
				continue
			}
			recs = append(recs, connRecord{
				src:     models.Endpoint{Process: parentName, Port: fmt.Sprintf("_%d_", iipCount)},
				tgt:     conn.Tgt,
				data:    conn.Data,
				hasData: true,
			})
			iipCount++
			continue
		}
		recs = append(recs, connRecord{src: *conn.Src, tgt: conn.Tgt})
	}
	return recs
}

// exportConnections yields one stub connection per exported port, in-ports
// first, each side sorted by external name.
func exportConnections(g *models.Graph, parentName string) []connRecord {
	var recs []connRecord
	for _, name := range sortedKeys(g.Inports) {
		ep := g.Inports[name]
		recs = append(recs, connRecord{
			src: models.Endpoint{Process: parentName, Port: name},
			tgt: ep,
		})
	}
	for _, name := range sortedKeys(g.Outports) {
		ep := g.Outports[name]
		recs = append(recs, connRecord{
			src: ep,
			tgt: models.Endpoint{Process: parentName, Port: name},
		})
	}
	return recs
}

func sortedKeys(m map[string]models.Endpoint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// validate rejects malformed graphs before any channel or worker exists.
func validate(g *models.Graph, lib worker.Library, parentName string) error {
	for name, proc := range g.Processes {
		if name == parentName {
			return fmt.Errorf("network: process %q collides with the network name", name)
		}
		if _, ok := lib[proc.Component]; !ok {
			return fmt.Errorf("network: process %q: unknown component %q", name, proc.Component)
		}
	}
	for i, conn := range g.Connections {
		if !conn.IsIIP() {
			if _, ok := g.Processes[conn.Src.Process]; !ok {
				return fmt.Errorf("network: connection %d: unknown source process %q", i, conn.Src.Process)
			}
		}
		if _, ok := g.Processes[conn.Tgt.Process]; !ok {
			return fmt.Errorf("network: connection %d: unknown target process %q", i, conn.Tgt.Process)
		}
	}
	for name, ep := range g.Inports {
		if _, ok := g.Processes[ep.Process]; !ok {
			return fmt.Errorf("network: in-port %q: unknown process %q", name, ep.Process)
		}
	}
	for name, ep := range g.Outports {
		if _, ok := g.Processes[ep.Process]; !ok {
			return fmt.Errorf("network: out-port %q: unknown process %q", name, ep.Process)
		}
	}
	return nil
}

// blockConfig extracts the per-event blocking table from a component config
// ("blocking" key). Both native and JSON-decoded map shapes are accepted.
func blockConfig(cfg map[string]interface{}) map[string]bool {
	if cfg == nil {
		return nil
	}
	out := map[string]bool{}
	switch m := cfg["blocking"].(type) {
	case map[string]bool:
		for k, v := range m {
			out[k] = v
		}
	case map[string]interface{}:
		for k, v := range m {
			b, _ := v.(bool)
			out[k] = b
		}
	default:
		return nil
	}
	return out
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
