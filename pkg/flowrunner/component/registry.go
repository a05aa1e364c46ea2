// Package component implements the elementary component library and the
// registry that maps component names to worker bodies.
//
// Pipeline position:
//
//	component [library] → network [dispatch] → worker [scaffold]
//
// A Registry is built once at startup; the network engine resolves every
// process through the Library it produces with a single map lookup. The
// stdio components read and write through injected streams so tests (and
// embedding programs) can drive them without touching the real process
// stdin/stdout.
package component

import (
	"io"
	"log/slog"
	"os"

	"github.com/vpbank/flowrunner/pkg/flowrunner/config"
	"github.com/vpbank/flowrunner/pkg/flowrunner/worker"
	filetransport "github.com/vpbank/flowrunner/transport/file"
)

// Component names understood by the registry. Names wrapped in underscores
// are kept for graph-file compatibility; the runtime schedules every worker
// the same way.
const (
	Add     = "Add"
	NoOp    = "NoOp"
	Info    = "Info"
	Filter  = "Filter"
	Merge   = "Merge"
	Join    = "Join"
	UnBlock = "UnBlock"
	SubNet  = "SubNet"
	IIPs    = "_IIPs_"
	StdIn   = "_StdIn_"
	StdOut  = "_StdOut_"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the external collaborators the components touch.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// Stdin is the stream _StdIn_ reads lines from. nil = os.Stdin.
	Stdin io.Reader

	// Stdout is the sink _StdOut_ writes packets to. nil = a line writer
	// over os.Stdout.
	Stdout filetransport.Sink

	// Paths resolves the child graph references of SubNet processes.
	Paths config.Paths

	// BufferSize is the channel capacity for subnet child networks.
	// Default: the channel package default.
	BufferSize int
}

func (c *Config) withDefaults() {
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = filetransport.New(filetransport.Config{}, nil)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// Registry builds and owns the component library.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	lib    worker.Library
}

// NewRegistry constructs a Registry. If logger is nil, a no-op logger is
// substituted.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	r := &Registry{cfg: cfg, logger: logger}
	r.lib = worker.Library{
		Add:     add,
		NoOp:    noop,
		"_NoOp_": noop,
		Info:    info,
		Filter:  filter,
		Merge:   merge,
		Join:    join,
		UnBlock: unblock,
		IIPs:    iips,
		StdIn:   r.stdin,
		StdOut:  r.stdout,
		SubNet:  r.subnet,
	}
	return r
}

// Library returns the component name → body table. The map is shared; do
// not mutate it.
func (r *Registry) Library() worker.Library {
	return r.lib
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
