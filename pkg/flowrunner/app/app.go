// Package app wires the flow runner stages together and manages their
// lifecycle.
//
// Run path:
//
//	config [load graph] → normalize [merge-insert → IIP → debug] →
//	network [build] → Start → workers run → Stop
//
// The normalizer order matters: merge insertion must see the IIPs while
// they are still connection entries, and the debug harness runs last so the
// synthesized processes are wired for events too.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/component"
	"github.com/vpbank/flowrunner/pkg/flowrunner/config"
	"github.com/vpbank/flowrunner/pkg/flowrunner/network"
	"github.com/vpbank/flowrunner/pkg/flowrunner/normalize"
	"github.com/vpbank/flowrunner/plot"
	filetransport "github.com/vpbank/flowrunner/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for one flow run.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// GraphPath is the graph file to run (required).
	GraphPath string

	// Paths resolves relative graph references. Use config.PathsFromEnv()
	// to populate from environment variables.
	Paths config.Paths

	// Sync enables the debug normalizer: every process blocks after
	// receiving all its inputs until a newline arrives on Stdin.
	Sync bool

	// PlotPath, when set, writes the normalized graph as Graphviz DOT text
	// before the network runs.
	PlotPath string

	// BufferSize is the capacity of every channel. Default: the channel
	// package default.
	BufferSize int

	// Stdin feeds the _StdIn_ component. nil = os.Stdin.
	Stdin io.Reader

	// Stdout receives _StdOut_ packets. nil = os.Stdout via the line
	// writer sink.
	Stdout filetransport.Sink
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates one network run. Create one with New, build and launch
// it with Start, and block for completion with Stop.
type App struct {
	cfg    Config
	logger *slog.Logger

	graph *models.Graph
	net   *network.Network
}

// New constructs an App. It does not load or start anything — call Start
// for that. If logger is nil, a no-op logger is substituted.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &App{cfg: cfg, logger: logger}
}

// Graph returns the normalized graph. Valid after Start.
func (a *App) Graph() *models.Graph { return a.graph }

// Network returns the running network. Valid after Start.
func (a *App) Network() *network.Network { return a.net }

// Start loads the graph, runs the normalizers, optionally plots, builds the
// network, and launches the workers. It returns an error on any
// configuration problem, before a single worker has started.
func (a *App) Start() error {
	if a.cfg.GraphPath == "" {
		return fmt.Errorf("app: no graph file configured")
	}

	a.logger.Info("app: loading graph", "path", a.cfg.GraphPath)
	g, err := config.LoadGraph(a.cfg.Paths.Resolve(a.cfg.GraphPath), a.logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	g = normalize.InsertMerges(g, a.logger)
	g = normalize.IIPs(g, a.logger)
	if a.cfg.Sync {
		g = normalize.Debug(g, a.logger)
	}
	a.graph = g

	if a.cfg.PlotPath != "" {
		if err := plot.WriteDOT(g, a.cfg.GraphPath, a.cfg.PlotPath); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.logger.Info("app: graph plotted", "path", a.cfg.PlotPath)
	}

	registry := component.NewRegistry(component.Config{
		Stdin:      a.cfg.Stdin,
		Stdout:     a.cfg.Stdout,
		Paths:      a.cfg.Paths,
		BufferSize: a.cfg.BufferSize,
	}, a.logger)

	net, err := network.New(g, registry.Library(), network.Options{
		BufferSize: a.cfg.BufferSize,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.net = net

	a.logger.Info("app: network running",
		"processes", len(g.Processes),
		"connections", len(g.Connections),
		"sync", a.cfg.Sync,
	)
	net.Start()
	return nil
}

// Stop tears the network down and reports the first worker failure, if any.
// It blocks until every worker has terminated.
func (a *App) Stop() error {
	if a.net == nil {
		return nil
	}
	a.net.Stop()
	var firstErr error
	for _, w := range a.net.Workers() {
		if err := w.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.logger.Info("app: shutdown complete")
	return firstErr
}

// Run is the one-shot convenience: Start then Stop.
func Run(cfg Config, logger *slog.Logger) error {
	a := New(cfg, logger)
	if err := a.Start(); err != nil {
		return err
	}
	return a.Stop()
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
