// Command flowrunner runs a flow graph file as a network of concurrent
// workers connected by bounded channels.
//
// It loads the graph (JSON or YAML), rewrites it into executable form
// (IIP extraction, merge insertion, optional single-step debug harness),
// runs the network to completion, and exits.
//
// Usage:
//
//	flowrunner -file graphs/add_tree.json [flags]
//
// A .env file in the working directory provides environment defaults
// (FLOWRUNNER_GRAPH_DIRECTORY_PATH).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"

	"github.com/vpbank/flowrunner/pkg/flowrunner/app"
	"github.com/vpbank/flowrunner/pkg/flowrunner/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flowrunner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		graphFile string
		logLevel  string
		logFmt    string
		logFile   string
		sync      bool
		plotPath  string
		bufSize   int
		graphDir  string
	)

	flag.StringVar(&graphFile, "file", "", "Graph file to run (required)")
	flag.StringVar(&logLevel, "log.level", "warn", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "text", "Log format: json, text")
	flag.StringVar(&logFile, "logfile", "", "Redirect log entries to a file")
	flag.BoolVar(&sync, "sync", false, "Step over processes, one-by-one, with the Enter key")
	flag.StringVar(&plotPath, "plot", "", "Write a Graphviz DOT plot of the graph to a file")
	flag.IntVar(&bufSize, "buffer.size", 0, "Channel buffer capacity (0 = default)")
	flag.StringVar(&graphDir, "graph.dir", "", "Override FLOWRUNNER_GRAPH_DIRECTORY_PATH")
	flag.Parse()

	if graphFile == "" {
		flag.Usage()
		return fmt.Errorf("missing required -file flag")
	}

	// ── Logger ───────────────────────────────────────────────────────────
	logger, closeLog, err := buildLogger(logLevel, logFmt, logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	// ── Paths ────────────────────────────────────────────────────────────
	paths := config.PathsFromEnv()
	if graphDir != "" {
		paths.Graphs = graphDir
	}

	// ── Run ──────────────────────────────────────────────────────────────
	return app.Run(app.Config{
		GraphPath:  graphFile,
		Paths:      paths,
		Sync:       sync,
		PlotPath:   plotPath,
		BufferSize: bufSize,
	}, logger)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format, path string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	out := os.Stderr
	closeLog := func() {}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeLog = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), closeLog, nil
}
