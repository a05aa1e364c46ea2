// Package config loads graph files for the flow runner.
//
// Graph files come in two on-disk formats, chosen by extension: JSON
// (".json", the default, decoded by format/json with a repair fallback) and
// YAML (".yml" / ".yaml"). Relative paths are resolved against the graph
// directory, which defaults to the current directory and can be overridden
// with FLOWRUNNER_GRAPH_DIRECTORY_PATH.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	jsonformat "github.com/vpbank/flowrunner/format/json"
	"github.com/vpbank/flowrunner/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations used to resolve relative graph
// references (the root graph on the command line, and the child graphs
// subnet processes name in their configuration).
type Paths struct {
	Graphs string // FLOWRUNNER_GRAPH_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back
// to the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Graphs: envOr("FLOWRUNNER_GRAPH_DIRECTORY_PATH", "."),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Resolve turns a graph reference into a path: absolute references pass
// through, relative ones are joined to the graph directory.
func (p Paths) Resolve(ref string) string {
	if filepath.IsAbs(ref) || p.Graphs == "" {
		return ref
	}
	return filepath.Join(p.Graphs, ref)
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// LoadGraph reads and parses one graph file, picking the codec from the
// file extension. The returned graph is the raw declarative form; callers
// run the normalizers before building a network from it.
func LoadGraph(path string, logger *slog.Logger) (*models.Graph, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read graph %s: %w", path, err)
	}

	var g *models.Graph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		g = &models.Graph{}
		if err := yaml.Unmarshal(data, g); err != nil {
			return nil, fmt.Errorf("config: parse graph %s: %w", path, err)
		}
	default:
		g, err = jsonformat.New(logger).Decode(data)
		if err != nil {
			return nil, fmt.Errorf("config: parse graph %s: %w", path, err)
		}
	}

	logger.Debug("config: graph loaded",
		"path", path,
		"processes", len(g.Processes),
		"connections", len(g.Connections),
	)
	return g, nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
