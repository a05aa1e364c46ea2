package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonformat "github.com/vpbank/flowrunner/format/json"
	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/config"
	"github.com/vpbank/flowrunner/pkg/flowrunner/graph"
	filetransport "github.com/vpbank/flowrunner/transport/file"
)

// writeGraph serialises a graph into dir and returns its file name.
func writeGraph(t *testing.T, dir, name string, g *models.Graph) string {
	t.Helper()
	data, err := jsonformat.New(nil).Encode(g, true)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	return name
}

// addTree is the canonical demo graph: two adders feeding a third, result
// printed to the stdout component.
func addTree(t *testing.T, dir string) string {
	t.Helper()
	g := graph.NewGraph()
	graph.AddProcess(g, "add1", "Add", nil, nil)
	graph.AddProcess(g, "add2", "Add", nil, nil)
	graph.AddProcess(g, "add3", "Add", nil, nil)
	graph.AddProcess(g, "printer", "_StdOut_", nil, nil)
	graph.AddIIP(g, 1, "add1", "a")
	graph.AddIIP(g, 2, "add1", "b")
	graph.AddIIP(g, 3, "add2", "a")
	graph.AddIIP(g, 4, "add2", "b")
	graph.AddConnection(g, "add1", "sum", "add3", "a")
	graph.AddConnection(g, "add2", "sum", "add3", "b")
	graph.AddConnection(g, "add3", "sum", "printer", "in")
	return writeGraph(t, dir, "add_tree.json", g)
}

func TestRunAddTree(t *testing.T) {
	dir := t.TempDir()
	name := addTree(t, dir)

	var buf bytes.Buffer
	err := Run(Config{
		GraphPath: name,
		Paths:     config.Paths{Graphs: dir},
		Stdout:    filetransport.New(filetransport.Config{Writer: &buf}, nil),
	}, nil)
	require.NoError(t, err)

	// JSON numbers decode as float64, so the sums stay floating point.
	assert.Equal(t, "10\n", buf.String())
}

func TestRunMissingGraphFile(t *testing.T) {
	err := Run(Config{
		GraphPath: "nope.json",
		Paths:     config.Paths{Graphs: t.TempDir()},
	}, nil)
	assert.Error(t, err)
}

func TestRunNoGraphConfigured(t *testing.T) {
	assert.Error(t, Run(Config{}, nil))
}

func TestRunUnknownComponentFailsBeforeStart(t *testing.T) {
	dir := t.TempDir()
	g := graph.NewGraph()
	graph.AddProcess(g, "mystery", "Teleport", nil, nil)
	name := writeGraph(t, dir, "bad.json", g)

	err := Run(Config{GraphPath: name, Paths: config.Paths{Graphs: dir}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component")
}

func TestRunWritesPlot(t *testing.T) {
	dir := t.TempDir()
	name := addTree(t, dir)
	plotPath := filepath.Join(dir, "graph.dot")

	var buf bytes.Buffer
	err := Run(Config{
		GraphPath: name,
		Paths:     config.Paths{Graphs: dir},
		PlotPath:  plotPath,
		Stdout:    filetransport.New(filetransport.Config{Writer: &buf}, nil),
	}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(plotPath)
	require.NoError(t, err)
	// The plot shows the normalized graph, synthesized processes included.
	assert.Contains(t, string(data), "*iips*")
}

func TestRunSubnetPassthrough(t *testing.T) {
	dir := t.TempDir()

	child := graph.NewGraph()
	graph.AddProcess(child, "relay", "NoOp", nil, nil)
	graph.AddExport(child, "IN", "relay", "in", true)
	graph.AddExport(child, "OUT", "relay", "out", false)
	writeGraph(t, dir, "child.json", child)

	outer := graph.NewGraph()
	graph.AddProcess(outer, "sub", "SubNet",
		map[string]interface{}{"graph": "child.json"}, nil)
	graph.AddProcess(outer, "printer", "_StdOut_", nil, nil)
	graph.AddIIP(outer, "hello", "sub", "IN")
	graph.AddConnection(outer, "sub", "OUT", "printer", "in")
	name := writeGraph(t, dir, "outer.json", outer)

	var buf bytes.Buffer
	err := Run(Config{
		GraphPath: name,
		Paths:     config.Paths{Graphs: dir},
		Stdout:    filetransport.New(filetransport.Config{Writer: &buf}, nil),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", buf.String())
}

func TestRunDebugSingleStep(t *testing.T) {
	dir := t.TempDir()
	g := graph.NewGraph()
	graph.AddProcess(g, "n1", "NoOp", nil, nil)
	graph.AddProcess(g, "n2", "NoOp", nil, nil)
	graph.AddProcess(g, "printer", "_StdOut_", nil, nil)
	graph.AddIIP(g, "x", "n1", "in")
	graph.AddConnection(g, "n1", "out", "n2", "in")
	graph.AddConnection(g, "n2", "out", "printer", "in")
	name := writeGraph(t, dir, "chain.json", g)

	// Four blocked processes after normalization: n1, n2, printer and the
	// synthesized *iips*. One newline releases each.
	var buf bytes.Buffer
	a := New(Config{
		GraphPath: name,
		Paths:     config.Paths{Graphs: dir},
		Sync:      true,
		Stdin:     strings.NewReader("\n\n\n\n"),
		Stdout:    filetransport.New(filetransport.Config{Writer: &buf}, nil),
	}, nil)
	require.NoError(t, a.Start())

	// 3 originals + *iips* + 4 harness processes.
	assert.Len(t, a.Network().Workers(), 8)

	require.NoError(t, a.Stop())
	assert.Equal(t, "x\n", buf.String())

	for _, w := range a.Network().Workers() {
		assert.NoError(t, w.Err(), "worker %s", w.Name())
	}
	assert.Empty(t, a.Network().Leak().Open())
}
