package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/flowrunner/models"
)

func TestNewGraphIsEmpty(t *testing.T) {
	g := NewGraph()
	assert.Empty(t, g.Processes)
	assert.Empty(t, g.Connections)
	assert.Empty(t, g.Inports)
	assert.Empty(t, g.Outports)
}

func TestAddProcess(t *testing.T) {
	g := NewGraph()
	AddProcess(g, "adder", "Add", nil, nil)

	require.Contains(t, g.Processes, "adder")
	assert.Equal(t, "Add", g.Processes["adder"].Component)
	assert.Nil(t, g.Processes["adder"].Metadata)
}

func TestAddProcessWithConfig(t *testing.T) {
	g := NewGraph()
	AddProcess(g, "sub", "SubNet", map[string]interface{}{"graph": "child.json"}, nil)

	cfg := g.Processes["sub"].Config()
	require.NotNil(t, cfg)
	assert.Equal(t, "child.json", cfg["graph"])
}

func TestSetConfigMerges(t *testing.T) {
	g := NewGraph()
	AddProcess(g, "p", "NoOp", map[string]interface{}{"keep": 1, "replace": "old"}, nil)
	SetConfig(g, "p", map[string]interface{}{"replace": "new", "add": true})

	cfg := g.Processes["p"].Config()
	assert.Equal(t, 1, cfg["keep"])
	assert.Equal(t, "new", cfg["replace"])
	assert.Equal(t, true, cfg["add"])
}

func TestSetConfigUnknownProcessIsNoop(t *testing.T) {
	g := NewGraph()
	SetConfig(g, "ghost", map[string]interface{}{"x": 1})
	assert.Empty(t, g.Processes)
}

func TestAddConnectionDefaultsPorts(t *testing.T) {
	g := NewGraph()
	AddConnection(g, "a", "", "b", "")

	require.Len(t, g.Connections, 1)
	conn := g.Connections[0]
	require.NotNil(t, conn.Src)
	assert.Equal(t, models.Endpoint{Process: "a", Port: "out"}, *conn.Src)
	assert.Equal(t, models.Endpoint{Process: "b", Port: "in"}, conn.Tgt)
	assert.False(t, conn.IsIIP())
}

func TestAddConnectionExplicitPorts(t *testing.T) {
	g := NewGraph()
	AddConnection(g, "a", "sum", "b", "x")

	conn := g.Connections[0]
	assert.Equal(t, "sum", conn.Src.Port)
	assert.Equal(t, "x", conn.Tgt.Port)
}

func TestAddIIP(t *testing.T) {
	g := NewGraph()
	AddIIP(g, 42, "b", "")

	require.Len(t, g.Connections, 1)
	conn := g.Connections[0]
	assert.True(t, conn.IsIIP())
	assert.Equal(t, 42, conn.Data)
	assert.Equal(t, models.Endpoint{Process: "b", Port: "in"}, conn.Tgt)
}

func TestAddExport(t *testing.T) {
	g := NewGraph()
	AddExport(g, "IN", "p", "in", true)
	AddExport(g, "OUT", "p", "out", false)

	assert.Equal(t, models.Endpoint{Process: "p", Port: "in"}, g.Inports["IN"])
	assert.Equal(t, models.Endpoint{Process: "p", Port: "out"}, g.Outports["OUT"])
}

func TestModify(t *testing.T) {
	g := NewGraph()
	AddProcess(g, "p1", "NoOp", nil, nil)
	AddConnection(g, "p1", "", "p1", "")

	edits := NewGraph()
	AddProcess(edits, "p2", "Merge", nil, nil)
	AddConnection(edits, "p2", "", "p1", "")
	AddExport(edits, "IN", "p1", "in", true)

	Modify(g, edits)

	assert.Len(t, g.Processes, 2)
	assert.Len(t, g.Connections, 2)
	assert.Contains(t, g.Inports, "IN")
	// Edits append after existing connections, in order.
	assert.Equal(t, "p2", g.Connections[1].Src.Process)
}

func TestModifyWithEmptyGraphIsIdentity(t *testing.T) {
	g := NewGraph()
	AddProcess(g, "p", "NoOp", nil, nil)
	AddIIP(g, "x", "p", "in")
	AddExport(g, "OUT", "p", "out", false)

	before := *g
	beforeConns := append([]models.Connection(nil), g.Connections...)

	Modify(g, NewGraph())

	assert.Equal(t, before.Processes, g.Processes)
	assert.Equal(t, beforeConns, g.Connections)
	assert.Equal(t, before.Inports, g.Inports)
	assert.Equal(t, before.Outports, g.Outports)
}
