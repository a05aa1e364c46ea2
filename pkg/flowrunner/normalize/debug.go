package normalize

import (
	"log/slog"
	"sort"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/graph"
)

// Names of the processes spliced in by Debug.
const (
	DebugEventsProcess  = "*events*"
	DebugStdinProcess   = "*stdin*"
	DebugSyncProcess    = "*sync*"
	DebugUnblockProcess = "*unblock*"
)

// EventReceivedAllInputs is the lifecycle event the debug harness blocks on.
const EventReceivedAllInputs = "ReceivedAllInputs"

// Debug splices a single-step harness into the graph. Every existing
// process gets a blocking ReceivedAllInputs configuration and an events
// connection into a shared merge; the merged event stream is joined with
// lines read from standard input, and each (event, line) pair releases one
// blocked process. The net effect: each newline typed by the user lets
// exactly one process proceed past the point where it has received all its
// inputs.
func Debug(g *models.Graph, logger *slog.Logger) *models.Graph {
	logger = orNop(logger)

	// Deterministic wiring order keeps the merged connection indices stable
	// run to run.
	names := make([]string, 0, len(g.Processes))
	for name := range g.Processes {
		names = append(names, name)
	}
	sort.Strings(names)

	edits := graph.NewGraph()
	for _, name := range names {
		graph.AddConnection(edits, name, "events", DebugEventsProcess, "in")
	}
	graph.AddConnection(edits, DebugEventsProcess, "out", DebugSyncProcess, "in")
	graph.AddConnection(edits, DebugStdinProcess, "out", DebugSyncProcess, "in")
	graph.AddConnection(edits, DebugSyncProcess, "out", DebugUnblockProcess, "in")

	graph.AddProcess(edits, DebugEventsProcess, "Merge", nil, nil)
	graph.AddProcess(edits, DebugStdinProcess, "_StdIn_", nil, nil)
	graph.AddProcess(edits, DebugSyncProcess, "Join", nil, nil)
	graph.AddProcess(edits, DebugUnblockProcess, "UnBlock", nil, nil)
	graph.Modify(g, edits)

	for _, name := range names {
		graph.SetConfig(g, name, map[string]interface{}{
			"blocking": map[string]interface{}{EventReceivedAllInputs: true},
		})
	}

	logger.Debug("normalize: debug harness inserted", "processes", len(names))
	return g
}
