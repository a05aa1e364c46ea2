// Package normalize rewrites a declarative graph into its executable form:
// IIP-as-connection entries become a synthesized IIP process, collisions
// between IIPs and exported in-ports get a Merge node spliced in, and an
// optional debug harness adds the processes that let a user single-step the
// network.
//
// Pipeline position:
//
//	config [load] → normalize [rewrite] → network [build]
//
// The normalizers mutate the graph they are given and return it, so calls
// chain. Order matters: InsertMerges must see IIPs still in connection form,
// so it runs before IIPs; Debug runs last so the synthesized processes get
// event wiring too.
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/graph"
)

// IIPProcessName is the name of the process synthesized by IIPs.
const IIPProcessName = "*iips*"

// IIPComponent is the component the synthesized IIP process runs.
const IIPComponent = "_IIPs_"

// IIPOutport names the synthesized process's out-port for one IIP target.
func IIPOutport(process, port string) string {
	return fmt.Sprintf("%s_%s", process, port)
}

// IIPs rewrites every IIP-as-connection entry into a single synthesized
// process whose configured outputs each target one downstream in-port.
// Exactly one packet per IIP is delivered on network start, in the order the
// IIPs appear in the graph. Running IIPs twice is a no-op: the second pass
// finds no IIP connections left to rewrite.
func IIPs(g *models.Graph, logger *slog.Logger) *models.Graph {
	logger = orNop(logger)

	wiredTargets := map[models.Endpoint]bool{}
	for _, conn := range g.Connections {
		if !conn.IsIIP() {
			wiredTargets[conn.Tgt] = true
		}
	}

	edits := graph.NewGraph()
	var iips []models.IIP
	kept := g.Connections[:0]
	for _, conn := range g.Connections {
		if !conn.IsIIP() {
			kept = append(kept, conn)
			continue
		}
		tgt := conn.Tgt
		if wiredTargets[tgt] {
			// The source behavior: both the IIP and the wired packet are
			// delivered, and the downstream component must read the right
			// number of packets.
			logger.Info("normalize: IIP target also has a wired connection",
				"process", tgt.Process,
				"port", tgt.Port,
			)
		}
		graph.AddConnection(edits, IIPProcessName, IIPOutport(tgt.Process, tgt.Port), tgt.Process, tgt.Port)
		iips = append(iips, models.IIP{Data: conn.Data, Process: tgt.Process, Port: tgt.Port})
		logger.Debug("normalize: IIP rewritten",
			"process", tgt.Process,
			"port", tgt.Port,
		)
	}
	if len(iips) == 0 {
		return g
	}
	g.Connections = kept

	graph.AddProcess(edits, IIPProcessName, IIPComponent,
		map[string]interface{}{"iips": iips}, nil)
	graph.Modify(g, edits)
	return g
}

func orNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return logger
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
