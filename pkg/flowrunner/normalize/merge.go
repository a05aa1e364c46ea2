package normalize

import (
	"fmt"
	"log/slog"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/graph"
)

// MergeComponent is the component spliced in by InsertMerges.
const MergeComponent = "Merge"

// InsertMerges prevents silent fan-in collisions between exported in-ports
// and IIPs. Whenever a single internal in-port is targeted both by an IIP
// and by an exported in-port, a Merge node is inserted: the IIP and the
// exported port are rewired into the merge's in-port, and the merge's
// out-port feeds the original target. Other fan-in combinations are left
// alone; the author must merge explicitly.
//
// InsertMerges must run before IIPs, while the IIPs are still present as
// connection entries.
func InsertMerges(g *models.Graph, logger *slog.Logger) *models.Graph {
	logger = orNop(logger)

	// internal target endpoint → exported in-port name
	exported := map[models.Endpoint]string{}
	for name, ep := range g.Inports {
		exported[ep] = name
	}

	// internal target endpoint → merge already inserted for it
	merges := map[models.Endpoint]string{}
	n := 0
	total := len(g.Connections)
	for i := 0; i < total; i++ {
		if !g.Connections[i].IsIIP() {
			continue
		}
		orig := g.Connections[i].Tgt
		if mergeName, ok := merges[orig]; ok {
			// A later IIP aimed at an already-merged target joins the same
			// merge fan-in.
			g.Connections[i].Tgt = models.Endpoint{Process: mergeName, Port: "in"}
			continue
		}
		externalName, ok := exported[orig]
		if !ok {
			continue
		}
		mergeName := fmt.Sprintf("*merge%d*", n)
		n++
		merges[orig] = mergeName

		g.Connections[i].Tgt = models.Endpoint{Process: mergeName, Port: "in"}
		g.Inports[externalName] = models.Endpoint{Process: mergeName, Port: "in"}

		edits := graph.NewGraph()
		graph.AddProcess(edits, mergeName, MergeComponent, nil, nil)
		graph.AddConnection(edits, mergeName, "out", orig.Process, orig.Port)
		graph.Modify(g, edits)

		logger.Debug("normalize: merge inserted",
			"merge", mergeName,
			"process", orig.Process,
			"port", orig.Port,
			"export", externalName,
		)
	}
	return g
}
