// Package plot renders a graph to Graphviz DOT text so it can be inspected
// or rasterised (e.g. `dot -Tpng`). Rendering the normalized graph shows
// exactly what the engine will run, synthesized processes included.
package plot

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vpbank/flowrunner/models"
)

// DOT returns the graph as a Graphviz digraph. Processes become boxes
// labelled "name\n(component)", wired connections become edges labelled
// "srcPort → tgtPort", IIPs become point pseudo-nodes labelled with their
// payload, and exported ports become dashed ellipses.
func DOT(g *models.Graph, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n  node [shape=box];\n")

	procNames := make([]string, 0, len(g.Processes))
	for p := range g.Processes {
		procNames = append(procNames, p)
	}
	sort.Strings(procNames)
	for _, p := range procNames {
		fmt.Fprintf(&b, "  %q [label=\"%s\\n(%s)\"];\n", p, p, g.Processes[p].Component)
	}

	for i, conn := range g.Connections {
		if conn.IsIIP() {
			iipNode := fmt.Sprintf("iip%d", i)
			fmt.Fprintf(&b, "  %q [shape=point, xlabel=%q];\n", iipNode, fmt.Sprint(conn.Data))
			fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", iipNode, conn.Tgt.Process, conn.Tgt.Port)
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n",
			conn.Src.Process, conn.Tgt.Process,
			conn.Src.Port+" → "+conn.Tgt.Port)
	}

	for _, ext := range sortedPortNames(g.Inports) {
		ep := g.Inports[ext]
		fmt.Fprintf(&b, "  %q [shape=ellipse, style=dashed];\n", ext)
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", ext, ep.Process, ep.Port)
	}
	for _, ext := range sortedPortNames(g.Outports) {
		ep := g.Outports[ext]
		fmt.Fprintf(&b, "  %q [shape=ellipse, style=dashed];\n", ext)
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", ep.Process, ext, ep.Port)
	}

	b.WriteString("}\n")
	return b.String()
}

func sortedPortNames(m map[string]models.Endpoint) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteDOT renders the graph and writes it to path.
func WriteDOT(g *models.Graph, name, path string) error {
	if err := os.WriteFile(path, []byte(DOT(g, name)), 0o644); err != nil {
		return fmt.Errorf("plot: write %s: %w", path, err)
	}
	return nil
}
