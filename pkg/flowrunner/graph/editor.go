// Package graph provides editing operations over the in-memory graph value:
// add a process, wire a connection, attach an IIP, export a port, merge two
// graph fragments. Each operation modifies the graph it is given in place
// and touches nothing else. The normalizers and tests are
// built entirely out of these builders.
package graph

import "github.com/vpbank/flowrunner/models"

// DefaultOutport and DefaultInport are the port names assumed when an
// endpoint is given by process name alone.
const (
	DefaultOutport = "out"
	DefaultInport  = "in"
)

// NewGraph returns an empty graph ready for editing.
func NewGraph() *models.Graph {
	return &models.Graph{
		Processes:   map[string]*models.Process{},
		Connections: []models.Connection{},
		Inports:     map[string]models.Endpoint{},
		Outports:    map[string]models.Endpoint{},
	}
}

// AddProcess adds (or replaces) a named process running the given component.
// A non-nil config is stored under metadata "config"; a non-nil metadata map
// is installed first, so config wins on collision.
func AddProcess(g *models.Graph, name, component string, config, metadata map[string]interface{}) {
	if g.Processes == nil {
		g.Processes = map[string]*models.Process{}
	}
	p := &models.Process{Component: component}
	if metadata != nil {
		p.Metadata = metadata
	}
	g.Processes[name] = p
	if config != nil {
		SetConfig(g, name, config)
	}
}

// SetConfig shallow-merges patch into the process's metadata "config" block,
// creating the metadata layers as needed. Unknown process names are a no-op.
func SetConfig(g *models.Graph, processName string, patch map[string]interface{}) {
	p, ok := g.Processes[processName]
	if !ok {
		return
	}
	if p.Metadata == nil {
		p.Metadata = map[string]interface{}{}
	}
	cfg, ok := p.Metadata["config"].(map[string]interface{})
	if !ok {
		cfg = map[string]interface{}{}
		p.Metadata["config"] = cfg
	}
	for k, v := range patch {
		cfg[k] = v
	}
}

// AddConnection appends a wired connection. Empty port names default to
// "out" on the source side and "in" on the target side.
func AddConnection(g *models.Graph, srcProcess, srcPort, tgtProcess, tgtPort string) {
	if srcPort == "" {
		srcPort = DefaultOutport
	}
	if tgtPort == "" {
		tgtPort = DefaultInport
	}
	g.Connections = append(g.Connections, models.Connection{
		Src: &models.Endpoint{Process: srcProcess, Port: srcPort},
		Tgt: models.Endpoint{Process: tgtProcess, Port: tgtPort},
	})
}

// AddIIP appends an initial information packet targeting the given in-port.
// An empty port name defaults to "in".
func AddIIP(g *models.Graph, data interface{}, tgtProcess, tgtPort string) {
	if tgtPort == "" {
		tgtPort = DefaultInport
	}
	g.Connections = append(g.Connections, models.Connection{
		Tgt:  models.Endpoint{Process: tgtProcess, Port: tgtPort},
		Data: data,
	})
}

// AddExport publishes an internal port under an external name. isInport
// selects between the graph's inports and outports tables.
func AddExport(g *models.Graph, externalName, process, port string, isInport bool) {
	ep := models.Endpoint{Process: process, Port: port}
	if isInport {
		if g.Inports == nil {
			g.Inports = map[string]models.Endpoint{}
		}
		g.Inports[externalName] = ep
		return
	}
	if g.Outports == nil {
		g.Outports = map[string]models.Endpoint{}
	}
	g.Outports[externalName] = ep
}

// Modify merges the edits fragment into g: processes and exported ports are
// shallow-merged (edits win), connections are appended in order.
func Modify(g, edits *models.Graph) {
	for name, p := range edits.Processes {
		if g.Processes == nil {
			g.Processes = map[string]*models.Process{}
		}
		g.Processes[name] = p
	}
	for name, ep := range edits.Inports {
		if g.Inports == nil {
			g.Inports = map[string]models.Endpoint{}
		}
		g.Inports[name] = ep
	}
	for name, ep := range edits.Outports {
		if g.Outports == nil {
			g.Outports = map[string]models.Endpoint{}
		}
		g.Outports[name] = ep
	}
	g.Connections = append(g.Connections, edits.Connections...)
}
