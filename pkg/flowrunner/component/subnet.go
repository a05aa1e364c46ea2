package component

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vpbank/flowrunner/pkg/flowrunner/channel"
	"github.com/vpbank/flowrunner/pkg/flowrunner/config"
	"github.com/vpbank/flowrunner/pkg/flowrunner/network"
	"github.com/vpbank/flowrunner/pkg/flowrunner/normalize"
	"github.com/vpbank/flowrunner/pkg/flowrunner/worker"
)

// subnet runs a whole child network behind an ordinary process boundary.
// The child graph comes from the "graph" config entry (a path resolved
// against the graph directory); its exported ports line up with this
// process's own port names. The body bridges the two worlds: packets
// arriving on an external in-port are forwarded to the matching child
// in-port, child results flow back out the matching external out-port, and
// EOF travels both ways. Networks nest arbitrarily this way.
func (r *Registry) subnet(core *worker.Core) error {
	cfg := core.Config()
	ref, _ := cfg["graph"].(string)
	if ref == "" {
		return fmt.Errorf("component: %s: subnet has no graph configured", core.Name())
	}
	g, err := config.LoadGraph(r.cfg.Paths.Resolve(ref), core.Logger())
	if err != nil {
		return fmt.Errorf("component: %s: %w", core.Name(), err)
	}
	// IIPs in the child graph file become the child's *iips* process, so
	// the engine must not inject them a second time.
	g = normalize.IIPs(g, core.Logger())

	net, err := network.New(g, r.lib, network.Options{
		Name:       core.Name(),
		SkipIIPs:   true,
		BufferSize: r.cfg.BufferSize,
		Logger:     core.Logger(),
	})
	if err != nil {
		return fmt.Errorf("component: %s: %w", core.Name(), err)
	}
	net.Start()
	iface := net.Interface()

	inNames := make([]string, 0, len(iface.Inports))
	for name := range iface.Inports {
		inNames = append(inNames, name)
	}
	sort.Strings(inNames)
	outNames := make([]string, 0, len(iface.Outports))
	for name := range iface.Outports {
		outNames = append(outNames, name)
	}
	sort.Strings(outNames)

	inDone := map[string]bool{}
	outDone := map[string]bool{}

	for len(inDone) < len(inNames) || len(outDone) < len(outNames) {
		progressed := false

		// External world → child network.
		for _, name := range inNames {
			if inDone[name] {
				continue
			}
			data, err := core.GetDataAt(0, name, true)
			switch {
			case errors.Is(err, channel.ErrNotReady):
				continue
			case errors.Is(err, io.EOF), errors.Is(err, worker.ErrUnconnected):
				// Upstream is finished (or was never wired); the child's
				// in-port closes so EOF cascades inside.
				inDone[name] = true
				for _, prod := range iface.Inports[name] {
					prod.Close()
				}
				continue
			case err != nil:
				net.Stop()
				return err
			}
			progressed = true
			for _, prod := range iface.Inports[name] {
				if err := prod.Send(data); err != nil {
					core.Logger().Warn("component: subnet forward failed",
						"process", core.Name(),
						"port", name,
						"error", err.Error(),
					)
				}
			}
		}

		// Child network → external world.
		for _, name := range outNames {
			if outDone[name] {
				continue
			}
			cons := iface.Outports[name][0]
			data, err := cons.Poll()
			switch {
			case errors.Is(err, channel.ErrNotReady):
				continue
			case errors.Is(err, io.EOF):
				outDone[name] = true
				cons.Close()
				continue
			}
			progressed = true
			if err := core.SetData(name, data); err != nil {
				// Downstream is gone; stop forwarding this port.
				outDone[name] = true
				cons.Close()
				continue
			}
		}

		if !progressed {
			time.Sleep(idlePause)
		}
	}

	net.Stop()
	return nil
}
