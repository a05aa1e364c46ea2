package component

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vpbank/flowrunner/models"
	"github.com/vpbank/flowrunner/pkg/flowrunner/channel"
	"github.com/vpbank/flowrunner/pkg/flowrunner/worker"
)

// idlePause is how long the polling components back off when a full scan of
// their connections yields nothing.
const idlePause = 200 * time.Microsecond

// add receives one packet on "a" and one on "b" and emits their sum on
// "sum". Numeric payloads of any JSON-decodable shape are accepted; two
// strings concatenate.
func add(core *worker.Core) error {
	a, err := core.GetData("a")
	if err != nil {
		return err
	}
	b, err := core.GetData("b")
	if err != nil {
		return err
	}
	sum, err := addValues(a, b)
	if err != nil {
		return fmt.Errorf("component: %s: %w", core.Name(), err)
	}
	return core.SetData("sum", sum)
}

// addValues applies "+" the way the graph author expects: integers stay
// integral, anything else numeric goes through float64, strings append.
func addValues(a, b interface{}) (interface{}, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return nil, fmt.Errorf("cannot add %T and %T", a, b)
		}
		return as + bs, nil
	}
	ai, aIsInt := toInt64(a)
	bi, bIsInt := toInt64(b)
	if aIsInt && bIsInt {
		return ai + bi, nil
	}
	af, aOK := toFloat64(a)
	bf, bOK := toFloat64(b)
	if !aOK || !bOK {
		return nil, fmt.Errorf("cannot add %T and %T", a, b)
	}
	return af + bf, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := toInt64(v)
		return float64(i), ok
	}
}

// noop forwards a single packet from "in" to "out".
func noop(core *worker.Core) error {
	data, err := core.GetData("in")
	if err != nil {
		return err
	}
	return core.SetData("out", data)
}

// info forwards every packet from "in" to "out", logging each payload at
// info level on the way through.
func info(core *worker.Core) error {
	for {
		data, err := core.GetData("in")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		core.Logger().Info(fmt.Sprint(data), "process", core.Name())
		if err := core.SetData("out", data); err != nil {
			return err
		}
	}
}

// filter receives one event on "in" and forwards it to "out" only when its
// type matches the configured "type" string.
func filter(core *worker.Core) error {
	want, _ := core.Config()["type"].(string)
	data, err := core.GetData("in")
	if err != nil {
		return err
	}
	if eventType(data) != want {
		return nil
	}
	return core.SetData("out", data)
}

// eventType extracts the type tag from an event payload in either of its
// travelling shapes.
func eventType(data interface{}) string {
	switch ev := data.(type) {
	case worker.Event:
		return ev.Type
	case map[string]interface{}:
		t, _ := ev["type"].(string)
		return t
	}
	return ""
}

// merge forwards packets from every connection of its "in" port to "out".
// Connections are scanned in index order and whatever is ready is forwarded;
// the scan is not fair. The component ends once every connection has hit
// end-of-stream.
func merge(core *worker.Core) error {
	n := core.LenAt("in", true)
	eof := make([]bool, n)
	remaining := n
	for remaining > 0 {
		progressed := false
		for i := 0; i < n; i++ {
			if eof[i] {
				continue
			}
			data, err := core.GetDataAt(i, "in", true)
			if errors.Is(err, channel.ErrNotReady) {
				continue
			}
			if errors.Is(err, io.EOF) {
				eof[i] = true
				remaining--
				continue
			}
			if err != nil {
				return err
			}
			progressed = true
			if err := core.SetData("out", data); err != nil {
				return err
			}
		}
		if !progressed && remaining > 0 {
			time.Sleep(idlePause)
		}
	}
	return nil
}

// join blocks for one packet from each connection of its "in" port, emits
// them as a group (ordered by connection index) on "out", and repeats. The
// first end-of-stream on any connection ends the component.
func join(core *worker.Core) error {
	n := core.LenAt("in", true)
	for {
		group := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			data, err := core.GetDataAt(i, "in", false)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			group = append(group, data)
		}
		if err := core.SetData("out", group); err != nil {
			return err
		}
	}
}

// unblock signals the acknowledgement handle of every event found in the
// groups arriving on "in", releasing the workers blocked on them.
func unblock(core *worker.Core) error {
	for {
		data, err := core.GetData("in")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		elems, ok := data.([]interface{})
		if !ok {
			elems = []interface{}{data}
		}
		for _, elem := range elems {
			if ev, ok := elem.(worker.Event); ok && ev.Ack != nil {
				ev.Ack.Signal()
			}
		}
	}
}

// iips sends each configured initial information packet on the out-port
// named after its target, "{process}_{port}", in configuration order.
func iips(core *worker.Core) error {
	entries, err := iipEntries(core.Config())
	if err != nil {
		return fmt.Errorf("component: %s: %w", core.Name(), err)
	}
	for _, entry := range entries {
		port := fmt.Sprintf("%s_%s", entry.Process, entry.Port)
		if err := core.SetData(port, entry.Data); err != nil {
			return err
		}
	}
	return nil
}

// iipEntries reads the "iips" config list in both its shapes: native
// models.IIP values (from the normalizer) and decoded triples (from a graph
// file that declares the process literally).
func iipEntries(cfg map[string]interface{}) ([]models.IIP, error) {
	raw, ok := cfg["iips"]
	if !ok {
		return nil, errors.New("missing iips config")
	}
	if entries, ok := raw.([]models.IIP); ok {
		return entries, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("bad iips config type %T", raw)
	}
	entries := make([]models.IIP, 0, len(list))
	for i, item := range list {
		triple, ok := item.([]interface{})
		if !ok || len(triple) != 3 {
			return nil, fmt.Errorf("bad iips entry %d", i)
		}
		proc, procOK := triple[1].(string)
		port, portOK := triple[2].(string)
		if !procOK || !portOK {
			return nil, fmt.Errorf("bad iips entry %d", i)
		}
		entries = append(entries, models.IIP{Data: triple[0], Process: proc, Port: port})
	}
	return entries, nil
}

// stdin reads lines from the configured input stream, strips the trailing
// newline, and emits one packet per line on "out". End of the stream ends
// the component; a vanished downstream does too.
func (r *Registry) stdin(core *worker.Core) error {
	scanner := bufio.NewScanner(r.cfg.Stdin)
	for scanner.Scan() {
		if err := core.SetData("out", scanner.Text()); err != nil {
			if errors.Is(err, channel.ErrBrokenPipe) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// stdout writes every packet arriving on "in" to the configured sink, one
// line per packet, flushed as it goes.
func (r *Registry) stdout(core *worker.Core) error {
	for {
		data, err := core.GetData("in")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.cfg.Stdout.Send(data); err != nil {
			return fmt.Errorf("component: %s: %w", core.Name(), err)
		}
	}
}
