// Package json implements the JSON codec for graph files. It is the primary
// (and default) on-disk graph format.
//
// Pipeline position:
//
//	graph file → format/json [decode] → normalize → network
//
// Decoding is strict first; when strict parsing fails the codec runs the
// input through jsonrepair and retries, so hand-edited graph files with a
// trailing comma or unquoted key still load. The repair pass is logged at
// warn level because it usually means the file should be fixed.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonrepair"

	"github.com/vpbank/flowrunner/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Codec
// ─────────────────────────────────────────────────────────────────────────────

// Codec decodes and encodes graph values. It is safe for concurrent use;
// all fields are immutable after construction.
type Codec struct {
	logger *slog.Logger
}

// New constructs a Codec. If logger is nil, a no-op logger is substituted.
func New(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Codec{logger: logger}
}

// Decode parses a graph from JSON bytes. On a strict parse failure it
// attempts a jsonrepair pass before giving up.
func (c *Codec) Decode(data []byte) (*models.Graph, error) {
	var g models.Graph
	strictErr := json.Unmarshal(data, &g)
	if strictErr == nil {
		return &g, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return nil, fmt.Errorf("format/json: decode: %w", strictErr)
	}
	g = models.Graph{}
	if err := json.Unmarshal([]byte(repaired), &g); err != nil {
		return nil, fmt.Errorf("format/json: decode: %w", strictErr)
	}
	c.logger.Warn("format/json: graph file needed repair before parsing",
		"error", strictErr.Error(),
	)
	return &g, nil
}

// Encode serialises a graph to JSON bytes, indented when pretty is set.
func (c *Codec) Encode(g *models.Graph, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(g, "", "  ")
	} else {
		data, err = json.Marshal(g)
	}
	if err != nil {
		return nil, fmt.Errorf("format/json: encode: %w", err)
	}
	return data, nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
