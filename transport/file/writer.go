// Package file implements the packet sink that terminal components write
// through — typically os.Stdout (default) or a file.
//
// Pipeline position:
//
//	component/_StdOut_ → transport/file [sink]
//
// Each call to Send renders one packet followed by a newline and flushes, so
// downstream consumers of the stream (a terminal, a pipe) see records as
// they are produced, un-interleaved even when several workers share one
// sink.
package file

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sink interface
// ─────────────────────────────────────────────────────────────────────────────

// Sink is the contract terminal components write packets through. Send
// delivers one payload; Close flushes and releases resources.
type Sink interface {
	Send(data interface{}) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterSink behaviour.
type Config struct {
	// Writer is the destination. nil defaults to os.Stdout.
	Writer io.Writer

	// Newline appended after each packet. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterSink
// ─────────────────────────────────────────────────────────────────────────────

// WriterSink implements Sink by rendering each packet with fmt and writing
// it to a buffered io.Writer followed by the configured newline. It is safe
// for concurrent use.
type WriterSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	nl     string
	logger *slog.Logger
}

// New constructs a WriterSink.
//
//   - cfg.Writer defaults to os.Stdout when nil.
//   - cfg.Newline defaults to "\n" when empty.
//   - logger defaults to a no-op logger when nil.
func New(cfg Config, logger *slog.Logger) *WriterSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}
	return &WriterSink{
		w:      bufio.NewWriter(w),
		nl:     nl,
		logger: logger,
	}
}

// Send renders data and writes it, newline-terminated, flushing after every
// packet. The mutex keeps concurrent senders' lines whole (important when
// the destination is os.Stdout).
func (s *WriterSink) Send(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "%v%s", data, s.nl); err != nil {
		s.logger.Error("transport/file: write failed", "error", err.Error())
		return fmt.Errorf("transport/file: write: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		s.logger.Error("transport/file: flush failed", "error", err.Error())
		return fmt.Errorf("transport/file: flush: %w", err)
	}
	return nil
}

// Close flushes buffered output. The underlying writer's lifetime is managed
// by whoever created it.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("transport/file: flush: %w", err)
	}
	return nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
