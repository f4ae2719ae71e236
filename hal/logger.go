// Package hal holds the small host abstractions strand shares across
// packages: line-oriented loggers.
package hal

import (
	"io"
	"sync"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// NewWriterLogger returns a Logger that serialises lines onto w.
func NewWriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

// Discard is a Logger that drops every line.
var Discard Logger = discardLogger{}

type writerLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *writerLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, s)
	_, _ = l.w.Write([]byte{'\n'})
}

func (l *writerLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(b)
	_, _ = l.w.Write([]byte{'\n'})
}

type discardLogger struct{}

func (discardLogger) WriteLineString(string) {}
func (discardLogger) WriteLineBytes([]byte)  {}

// LineRecorder is a Logger that keeps lines in memory, for tests and diagnostics.
type LineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *LineRecorder) WriteLineString(s string) {
	r.mu.Lock()
	r.lines = append(r.lines, s)
	r.mu.Unlock()
}

func (r *LineRecorder) WriteLineBytes(b []byte) {
	r.WriteLineString(string(b))
}

// Lines returns a copy of the recorded lines.
func (r *LineRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
