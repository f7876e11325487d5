package dispatch

import (
	"context"
	"io"
	"sync"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/transcript"
)

// Sink is an append-only destination for transcript lines.
type Sink interface {
	Append(ctx context.Context, inv command.Invocation, line string) error
}

// Recorder renders each invocation in transcript syntax and appends it to a
// sink. It never talks to an engine and reports success for every command
// it manages to write down.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a recording backend.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Name implements the backend name hook.
func (r *Recorder) Name() string { return "record" }

// Emit appends inv to the sink.
func (r *Recorder) Emit(ctx context.Context, inv command.Invocation) (command.Status, error) {
	if err := r.sink.Append(ctx, inv, transcript.Format(inv)); err != nil {
		return command.Status{}, command.NewBackendError("failed to record command", err)
	}
	return command.Status{}, nil
}

// WriterSink appends lines to an io.Writer, flushing after each line.
type WriterSink struct {
	mu sync.Mutex
	w  *transcript.Writer
}

// NewWriterSink creates a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: transcript.NewWriter(w)}
}

// Writer returns the underlying transcript writer, e.g. to write a header.
func (s *WriterSink) Writer() *transcript.Writer { return s.w }

// Append implements Sink.
func (s *WriterSink) Append(ctx context.Context, inv command.Invocation, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(inv)
}

// MultiSink appends to every sink in order and stops at the first failure.
type MultiSink []Sink

// Append implements Sink.
func (m MultiSink) Append(ctx context.Context, inv command.Invocation, line string) error {
	for _, s := range m {
		if err := s.Append(ctx, inv, line); err != nil {
			return err
		}
	}
	return nil
}
