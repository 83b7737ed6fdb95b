package pipeline

import (
	"bytes"
	"io"
	"sync"
)

// BufferSinks captures every stream in memory. It backs single-input
// inspection runs.
type BufferSinks struct {
	mu     sync.Mutex
	output map[string]*bytes.Buffer
	trace  map[string]*bytes.Buffer
	stderr map[string]*bytes.Buffer
}

// NewBufferSinks creates empty in-memory sinks.
func NewBufferSinks() *BufferSinks {
	return &BufferSinks{
		output: make(map[string]*bytes.Buffer),
		trace:  make(map[string]*bytes.Buffer),
		stderr: make(map[string]*bytes.Buffer),
	}
}

func (b *BufferSinks) buffer(m map[string]*bytes.Buffer, stage string) io.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := m[stage]
	if !ok {
		buf = &bytes.Buffer{}
		m[stage] = buf
	}
	return buf
}

// Output implements Sinks.
func (b *BufferSinks) Output(stage string) (io.Writer, error) {
	return b.buffer(b.output, stage), nil
}

// Trace implements Sinks.
func (b *BufferSinks) Trace(stage string) (io.Writer, error) {
	return b.buffer(b.trace, stage), nil
}

// Stderr implements Sinks.
func (b *BufferSinks) Stderr(stage string) (io.Writer, error) {
	return b.buffer(b.stderr, stage), nil
}

// Results returns the captured output of every stage keyed by stage name,
// with trace output under the stage's trace shadow name.
func (b *BufferSinks) Results() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.output)+len(b.trace))
	for k, v := range b.output {
		out[k] = v.String()
	}
	for k, v := range b.trace {
		out[TraceName(k)] = v.String()
	}
	return out
}

// StderrOf returns everything written to stderr by stage.
func (b *BufferSinks) StderrOf(stage string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.stderr[stage]; ok {
		return buf.String()
	}
	return ""
}
