package process

import (
	"io"
	"sync"
)

const linePrefix = "  "

// lineWriter re-emits output one indented line at a time, dropping blank lines.
// Partial lines are held until a line break or Flush.
type lineWriter struct {
	mu      sync.Mutex
	out     io.Writer
	pending []byte
}

func newLineWriter(out io.Writer) *lineWriter {
	return &lineWriter{out: out}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range p {
		if c == '\n' || c == '\r' {
			w.emit()
			continue
		}
		w.pending = append(w.pending, c)
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit()
}

func (w *lineWriter) emit() {
	if len(w.pending) == 0 {
		return
	}
	line := make([]byte, 0, len(linePrefix)+len(w.pending)+1)
	line = append(line, linePrefix...)
	line = append(line, w.pending...)
	line = append(line, '\n')
	_, _ = w.out.Write(line)
	w.pending = w.pending[:0]
}
