package executor

import (
	"bytes"
	"strings"
)

// lineWriter splits a stream into lines for the optional output observer.
// os/exec drives each stream from its own copier goroutine, so a lineWriter
// is never written concurrently.
type lineWriter struct {
	stream string
	emit   func(stream, line string)
	buf    bytes.Buffer
}

func newLineWriter(stream string, emit func(stream, line string)) *lineWriter {
	return &lineWriter{stream: stream, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// partial line, keep it for the next write
			w.buf.WriteString(line)
			break
		}
		w.emit(w.stream, strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// flush emits a trailing line that never got its newline.
func (w *lineWriter) flush() {
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.stream, w.buf.String())
	w.buf.Reset()
}
