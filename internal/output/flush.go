package output

import "io"

// flushEvent pushes a just-written event through w when w buffers output,
// so ndjson consumers see each event as it happens rather than at exit.
func flushEvent(w io.Writer) error {
	if b, ok := w.(interface{ Flush() error }); ok {
		return b.Flush()
	}
	return nil
}
