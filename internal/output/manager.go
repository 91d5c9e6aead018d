package output

import (
	"errors"
	"fmt"
)

// Sink receives run events. Write gets every Event of a run in emission
// order; Close is called once after run.finished and is where aggregate
// sinks write their document.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager delivers each run event to every sink. One sink failing (a full
// disk, an unreachable broker) never keeps the event from the others; the
// failures come back joined, each tagged with the sink's type.
type Manager struct {
	sinks []Sink
}

var errNilManager = errors.New("output manager is nil")

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return errNilManager
	}
	if s == nil {
		return errors.New("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// Len reports how many sinks are registered.
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

func (m *Manager) Write(v any) error {
	return m.each("errors writing to sinks", "write", func(s Sink) error { return s.Write(v) })
}

// Close closes every sink even after one fails, so file sinks still finish
// their atomic write when the Kafka sink cannot close cleanly.
func (m *Manager) Close() error {
	return m.each("errors closing sinks", "close", Sink.Close)
}

func (m *Manager) each(summary, op string, fn func(Sink) error) error {
	if m == nil {
		return errNilManager
	}
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, fmt.Errorf("%s %T: %w", op, s, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %w", summary, errors.Join(errs...))
}
