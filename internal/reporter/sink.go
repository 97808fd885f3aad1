package reporter

import (
	"errors"
)

// Sink persists a snapshot for external consumption. Implementations must
// not retain references into the snapshot they are handed.
type Sink interface {
	Write(s Snapshot) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Snapshot) error

// Write calls f(s).
func (f SinkFunc) Write(s Snapshot) error { return f(s) }

// MultiSink fans one snapshot out to several sinks. Every sink is written
// even when an earlier one fails; the failures are joined.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(s Snapshot) error {
	mustValidate(s)
	var errs []error
	for _, sink := range m {
		if err := sink.Write(s.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
