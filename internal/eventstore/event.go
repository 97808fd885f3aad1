package eventstore

import (
	"time"

	"git.home.luguber.info/inful/syncd/internal/reporter"
)

// Record is one published status snapshot as stored in the history.
type Record struct {
	ID        int64
	RunID     string // Daemon run that published the snapshot
	Status    string // Daemon status of the snapshot, duplicated for querying
	Timestamp time.Time // Stored with millisecond precision, read back in UTC
	Payload   []byte // The JSON document exactly as published
	Metadata  map[string]string
}

// Snapshot decodes the stored document.
func (r Record) Snapshot() (reporter.Snapshot, error) {
	return reporter.DecodeSnapshot(r.Payload)
}
