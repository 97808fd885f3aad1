// Package reporter tracks what the sync daemon is doing and publishes a
// snapshot of that state to a Sink after every transition.
//
// The daemon's main loop drives a Reporter through its lifecycle:
//
//	starting -> idle -> updating <-> idle -> sleeping -> idle ... -> stopped
//
// Each call assembles a fresh Snapshot (status, in-flight repository,
// completed repository outcomes and cycle timing statistics) and hands it
// to the configured Sink. Two sinks live here:
//
//   - FileSink serializes the snapshot as JSON under an exclusive advisory
//     lock and replaces the target file atomically, so readers using
//     ReadSnapshotFile (or no lock at all) never see a partial document.
//   - MemorySink replaces the contents of a SharedMap in one critical
//     section for consumers embedded in the same process.
//
// Reporter methods must be called sequentially. Misuse (finishing a
// repository that was never started, handing a sink a malformed snapshot)
// panics; sink I/O failures are returned as io-category errors.
package reporter
